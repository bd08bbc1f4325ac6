// Package chainclient is the Chain Adapter (Component A): typed
// read/write access to the Distributor and Wrapper contracts and to any
// ERC-20 token, built by hand-packing/unpacking ABI arguments against a
// plain *ethclient.Client the way the corpus's cmd/submitproof and
// internal/chain do, rather than through abigen-generated bindings.
package chainclient

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/merkl-ops/distrib/internal/distmodel"
	"github.com/merkl-ops/distrib/internal/opmetrics"
)

// Client is the round engine's only door onto the chain.
type Client struct {
	eth        *ethclient.Client
	distrib    common.Address
	wrapper    common.Address
	privateKey string // hex, no 0x prefix required; empty means read-only
}

// New dials rpcURL and returns a Client scoped to the given contracts.
// privateKeyHex may be empty; write operations then fail with
// ErrSignerRequired instead of dialing a signer.
func New(rpcURL string, distributor, wrapper common.Address, privateKeyHex string) (*Client, error) {
	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		opmetrics.RecordRPCError("dial")
		return nil, distmodel.ErrRPC.Wrapf("dial %s: %v", rpcURL, err)
	}
	return &Client{eth: eth, distrib: distributor, wrapper: wrapper, privateKey: privateKeyHex}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() { c.eth.Close() }

func (c *Client) call(ctx context.Context, to common.Address, data []byte, blockNumber *big.Int) ([]byte, error) {
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, blockNumber)
	if err != nil {
		opmetrics.RecordRPCError("call")
		return nil, distmodel.ErrRPC.Wrapf("call %s: %v", to.Hex(), err)
	}
	return out, nil
}

// Root returns the on-chain (root, cid). A zero hash and empty cid means
// genesis — no round has published yet.
func (c *Client) Root(ctx context.Context) (common.Hash, string, error) {
	rootOut, err := c.call(ctx, c.distrib, selRoot, nil)
	if err != nil {
		return common.Hash{}, "", err
	}
	root, err := unpackBytes32(rootOut)
	if err != nil {
		return common.Hash{}, "", distmodel.ErrDecode.Wrapf("root(): %v", err)
	}
	cidOut, err := c.call(ctx, c.distrib, selCID, nil)
	if err != nil {
		return common.Hash{}, "", err
	}
	cid, err := unpackString(cidOut)
	if err != nil {
		return common.Hash{}, "", distmodel.ErrDecode.Wrapf("cid(): %v", err)
	}
	return common.Hash(root), cid, nil
}

// LastProcessedBlock returns the block height the previous round was
// snapshotted at.
func (c *Client) LastProcessedBlock(ctx context.Context) (uint64, error) {
	out, err := c.call(ctx, c.distrib, selLastProcessedBlock, nil)
	if err != nil {
		return 0, err
	}
	n, err := unpackUint256(out)
	if err != nil {
		return 0, distmodel.ErrDecode.Wrapf("lastProcessedBlock(): %v", err)
	}
	return n.Uint64(), nil
}

// Tokens returns the distributor's authoritative token list.
func (c *Client) Tokens(ctx context.Context) ([]common.Address, error) {
	out, err := c.call(ctx, c.distrib, selGetTokens, nil)
	if err != nil {
		return nil, err
	}
	toks, err := unpackAddresses(out)
	if err != nil {
		return nil, distmodel.ErrDecode.Wrapf("getTokens(): %v", err)
	}
	return toks, nil
}

// BlockNumber returns the chain's current height.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		opmetrics.RecordRPCError("blockNumber")
		return 0, distmodel.ErrRPC.Wrapf("blockNumber: %v", err)
	}
	return n, nil
}

// WrapperTotalSupply returns the wrapper's current total share supply.
func (c *Client) WrapperTotalSupply(ctx context.Context) (*big.Int, error) {
	out, err := c.call(ctx, c.wrapper, selTotalSupply, nil)
	if err != nil {
		return nil, err
	}
	n, err := unpackUint256(out)
	if err != nil {
		return nil, distmodel.ErrDecode.Wrapf("totalSupply(): %v", err)
	}
	return n, nil
}

// WrapperBalanceOf returns holder's current wrapper share balance.
func (c *Client) WrapperBalanceOf(ctx context.Context, holder common.Address) (*big.Int, error) {
	return c.erc20BalanceOf(ctx, c.wrapper, holder, nil)
}

// WrapperBalanceOfAt returns holder's wrapper share balance pinned to a
// historical block — the round's snapshot height, per the Open Question
// resolution in SPEC_FULL.md §9.
func (c *Client) WrapperBalanceOfAt(ctx context.Context, holder common.Address, block uint64) (*big.Int, error) {
	return c.erc20BalanceOf(ctx, c.wrapper, holder, new(big.Int).SetUint64(block))
}

// ERC20BalanceOf returns holder's current balance of token.
func (c *Client) ERC20BalanceOf(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	return c.erc20BalanceOf(ctx, token, holder, nil)
}

// ERC20BalanceOfAt returns holder's balance of token at a historical
// block. Requires an archive-class RPC endpoint (§9 of SPEC_FULL.md).
func (c *Client) ERC20BalanceOfAt(ctx context.Context, token, holder common.Address, block uint64) (*big.Int, error) {
	return c.erc20BalanceOf(ctx, token, holder, new(big.Int).SetUint64(block))
}

func (c *Client) erc20BalanceOf(ctx context.Context, token, holder common.Address, blockNumber *big.Int) (*big.Int, error) {
	data, err := packBalanceOf(holder)
	if err != nil {
		return nil, distmodel.ErrDecode.Wrapf("pack balanceOf: %v", err)
	}
	out, err := c.call(ctx, token, data, blockNumber)
	if err != nil {
		return nil, err
	}
	n, err := unpackUint256(out)
	if err != nil {
		return nil, distmodel.ErrDecode.Wrapf("balanceOf(): %v", err)
	}
	return n, nil
}

// ClaimedEvent is one decoded Claimed(recipient, token, amount) log.
type ClaimedEvent struct {
	Recipient common.Address
	Token     common.Address
	Amount    *big.Int
}

// FilterClaimed scans the distributor's Claimed events for token over
// [fromBlock, toBlock], both inclusive.
func (c *Client) FilterClaimed(ctx context.Context, token common.Address, fromBlock, toBlock uint64) ([]ClaimedEvent, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{c.distrib},
		Topics:    [][]common.Hash{{selClaimedTopic0}, nil, {common.BytesToHash(token.Bytes())}},
	}
	logs, err := c.eth.FilterLogs(ctx, query)
	if err != nil {
		opmetrics.RecordRPCError("filterLogs.Claimed")
		return nil, distmodel.ErrRPC.Wrapf("filterLogs Claimed: %v", err)
	}
	events := make([]ClaimedEvent, 0, len(logs))
	for _, lg := range logs {
		if len(lg.Topics) < 3 {
			continue
		}
		amount, err := unpackUint256(lg.Data)
		if err != nil {
			return nil, distmodel.ErrDecode.Wrapf("Claimed data: %v", err)
		}
		events = append(events, ClaimedEvent{
			Recipient: common.BytesToAddress(lg.Topics[1].Bytes()),
			Token:     common.BytesToAddress(lg.Topics[2].Bytes()),
			Amount:    amount,
		})
	}
	return events, nil
}

// DepositEvent is one decoded Deposit(sender, owner, assets, shares) log.
type DepositEvent struct {
	Sender common.Address
	Owner  common.Address
	Assets *big.Int
	Shares *big.Int
}

// FilterDeposits scans the wrapper's Deposit events over [fromBlock,
// toBlock], both inclusive.
func (c *Client) FilterDeposits(ctx context.Context, fromBlock, toBlock uint64) ([]DepositEvent, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{c.wrapper},
		Topics:    [][]common.Hash{{selDepositTopic0}},
	}
	logs, err := c.eth.FilterLogs(ctx, query)
	if err != nil {
		opmetrics.RecordRPCError("filterLogs.Deposit")
		return nil, distmodel.ErrRPC.Wrapf("filterLogs Deposit: %v", err)
	}
	events := make([]DepositEvent, 0, len(logs))
	for _, lg := range logs {
		if len(lg.Topics) < 3 {
			continue
		}
		assets, shares, err := unpackDepositData(lg.Data)
		if err != nil {
			return nil, distmodel.ErrDecode.Wrapf("Deposit data: %v", err)
		}
		events = append(events, DepositEvent{
			Sender: common.BytesToAddress(lg.Topics[1].Bytes()),
			Owner:  common.BytesToAddress(lg.Topics[2].Bytes()),
			Assets: assets,
			Shares: shares,
		})
	}
	return events, nil
}

// signAndSend builds the ECDSA key and chain-scoped signer, signs and
// sends a write transaction, and waits for its receipt, matching cmd/submitproof's manual nonce/gas-price/
// chainID lookup and types.SignTx flow (no abigen contract instance is
// available to wrap this in bind.TransactOpts).
func (c *Client) signAndSend(ctx context.Context, to common.Address, calldata []byte) (*types.Receipt, error) {
	if c.privateKey == "" {
		return nil, distmodel.ErrSignerRequired
	}
	key, err := crypto.HexToECDSA(trimHexPrefix(c.privateKey))
	if err != nil {
		return nil, distmodel.ErrConfigMissing.Wrapf("parse private key: %v", err)
	}
	from := crypto.PubkeyToAddress(key.PublicKey)
	chainID, err := c.eth.ChainID(ctx)
	if err != nil {
		opmetrics.RecordRPCError("chainID")
		return nil, distmodel.ErrRPC.Wrapf("chainID: %v", err)
	}
	nonce, err := c.eth.PendingNonceAt(ctx, from)
	if err != nil {
		opmetrics.RecordRPCError("pendingNonce")
		return nil, distmodel.ErrRPC.Wrapf("pendingNonce: %v", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		opmetrics.RecordRPCError("gasPrice")
		return nil, distmodel.ErrRPC.Wrapf("gasPrice: %v", err)
	}
	gasLimit, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: calldata})
	if err != nil {
		gasLimit = 500000 // fall back to a conservative flat limit if estimation fails
	}
	tx := types.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, calldata)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(chainID), key)
	if err != nil {
		return nil, distmodel.ErrConfigMissing.Wrapf("sign transaction: %v", err)
	}
	if err := c.eth.SendTransaction(ctx, signedTx); err != nil {
		opmetrics.RecordRPCError("sendTransaction")
		return nil, distmodel.ErrRPC.Wrapf("send transaction: %v", err)
	}
	receipt, err := bind.WaitMined(ctx, c.eth, signedTx)
	if err != nil {
		opmetrics.RecordRPCError("waitMined")
		return nil, distmodel.ErrRPC.Wrapf("wait mined: %v", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, distmodel.ErrTxReverted.Wrapf("tx %s", signedTx.Hash().Hex())
	}
	return receipt, nil
}

// SetMerkleRoot signs and submits setMerkleRoot(root, cid), awaiting the
// receipt.
func (c *Client) SetMerkleRoot(ctx context.Context, root [32]byte, cid string) (*types.Receipt, error) {
	calldata, err := packSetMerkleRoot(root, cid)
	if err != nil {
		return nil, distmodel.ErrDecode.Wrapf("pack setMerkleRoot: %v", err)
	}
	return c.signAndSend(ctx, c.distrib, calldata)
}

// Claim signs and submits claim(recipient, token, amount, proof).
func (c *Client) Claim(ctx context.Context, recipient, token common.Address, amount *big.Int, proof [][32]byte) (*types.Receipt, error) {
	calldata, err := packClaim(recipient, token, amount, proof)
	if err != nil {
		return nil, distmodel.ErrDecode.Wrapf("pack claim: %v", err)
	}
	return c.signAndSend(ctx, c.distrib, calldata)
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

func unpackDepositData(data []byte) (*big.Int, *big.Int, error) {
	args := abi.Arguments{{Type: uint256Ty}, {Type: uint256Ty}}
	vals, err := args.Unpack(data)
	if err != nil {
		return nil, nil, err
	}
	return vals[0].(*big.Int), vals[1].(*big.Int), nil
}
