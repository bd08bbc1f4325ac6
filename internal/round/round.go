// Package round is the Publisher / Round Engine (Component H): it
// orchestrates the Chain Adapter, Blob Store Adapter, Round Reconciler,
// Recipient Set Builder, Apportioner, Cumulative Folder, and Merkle Engine
// into one round, and exposes the proof-generation and claim-submission
// read paths that reuse the same core.
package round

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/merkl-ops/distrib/internal/apportion"
	"github.com/merkl-ops/distrib/internal/blobstore"
	"github.com/merkl-ops/distrib/internal/distmodel"
	"github.com/merkl-ops/distrib/internal/fold"
	"github.com/merkl-ops/distrib/internal/merkletree"
	"github.com/merkl-ops/distrib/internal/opmetrics"
	"github.com/merkl-ops/distrib/internal/reconcile"
	"github.com/merkl-ops/distrib/internal/recipients"
)

// ClaimedEvent and DepositEvent mirror chainclient's event shapes so this
// package (and its tests) never need to import chainclient directly.
type ClaimedEvent struct {
	Recipient common.Address
	Token     common.Address
	Amount    *big.Int
}

type DepositEvent struct {
	Sender common.Address
	Owner  common.Address
	Assets *big.Int
	Shares *big.Int
}

// Chain is the full chain surface the round engine needs. cmd/distrib's
// chainAdapter satisfies it by wrapping chainclient.Client; tests supply a
// hand-written fake.
type Chain interface {
	Root(ctx context.Context) (common.Hash, string, error)
	LastProcessedBlock(ctx context.Context) (uint64, error)
	Tokens(ctx context.Context) ([]common.Address, error)
	BlockNumber(ctx context.Context) (uint64, error)
	WrapperTotalSupply(ctx context.Context) (*big.Int, error)
	WrapperBalanceOfAt(ctx context.Context, holder common.Address, block uint64) (*big.Int, error)
	ERC20BalanceOf(ctx context.Context, token, holder common.Address) (*big.Int, error)
	ERC20BalanceOfAt(ctx context.Context, token, holder common.Address, block uint64) (*big.Int, error)
	FilterClaimed(ctx context.Context, token common.Address, fromBlock, toBlock uint64) ([]ClaimedEvent, error)
	FilterDeposits(ctx context.Context, fromBlock, toBlock uint64) ([]DepositEvent, error)
	SetMerkleRoot(ctx context.Context, root [32]byte, cid string) (*types.Receipt, error)
	Claim(ctx context.Context, recipient, token common.Address, amount *big.Int, proof [][32]byte) (*types.Receipt, error)
}

// Engine wires the round's collaborators together. A fresh Engine is
// built per CLI invocation; nothing here survives across rounds.
type Engine struct {
	Chain          Chain
	Store          blobstore.Store
	Distributor    common.Address
	FeePercent     float64
	ConcurrencyCap int
}

type reconcileAdapter struct{ chain Chain }

func (a reconcileAdapter) ERC20BalanceOf(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	return a.chain.ERC20BalanceOf(ctx, token, holder)
}
func (a reconcileAdapter) ERC20BalanceOfAt(ctx context.Context, token, holder common.Address, block uint64) (*big.Int, error) {
	return a.chain.ERC20BalanceOfAt(ctx, token, holder, block)
}
func (a reconcileAdapter) FilterClaimed(ctx context.Context, token common.Address, fromBlock, toBlock uint64) ([]reconcile.ClaimedLog, error) {
	events, err := a.chain.FilterClaimed(ctx, token, fromBlock, toBlock)
	if err != nil {
		return nil, err
	}
	out := make([]reconcile.ClaimedLog, len(events))
	for i, e := range events {
		out[i] = reconcile.ClaimedLog{Recipient: e.Recipient, Token: e.Token, Amount: e.Amount}
	}
	return out, nil
}

type recipientsAdapter struct{ chain Chain }

func (a recipientsAdapter) FilterDeposits(ctx context.Context, fromBlock, toBlock uint64) ([]recipients.DepositLog, error) {
	events, err := a.chain.FilterDeposits(ctx, fromBlock, toBlock)
	if err != nil {
		return nil, err
	}
	out := make([]recipients.DepositLog, len(events))
	for i, e := range events {
		out[i] = recipients.DepositLog{Owner: e.Owner}
	}
	return out, nil
}

type apportionAdapter struct{ chain Chain }

func (a apportionAdapter) WrapperBalanceOfAt(ctx context.Context, holder common.Address, block uint64) (*big.Int, error) {
	return a.chain.WrapperBalanceOfAt(ctx, holder, block)
}

// loadAndValidatePrev returns the previous round's blob, or nil for
// genesis. A non-empty cid whose rebuilt root disagrees with the on-chain
// root is a validation failure — the previous round is not trusted and
// the whole round aborts (§4.H step 1).
func (e *Engine) loadAndValidatePrev(ctx context.Context) (*distmodel.Blob, common.Hash, string, error) {
	root, cid, err := e.Chain.Root(ctx)
	if err != nil {
		return nil, common.Hash{}, "", err
	}
	if cid == "" {
		return nil, root, "", nil
	}
	blob, err := e.Store.Get(ctx, cid)
	if err != nil {
		return nil, root, cid, err
	}
	tree, err := merkletree.Load(blob)
	if err != nil {
		return nil, root, cid, err
	}
	if tree.Root() != root {
		return nil, root, cid, distmodel.ErrValidation.Wrapf("previous blob root %x does not match on-chain root %x", tree.Root(), root)
	}
	return blob, root, cid, nil
}

// GenerateRound runs one full round: validate the previous round,
// reconcile+apportion+fold new allocations, build the tree, upload the
// blob, and — if a signer is configured — submit setMerkleRoot. When no
// signer is configured, the blob is still built and uploaded and the
// receipt return is nil, for manual submission (§6 CLI surface).
func (e *Engine) GenerateRound(ctx context.Context) (blob *distmodel.Blob, receipt *types.Receipt, err error) {
	start := time.Now()
	var allocationCount int
	defer func() {
		opmetrics.RecordRound(time.Since(start), allocationCount, err)
	}()

	prevBlob, _, prevCID, err := e.loadAndValidatePrev(ctx)
	if err != nil {
		return nil, nil, err
	}

	tokens, err := e.Chain.Tokens(ctx)
	if err != nil {
		return nil, nil, err
	}
	currentBlock, err := e.Chain.BlockNumber(ctx)
	if err != nil {
		return nil, nil, err
	}
	totalSupply, err := e.Chain.WrapperTotalSupply(ctx)
	if err != nil {
		return nil, nil, err
	}

	genesis := prevBlob == nil
	var lastProcessedBlock uint64
	if !genesis {
		lastProcessedBlock = prevBlob.BlockNumber
	} else {
		lastProcessedBlock, err = e.Chain.LastProcessedBlock(ctx)
		if err != nil {
			return nil, nil, err
		}
	}

	candidates, err := recipients.Build(ctx, recipientsAdapter{e.Chain}, prevBlob, lastProcessedBlock, currentBlock)
	if err != nil {
		return nil, nil, err
	}

	distributable, err := reconcile.NewDistributable(ctx, reconcileAdapter{e.Chain}, e.Distributor, tokens, currentBlock, lastProcessedBlock, genesis, e.ConcurrencyCap)
	if err != nil {
		return nil, nil, err
	}

	var allocations []distmodel.Claim
	for _, token := range tokens {
		perToken, err := apportion.Apportion(ctx, apportionAdapter{e.Chain}, token, distributable[token], e.FeePercent, totalSupply, candidates, currentBlock, e.ConcurrencyCap)
		if err != nil {
			return nil, nil, err
		}
		allocations = append(allocations, perToken...)
	}

	values, totalDistributed := fold.Fold(prevBlob, allocations)
	allocationCount = len(values)

	tree, err := merkletree.Build(values)
	if err != nil {
		return nil, nil, err
	}
	blob = tree.Dump()
	blob.PrevTreeCID = prevCID
	blob.BlockNumber = currentBlock
	blob.TotalDistributed = totalDistributed

	for token, amount := range totalDistributed {
		approx, _ := new(big.Float).SetInt(amount).Float64()
		opmetrics.SetCumulativeDistributed(token.Hex(), approx)
	}

	newCID, err := e.Store.Put(ctx, blob)
	if err != nil {
		return blob, nil, err
	}

	receipt, err = e.Chain.SetMerkleRoot(ctx, tree.Root(), newCID)
	if err != nil {
		if errors.Is(err, distmodel.ErrSignerRequired) {
			return blob, nil, nil
		}
		return blob, nil, err
	}
	return blob, receipt, nil
}

// ProofResult is the shape written to proof.json by `distrib proof`.
type ProofResult struct {
	Recipient  common.Address
	Token      common.Address
	Amount     *big.Int
	Proof      [][32]byte
	MerkleRoot common.Hash
	TreeIndex  int
}

// proofResultJSON mirrors ProofResult's wire shape: the §6 artifact
// contract's lowercase key names, with proof siblings and the amount
// flattened to strings the same way distmodel.Blob flattens its own
// hashes and amounts.
type proofResultJSON struct {
	Recipient  string   `json:"recipient"`
	Token      string   `json:"token"`
	Amount     string   `json:"amount"`
	Proof      []string `json:"proof"`
	MerkleRoot string   `json:"merkleRoot"`
	TreeIndex  int      `json:"treeIndex"`
}

func (p *ProofResult) MarshalJSON() ([]byte, error) {
	proof := make([]string, len(p.Proof))
	for i, sibling := range p.Proof {
		proof[i] = common.Hash(sibling).Hex()
	}
	return json.Marshal(proofResultJSON{
		Recipient:  p.Recipient.Hex(),
		Token:      p.Token.Hex(),
		Amount:     p.Amount.String(),
		Proof:      proof,
		MerkleRoot: p.MerkleRoot.Hex(),
		TreeIndex:  p.TreeIndex,
	})
}

func (p *ProofResult) UnmarshalJSON(data []byte) error {
	var raw proofResultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	amount, ok := new(big.Int).SetString(raw.Amount, 10)
	if !ok {
		return distmodel.ErrValidation.Wrapf("malformed proof amount %q", raw.Amount)
	}
	proof := make([][32]byte, len(raw.Proof))
	for i, sibling := range raw.Proof {
		proof[i] = common.HexToHash(sibling)
	}
	p.Recipient = common.HexToAddress(raw.Recipient)
	p.Token = common.HexToAddress(raw.Token)
	p.Amount = amount
	p.Proof = proof
	p.MerkleRoot = common.HexToHash(raw.MerkleRoot)
	p.TreeIndex = raw.TreeIndex
	return nil
}

// GenerateProof loads and validates the current on-chain round, then
// returns a proof for the requested recipient (first matching row) or
// explicit tree index.
func (e *Engine) GenerateProof(ctx context.Context, recipient *common.Address, index *int) (*ProofResult, error) {
	blob, root, _, err := e.loadAndValidatePrev(ctx)
	if err != nil {
		return nil, err
	}
	if blob == nil {
		return nil, distmodel.ErrProofNotFound.Wrapf("no round has been published yet")
	}
	tree, err := merkletree.Load(blob)
	if err != nil {
		return nil, err
	}

	var target *distmodel.ValueEntry
	if index != nil {
		for i := range blob.Values {
			if blob.Values[i].TreeIndex == *index {
				target = &blob.Values[i]
				break
			}
		}
	} else if recipient != nil {
		for i := range blob.Values {
			if blob.Values[i].Claim.Recipient == *recipient {
				target = &blob.Values[i]
				break
			}
		}
	}
	if target == nil {
		return nil, distmodel.ErrProofNotFound.Wrapf("no matching row in published distribution")
	}

	proof, err := tree.Proof(target.TreeIndex)
	if err != nil {
		return nil, err
	}
	return &ProofResult{
		Recipient:  target.Claim.Recipient,
		Token:      target.Claim.Token,
		Amount:     target.Claim.Amount,
		Proof:      proof,
		MerkleRoot: root,
		TreeIndex:  target.TreeIndex,
	}, nil
}

// ListClaims loads and validates the current on-chain round and returns
// its full claim list, flattened in Values order, for audit tooling. It
// returns an empty slice for genesis (no round published yet).
func (e *Engine) ListClaims(ctx context.Context) ([]distmodel.Claim, error) {
	blob, _, _, err := e.loadAndValidatePrev(ctx)
	if err != nil {
		return nil, err
	}
	if blob == nil {
		return nil, nil
	}
	return blob.Claims(), nil
}

// SubmitClaim submits a previously-generated proof to the distributor.
func (e *Engine) SubmitClaim(ctx context.Context, proof *ProofResult) (*types.Receipt, error) {
	return e.Chain.Claim(ctx, proof.Recipient, proof.Token, proof.Amount, proof.Proof)
}
