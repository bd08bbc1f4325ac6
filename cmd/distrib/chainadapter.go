package main

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/merkl-ops/distrib/internal/chainclient"
	"github.com/merkl-ops/distrib/internal/round"
)

// chainAdapter satisfies round.Chain against the concrete chainclient
// client, converting chainclient's event types to round's local mirrors.
type chainAdapter struct {
	client *chainclient.Client
}

func (a chainAdapter) Root(ctx context.Context) (common.Hash, string, error) {
	return a.client.Root(ctx)
}

func (a chainAdapter) LastProcessedBlock(ctx context.Context) (uint64, error) {
	return a.client.LastProcessedBlock(ctx)
}

func (a chainAdapter) Tokens(ctx context.Context) ([]common.Address, error) {
	return a.client.Tokens(ctx)
}

func (a chainAdapter) BlockNumber(ctx context.Context) (uint64, error) {
	return a.client.BlockNumber(ctx)
}

func (a chainAdapter) WrapperTotalSupply(ctx context.Context) (*big.Int, error) {
	return a.client.WrapperTotalSupply(ctx)
}

func (a chainAdapter) WrapperBalanceOfAt(ctx context.Context, holder common.Address, block uint64) (*big.Int, error) {
	return a.client.WrapperBalanceOfAt(ctx, holder, block)
}

func (a chainAdapter) ERC20BalanceOf(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	return a.client.ERC20BalanceOf(ctx, token, holder)
}

func (a chainAdapter) ERC20BalanceOfAt(ctx context.Context, token, holder common.Address, block uint64) (*big.Int, error) {
	return a.client.ERC20BalanceOfAt(ctx, token, holder, block)
}

func (a chainAdapter) FilterClaimed(ctx context.Context, token common.Address, fromBlock, toBlock uint64) ([]round.ClaimedEvent, error) {
	events, err := a.client.FilterClaimed(ctx, token, fromBlock, toBlock)
	if err != nil {
		return nil, err
	}
	out := make([]round.ClaimedEvent, len(events))
	for i, e := range events {
		out[i] = round.ClaimedEvent{Recipient: e.Recipient, Token: e.Token, Amount: e.Amount}
	}
	return out, nil
}

func (a chainAdapter) FilterDeposits(ctx context.Context, fromBlock, toBlock uint64) ([]round.DepositEvent, error) {
	events, err := a.client.FilterDeposits(ctx, fromBlock, toBlock)
	if err != nil {
		return nil, err
	}
	out := make([]round.DepositEvent, len(events))
	for i, e := range events {
		out[i] = round.DepositEvent{Sender: e.Sender, Owner: e.Owner, Assets: e.Assets, Shares: e.Shares}
	}
	return out, nil
}

func (a chainAdapter) SetMerkleRoot(ctx context.Context, root [32]byte, cid string) (*types.Receipt, error) {
	return a.client.SetMerkleRoot(ctx, root, cid)
}

func (a chainAdapter) Claim(ctx context.Context, recipient, token common.Address, amount *big.Int, proof [][32]byte) (*types.Receipt, error) {
	return a.client.Claim(ctx, recipient, token, amount, proof)
}
