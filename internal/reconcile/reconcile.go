// Package reconcile implements the Round Reconciler (Component D):
// per-token "new distributable" computation from current balance minus
// (snapshot balance minus claims since snapshot).
package reconcile

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/merkl-ops/distrib/internal/distmodel"
)

// Result is one token's reconciled distributable amount for this round.
type Result struct {
	Token            common.Address
	NewDistributable *big.Int
}

// NewDistributable computes newDistributable for every token in tokens,
// fanning reads out across errgroup with concurrencyCap in flight at
// once — bounded the same way the corpus's other capped-fan-out code
// does (errgroup.WithContext + SetLimit).
func NewDistributable(
	ctx context.Context,
	chain ChainReader,
	distributor common.Address,
	tokens []common.Address,
	currentBlock uint64,
	prevBlockNumber uint64,
	genesis bool,
	concurrencyCap int,
) (map[common.Address]*big.Int, error) {
	if concurrencyCap <= 0 {
		concurrencyCap = 8
	}
	results := make([]*big.Int, len(tokens))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrencyCap)
	for i, token := range tokens {
		i, token := i, token
		g.Go(func() error {
			amt, err := newDistributableForToken(gctx, chain, distributor, token, currentBlock, prevBlockNumber, genesis)
			if err != nil {
				return err
			}
			results[i] = amt
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[common.Address]*big.Int, len(tokens))
	for i, token := range tokens {
		out[token] = results[i]
	}
	return out, nil
}

// ChainReader is the chain surface this component reads from.
type ChainReader interface {
	ERC20BalanceOf(ctx context.Context, token, holder common.Address) (*big.Int, error)
	ERC20BalanceOfAt(ctx context.Context, token, holder common.Address, block uint64) (*big.Int, error)
	FilterClaimed(ctx context.Context, token common.Address, fromBlock, toBlock uint64) ([]ClaimedLog, error)
}

// ClaimedLog is the minimal Claimed-event shape this package folds; it
// mirrors chainclient.ClaimedEvent without importing that package, so a
// fake chain in tests needs no dependency on chainclient.
type ClaimedLog struct {
	Recipient common.Address
	Token     common.Address
	Amount    *big.Int
}

func newDistributableForToken(
	ctx context.Context,
	chain ChainReader,
	distributor, token common.Address,
	currentBlock, prevBlockNumber uint64,
	genesis bool,
) (*big.Int, error) {
	current, err := chain.ERC20BalanceOf(ctx, token, distributor)
	if err != nil {
		return nil, distmodel.ErrRPC.Wrapf("current balance of %s: %v", token.Hex(), err)
	}
	if genesis {
		return current, nil
	}
	snapshotBalance, err := chain.ERC20BalanceOfAt(ctx, token, distributor, prevBlockNumber)
	if err != nil {
		return nil, distmodel.ErrRPC.Wrapf("snapshot balance of %s at %d: %v", token.Hex(), prevBlockNumber, err)
	}
	claims, err := chain.FilterClaimed(ctx, token, prevBlockNumber+1, currentBlock)
	if err != nil {
		return nil, distmodel.ErrRPC.Wrapf("claimed logs for %s: %v", token.Hex(), err)
	}
	claimsSince := new(big.Int)
	for _, cl := range claims {
		claimsSince.Add(claimsSince, cl.Amount)
	}
	// distributable = current - (snapshotBalance - claimsSince), clamped
	// to zero rather than allowed to go negative (§8 boundary case: no
	// panic on arithmetic underflow).
	netHeld := new(big.Int).Sub(snapshotBalance, claimsSince)
	newDistributable := new(big.Int).Sub(current, netHeld)
	if newDistributable.Sign() < 0 {
		newDistributable.SetInt64(0)
	}
	return newDistributable, nil
}
