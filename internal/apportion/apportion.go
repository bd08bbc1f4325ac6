// Package apportion implements the Apportioner (Component F): the
// pro-rata split of a token's new distributable across a round's
// candidate recipients by wrapper share, after skimming the operator fee.
package apportion

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/merkl-ops/distrib/internal/distmodel"
)

// Chain is the wrapper-balance surface this component reads. Reads are
// pinned to blockNumber, the round's snapshot height — the Open Question
// in SPEC_FULL.md §9 is resolved by making that pin explicit here rather
// than defaulting to "latest".
type Chain interface {
	WrapperBalanceOfAt(ctx context.Context, holder common.Address, blockNumber uint64) (*big.Int, error)
}

var (
	shareScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil) // 1e18
	basisScale = big.NewInt(10000)
)

// FeeAmount computes floor(newDistributable * floor(feePercent*100) / 10000)
// — basis points throughout, no floats in the multiplication itself, only
// at the feePercent parsing boundary (SPEC_FULL.md §9).
func FeeAmount(newDistributable *big.Int, feePercent float64) *big.Int {
	basisPoints := big.NewInt(int64(feePercent * 100))
	fee := new(big.Int).Mul(newDistributable, basisPoints)
	fee.Div(fee, basisScale)
	return fee
}

// Apportion splits actual = newDistributable - fee(feePercent) across
// candidates by wrapper share at blockNumber, skipping zero-balance
// holders and zero-allocation dust. Reads run with concurrencyCap in
// flight at once via errgroup, the same bounded-fan-out idiom
// internal/reconcile uses.
func Apportion(
	ctx context.Context,
	chain Chain,
	token common.Address,
	newDistributable *big.Int,
	feePercent float64,
	totalSupply *big.Int,
	candidates []common.Address,
	blockNumber uint64,
	concurrencyCap int,
) ([]distmodel.Claim, error) {
	if concurrencyCap <= 0 {
		concurrencyCap = 8
	}
	if newDistributable.Sign() <= 0 || totalSupply.Sign() <= 0 || len(candidates) == 0 {
		return nil, nil
	}

	fee := FeeAmount(newDistributable, feePercent)
	actual := new(big.Int).Sub(newDistributable, fee)
	if actual.Sign() < 0 {
		actual.SetInt64(0)
	}

	balances := make([]*big.Int, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrencyCap)
	for i, candidate := range candidates {
		i, candidate := i, candidate
		g.Go(func() error {
			bal, err := chain.WrapperBalanceOfAt(gctx, candidate, blockNumber)
			if err != nil {
				return distmodel.ErrRPC.Wrapf("wrapper balance of %s: %v", candidate.Hex(), err)
			}
			balances[i] = bal
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	claims := make([]distmodel.Claim, 0, len(candidates))
	for i, candidate := range candidates {
		bal := balances[i]
		if bal.Sign() == 0 {
			continue
		}
		share := new(big.Int).Mul(bal, shareScale)
		share.Div(share, totalSupply)
		alloc := new(big.Int).Mul(actual, share)
		alloc.Div(alloc, shareScale)
		if alloc.Sign() <= 0 {
			continue
		}
		claims = append(claims, distmodel.Claim{Recipient: candidate, Token: token, Amount: alloc})
	}
	return claims, nil
}
