package reconcile

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

type fakeChain struct {
	current  map[common.Address]*big.Int
	snapshot map[common.Address]map[uint64]*big.Int
	claimed  map[common.Address][]ClaimedLog
}

func (f *fakeChain) ERC20BalanceOf(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	return f.current[token], nil
}

func (f *fakeChain) ERC20BalanceOfAt(ctx context.Context, token, holder common.Address, block uint64) (*big.Int, error) {
	return f.snapshot[token][block], nil
}

func (f *fakeChain) FilterClaimed(ctx context.Context, token common.Address, fromBlock, toBlock uint64) ([]ClaimedLog, error) {
	return f.claimed[token], nil
}

func addr(hex string) common.Address { return common.HexToAddress(hex) }

var (
	distributor = addr("0xdddddddddddddddddddddddddddddddddddddddd")
	tokA        = addr("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
)

func TestNewDistributableGenesisIsCurrentBalance(t *testing.T) {
	chain := &fakeChain{
		current: map[common.Address]*big.Int{tokA: big.NewInt(500)},
	}
	out, err := NewDistributable(context.Background(), chain, distributor, []common.Address{tokA}, 100, 0, true, 4)
	if err != nil {
		t.Fatalf("NewDistributable: %v", err)
	}
	if out[tokA].Cmp(big.NewInt(500)) != 0 {
		t.Errorf("genesis distributable = %v, want 500", out[tokA])
	}
}

func TestNewDistributableAccountsForClaimsSinceSnapshot(t *testing.T) {
	chain := &fakeChain{
		current:  map[common.Address]*big.Int{tokA: big.NewInt(800)},
		snapshot: map[common.Address]map[uint64]*big.Int{tokA: {50: big.NewInt(500)}},
		claimed: map[common.Address][]ClaimedLog{
			tokA: {{Recipient: addr("0x1"), Token: tokA, Amount: big.NewInt(300)}},
		},
	}
	// netHeld = snapshot(500) - claimsSince(300) = 200
	// newDistributable = current(800) - netHeld(200) = 600
	out, err := NewDistributable(context.Background(), chain, distributor, []common.Address{tokA}, 100, 50, false, 4)
	if err != nil {
		t.Fatalf("NewDistributable: %v", err)
	}
	if out[tokA].Cmp(big.NewInt(600)) != 0 {
		t.Errorf("distributable = %v, want 600", out[tokA])
	}
}

func TestNewDistributableClampsNegativeToZero(t *testing.T) {
	chain := &fakeChain{
		current:  map[common.Address]*big.Int{tokA: big.NewInt(100)},
		snapshot: map[common.Address]map[uint64]*big.Int{tokA: {50: big.NewInt(500)}},
		claimed:  map[common.Address][]ClaimedLog{},
	}
	// netHeld = 500 - 0 = 500; current(100) - netHeld(500) would be negative, clamp to 0
	out, err := NewDistributable(context.Background(), chain, distributor, []common.Address{tokA}, 100, 50, false, 4)
	if err != nil {
		t.Fatalf("NewDistributable: %v", err)
	}
	if out[tokA].Sign() != 0 {
		t.Errorf("distributable = %v, want 0 (clamped)", out[tokA])
	}
}

func TestNewDistributableMultipleTokensFanOut(t *testing.T) {
	tokB := addr("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	chain := &fakeChain{
		current: map[common.Address]*big.Int{
			tokA: big.NewInt(500),
			tokB: big.NewInt(1000),
		},
	}
	out, err := NewDistributable(context.Background(), chain, distributor, []common.Address{tokA, tokB}, 100, 0, true, 2)
	if err != nil {
		t.Fatalf("NewDistributable: %v", err)
	}
	if out[tokA].Cmp(big.NewInt(500)) != 0 || out[tokB].Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("out = %+v, want tokA=500 tokB=1000", out)
	}
}
