package fold

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/merkl-ops/distrib/internal/distmodel"
)

func addr(hex string) common.Address { return common.HexToAddress(hex) }

var (
	alice = addr("0x1111111111111111111111111111111111111111")
	bob   = addr("0x2222222222222222222222222222222222222222")
	tokA  = addr("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
)

func TestFoldGenesisHasNoPriorCumulative(t *testing.T) {
	allocations := []distmodel.Claim{
		{Recipient: alice, Token: tokA, Amount: big.NewInt(100)},
	}
	folded, total := Fold(nil, allocations)
	if len(folded) != 1 || folded[0].Amount.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("folded = %+v, want single claim of 100", folded)
	}
	if total[tokA].Cmp(big.NewInt(100)) != 0 {
		t.Errorf("total[tokA] = %v, want 100", total[tokA])
	}
}

func TestFoldAddsOntoPriorCumulative(t *testing.T) {
	prev := &distmodel.Blob{
		Values: []distmodel.ValueEntry{
			{TreeIndex: 0, Claim: distmodel.Claim{Recipient: alice, Token: tokA, Amount: big.NewInt(100)}},
		},
	}
	allocations := []distmodel.Claim{
		{Recipient: alice, Token: tokA, Amount: big.NewInt(50)},
	}
	folded, _ := Fold(prev, allocations)
	if len(folded) != 1 {
		t.Fatalf("len(folded) = %d, want 1", len(folded))
	}
	if folded[0].Amount.Cmp(big.NewInt(150)) != 0 {
		t.Errorf("cumulative amount = %v, want 150", folded[0].Amount)
	}
}

func TestFoldCarriesForwardUntouchedRows(t *testing.T) {
	prev := &distmodel.Blob{
		Values: []distmodel.ValueEntry{
			{TreeIndex: 0, Claim: distmodel.Claim{Recipient: alice, Token: tokA, Amount: big.NewInt(100)}},
			{TreeIndex: 1, Claim: distmodel.Claim{Recipient: bob, Token: tokA, Amount: big.NewInt(75)}},
		},
	}
	allocations := []distmodel.Claim{
		{Recipient: alice, Token: tokA, Amount: big.NewInt(25)},
	}
	folded, total := Fold(prev, allocations)
	if len(folded) != 2 {
		t.Fatalf("len(folded) = %d, want 2 (alice updated, bob carried forward)", len(folded))
	}
	var bobAmount *big.Int
	for _, c := range folded {
		if c.Recipient == bob {
			bobAmount = c.Amount
		}
	}
	if bobAmount == nil || bobAmount.Cmp(big.NewInt(75)) != 0 {
		t.Errorf("bob's carried-forward amount = %v, want unchanged 75", bobAmount)
	}
	if total[tokA].Cmp(big.NewInt(200)) != 0 {
		t.Errorf("total[tokA] = %v, want 200 (125 alice + 75 bob)", total[tokA])
	}
}

func TestFoldResultIsSortedByLowercaseRecipientThenToken(t *testing.T) {
	prev := &distmodel.Blob{
		Values: []distmodel.ValueEntry{
			{TreeIndex: 0, Claim: distmodel.Claim{Recipient: bob, Token: tokA, Amount: big.NewInt(1)}},
		},
	}
	allocations := []distmodel.Claim{
		{Recipient: alice, Token: tokA, Amount: big.NewInt(1)},
	}
	folded, _ := Fold(prev, allocations)
	if len(folded) != 2 {
		t.Fatalf("len(folded) = %d, want 2", len(folded))
	}
	if folded[0].Recipient != alice || folded[1].Recipient != bob {
		t.Errorf("folded order = %+v, want alice before bob", folded)
	}
}

func TestFoldDoesNotMutatePriorAmount(t *testing.T) {
	priorAmount := big.NewInt(100)
	prev := &distmodel.Blob{
		Values: []distmodel.ValueEntry{
			{TreeIndex: 0, Claim: distmodel.Claim{Recipient: alice, Token: tokA, Amount: priorAmount}},
		},
	}
	allocations := []distmodel.Claim{
		{Recipient: alice, Token: tokA, Amount: big.NewInt(50)},
	}
	Fold(prev, allocations)
	if priorAmount.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("prior blob's claim amount was mutated: got %v, want unchanged 100", priorAmount)
	}
}
