package merkletree

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/merkl-ops/distrib/internal/distmodel"
)

func addr(hex string) common.Address { return common.HexToAddress(hex) }

func sampleClaims() []distmodel.Claim {
	return []distmodel.Claim{
		{Recipient: addr("0x1111111111111111111111111111111111111111"), Token: addr("0xaaaa"), Amount: big.NewInt(100)},
		{Recipient: addr("0x2222222222222222222222222222222222222222"), Token: addr("0xaaaa"), Amount: big.NewInt(200)},
		{Recipient: addr("0x3333333333333333333333333333333333333333"), Token: addr("0xaaaa"), Amount: big.NewInt(300)},
	}
}

func TestBuildEmptyClaimsReturnsErrNoClaims(t *testing.T) {
	_, err := Build(nil)
	if err != distmodel.ErrNoClaims {
		t.Fatalf("Build(nil) err = %v, want ErrNoClaims", err)
	}
}

func TestBuildDumpLoadRoundTrip(t *testing.T) {
	tree, err := Build(sampleClaims())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	blob := tree.Dump()

	loaded, err := Load(blob)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Root() != tree.Root() {
		t.Fatalf("Load root = %x, want %x", loaded.Root(), tree.Root())
	}
}

func TestLoadRejectsTamperedTree(t *testing.T) {
	tree, err := Build(sampleClaims())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	blob := tree.Dump()
	blob.Tree[0] = "0x0000000000000000000000000000000000000000000000000000000000000000"

	if _, err := Load(blob); err == nil {
		t.Fatal("Load with tampered tree node: want error, got nil")
	}
}

func TestProofVerifiesForEveryClaim(t *testing.T) {
	claims := sampleClaims()
	tree, err := Build(claims)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	blob := tree.Dump()

	for _, v := range blob.Values {
		proof, err := tree.Proof(v.TreeIndex)
		if err != nil {
			t.Fatalf("Proof(%d): %v", v.TreeIndex, err)
		}
		if !tree.Verify(v.Claim, proof) {
			t.Errorf("Verify failed for claim %+v at treeIndex %d", v.Claim, v.TreeIndex)
		}
		if !VerifyAgainstRoot(tree.Root(), v.Claim, proof) {
			t.Errorf("VerifyAgainstRoot failed for claim %+v", v.Claim)
		}
	}
}

func TestVerifyRejectsWrongAmount(t *testing.T) {
	claims := sampleClaims()
	tree, err := Build(claims)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	blob := tree.Dump()
	v := blob.Values[0]
	proof, err := tree.Proof(v.TreeIndex)
	if err != nil {
		t.Fatalf("Proof: %v", err)
	}
	tampered := v.Claim
	tampered.Amount = new(big.Int).Add(v.Claim.Amount, big.NewInt(1))
	if tree.Verify(tampered, proof) {
		t.Error("Verify accepted a claim with a tampered amount")
	}
}

func TestSingleClaimTree(t *testing.T) {
	claims := []distmodel.Claim{
		{Recipient: addr("0x1111111111111111111111111111111111111111"), Token: addr("0xaaaa"), Amount: big.NewInt(42)},
	}
	tree, err := Build(claims)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	blob := tree.Dump()
	proof, err := tree.Proof(blob.Values[0].TreeIndex)
	if err != nil {
		t.Fatalf("Proof: %v", err)
	}
	if len(proof) != 0 {
		t.Errorf("single-leaf tree proof length = %d, want 0", len(proof))
	}
	if !tree.Verify(blob.Values[0].Claim, proof) {
		t.Error("single-leaf tree Verify failed")
	}
}
