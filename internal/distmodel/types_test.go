package distmodel

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func addr(hex string) common.Address { return common.HexToAddress(hex) }

func TestBlobJSONRoundTrip(t *testing.T) {
	blob := &Blob{
		Format:       LeafFormat,
		LeafEncoding: LeafEncoding,
		Tree:         []string{"0xaa", "0xbb"},
		Values: []ValueEntry{
			{TreeIndex: 0, Claim: Claim{Recipient: addr("0x1111111111111111111111111111111111111111"), Token: addr("0xaaaa"), Amount: big.NewInt(100)}},
		},
		PrevTreeCID:      "bafy123",
		BlockNumber:      42,
		TotalDistributed: map[common.Address]*big.Int{addr("0xaaaa"): big.NewInt(100)},
	}

	data, err := json.Marshal(blob)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var out Blob
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if out.Format != blob.Format || out.BlockNumber != blob.BlockNumber || out.PrevTreeCID != blob.PrevTreeCID {
		t.Errorf("round trip mismatch: got %+v", out)
	}
	if len(out.Values) != 1 || out.Values[0].Claim.Amount.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("values round trip mismatch: got %+v", out.Values)
	}
}

func TestBlobMarshalUsesExpectedKeyNames(t *testing.T) {
	blob := &Blob{Format: LeafFormat, LeafEncoding: LeafEncoding, Tree: []string{}, TotalDistributed: map[common.Address]*big.Int{}}
	data, err := json.Marshal(blob)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal to map: %v", err)
	}
	for _, key := range []string{"format", "leafEncoding", "tree", "values", "prevTreeCid", "blockNumber", "totalDistributed"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("marshaled blob missing key %q", key)
		}
	}
}

func TestClaimLessOrdersByLowercaseHex(t *testing.T) {
	a := Claim{Recipient: addr("0x1111111111111111111111111111111111111111"), Token: addr("0xaaaa")}
	b := Claim{Recipient: addr("0x2222222222222222222222222222222222222222"), Token: addr("0xaaaa")}
	if !a.Less(b) {
		t.Error("expected a < b")
	}
	if b.Less(a) {
		t.Error("expected b to not be < a")
	}
}

func TestClaimKeyIdentifiesRecipientToken(t *testing.T) {
	a := Claim{Recipient: addr("0x1111111111111111111111111111111111111111"), Token: addr("0xaaaa")}
	b := Claim{Recipient: addr("0x1111111111111111111111111111111111111111"), Token: addr("0xbbbb")}
	if a.Key() == b.Key() {
		t.Error("claims with different tokens should have different keys")
	}
}

func TestBlobCumulativeOfReturnsNilWhenAbsent(t *testing.T) {
	var blob *Blob
	if got := blob.CumulativeOf(addr("0x1"), addr("0x2")); got != nil {
		t.Errorf("CumulativeOf on nil blob = %v, want nil", got)
	}
}
