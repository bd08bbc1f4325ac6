package chainclient

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestSelectorIsFourBytesOfKeccak(t *testing.T) {
	sig := "root()"
	want := crypto.Keccak256([]byte(sig))[:4]
	got := selector(sig)
	if !bytes.Equal(got, want) {
		t.Errorf("selector(%q) = %x, want %x", sig, got, want)
	}
	if len(got) != 4 {
		t.Errorf("len(selector) = %d, want 4", len(got))
	}
}

func TestSelectorsAreDistinct(t *testing.T) {
	sels := [][]byte{selRoot, selCID, selLastProcessedBlock, selGetTokens, selSetMerkleRoot, selClaim, selTotalSupply, selBalanceOf}
	for i := range sels {
		for j := i + 1; j < len(sels); j++ {
			if bytes.Equal(sels[i], sels[j]) {
				t.Errorf("selectors %d and %d collide: %x", i, j, sels[i])
			}
		}
	}
}

func TestPackSetMerkleRootPrependsSelector(t *testing.T) {
	var root [32]byte
	copy(root[:], []byte("deadbeefdeadbeefdeadbeefdeadbee"))
	data, err := packSetMerkleRoot(root, "bafyfake")
	if err != nil {
		t.Fatalf("packSetMerkleRoot: %v", err)
	}
	if !bytes.Equal(data[:4], selSetMerkleRoot) {
		t.Errorf("calldata prefix = %x, want selector %x", data[:4], selSetMerkleRoot)
	}
	if len(data) <= 4 {
		t.Error("expected packed arguments after the selector")
	}
}

func TestPackClaimPrependsSelector(t *testing.T) {
	recipient := common.HexToAddress("0x1111111111111111111111111111111111111111")
	token := common.HexToAddress("0x2222222222222222222222222222222222222222")
	proof := [][32]byte{{0x01}, {0x02}}
	data, err := packClaim(recipient, token, big.NewInt(1000), proof)
	if err != nil {
		t.Fatalf("packClaim: %v", err)
	}
	if !bytes.Equal(data[:4], selClaim) {
		t.Errorf("calldata prefix = %x, want selector %x", data[:4], selClaim)
	}
}

func TestPackBalanceOfPrependsSelector(t *testing.T) {
	holder := common.HexToAddress("0x1111111111111111111111111111111111111111")
	data, err := packBalanceOf(holder)
	if err != nil {
		t.Fatalf("packBalanceOf: %v", err)
	}
	if !bytes.Equal(data[:4], selBalanceOf) {
		t.Errorf("calldata prefix = %x, want selector %x", data[:4], selBalanceOf)
	}
}

func TestUnpackUint256RoundTrip(t *testing.T) {
	packed, err := (abi.Arguments{{Type: uint256Ty}}).Pack(big.NewInt(424242))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	got, err := unpackUint256(packed)
	if err != nil {
		t.Fatalf("unpackUint256: %v", err)
	}
	if got.Cmp(big.NewInt(424242)) != 0 {
		t.Errorf("got %s, want 424242", got.String())
	}
}

func TestUnpackBytes32RoundTrip(t *testing.T) {
	var word [32]byte
	copy(word[:], []byte("some-32-byte-value-padded-here!"))
	packed, err := (abi.Arguments{{Type: bytes32Ty}}).Pack(word)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	got, err := unpackBytes32(packed)
	if err != nil {
		t.Fatalf("unpackBytes32: %v", err)
	}
	if got != word {
		t.Errorf("got %x, want %x", got, word)
	}
}

func TestUnpackStringRoundTrip(t *testing.T) {
	packed, err := (abi.Arguments{{Type: stringTy}}).Pack("bafyfakecid")
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	got, err := unpackString(packed)
	if err != nil {
		t.Fatalf("unpackString: %v", err)
	}
	if got != "bafyfakecid" {
		t.Errorf("got %q, want %q", got, "bafyfakecid")
	}
}

func TestUnpackAddressesRoundTrip(t *testing.T) {
	want := []common.Address{
		common.HexToAddress("0x1111111111111111111111111111111111111111"),
		common.HexToAddress("0x2222222222222222222222222222222222222222"),
	}
	packed, err := (abi.Arguments{{Type: addrArrTy}}).Pack(want)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	got, err := unpackAddresses(packed)
	if err != nil {
		t.Fatalf("unpackAddresses: %v", err)
	}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
