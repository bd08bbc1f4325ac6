package chainclient

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ABI fragments for Distributor, Wrapper, and ERC20, declared as literal
// abi.Arguments the way internal/reward hand-builds submitProof/
// submitProofEx calldata — no abigen-generated bindings are available in
// this repo's dependency set.
var (
	addressTy = mustType("address")
	uint256Ty = mustType("uint256")
	stringTy  = mustType("string")
	bytes32Ty = mustType("bytes32")
	bytes32ArrTy = mustType("bytes32[]")
	addrArrTy = mustType("address[]")
)

func mustType(t string) abi.Type {
	ty, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return ty
}

func selector(sig string) []byte {
	return crypto.Keccak256([]byte(sig))[:4]
}

var (
	selRoot               = selector("root()")
	selCID                = selector("cid()")
	selLastProcessedBlock = selector("lastProcessedBlock()")
	selGetTokens          = selector("getTokens()")
	selSetMerkleRoot      = selector("setMerkleRoot(bytes32,string)")
	selClaim              = selector("claim(address,address,uint256,bytes32[])")
	selTotalSupply        = selector("totalSupply()")
	selBalanceOf          = selector("balanceOf(address)")
	selClaimedTopic0      = crypto.Keccak256Hash([]byte("Claimed(address,address,uint256)"))
	selDepositTopic0      = crypto.Keccak256Hash([]byte("Deposit(address,address,uint256,uint256)"))
)

func packSetMerkleRoot(root [32]byte, cid string) ([]byte, error) {
	args := abi.Arguments{{Type: bytes32Ty}, {Type: stringTy}}
	packed, err := args.Pack(root, cid)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, selSetMerkleRoot...), packed...), nil
}

func packClaim(recipient, token common.Address, amount *big.Int, proof [][32]byte) ([]byte, error) {
	args := abi.Arguments{{Type: addressTy}, {Type: addressTy}, {Type: uint256Ty}, {Type: bytes32ArrTy}}
	packed, err := args.Pack(recipient, token, amount, proof)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, selClaim...), packed...), nil
}

func packBalanceOf(holder common.Address) ([]byte, error) {
	args := abi.Arguments{{Type: addressTy}}
	packed, err := args.Pack(holder)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, selBalanceOf...), packed...), nil
}

func unpackUint256(data []byte) (*big.Int, error) {
	args := abi.Arguments{{Type: uint256Ty}}
	vals, err := args.Unpack(data)
	if err != nil {
		return nil, err
	}
	return vals[0].(*big.Int), nil
}

func unpackBytes32(data []byte) ([32]byte, error) {
	args := abi.Arguments{{Type: bytes32Ty}}
	vals, err := args.Unpack(data)
	if err != nil {
		return [32]byte{}, err
	}
	return vals[0].([32]byte), nil
}

func unpackString(data []byte) (string, error) {
	args := abi.Arguments{{Type: stringTy}}
	vals, err := args.Unpack(data)
	if err != nil {
		return "", err
	}
	return vals[0].(string), nil
}

func unpackAddresses(data []byte) ([]common.Address, error) {
	args := abi.Arguments{{Type: addrArrTy}}
	vals, err := args.Unpack(data)
	if err != nil {
		return nil, err
	}
	return vals[0].([]common.Address), nil
}
