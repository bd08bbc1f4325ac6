// Package merkletree implements the double-keccak, ABI-tuple Merkle
// scheme the distribution blob's leafEncoding names: each leaf is
// keccak256(keccak256(abi.encode(recipient, token, amount))), internal
// nodes hash sorted pairs. The tree-building and proof-walking shape is
// the same sorted-leaves / bottom-up-levels approach the corpus's own
// Merkle command-line tools use, generalized from a single-keccak address
// leaf to a double-keccak three-field tuple leaf.
package merkletree

import (
	"bytes"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/merkl-ops/distrib/internal/distmodel"
)

// Tree is the capability interface the round engine builds against; a
// different backing library could satisfy it without touching callers.
type Tree interface {
	Root() [32]byte
	Dump() *distmodel.Blob
	Proof(treeIndex int) ([][32]byte, error)
	Verify(claim distmodel.Claim, proof [][32]byte) bool
}

var tupleArgs = mustTupleArgs()

func mustTupleArgs() abi.Arguments {
	addrTy, err := abi.NewType("address", "", nil)
	if err != nil {
		panic(err)
	}
	uintTy, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Type: addrTy}, {Type: addrTy}, {Type: uintTy}}
}

// leafHash computes keccak256(keccak256(abi.encode(recipient, token, amount))).
func leafHash(c distmodel.Claim) ([32]byte, error) {
	packed, err := tupleArgs.Pack(c.Recipient, c.Token, c.Amount)
	if err != nil {
		return [32]byte{}, distmodel.ErrValidation.Wrapf("abi-encode leaf: %v", err)
	}
	inner := crypto.Keccak256(packed)
	return [32]byte(crypto.Keccak256Hash(inner)), nil
}

// hashPair hashes two sibling nodes with the smaller byte value first,
// the standard sorted-pair convention that makes proof order irrelevant.
func hashPair(a, b [32]byte) [32]byte {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	buf := make([]byte, 0, 64)
	buf = append(buf, a[:]...)
	buf = append(buf, b[:]...)
	return [32]byte(crypto.Keccak256Hash(buf))
}

type tree struct {
	levels     [][][32]byte // levels[0] = leaves sorted by hash, levels[last] = {root}
	values     []distmodel.ValueEntry
}

// Build constructs a tree over claims. claims is the externally-sorted
// (I5) list; the tree itself sorts leaves by hash internally for a
// canonical, input-order-independent structure, recording the mapping
// back into each ValueEntry.TreeIndex.
func Build(claims []distmodel.Claim) (Tree, error) {
	if len(claims) == 0 {
		return nil, distmodel.ErrNoClaims
	}
	type leafRow struct {
		hash  [32]byte
		claim distmodel.Claim
		orig  int
	}
	rows := make([]leafRow, len(claims))
	for i, c := range claims {
		h, err := leafHash(c)
		if err != nil {
			return nil, err
		}
		rows[i] = leafRow{hash: h, claim: c, orig: i}
	}
	sort.Slice(rows, func(i, j int) bool {
		return bytes.Compare(rows[i].hash[:], rows[j].hash[:]) < 0
	})

	leaves := make([][32]byte, len(rows))
	values := make([]distmodel.ValueEntry, len(claims))
	for pos, r := range rows {
		leaves[pos] = r.hash
		values[r.orig] = distmodel.ValueEntry{TreeIndex: pos, Claim: r.claim}
	}

	levels := [][][32]byte{leaves}
	for len(levels[len(levels)-1]) > 1 {
		cur := levels[len(levels)-1]
		next := make([][32]byte, 0, (len(cur)+1)/2)
		for i := 0; i < len(cur); i += 2 {
			if i+1 >= len(cur) {
				next = append(next, cur[i])
				break
			}
			next = append(next, hashPair(cur[i], cur[i+1]))
		}
		levels = append(levels, next)
	}

	return &tree{levels: levels, values: values}, nil
}

// Load rebuilds a tree from a previously-dumped blob and validates it
// byte-for-byte against the stored tree array and treeIndex assignments,
// catching a malformed or tampered blob before it is trusted.
func Load(blob *distmodel.Blob) (Tree, error) {
	if blob == nil {
		return nil, distmodel.ErrValidation.Wrapf("nil blob")
	}
	claims := make([]distmodel.Claim, len(blob.Values))
	for i, v := range blob.Values {
		claims[i] = v.Claim
	}
	t, err := Build(claims)
	if err != nil {
		return nil, err
	}
	rebuilt := t.Dump()
	if len(rebuilt.Tree) != len(blob.Tree) {
		return nil, distmodel.ErrValidation.Wrapf("tree size mismatch: got %d want %d", len(blob.Tree), len(rebuilt.Tree))
	}
	for i := range rebuilt.Tree {
		if rebuilt.Tree[i] != blob.Tree[i] {
			return nil, distmodel.ErrValidation.Wrapf("tree node %d mismatch", i)
		}
	}
	for i := range rebuilt.Values {
		if rebuilt.Values[i].TreeIndex != blob.Values[i].TreeIndex {
			return nil, distmodel.ErrValidation.Wrapf("treeIndex mismatch at row %d", i)
		}
	}
	return t, nil
}

func (t *tree) Root() [32]byte {
	last := t.levels[len(t.levels)-1]
	return last[0]
}

func (t *tree) Dump() *distmodel.Blob {
	var flat []string
	for _, level := range t.levels {
		for _, node := range level {
			flat = append(flat, common.Bytes2Hex(node[:]))
		}
	}
	// hex without 0x prefix would be ambiguous with other hex strings in
	// the wire format; the blob always carries 0x-prefixed 32-byte hashes.
	for i, s := range flat {
		flat[i] = "0x" + s
	}
	values := make([]distmodel.ValueEntry, len(t.values))
	copy(values, t.values)

	total := map[common.Address]*big.Int{}
	for _, v := range values {
		if total[v.Claim.Token] == nil {
			total[v.Claim.Token] = new(big.Int)
		}
		total[v.Claim.Token].Add(total[v.Claim.Token], v.Claim.Amount)
	}

	return &distmodel.Blob{
		Format:           distmodel.LeafFormat,
		LeafEncoding:     distmodel.LeafEncoding,
		Tree:             flat,
		Values:           values,
		TotalDistributed: total,
	}
}

// Proof returns the sibling hashes from leaf treeIndex up to the root, in
// leaf-to-root order — the same order the on-chain MerkleProof verifier
// walks them.
func (t *tree) Proof(treeIndex int) ([][32]byte, error) {
	if treeIndex < 0 || treeIndex >= len(t.levels[0]) {
		return nil, distmodel.ErrProofNotFound.Wrapf("treeIndex %d out of range", treeIndex)
	}
	idx := treeIndex
	var proof [][32]byte
	for l := 0; l < len(t.levels)-1; l++ {
		level := t.levels[l]
		sibling := idx ^ 1
		if sibling < len(level) {
			proof = append(proof, level[sibling])
		}
		idx /= 2
	}
	return proof, nil
}

// Verify recomputes the leaf hash for claim and walks proof to the root,
// reporting whether it matches this tree's root.
func (t *tree) Verify(claim distmodel.Claim, proof [][32]byte) bool {
	h, err := leafHash(claim)
	if err != nil {
		return false
	}
	for _, sibling := range proof {
		h = hashPair(h, sibling)
	}
	return h == t.Root()
}

// VerifyAgainstRoot verifies a claim/proof pair against an arbitrary root
// without needing a full Tree in hand — the shape §4.H's proof-consumption
// flow and on-chain claim submission need (the contract itself does this
// with no tree object at all).
func VerifyAgainstRoot(root [32]byte, claim distmodel.Claim, proof [][32]byte) bool {
	h, err := leafHash(claim)
	if err != nil {
		return false
	}
	for _, sibling := range proof {
		h = hashPair(h, sibling)
	}
	return h == root
}
