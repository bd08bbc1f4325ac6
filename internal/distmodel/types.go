// Package distmodel holds the shared data model for the distribution
// engine: claims, the published blob, and the sentinel errors every other
// package wraps context around.
package distmodel

import (
	"encoding/json"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// LeafFormat is the literal format tag stamped into every published blob.
const LeafFormat = "standard-v1"

// LeafEncoding is the ABI schema every leaf is encoded under.
var LeafEncoding = [3]string{"address", "address", "uint256"}

// Claim is a recipient's cumulative entitlement of one token.
type Claim struct {
	Recipient common.Address
	Token     common.Address
	Amount    *big.Int
}

// Key returns the (recipient, token) pair used to key cumulative maps.
func (c Claim) Key() [2]common.Address {
	return [2]common.Address{c.Recipient, c.Token}
}

// sortKey is the lowercase-hex tuple I5 sorts Values by.
func (c Claim) sortKey() (string, string) {
	return strings.ToLower(c.Recipient.Hex()), strings.ToLower(c.Token.Hex())
}

// Less reports whether c sorts before other under I5's ordering.
func (c Claim) Less(other Claim) bool {
	ar, at := c.sortKey()
	br, bt := other.sortKey()
	if ar != br {
		return ar < br
	}
	return at < bt
}

// ValueEntry is one row of a blob's Values array: the tree position of a
// claim plus the claim itself, encoded the way the published JSON expects
// value = [recipient, token, amount].
type ValueEntry struct {
	TreeIndex int
	Claim     Claim
}

// Blob is the published, content-addressed artifact of one round.
type Blob struct {
	Format           string
	LeafEncoding     [3]string
	Tree             []string // 32-byte hex node hashes, leaves then internal nodes
	Values           []ValueEntry
	PrevTreeCID      string
	BlockNumber      uint64
	TotalDistributed map[common.Address]*big.Int
}

// blobJSON mirrors Blob's wire shape; distmodel.Blob keeps big.Int and
// common.Address as first-class types internally and only flattens to
// strings at the JSON boundary.
type blobJSON struct {
	Format           string              `json:"format"`
	LeafEncoding     [3]string           `json:"leafEncoding"`
	Tree             []string            `json:"tree"`
	Values           []valueEntryJSON    `json:"values"`
	PrevTreeCID      string              `json:"prevTreeCid"`
	BlockNumber      uint64              `json:"blockNumber"`
	TotalDistributed map[string]string   `json:"totalDistributed"`
}

type valueEntryJSON struct {
	TreeIndex int      `json:"treeIndex"`
	Value     [3]string `json:"value"`
}

// MarshalJSON implements the §3 wire format: two-space indentation is the
// caller's responsibility (json.MarshalIndent at the blob store boundary);
// this method only pins field order and value encoding.
func (b *Blob) MarshalJSON() ([]byte, error) {
	values := make([]valueEntryJSON, len(b.Values))
	for i, v := range b.Values {
		values[i] = valueEntryJSON{
			TreeIndex: v.TreeIndex,
			Value: [3]string{
				v.Claim.Recipient.Hex(),
				v.Claim.Token.Hex(),
				v.Claim.Amount.String(),
			},
		}
	}
	total := make(map[string]string, len(b.TotalDistributed))
	for tok, amt := range b.TotalDistributed {
		total[tok.Hex()] = amt.String()
	}
	return json.Marshal(blobJSON{
		Format:           b.Format,
		LeafEncoding:     b.LeafEncoding,
		Tree:             b.Tree,
		Values:           values,
		PrevTreeCID:      b.PrevTreeCID,
		BlockNumber:      b.BlockNumber,
		TotalDistributed: total,
	})
}

// UnmarshalJSON parses the §3 wire format back into typed fields.
func (b *Blob) UnmarshalJSON(data []byte) error {
	var raw blobJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	values := make([]ValueEntry, len(raw.Values))
	for i, v := range raw.Values {
		amount, ok := new(big.Int).SetString(v.Value[2], 10)
		if !ok {
			return ErrValidation.Wrapf("malformed amount %q at treeIndex %d", v.Value[2], v.TreeIndex)
		}
		values[i] = ValueEntry{
			TreeIndex: v.TreeIndex,
			Claim: Claim{
				Recipient: common.HexToAddress(v.Value[0]),
				Token:     common.HexToAddress(v.Value[1]),
				Amount:    amount,
			},
		}
	}
	total := make(map[common.Address]*big.Int, len(raw.TotalDistributed))
	for tok, amt := range raw.TotalDistributed {
		n, ok := new(big.Int).SetString(amt, 10)
		if !ok {
			return ErrValidation.Wrapf("malformed totalDistributed amount %q for %s", amt, tok)
		}
		total[common.HexToAddress(tok)] = n
	}
	b.Format = raw.Format
	b.LeafEncoding = raw.LeafEncoding
	b.Tree = raw.Tree
	b.Values = values
	b.PrevTreeCID = raw.PrevTreeCID
	b.BlockNumber = raw.BlockNumber
	b.TotalDistributed = total
	return nil
}

// Claims flattens Values back into a plain claim list, in Values order.
func (b *Blob) Claims() []Claim {
	out := make([]Claim, len(b.Values))
	for i, v := range b.Values {
		out[i] = v.Claim
	}
	return out
}

// CumulativeOf returns the previously-recorded cumulative amount for
// (recipient, token), or nil if there is no prior entry.
func (b *Blob) CumulativeOf(recipient, token common.Address) *big.Int {
	if b == nil {
		return nil
	}
	for _, v := range b.Values {
		if v.Claim.Recipient == recipient && v.Claim.Token == token {
			return v.Claim.Amount
		}
	}
	return nil
}
