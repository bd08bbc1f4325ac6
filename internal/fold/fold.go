// Package fold implements the Cumulative Folder (Component G): folding
// one round's per-token allocations onto the previous round's cumulative
// totals, carrying forward untouched rows, and canonicalising the result
// into the (lowercase recipient, lowercase token) order I5 requires.
package fold

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/merkl-ops/distrib/internal/distmodel"
)

// Fold adds each allocation onto its prior cumulative amount, carries
// forward any (recipient, token) pair present in prevBlob but not
// receiving a new allocation this round, and returns the sorted claim
// list plus the per-token TotalDistributed accompanying it.
func Fold(prevBlob *distmodel.Blob, allocations []distmodel.Claim) ([]distmodel.Claim, map[common.Address]*big.Int) {
	prev := map[[2]common.Address]*big.Int{}
	if prevBlob != nil {
		for _, v := range prevBlob.Values {
			prev[v.Claim.Key()] = v.Claim.Amount
		}
	}

	seen := map[[2]common.Address]bool{}
	folded := make([]distmodel.Claim, 0, len(allocations))
	for _, a := range allocations {
		key := a.Key()
		seen[key] = true
		base := prev[key]
		cumulative := new(big.Int).Set(a.Amount)
		if base != nil {
			cumulative.Add(cumulative, base)
		}
		folded = append(folded, distmodel.Claim{
			Recipient: a.Recipient,
			Token:     a.Token,
			Amount:    cumulative,
		})
	}

	if prevBlob != nil {
		for _, v := range prevBlob.Values {
			if seen[v.Claim.Key()] {
				continue
			}
			folded = append(folded, v.Claim)
		}
	}

	sort.Slice(folded, func(i, j int) bool { return folded[i].Less(folded[j]) })

	total := map[common.Address]*big.Int{}
	for _, c := range folded {
		if total[c.Token] == nil {
			total[c.Token] = new(big.Int)
		}
		total[c.Token].Add(total[c.Token], c.Amount)
	}

	return folded, total
}
