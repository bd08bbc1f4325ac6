// Package recipients implements the Recipient Set Builder (Component E):
// the union of the previous round's recipients and new depositors
// discovered by scanning the wrapper's Deposit events.
package recipients

import (
	"context"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/merkl-ops/distrib/internal/distmodel"
)

// Chain is the log-scanning surface this component needs.
type Chain interface {
	FilterDeposits(ctx context.Context, fromBlock, toBlock uint64) ([]DepositLog, error)
}

// DepositLog mirrors chainclient.DepositEvent's Owner field, the only one
// this component reads.
type DepositLog struct {
	Owner common.Address
}

// Build returns the round's candidate recipient list: every recipient
// already present in prevBlob, plus every Deposit owner seen between
// lastProcessedBlock and currentBlock (both inclusive), minus the zero
// address, sorted by lowercase hex for deterministic downstream order.
func Build(ctx context.Context, chain Chain, prevBlob *distmodel.Blob, lastProcessedBlock, currentBlock uint64) ([]common.Address, error) {
	set := map[common.Address]struct{}{}
	if prevBlob != nil {
		for _, v := range prevBlob.Values {
			set[v.Claim.Recipient] = struct{}{}
		}
	}
	deposits, err := chain.FilterDeposits(ctx, lastProcessedBlock, currentBlock)
	if err != nil {
		return nil, distmodel.ErrRPC.Wrapf("filter deposits: %v", err)
	}
	for _, d := range deposits {
		set[d.Owner] = struct{}{}
	}
	delete(set, common.Address{})

	out := make([]common.Address, 0, len(set))
	for addr := range set {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Hex()) < strings.ToLower(out[j].Hex())
	})
	return out, nil
}
