// Package blobstore is the Blob Store Adapter (Component B): content-
// addressed get/put of distribution blobs against an IPFS gateway, with
// a local SQLite read-through cache in front of the network round trip.
package blobstore

import (
	"context"
	"encoding/json"

	"github.com/merkl-ops/distrib/internal/distmodel"
)

// Store is the capability every round-engine collaborator depends on.
// HTTPStore and CachingStore both satisfy it, and either can stand in
// for the other in tests.
type Store interface {
	Get(ctx context.Context, cid string) (*distmodel.Blob, error)
	Put(ctx context.Context, blob *distmodel.Blob) (cid string, err error)
	ValidateCID(cid string) error
}

func encode(blob *distmodel.Blob) ([]byte, error) {
	data, err := json.MarshalIndent(blob, "", "  ")
	if err != nil {
		return nil, distmodel.ErrDecode.Wrapf("marshal blob: %v", err)
	}
	return data, nil
}

func decode(data []byte) (*distmodel.Blob, error) {
	var blob distmodel.Blob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, distmodel.ErrDecode.Wrapf("unmarshal blob: %v", err)
	}
	return &blob, nil
}
