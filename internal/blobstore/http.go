package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"github.com/merkl-ops/distrib/internal/distmodel"
)

// HTTPStore reads blobs off an IPFS gateway (`/ipfs/<cid>`) and writes
// them through a Kubo-compatible `/api/v0/add` endpoint. Both are plain
// context-aware HTTP round trips, the same shape as reward.CoinGeckoFetcher's
// FetchDailyPrices.
type HTTPStore struct {
	GatewayURL string // e.g. "https://ipfs.io"
	APIURL     string // e.g. "http://127.0.0.1:5001", used only for Put
	Client     *http.Client
}

// NewHTTPStore builds a store with a 30s timeout client, matching the
// corpus's default external-fetcher timeout.
func NewHTTPStore(gatewayURL, apiURL string) *HTTPStore {
	return &HTTPStore{
		GatewayURL: strings.TrimRight(gatewayURL, "/"),
		APIURL:     strings.TrimRight(apiURL, "/"),
		Client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// ValidateCID checks that c parses as a syntactically valid CID without
// touching the network.
func (s *HTTPStore) ValidateCID(c string) error {
	if _, err := cid.Decode(c); err != nil {
		return distmodel.ErrValidation.Wrapf("invalid cid %q: %v", c, err)
	}
	return nil
}

// Get fetches and decodes the blob published at cid from the gateway.
func (s *HTTPStore) Get(ctx context.Context, c string) (*distmodel.Blob, error) {
	if err := s.ValidateCID(c); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/ipfs/%s", s.GatewayURL, url.PathEscape(c))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, distmodel.ErrBlobStore.Wrapf("build request for %s: %v", c, err)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, distmodel.ErrBlobStore.Wrapf("fetch %s: %v", c, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, distmodel.ErrBlobStore.Wrapf("gateway %s: %s: %s", c, resp.Status, string(body))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, distmodel.ErrBlobStore.Wrapf("read body for %s: %v", c, err)
	}
	return decode(body)
}

// Put marshals blob and pins it via the Kubo add API, returning the CID
// the node assigned.
func (s *HTTPStore) Put(ctx context.Context, blob *distmodel.Blob) (string, error) {
	data, err := encode(blob)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "distribution.json")
	if err != nil {
		return "", distmodel.ErrBlobStore.Wrapf("build multipart body: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", distmodel.ErrBlobStore.Wrapf("write multipart body: %v", err)
	}
	if err := w.Close(); err != nil {
		return "", distmodel.ErrBlobStore.Wrapf("close multipart writer: %v", err)
	}

	u := fmt.Sprintf("%s/api/v0/add?cid-version=1", s.APIURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &buf)
	if err != nil {
		return "", distmodel.ErrBlobStore.Wrapf("build add request: %v", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", distmodel.ErrBlobStore.Wrapf("add request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", distmodel.ErrBlobStore.Wrapf("add: %s: %s", resp.Status, string(body))
	}

	var out struct {
		Hash string `json:"Hash"`
	}
	if err := decodeAddResponse(resp.Body, &out); err != nil {
		return "", distmodel.ErrBlobStore.Wrapf("decode add response: %v", err)
	}
	if err := s.ValidateCID(out.Hash); err != nil {
		return "", err
	}
	return out.Hash, nil
}
