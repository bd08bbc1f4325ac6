package blobstore

import (
	"encoding/json"
	"io"
)

// decodeAddResponse decodes a Kubo /api/v0/add response body. Kubo emits
// one JSON object per line when adding a directory; a single file add is
// one line, so a plain Decode of the first object is enough here.
func decodeAddResponse(r io.Reader, out interface{}) error {
	return json.NewDecoder(r).Decode(out)
}
