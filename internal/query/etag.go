package query

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ComputeETag builds a stable weak ETag over
// {query_id, limit, offset, total_rows, sha256(first_row, last_row)}
// (spec §4.8 step 4).
func ComputeETag(queryID string, limit, offset int, totalRows int64, rows []map[string]any) (string, error) {
	var first, last map[string]any

	if len(rows) > 0 {
		first = rows[0]
		last = rows[len(rows)-1]
	}

	edgeHash, err := hashRowPair(first, last)
	if err != nil {
		return "", err
	}

	payload := fmt.Sprintf("%s:%d:%d:%d:%s", queryID, limit, offset, totalRows, edgeHash)

	sum := sha256.Sum256([]byte(payload))

	return `W/"` + hex.EncodeToString(sum[:]) + `"`, nil
}

func hashRowPair(first, last map[string]any) (string, error) {
	b, err := json.Marshal([2]map[string]any{first, last})
	if err != nil {
		return "", fmt.Errorf("encoding row pair for etag: %w", err)
	}

	sum := sha256.Sum256(b)

	return hex.EncodeToString(sum[:]), nil
}
