package fusion

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/rawwerks/cass/internal/outcome"
)

// cursorPayload is the opaque state a pagination cursor encodes (spec.md
// §4.H: "{sort_key, id}"). id is the (source_path, line_number) composite
// that makes the cursor resumable without re-sending the whole result set.
type cursorPayload struct {
	SortKey float64 `json:"sort_key"`
	ID      string  `json:"id"`
}

// EncodeCursor builds an opaque continuation token from the last hit on a
// page.
func EncodeCursor(last outcome.Hit) string {
	p := cursorPayload{SortKey: last.Score, ID: cursorID(last)}
	b, _ := json.Marshal(p)
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor parses a token produced by EncodeCursor.
func DecodeCursor(token string) (sortKey float64, id string, err error) {
	if token == "" {
		return 0, "", nil
	}
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, "", fmt.Errorf("decode cursor: %w", err)
	}
	var p cursorPayload
	if err := json.Unmarshal(b, &p); err != nil {
		return 0, "", fmt.Errorf("parse cursor: %w", err)
	}
	return p.SortKey, p.ID, nil
}

func cursorID(h outcome.Hit) string {
	return fmt.Sprintf("%s:%d", h.SourcePath, h.LineNumber)
}

// SeekPast returns the sub-slice of hits strictly after the cursor position,
// using the same (score desc, source_path asc, line_number asc) ordering
// Merge already produced. hits must already be sorted that way.
func SeekPast(hits []outcome.Hit, token string) ([]outcome.Hit, error) {
	if token == "" {
		return hits, nil
	}
	_, id, err := DecodeCursor(token)
	if err != nil {
		return nil, err
	}
	for i, h := range hits {
		if cursorID(h) == id {
			return hits[i+1:], nil
		}
	}
	return nil, nil
}
