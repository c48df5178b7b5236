package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rawwerks/cass/internal/orchestrator"
)

// idempotencyTTL is how long a cached `index --idempotency-key` result stays
// valid (spec.md §6: "caches the last result for 24 h").
const idempotencyTTL = 24 * time.Hour

type idempotencyRecord struct {
	Key       string              `json:"key"`
	CreatedAt time.Time           `json:"created_at"`
	Report    *orchestrator.Report `json:"report"`
}

func idempotencyPath(dataDir, key string) string {
	return filepath.Join(dataDir, "idempotency-"+sanitizeKey(key)+".json")
}

func sanitizeKey(key string) string {
	out := make([]rune, 0, len(key))
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

// loadIdempotentReport returns a cached report if key was used within the
// last idempotencyTTL, else nil.
func loadIdempotentReport(dataDir, key string) (*orchestrator.Report, bool) {
	if key == "" {
		return nil, false
	}
	data, err := os.ReadFile(idempotencyPath(dataDir, key))
	if err != nil {
		return nil, false
	}
	var rec idempotencyRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false
	}
	if time.Since(rec.CreatedAt) > idempotencyTTL {
		return nil, false
	}
	return rec.Report, true
}

func saveIdempotentReport(dataDir, key string, report *orchestrator.Report) error {
	if key == "" {
		return nil
	}
	rec := idempotencyRecord{Key: key, CreatedAt: time.Now(), Report: report}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(idempotencyPath(dataDir, key), data, 0o644)
}
