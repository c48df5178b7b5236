package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rawwerks/cass/internal/logging"
)

// RebuildResult summarizes a rename-and-rebuild recovery.
type RebuildResult struct {
	BackupPath string
	BackupHash string
	Duration   time.Duration
}

// RebuildIncompatible renames the store at path aside (content-hashed
// timestamped backup) and returns a RebuildResult describing the backup; the
// caller then re-Opens path, which creates a fresh database there. This is
// cass's response to ErrIncompatibleVersion, used by the CLI's session
// opening and by `cass doctor --fix` (spec.md §7).
func RebuildIncompatible(path string) (*RebuildResult, error) {
	start := time.Now()
	log := logging.Get(logging.CategoryStore)

	hash, err := hashFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("hash existing store before rebuild: %w", err)
	}

	backupPath := fmt.Sprintf("%s.bak-%d", path, time.Now().UnixNano())
	if err == nil {
		if err := os.Rename(path, backupPath); err != nil {
			return nil, fmt.Errorf("rename incompatible store aside: %w", err)
		}
		log.Warn("renamed incompatible store %s -> %s (sha256=%s)", path, backupPath, hash)
	}

	return &RebuildResult{
		BackupPath: backupPath,
		BackupHash: hash,
		Duration:   time.Since(start),
	}, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
