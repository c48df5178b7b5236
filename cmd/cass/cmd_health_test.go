package main

import "testing"

func TestLockFileFreshMissingIsFalse(t *testing.T) {
	if lockFileFresh("/nonexistent/path/indexer.lock") {
		t.Fatal("expected false for a missing lock file")
	}
}

func TestLockFileFreshPresentIsTrue(t *testing.T) {
	path := writeLines(t, "placeholder")
	if !lockFileFresh(path) {
		t.Fatal("expected true for a file that exists")
	}
}
