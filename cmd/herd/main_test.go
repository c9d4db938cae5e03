package main

import (
	"path/filepath"
	"testing"
)

func TestRunReportsBadConfig(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.json"))
	if code := run(); code != 1 {
		t.Fatalf("got exit code %d, want 1", code)
	}
}
