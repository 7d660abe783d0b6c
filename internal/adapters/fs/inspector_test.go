package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestInspectReadsHeader(t *testing.T) {
	path := writeFile(t, "1.bin", "rows 42\npayload-bytes-here")

	f, err := NewHeaderInspector().Inspect(path)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if f.Rows != 42 {
		t.Fatalf("rows %d, want 42", f.Rows)
	}
	if f.Bytes != uint64(len("rows 42\npayload-bytes-here")) {
		t.Fatalf("bytes %d, want full file size", f.Bytes)
	}
	if f.Path != path {
		t.Fatalf("path %q, want %q", f.Path, path)
	}
}

func TestInspectRejectsBadHeader(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing prefix", "cols 42\ndata"},
		{"non-integer count", "rows many\ndata"},
		{"no newline", "rows 42"},
		{"empty file", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, "bad.bin", tc.content)
			if _, err := NewHeaderInspector().Inspect(path); err == nil {
				t.Fatal("bad header accepted")
			}
		})
	}
}

func TestInspectMissingFile(t *testing.T) {
	if _, err := NewHeaderInspector().Inspect(filepath.Join(t.TempDir(), "gone.bin")); err == nil {
		t.Fatal("missing file accepted")
	}
}
