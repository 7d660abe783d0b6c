package spool

import (
	"testing"

	"github.com/bft-labs/shardspool/internal/domain"
)

func TestRegistryObservationOrder(t *testing.T) {
	r := NewRegistry()
	r.Observe(domain.PendingFile{Path: "/spool/b", Rows: 1})
	r.Observe(domain.PendingFile{Path: "/spool/a", Rows: 2})
	r.Observe(domain.PendingFile{Path: "/spool/c", Rows: 3})

	pending := r.Pending()
	want := []string{"/spool/b", "/spool/a", "/spool/c"}
	for i, p := range want {
		if pending[i].Path != p {
			t.Fatalf("pending[%d] = %s, want %s", i, pending[i].Path, p)
		}
	}
}

func TestRegistryDedup(t *testing.T) {
	r := NewRegistry()
	if !r.Observe(domain.PendingFile{Path: "/spool/a"}) {
		t.Fatal("first observe returned false")
	}
	if r.Observe(domain.PendingFile{Path: "/spool/a"}) {
		t.Fatal("duplicate observe returned true")
	}
	if r.Len() != 1 {
		t.Fatalf("len %d, want 1", r.Len())
	}
}

func TestRegistryForget(t *testing.T) {
	r := NewRegistry()
	r.Observe(domain.PendingFile{Path: "/spool/a"})
	r.Observe(domain.PendingFile{Path: "/spool/b"})

	r.Forget("/spool/a")
	if r.Known("/spool/a") {
		t.Fatal("forgotten path still known")
	}
	if r.Len() != 1 || r.Pending()[0].Path != "/spool/b" {
		t.Fatalf("unexpected registry state after forget: %v", r.Pending())
	}

	// Forgetting an unknown path is a no-op.
	r.Forget("/spool/missing")
	if r.Len() != 1 {
		t.Fatalf("len %d after no-op forget, want 1", r.Len())
	}
}
