package store

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return repo
}

func TestFlagListResolve(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	if err := repo.FlagQuestion(ctx, "sess-1", "report of bullying"); err != nil {
		t.Fatalf("FlagQuestion failed: %v", err)
	}
	if err := repo.FlagQuestion(ctx, "sess-2", "abuse concern"); err != nil {
		t.Fatalf("FlagQuestion failed: %v", err)
	}

	open, err := repo.ListOpen(ctx)
	if err != nil {
		t.Fatalf("ListOpen failed: %v", err)
	}
	if len(open) != 2 {
		t.Fatalf("ListOpen returned %d escalations, want 2", len(open))
	}
	if open[0].SessionID != "sess-1" {
		t.Errorf("first escalation session = %q, want oldest first", open[0].SessionID)
	}

	n, err := repo.Resolve(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Resolve affected %d rows, want 1", n)
	}

	open, err = repo.ListOpen(ctx)
	if err != nil {
		t.Fatalf("ListOpen failed: %v", err)
	}
	if len(open) != 1 || open[0].SessionID != "sess-2" {
		t.Errorf("open after resolve = %+v, want only sess-2", open)
	}
}

func TestResolveUnknownSessionNoOp(t *testing.T) {
	repo := newTestStore(t)
	n, err := repo.Resolve(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Resolve affected %d rows for unknown session, want 0", n)
	}
}

func TestPing(t *testing.T) {
	repo := newTestStore(t)
	if err := repo.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}
