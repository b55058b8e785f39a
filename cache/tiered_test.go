package cache

import (
	"path/filepath"
	"testing"
)

func TestTiered_PromotesFarHits(t *testing.T) {
	near := mustNewL1(t)
	far := mustNewSQLite(t, filepath.Join(t.TempDir(), "far.db"))
	c := NewTiered(near, far)
	ctx := t.Context()

	// Only the far store has the value.
	if err := far.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	val, ok, err := c.Get(ctx, "k")
	if err != nil || !ok || string(val) != "v" {
		t.Fatalf("expected far hit, got %q hit=%v err=%v", val, ok, err)
	}
	if _, ok, _ := near.Get(ctx, "k"); !ok {
		t.Fatal("expected value promoted into near store")
	}
}

func TestTiered_SetWritesBoth(t *testing.T) {
	near := mustNewL1(t)
	far := mustNewSQLite(t, filepath.Join(t.TempDir(), "far.db"))
	c := NewTiered(near, far)
	ctx := t.Context()

	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if _, ok, _ := near.Get(ctx, "k"); !ok {
		t.Fatal("expected near hit")
	}
	if _, ok, _ := far.Get(ctx, "k"); !ok {
		t.Fatal("expected far hit")
	}
}

func TestOpen_Backends(t *testing.T) {
	ctx := t.Context()
	dir := t.TempDir()

	for _, backend := range []string{"", BackendMemory, BackendSQLite, BackendTiered} {
		c, err := Open(ctx, Options{Backend: backend, MaxEntries: 10, SQLitePath: filepath.Join(dir, backend+".db")})
		if err != nil {
			t.Fatalf("Open(%q): %v", backend, err)
		}
		if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
			t.Fatalf("Open(%q) Set: %v", backend, err)
		}
		if _, ok, _ := c.Get(ctx, "k"); !ok {
			t.Fatalf("Open(%q): expected hit", backend)
		}
		_ = c.Close()
	}

	if _, err := Open(ctx, Options{Backend: BackendRedis}); err == nil {
		t.Fatal("expected redis backend without address to fail")
	}
	if _, err := Open(ctx, Options{Backend: "memcached"}); err == nil {
		t.Fatal("expected unknown backend to fail")
	}
}
