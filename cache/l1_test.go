package cache

import (
	"testing"
	"time"
)

func mustNewL1(t *testing.T) *L1 {
	t.Helper()
	c, err := NewL1(1000)
	if err != nil {
		t.Fatalf("NewL1: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestL1_GetSet(t *testing.T) {
	c := mustNewL1(t)
	ctx := t.Context()

	// Miss returns false.
	_, ok, err := c.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if ok {
		t.Fatal("expected miss")
	}

	// Set then Get.
	if err := c.Set(ctx, "k1", []byte("v1"), 0); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	val, ok, err := c.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !ok {
		t.Fatal("expected hit")
	}
	if string(val) != "v1" {
		t.Fatalf("got %q, want %q", val, "v1")
	}
}

func TestL1_SetReplacesValue(t *testing.T) {
	c := mustNewL1(t)
	ctx := t.Context()

	_ = c.Set(ctx, "k", []byte("old"), 0)
	_ = c.Set(ctx, "k", []byte("new"), 0)

	val, ok, _ := c.Get(ctx, "k")
	if !ok || string(val) != "new" {
		t.Fatalf("expected %q, got %q (hit=%v)", "new", val, ok)
	}
}

func TestL1_ReturnsCopies(t *testing.T) {
	c := mustNewL1(t)
	ctx := t.Context()

	src := []byte("abc")
	_ = c.Set(ctx, "k", src, 0)
	src[0] = 'x'

	got, _, _ := c.Get(ctx, "k")
	got[1] = 'y'

	again, _, _ := c.Get(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("stored value was mutated: %q", again)
	}
}

func TestL1_TTLExpires(t *testing.T) {
	c := mustNewL1(t)
	ctx := t.Context()

	if err := c.Set(ctx, "k", []byte("v"), 50*time.Millisecond); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "k"); !ok {
		t.Fatal("expected hit before expiry")
	}

	time.Sleep(100 * time.Millisecond)

	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("expected miss after expiry")
	}
}

func TestNewL1_DefaultsSize(t *testing.T) {
	c, err := NewL1(0)
	if err != nil {
		t.Fatalf("NewL1: %v", err)
	}
	defer c.Close()
	if err := c.Set(t.Context(), "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set error: %v", err)
	}
}
