package contentstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRefIsDeterministic(t *testing.T) {
	a := Ref("hello world")
	b := Ref("hello world")
	if a != b {
		t.Fatalf("refs differ: %q vs %q", a, b)
	}
	if a == Ref("hello world!") {
		t.Fatal("distinct bodies share a ref")
	}
	if len(a) != len("cid-")+64 {
		t.Fatalf("ref shape: %q", a)
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	pinned := Content{Body: "post body", Author: "u1", Signature: "sig", Timestamp: time.Now()}
	ref, err := store.Store(ctx, pinned)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if ref != Ref("post body") {
		t.Fatalf("ref: %q", ref)
	}

	got, err := store.Retrieve(ctx, ref)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if got.Body != pinned.Body || got.Author != pinned.Author || got.Signature != pinned.Signature {
		t.Fatalf("retrieved: %+v", got)
	}

	if _, err := store.Retrieve(ctx, "cid-unknown"); err == nil {
		t.Fatal("expected error for unknown ref")
	}
}

func TestMemoryOffline(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	ref, err := store.Store(ctx, Content{Body: "kept"})
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	store.SetOffline(true)
	if _, err := store.Store(ctx, Content{Body: "dropped"}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("offline store: %v", err)
	}
	if _, err := store.Retrieve(ctx, ref); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("offline retrieve: %v", err)
	}

	store.SetOffline(false)
	if _, err := store.Retrieve(ctx, ref); err != nil {
		t.Fatalf("back online: %v", err)
	}
}
