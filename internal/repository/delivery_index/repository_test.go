package delivery_index

import (
	"context"
	"testing"
	"time"
)

func TestMemoryIndex(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	idx := NewMemoryIndex(time.Hour)
	idx.now = func() time.Time { return now }
	ctx := context.Background()

	if ok, _ := idx.WasDelivered(ctx, "order-1"); ok {
		t.Fatal("expected unknown job not delivered")
	}
	if err := idx.MarkDelivered(ctx, "order-1"); err != nil {
		t.Fatalf("MarkDelivered failed: %v", err)
	}
	if ok, _ := idx.WasDelivered(ctx, "order-1"); !ok {
		t.Error("expected job delivered")
	}

	now = now.Add(time.Hour)
	if ok, _ := idx.WasDelivered(ctx, "order-1"); ok {
		t.Error("expected entry to expire after ttl")
	}
}

func TestMemoryIndexWithoutTTL(t *testing.T) {
	idx := NewMemoryIndex(0)
	ctx := context.Background()

	idx.MarkDelivered(ctx, "order-1")
	idx.now = func() time.Time { return time.Now().Add(24 * 365 * time.Hour) }
	if ok, _ := idx.WasDelivered(ctx, "order-1"); !ok {
		t.Error("expected entry to be kept when ttl is zero")
	}
}
