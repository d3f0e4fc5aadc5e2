package redis

import (
	"context"
	"testing"
	"time"
)

func TestRateLimitStoreRecordAndCount(t *testing.T) {
	client, server := newTestRedis(t)
	store := NewRateLimitStore(client, SlidingWindowConfig{KeyPrefix: "test:rate-limit", TTL: time.Minute})

	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if err := store.RecordAttempt(ctx, "203.0.113.7", base.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("RecordAttempt returned error: %v", err)
		}
	}

	count, err := store.CountAttempts(ctx, "203.0.113.7", time.Minute, base.Add(2*time.Second))
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 attempts inside the window, got %d", count)
	}

	remaining := server.TTL("test:rate-limit:203.0.113.7")
	if remaining <= 0 || remaining > time.Minute {
		t.Fatalf("expected ttl within (0, 1m], got %v", remaining)
	}
}

func TestRateLimitStoreCountExcludesOutsideWindow(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewRateLimitStore(client, SlidingWindowConfig{KeyPrefix: "test:rate-limit"})

	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.RecordAttempt(ctx, "203.0.113.7", base.Add(-2*time.Minute)); err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}
	if err := store.RecordAttempt(ctx, "203.0.113.7", base); err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}

	count, err := store.CountAttempts(ctx, "203.0.113.7", time.Minute, base)
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected only the in-window attempt, got %d", count)
	}
}

func TestRateLimitStoreTrimWindow(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewRateLimitStore(client, SlidingWindowConfig{KeyPrefix: "test:rate-limit"})

	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.RecordAttempt(ctx, "203.0.113.7", base.Add(-2*time.Minute)); err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}
	if err := store.RecordAttempt(ctx, "203.0.113.7", base); err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}

	if err := store.TrimWindow(ctx, "203.0.113.7", time.Minute, base); err != nil {
		t.Fatalf("TrimWindow returned error: %v", err)
	}

	count, err := store.CountAttempts(ctx, "203.0.113.7", 10*time.Minute, base)
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected the stale attempt to be trimmed, got %d", count)
	}
}

func TestRateLimitStoreOldestAttempt(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewRateLimitStore(client, SlidingWindowConfig{KeyPrefix: "test:rate-limit"})

	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first := base.Add(-30 * time.Second)

	if err := store.RecordAttempt(ctx, "203.0.113.7", first); err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}
	if err := store.RecordAttempt(ctx, "203.0.113.7", base); err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}

	oldest, ok, err := store.OldestAttempt(ctx, "203.0.113.7", time.Minute, base)
	if err != nil {
		t.Fatalf("OldestAttempt returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected an attempt inside the window")
	}
	if !oldest.Equal(first) {
		t.Fatalf("expected oldest %v, got %v", first, oldest)
	}
}

func TestRateLimitStoreOldestAttemptEmpty(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewRateLimitStore(client, SlidingWindowConfig{KeyPrefix: "test:rate-limit"})

	_, ok, err := store.OldestAttempt(context.Background(), "203.0.113.7", time.Minute, time.Now())
	if err != nil {
		t.Fatalf("OldestAttempt returned error: %v", err)
	}
	if ok {
		t.Fatal("expected no attempt for an unseen identifier")
	}
}

func TestRateLimitStoreRejectsNonPositiveWindow(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewRateLimitStore(client, SlidingWindowConfig{KeyPrefix: "test:rate-limit"})

	ctx := context.Background()
	now := time.Now()

	if _, err := store.CountAttempts(ctx, "203.0.113.7", 0, now); err == nil {
		t.Fatal("expected error for zero window in CountAttempts")
	}
	if err := store.TrimWindow(ctx, "203.0.113.7", -time.Second, now); err == nil {
		t.Fatal("expected error for negative window in TrimWindow")
	}
	if _, _, err := store.OldestAttempt(ctx, "203.0.113.7", 0, now); err == nil {
		t.Fatal("expected error for zero window in OldestAttempt")
	}
}
