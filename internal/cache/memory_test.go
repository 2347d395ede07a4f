// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCacheSetGet(t *testing.T) {
	c := NewSimpleMemoryCache(time.Minute)
	defer func() { _ = c.Close() }()
	ctx := context.Background()

	if err := c.Set(ctx, "key", []byte("value"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "value" {
		t.Errorf("Get = %q, want value", got)
	}

	if _, err := c.Get(ctx, "missing"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("missing key: got %v, want ErrCacheMiss", err)
	}
}

func TestMemoryCacheReturnsCopy(t *testing.T) {
	c := NewSimpleMemoryCache(time.Minute)
	defer func() { _ = c.Close() }()
	ctx := context.Background()

	_ = c.Set(ctx, "key", []byte("abc"), 0)
	got, _ := c.Get(ctx, "key")
	got[0] = 'x'

	again, _ := c.Get(ctx, "key")
	if string(again) != "abc" {
		t.Errorf("cached value mutated through returned slice: %q", again)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewSimpleMemoryCache(time.Minute)
	defer func() { _ = c.Close() }()
	ctx := context.Background()

	if err := c.Set(ctx, "key", []byte("value"), 10*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if _, err := c.Get(ctx, "key"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expired key: got %v, want ErrCacheMiss", err)
	}
	has, err := c.Has(ctx, "key")
	if err != nil || has {
		t.Errorf("Has(expired) = %v, %v", has, err)
	}
}

func TestMemoryCacheDeleteByPrefix(t *testing.T) {
	c := NewSimpleMemoryCache(time.Minute)
	defer func() { _ = c.Close() }()
	ctx := context.Background()

	_ = c.Set(ctx, "tree:all:3", []byte("a"), 0)
	_ = c.Set(ctx, "tree:x:2", []byte("b"), 0)
	_ = c.Set(ctx, "other", []byte("c"), 0)

	if err := c.DeleteByPrefix(ctx, "tree:"); err != nil {
		t.Fatalf("DeleteByPrefix: %v", err)
	}

	if _, err := c.Get(ctx, "tree:all:3"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("tree entry survived prefix delete")
	}
	if _, err := c.Get(ctx, "other"); err != nil {
		t.Errorf("unrelated entry dropped: %v", err)
	}
}

func TestMemoryCacheClearAndClose(t *testing.T) {
	c := NewSimpleMemoryCache(time.Minute)
	ctx := context.Background()

	_ = c.Set(ctx, "a", []byte("1"), 0)
	_ = c.Set(ctx, "b", []byte("2"), 0)

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := c.Get(ctx, "a"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("entry survived Clear")
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := c.Get(ctx, "a"); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("closed cache Get: got %v, want ErrCacheClosed", err)
	}
	if err := c.Set(ctx, "a", []byte("1"), 0); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("closed cache Set: got %v, want ErrCacheClosed", err)
	}
	// Close is idempotent.
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestMemoryCacheStats(t *testing.T) {
	c := NewSimpleMemoryCache(time.Minute)
	defer func() { _ = c.Close() }()
	ctx := context.Background()

	_ = c.Set(ctx, "key", []byte("value"), 0)
	_, _ = c.Get(ctx, "key")
	_, _ = c.Get(ctx, "key")
	_, _ = c.Get(ctx, "missing")

	stats := c.Stats()
	if stats.Hits != 2 || stats.Misses != 1 || stats.Sets != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Items != 1 || stats.Size != int64(len("value")) {
		t.Errorf("stats size = %+v", stats)
	}

	c.ResetStats()
	stats = c.Stats()
	if stats.Hits != 0 || stats.Misses != 0 || stats.Sets != 0 {
		t.Errorf("stats after reset = %+v", stats)
	}
}

func TestTypedCacheRoundTrip(t *testing.T) {
	c := NewSimpleMemoryCache(time.Minute)
	defer func() { _ = c.Close() }()
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	tc := NewTypedCache[payload](c, time.Minute)

	if _, ok := tc.Get(ctx, "p"); ok {
		t.Fatal("unexpected hit on empty cache")
	}

	if err := tc.Set(ctx, "p", &payload{Name: "sciences", Count: 3}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok := tc.Get(ctx, "p")
	if !ok || got.Name != "sciences" || got.Count != 3 {
		t.Errorf("Get = %+v, %v", got, ok)
	}

	calls := 0
	got, err := tc.GetOrSet(ctx, "q", func() (*payload, error) {
		calls++
		return &payload{Name: "computed"}, nil
	})
	if err != nil || got.Name != "computed" || calls != 1 {
		t.Errorf("GetOrSet first = %+v, %v, calls=%d", got, err, calls)
	}
	_, err = tc.GetOrSet(ctx, "q", func() (*payload, error) {
		calls++
		return nil, nil
	})
	if err != nil || calls != 1 {
		t.Errorf("GetOrSet cached: calls=%d err=%v", calls, err)
	}
}
