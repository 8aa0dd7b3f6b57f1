package stores

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestKeyed(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewRedis(rdb, "test"), mr
}

func TestIncrSetsWindowOnFirstHitOnly(t *testing.T) {
	k, mr := newTestKeyed(t)
	ctx := context.Background()

	c, err := k.Incr(ctx, "login:1.2.3.4", time.Minute)
	if err != nil {
		t.Fatalf("Incr: %v", err)
	}
	if c.Count != 1 || c.TTL != time.Minute {
		t.Fatalf("unexpected first counter %+v", c)
	}

	mr.FastForward(20 * time.Second)

	c, err = k.Incr(ctx, "login:1.2.3.4", time.Minute)
	if err != nil {
		t.Fatalf("Incr: %v", err)
	}
	if c.Count != 2 {
		t.Fatalf("expected count 2, got %d", c.Count)
	}
	if c.TTL > 40*time.Second {
		t.Fatalf("window must not be extended, ttl=%s", c.TTL)
	}

	mr.FastForward(41 * time.Second)
	peek, err := k.Peek(ctx, "login:1.2.3.4")
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if peek.Count != 0 {
		t.Fatalf("expected expired counter, got %+v", peek)
	}
}

func TestIncrIsAtomicUnderConcurrency(t *testing.T) {
	k, _ := newTestKeyed(t)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := k.Incr(ctx, "burst", time.Minute); err != nil {
				t.Errorf("Incr: %v", err)
			}
		}()
	}
	wg.Wait()

	c, err := k.Peek(ctx, "burst")
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if c.Count != n {
		t.Fatalf("expected %d, got %d", n, c.Count)
	}
	if c.TTL <= 0 {
		t.Fatal("counter lost its expiry")
	}
}

func TestOneTimeTokenConsumedOnce(t *testing.T) {
	k, mr := newTestKeyed(t)
	ctx := context.Background()
	tokens := NewOneTimeTokens(k, "verify")

	tok, err := tokens.Issue(ctx, "acct-1", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	for _, key := range mr.Keys() {
		if key == "test:ott:verify:"+tok {
			t.Fatal("plaintext token must not be used as key")
		}
	}

	subject, err := tokens.Consume(ctx, tok)
	if err != nil || subject != "acct-1" {
		t.Fatalf("Consume = %q, %v", subject, err)
	}
	if _, err := tokens.Consume(ctx, tok); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound on reuse, got %v", err)
	}
}

func TestOneTimeTokenExpires(t *testing.T) {
	k, mr := newTestKeyed(t)
	ctx := context.Background()
	tokens := NewOneTimeTokens(k, "reset")

	tok, err := tokens.Issue(ctx, "acct-2", time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, err := tokens.Consume(ctx, tok); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected expired token, got %v", err)
	}
}

func TestUnavailableWrapsBackendErrors(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	k := NewRedis(rdb, "test")
	mr.Close()

	_, err = k.Incr(context.Background(), "x", time.Second)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestDecrFloorsAtZeroAndKeepsWindow(t *testing.T) {
	k, _ := newTestKeyed(t)
	ctx := context.Background()

	if n, err := k.Decr(ctx, "missing"); err != nil || n != 0 {
		t.Fatalf("Decr on missing key: %d, %v", n, err)
	}
	if ok, _ := k.Exists(ctx, "missing"); ok {
		t.Fatal("Decr must not create keys")
	}

	if _, err := k.Incr(ctx, "attempts", time.Minute); err != nil {
		t.Fatalf("Incr: %v", err)
	}
	if n, err := k.Decr(ctx, "attempts"); err != nil || n != 0 {
		t.Fatalf("Decr: %d, %v", n, err)
	}
	if n, _ := k.Decr(ctx, "attempts"); n != 0 {
		t.Fatalf("counter went below zero: %d", n)
	}
	c, err := k.Peek(ctx, "attempts")
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if c.TTL <= 0 {
		t.Fatal("Decr dropped the window")
	}
}
