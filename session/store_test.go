package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newSessionStoreTest(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewStore(rdb, "as", time.Hour, nil), mr
}

func createSession(t *testing.T, s *Store, accountID, jti string) *Session {
	t.Helper()
	sess := &Session{AccountID: accountID, IP: "10.0.0.1", UserAgent: "test-agent", RefreshJTI: jti}
	if err := s.Create(context.Background(), sess); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return sess
}

func TestCreateGetAndExpiry(t *testing.T) {
	s, mr := newSessionStoreTest(t)
	ctx := context.Background()

	sess := createSession(t, s, "acct-1", "jti-1")
	if sess.ID == "" {
		t.Fatal("Create must assign an id")
	}

	got, err := s.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.AccountID != "acct-1" || got.RefreshJTI != "jti-1" || got.UserAgent != "test-agent" {
		t.Fatalf("unexpected session %+v", got)
	}
	if !mr.Exists("as:a:acct-1") {
		t.Fatal("account index missing")
	}

	mr.FastForward(time.Hour + time.Second)
	if _, err := s.Get(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after ttl, got %v", err)
	}
}

func TestRotateIsSingleUse(t *testing.T) {
	s, _ := newSessionStoreTest(t)
	ctx := context.Background()
	sess := createSession(t, s, "acct-1", "jti-1")

	if err := s.Rotate(ctx, sess.ID, "acct-1", "jti-1", "jti-2"); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	got, err := s.Get(ctx, sess.ID)
	if err != nil || got.RefreshJTI != "jti-2" {
		t.Fatalf("rotation not stored: %+v, %v", got, err)
	}

	if err := s.Rotate(ctx, sess.ID, "acct-1", "jti-1", "jti-3"); !errors.Is(err, ErrRefreshReused) {
		t.Fatalf("expected ErrRefreshReused, got %v", err)
	}
	if _, err := s.Get(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("reuse must delete the session, got %v", err)
	}
}

func TestRotateConcurrentOnlyOneWins(t *testing.T) {
	s, _ := newSessionStoreTest(t)
	ctx := context.Background()
	sess := createSession(t, s, "acct-1", "jti-0")

	const n = 10
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ok  int
		bad int
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			err := s.Rotate(ctx, sess.ID, "acct-1", "jti-0", "next-"+string(rune('a'+i)))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if errors.Is(err, ErrRefreshReused) || errors.Is(err, ErrNotFound) {
				bad++
			} else {
				t.Errorf("unexpected error %v", err)
			}
		}(i)
	}
	wg.Wait()

	if ok != 1 || bad != n-1 {
		t.Fatalf("expected exactly one winner, got ok=%d rejected=%d", ok, bad)
	}
}

func TestRotateRejectsOtherAccount(t *testing.T) {
	s, _ := newSessionStoreTest(t)
	ctx := context.Background()
	sess := createSession(t, s, "acct-1", "jti-1")

	if err := s.Rotate(ctx, sess.ID, "acct-2", "jti-1", "jti-2"); !errors.Is(err, ErrOwnerMismatch) {
		t.Fatalf("expected ErrOwnerMismatch, got %v", err)
	}
	if _, err := s.Get(ctx, sess.ID); err != nil {
		t.Fatalf("owner mismatch must not destroy the session: %v", err)
	}
}

func TestRevokeIsIdempotentAndUpdatesIndex(t *testing.T) {
	s, _ := newSessionStoreTest(t)
	ctx := context.Background()
	a := createSession(t, s, "acct-1", "j1")
	b := createSession(t, s, "acct-1", "j2")

	if err := s.Revoke(ctx, a.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := s.Revoke(ctx, a.ID); err != nil {
		t.Fatalf("second Revoke: %v", err)
	}

	list, err := s.List(ctx, "acct-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].ID != b.ID {
		t.Fatalf("expected only %s, got %+v", b.ID, list)
	}
}

func TestRevokeAllUsesIndex(t *testing.T) {
	s, _ := newSessionStoreTest(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		createSession(t, s, "acct-1", "j")
	}
	other := createSession(t, s, "acct-2", "j")

	n, err := s.RevokeAll(ctx, "acct-1")
	if err != nil {
		t.Fatalf("RevokeAll: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 revoked, got %d", n)
	}
	if list, _ := s.List(ctx, "acct-1"); len(list) != 0 {
		t.Fatalf("sessions survived revoke-all: %+v", list)
	}
	if _, err := s.Get(ctx, other.ID); err != nil {
		t.Fatalf("other account affected: %v", err)
	}
	if n, err := s.RevokeAll(ctx, "acct-1"); err != nil || n != 0 {
		t.Fatalf("second RevokeAll = %d, %v", n, err)
	}
}

func TestRevokeAllConcurrentCountsEachSessionOnce(t *testing.T) {
	s, mr := newSessionStoreTest(t)
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		createSession(t, s, "acct-1", "j")
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.RevokeAll(ctx, "acct-1")
			if err != nil {
				t.Errorf("RevokeAll: %v", err)
				return
			}
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	if total != 50 {
		t.Fatalf("revoked %d sessions across callers, want 50", total)
	}
	if mr.Exists("as:a:acct-1") {
		t.Fatal("account index survived revoke-all")
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("keys left behind: %v", keys)
	}
}

// evalKeys records the KEYS argument of every script call.
type evalKeys struct {
	mu   sync.Mutex
	keys [][]string
}

func (h *evalKeys) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *evalKeys) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (h *evalKeys) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		args := cmd.Args()
		if name := cmd.Name(); (name == "evalsha" || name == "eval") && len(args) > 2 {
			n, _ := args[2].(int)
			keys := make([]string, 0, n)
			for _, k := range args[3 : 3+n] {
				keys = append(keys, fmt.Sprint(k))
			}
			h.mu.Lock()
			h.keys = append(h.keys, keys)
			h.mu.Unlock()
		}
		return next(ctx, cmd)
	}
}

func TestRevokeDeclaresIndexKey(t *testing.T) {
	s, _ := newSessionStoreTest(t)
	ctx := context.Background()
	sess := createSession(t, s, "acct-1", "j")

	rec := &evalKeys{}
	s.redis.AddHook(rec)
	if err := s.Revoke(ctx, sess.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.keys) == 0 {
		t.Fatal("Revoke ran no script")
	}
	want := []string{"as:s:" + sess.ID, "as:a:acct-1"}
	for _, keys := range rec.keys {
		if fmt.Sprint(keys) != fmt.Sprint(want) {
			t.Fatalf("script keys = %v, want %v", keys, want)
		}
	}
	if s.redis.SIsMember(ctx, "as:a:acct-1", sess.ID).Val() {
		t.Fatal("index entry survived revoke")
	}
}

func TestTouchSlidesExpiry(t *testing.T) {
	s, mr := newSessionStoreTest(t)
	ctx := context.Background()
	sess := createSession(t, s, "acct-1", "j")

	mr.FastForward(50 * time.Minute)
	if err := s.Touch(ctx, sess.ID, "acct-1"); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	mr.FastForward(50 * time.Minute)
	if _, err := s.Get(ctx, sess.ID); err != nil {
		t.Fatalf("touched session expired early: %v", err)
	}
	if err := s.Touch(ctx, sess.ID, "acct-9"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("touch with wrong owner = %v", err)
	}
}

func TestListPrunesExpiredEntries(t *testing.T) {
	s, mr := newSessionStoreTest(t)
	ctx := context.Background()
	sess := createSession(t, s, "acct-1", "j")
	mr.Del("as:s:" + sess.ID)

	list, err := s.List(ctx, "acct-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %+v", list)
	}
	if s.redis.SIsMember(ctx, "as:a:acct-1", sess.ID).Val() {
		t.Fatal("stale index entry not pruned")
	}
}
