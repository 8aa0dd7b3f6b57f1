package password

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

func cheapConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newTestHasher(t *testing.T, cfg Config) *Hasher {
	t.Helper()
	h, err := NewHasher(cfg)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	return h
}

func TestHashAndVerify(t *testing.T) {
	h := newTestHasher(t, cheapConfig())
	ctx := context.Background()

	encoded, err := h.Hash(ctx, "Correct#Horse9")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected encoding %s", encoded)
	}

	ok, err := h.Verify(ctx, "Correct#Horse9", encoded)
	if err != nil || !ok {
		t.Fatalf("Verify = %v, %v", ok, err)
	}
	ok, err = h.Verify(ctx, "correct#horse9", encoded)
	if err != nil || ok {
		t.Fatalf("wrong password Verify = %v, %v", ok, err)
	}
	if h.NeedsRehash(encoded) {
		t.Fatal("fresh hash must not need a rehash")
	}
}

func TestNeedsRehashOnWeakerArgon2(t *testing.T) {
	weak := newTestHasher(t, cheapConfig())
	encoded, err := weak.Hash(context.Background(), "Str0ng!pass")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	stronger := cheapConfig()
	stronger.Time = 2
	if !newTestHasher(t, stronger).NeedsRehash(encoded) {
		t.Fatal("expected rehash for lower time cost")
	}
}

func TestVerifyLegacyPBKDF2Layouts(t *testing.T) {
	h := newTestHasher(t, cheapConfig())
	ctx := context.Background()

	salt := make([]byte, 32)
	for i := range salt {
		salt[i] = byte(i)
	}
	digest := pbkdf2.Key([]byte("Legacy#Pass1"), salt, 1000, 32, sha256.New)

	split := fmt.Sprintf("pbkdf2_sha256$1000$%s$%s", hex.EncodeToString(salt), hex.EncodeToString(digest))
	combined := fmt.Sprintf("pbkdf2_sha256$1000$%s%s", hex.EncodeToString(salt), hex.EncodeToString(digest))

	for _, encoded := range []string{split, combined} {
		ok, err := h.Verify(ctx, "Legacy#Pass1", encoded)
		if err != nil || !ok {
			t.Fatalf("Verify(%s) = %v, %v", encoded, ok, err)
		}
		ok, err = h.Verify(ctx, "legacy#pass1", encoded)
		if err != nil || ok {
			t.Fatalf("wrong password accepted for %s", encoded)
		}
		if !h.NeedsRehash(encoded) {
			t.Fatal("legacy hash must need a rehash")
		}
	}
}

func TestVerifyLegacyBcrypt(t *testing.T) {
	h := newTestHasher(t, cheapConfig())
	raw, err := bcrypt.GenerateFromPassword([]byte("Old$chool1"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	ok, err := h.Verify(context.Background(), "Old$chool1", string(raw))
	if err != nil || !ok {
		t.Fatalf("Verify = %v, %v", ok, err)
	}
	ok, err = h.Verify(context.Background(), "nope", string(raw))
	if err != nil || ok {
		t.Fatalf("mismatch Verify = %v, %v", ok, err)
	}
	if !h.NeedsRehash(string(raw)) {
		t.Fatal("bcrypt hash must need a rehash")
	}
}

func TestVerifyRejectsUnknownAndMalformed(t *testing.T) {
	h := newTestHasher(t, cheapConfig())
	ctx := context.Background()

	if _, err := h.Verify(ctx, "x", "md5$abc"); !errors.Is(err, ErrUnsupportedHash) {
		t.Fatalf("expected ErrUnsupportedHash, got %v", err)
	}
	if _, err := h.Verify(ctx, "x", "$argon2id$v=19$m=8192$zz$zz"); !errors.Is(err, ErrMalformedHash) {
		t.Fatalf("expected ErrMalformedHash, got %v", err)
	}
	if _, err := h.Verify(ctx, "x", "pbkdf2_sha256$abc$00$00"); !errors.Is(err, ErrMalformedHash) {
		t.Fatalf("expected ErrMalformedHash, got %v", err)
	}
}

func TestHashRejectsEmptyAndOversized(t *testing.T) {
	cfg := cheapConfig()
	cfg.MaxPasswordBytes = 64
	h := newTestHasher(t, cfg)
	ctx := context.Background()

	if _, err := h.Hash(ctx, ""); !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}
	if _, err := h.Hash(ctx, strings.Repeat("a", 65)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
	if _, err := h.Hash(ctx, strings.Repeat("a", 64)); err != nil {
		t.Fatalf("max-length password rejected: %v", err)
	}
}

func TestHashWaitsForSlotUntilContextEnds(t *testing.T) {
	cfg := cheapConfig()
	cfg.MaxConcurrent = 1
	h := newTestHasher(t, cfg)

	if err := h.slots.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer h.slots.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := h.Hash(ctx, "Blocked#1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig invalid: %v", err)
	}
	if cfg.Memory != 65536 || cfg.Time != 3 || cfg.Parallelism != 1 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	cfg.SaltLength = 8
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected short salt to be rejected")
	}
}
