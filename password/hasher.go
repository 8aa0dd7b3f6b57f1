package password

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sync/semaphore"
)

var (
	// ErrMalformedHash is returned when a stored hash cannot be decoded.
	ErrMalformedHash = errors.New("password: malformed hash")
	// ErrUnsupportedHash is returned for hashes of an unknown algorithm.
	ErrUnsupportedHash = errors.New("password: unsupported hash algorithm")
	// ErrPasswordTooLong bounds the work an attacker can push into a hash.
	ErrPasswordTooLong = errors.New("password: input too long")
	// ErrEmptyPassword is returned by Hash for an empty input.
	ErrEmptyPassword = errors.New("password: empty input")
)

// DefaultMaxPasswordBytes is applied when Config.MaxPasswordBytes is zero.
const DefaultMaxPasswordBytes = 1024

// Config holds argon2id cost parameters and the concurrency bound.
type Config struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	MaxPasswordBytes int
	// MaxConcurrent caps simultaneous hash computations. Zero means
	// runtime.NumCPU().
	MaxConcurrent int64
}

// DefaultConfig returns m=64MiB, t=3, p=1 with a 16-byte salt and 32-byte key.
func DefaultConfig() Config {
	return Config{
		Memory:           64 * 1024,
		Time:             3,
		Parallelism:      1,
		SaltLength:       16,
		KeyLength:        32,
		MaxPasswordBytes: DefaultMaxPasswordBytes,
	}
}

// Validate checks the lower bounds of every cost parameter.
func (c Config) Validate() error {
	switch {
	case c.Memory < minMemoryKB:
		return fmt.Errorf("password: memory must be >= %d KiB", minMemoryKB)
	case c.Time < minTimeCost:
		return errors.New("password: time must be >= 1")
	case c.Parallelism < minParallelism:
		return errors.New("password: parallelism must be >= 1")
	case c.SaltLength < minSaltLength:
		return fmt.Errorf("password: salt length must be >= %d", minSaltLength)
	case c.KeyLength < minKeyLength:
		return fmt.Errorf("password: key length must be >= %d", minKeyLength)
	case c.MaxPasswordBytes < 0 || c.MaxConcurrent < 0:
		return errors.New("password: limits must not be negative")
	}
	return nil
}

// Hasher produces argon2id hashes and verifies argon2id, pbkdf2-sha256 and
// bcrypt hashes. It is safe for concurrent use.
type Hasher struct {
	cfg   Config
	slots *semaphore.Weighted
	dummy string
}

// NewHasher validates cfg and precomputes the hash used by [Hasher.DummyVerify].
func NewHasher(cfg Config) (*Hasher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxPasswordBytes == 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}
	if cfg.MaxConcurrent == 0 {
		cfg.MaxConcurrent = int64(runtime.NumCPU())
	}

	dummy, err := argon2Encode("authcore-dummy-password", cfg)
	if err != nil {
		return nil, err
	}

	return &Hasher{
		cfg:   cfg,
		slots: semaphore.NewWeighted(cfg.MaxConcurrent),
		dummy: dummy,
	}, nil
}

func (h *Hasher) acquire(ctx context.Context) error {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("password: waiting for hash slot: %w", err)
	}
	return nil
}

// Hash returns a new argon2id hash of password. Password bytes are used
// exactly as given; no Unicode normalization is applied.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if len(password) > h.cfg.MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	if err := h.acquire(ctx); err != nil {
		return "", err
	}
	defer h.slots.Release(1)

	return argon2Encode(password, h.cfg)
}

// Verify compares password against encoded, dispatching on the hash prefix.
// A mismatch is (false, nil); errors mean the stored hash itself is bad or
// the context ended while waiting for a slot.
func (h *Hasher) Verify(ctx context.Context, password, encoded string) (bool, error) {
	if len(password) > h.cfg.MaxPasswordBytes {
		return false, ErrPasswordTooLong
	}
	if err := h.acquire(ctx); err != nil {
		return false, err
	}
	defer h.slots.Release(1)

	switch {
	case strings.HasPrefix(encoded, argon2Prefix):
		return argon2Verify(password, encoded)
	case strings.HasPrefix(encoded, pbkdf2Prefix):
		return pbkdf2Verify(password, encoded)
	case isBcrypt(encoded):
		return bcryptVerify(password, encoded)
	default:
		return false, ErrUnsupportedHash
	}
}

// DummyVerify burns the same work as a real verification. Callers use it
// when the account does not exist so both paths take similar time.
func (h *Hasher) DummyVerify(ctx context.Context, password string) {
	if len(password) > h.cfg.MaxPasswordBytes {
		password = password[:h.cfg.MaxPasswordBytes]
	}
	_, _ = h.Verify(ctx, password, h.dummy)
}

// NeedsRehash reports whether encoded should be replaced by a fresh argon2id
// hash: every legacy format does, and so does argon2id below current cost.
func (h *Hasher) NeedsRehash(encoded string) bool {
	if !strings.HasPrefix(encoded, argon2Prefix) {
		return true
	}
	return argon2Weaker(encoded, h.cfg)
}
