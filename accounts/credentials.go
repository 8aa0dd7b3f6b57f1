package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/permission"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrBadPassword is returned when the password does not match.
	ErrBadPassword = errors.New("accounts: password mismatch")
	// ErrLocked is returned while LockedUntil is in the future.
	ErrLocked = errors.New("accounts: locked")
	// ErrInactive is returned for deactivated accounts after a correct
	// password.
	ErrInactive = errors.New("accounts: inactive")
)

// LockoutPolicy configures automatic lockout after repeated failures.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// DefaultLockoutPolicy locks for 30 minutes after 5 failures.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{Threshold: 5, Duration: 30 * time.Minute}
}

// NewAccount is the input of [Credentials.Create].
type NewAccount struct {
	Email    string
	Username string
	FullName string
	Password string
	Role     permission.Role
	Verified bool
}

// Credentials combines the account store with the password hasher.
type Credentials struct {
	store   Store
	hasher  *password.Hasher
	lockout LockoutPolicy
	now     func() time.Time
	log     zerolog.Logger
}

// NewCredentials creates a [Credentials]. A zero lockout policy selects
// [DefaultLockoutPolicy].
func NewCredentials(store Store, hasher *password.Hasher, lockout LockoutPolicy, now func() time.Time, log zerolog.Logger) *Credentials {
	if lockout.Threshold <= 0 || lockout.Duration <= 0 {
		lockout = DefaultLockoutPolicy()
	}
	if now == nil {
		now = time.Now
	}
	return &Credentials{store: store, hasher: hasher, lockout: lockout, now: now, log: log}
}

// Store returns the underlying account store.
func (c *Credentials) Store() Store { return c.store }

// Create hashes the password and inserts a new account. Email and username
// are normalized. New accounts are active customers unless in says
// otherwise.
func (c *Credentials) Create(ctx context.Context, in NewAccount) (*Account, error) {
	role := in.Role
	if role == "" {
		role = permission.RoleCustomer
	}
	if !role.Valid() {
		return nil, permission.ErrUnknownRole
	}

	hash, err := c.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, err
	}

	a := &Account{
		ID:           uuid.NewString(),
		Email:        NormalizeEmail(in.Email),
		Username:     NormalizeUsername(in.Username),
		FullName:     in.FullName,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		Verified:     in.Verified,
	}
	if err := c.store.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Verify authenticates email and password.
//
// An unknown email runs a dummy hash so the timing matches a bad password.
// A locked account is rejected without checking the password. A bad
// password increments the failed counter and may start a lock; the returned
// account reflects that. A correct password clears the counter and upgrades
// legacy hashes.
func (c *Credentials) Verify(ctx context.Context, email, pw string) (*Account, error) {
	a, err := c.store.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.hasher.DummyVerify(ctx, pw)
		}
		return nil, err
	}

	now := c.now()
	if a.Locked(now) {
		return a, ErrLocked
	}

	ok, err := c.hasher.Verify(ctx, pw, a.PasswordHash)
	if err != nil && !errors.Is(err, password.ErrPasswordTooLong) {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		updated, ferr := c.store.RecordFailedLogin(ctx, a.ID, c.lockout.Threshold, now.Add(c.lockout.Duration))
		if ferr != nil {
			return nil, ferr
		}
		return updated, ErrBadPassword
	}

	if a.FailedLogins > 0 || a.LockedUntil != nil {
		if err := c.store.ResetFailedLogins(ctx, a.ID); err != nil {
			return nil, err
		}
		a.FailedLogins = 0
		a.LockedUntil = nil
	}

	if !a.Active {
		return a, ErrInactive
	}

	c.maybeRehash(ctx, a, pw)
	return a, nil
}

// CheckPassword compares pw with the stored hash without touching counters.
func (c *Credentials) CheckPassword(ctx context.Context, a *Account, pw string) (bool, error) {
	ok, err := c.hasher.Verify(ctx, pw, a.PasswordHash)
	if errors.Is(err, password.ErrPasswordTooLong) {
		return false, nil
	}
	return ok, err
}

// SetPassword hashes pw, stores it with the change time and clears any lock.
func (c *Credentials) SetPassword(ctx context.Context, accountID, pw string) error {
	hash, err := c.hasher.Hash(ctx, pw)
	if err != nil {
		return err
	}
	now := c.now()
	return c.store.UpdatePasswordHash(ctx, accountID, hash, &now)
}

func (c *Credentials) maybeRehash(ctx context.Context, a *Account, pw string) {
	if !c.hasher.NeedsRehash(a.PasswordHash) {
		return
	}
	hash, err := c.hasher.Hash(ctx, pw)
	if err == nil {
		err = c.store.UpdatePasswordHash(ctx, a.ID, hash, nil)
	}
	if err != nil {
		c.log.Warn().Err(err).Str("op", "password_rehash").Str("account_id", a.ID).Msg("hash upgrade failed")
		return
	}
	a.PasswordHash = hash
	c.log.Info().Str("op", "password_rehash").Str("account_id", a.ID).Msg("password hash upgraded")
}
