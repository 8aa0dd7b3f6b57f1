package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/permission"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when no account matches.
	ErrNotFound = errors.New("accounts: not found")
	// ErrDuplicateIdentity is returned when the email or username is taken.
	ErrDuplicateIdentity = errors.New("accounts: email or username already registered")
	// ErrUnavailable wraps database failures.
	ErrUnavailable = errors.New("accounts: database unavailable")
)

// Store persists accounts.
type Store interface {
	Create(ctx context.Context, a *Account) error
	ByID(ctx context.Context, id string) (*Account, error)
	ByEmail(ctx context.Context, email string) (*Account, error)
	// RecordFailedLogin increments the failed counter in one statement and
	// locks the account until lockUntil once the new count reaches
	// threshold. It returns the updated account.
	RecordFailedLogin(ctx context.Context, id string, threshold int, lockUntil time.Time) (*Account, error)
	ResetFailedLogins(ctx context.Context, id string) error
	// UpdatePasswordHash stores hash, resets the lockout state and, when
	// changedAt is non-nil, records the change time.
	UpdatePasswordHash(ctx context.Context, id, hash string, changedAt *time.Time) error
	MarkVerified(ctx context.Context, id string) error
	SetRole(ctx context.Context, id string, role permission.Role) error
	SetActive(ctx context.Context, id string, active bool) error
	SetTOTP(ctx context.Context, id, secret string, enabled bool) error
	// AdvanceTOTPCounter stores counter only if it is greater than the last
	// used one and reports whether it did.
	AdvanceTOTPCounter(ctx context.Context, id string, counter int64) (bool, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// GormStore implements [Store] on gorm.
type GormStore struct {
	DB *gorm.DB
}

// NewGormStore wraps db.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

// Migrate creates or updates the accounts table.
func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.DB.WithContext(ctx).AutoMigrate(&Account{}); err != nil {
		return fmt.Errorf("%w: migrate: %v", ErrUnavailable, err)
	}
	return nil
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505")
}

func wrap(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

func (s *GormStore) Create(ctx context.Context, a *Account) error {
	err := s.DB.WithContext(ctx).Create(a).Error
	if err != nil && isDuplicate(err) {
		return ErrDuplicateIdentity
	}
	return wrap(err)
}

func (s *GormStore) ByID(ctx context.Context, id string) (*Account, error) {
	var a Account
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, wrap(err)
	}
	return &a, nil
}

func (s *GormStore) ByEmail(ctx context.Context, email string) (*Account, error) {
	var a Account
	if err := s.DB.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&a).Error; err != nil {
		return nil, wrap(err)
	}
	return &a, nil
}

func (s *GormStore) RecordFailedLogin(ctx context.Context, id string, threshold int, lockUntil time.Time) (*Account, error) {
	res := s.DB.WithContext(ctx).Model(&Account{}).Where("id = ?", id).Updates(map[string]interface{}{
		"failed_logins": gorm.Expr("failed_logins + 1"),
		"locked_until":  gorm.Expr("CASE WHEN failed_logins + 1 >= ? THEN ? ELSE locked_until END", threshold, lockUntil),
	})
	if res.Error != nil {
		return nil, wrap(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.ByID(ctx, id)
}

func (s *GormStore) ResetFailedLogins(ctx context.Context, id string) error {
	return s.update(ctx, id, map[string]interface{}{
		"failed_logins": 0,
		"locked_until":  nil,
	})
}

func (s *GormStore) UpdatePasswordHash(ctx context.Context, id, hash string, changedAt *time.Time) error {
	fields := map[string]interface{}{
		"password_hash": hash,
		"failed_logins": 0,
		"locked_until":  nil,
	}
	if changedAt != nil {
		fields["password_changed_at"] = *changedAt
	}
	return s.update(ctx, id, fields)
}

func (s *GormStore) MarkVerified(ctx context.Context, id string) error {
	return s.update(ctx, id, map[string]interface{}{"verified": true})
}

func (s *GormStore) SetRole(ctx context.Context, id string, role permission.Role) error {
	return s.update(ctx, id, map[string]interface{}{"role": role})
}

func (s *GormStore) SetActive(ctx context.Context, id string, active bool) error {
	return s.update(ctx, id, map[string]interface{}{"active": active})
}

func (s *GormStore) SetTOTP(ctx context.Context, id, secret string, enabled bool) error {
	return s.update(ctx, id, map[string]interface{}{
		"totp_secret":       secret,
		"totp_enabled":      enabled,
		"totp_last_counter": 0,
	})
}

func (s *GormStore) AdvanceTOTPCounter(ctx context.Context, id string, counter int64) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&Account{}).
		Where("id = ? AND totp_last_counter < ?", id, counter).
		Update("totp_last_counter", counter)
	if res.Error != nil {
		return false, wrap(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Where("id = ?", id).Delete(&Account{})
	if res.Error != nil {
		return wrap(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return wrap(err)
	}
	return wrap(sqlDB.PingContext(ctx))
}

func (s *GormStore) update(ctx context.Context, id string, fields map[string]interface{}) error {
	res := s.DB.WithContext(ctx).Model(&Account{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return wrap(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
