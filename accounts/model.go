package accounts

import (
	"strings"
	"time"

	"github.com/MrEthical07/authcore/permission"
)

// Account is a shop customer or staff member.
type Account struct {
	ID           string          `gorm:"primaryKey;size:36" json:"id"`
	Email        string          `gorm:"size:254;not null;uniqueIndex" json:"email"`
	Username     string          `gorm:"size:64;not null;uniqueIndex" json:"username"`
	FullName     string          `gorm:"size:200" json:"fullName"`
	PasswordHash string          `gorm:"not null" json:"-"`
	Role         permission.Role `gorm:"size:32;not null" json:"role"`
	Active       bool            `gorm:"not null" json:"active"`
	Verified     bool            `gorm:"not null" json:"verified"`

	FailedLogins      int        `gorm:"not null;default:0" json:"-"`
	LockedUntil       *time.Time `json:"-"`
	PasswordChangedAt *time.Time `json:"-"`

	TOTPSecret      string `gorm:"size:64" json:"-"`
	TOTPEnabled     bool   `gorm:"not null" json:"totpEnabled"`
	TOTPLastCounter int64  `gorm:"not null;default:0" json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"-"`
}

// Locked reports whether the account is locked at now.
func (a *Account) Locked(now time.Time) bool {
	return a.LockedUntil != nil && a.LockedUntil.After(now)
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeUsername lowercases and trims a username.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
