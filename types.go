package authcore

import (
	"io"
	"slices"
	"time"

	"github.com/MrEthical07/authcore/accounts"
	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/notify"
	"github.com/MrEthical07/authcore/permission"
	"github.com/rs/zerolog"
)

// ValidationMode selects how much Authorize checks beyond the token itself.
type ValidationMode int

const (
	// ModeStrict also requires the backing session to be alive, so logout
	// and revoke-all take effect immediately.
	ModeStrict ValidationMode = iota
	// ModeJWTOnly checks signature, expiry, kind and the revocation set.
	ModeJWTOnly
)

func (m ValidationMode) String() string {
	switch m {
	case ModeStrict:
		return "strict"
	case ModeJWTOnly:
		return "jwt_only"
	default:
		return "unknown"
	}
}

// Principal is the authenticated caller of a request.
type Principal struct {
	AccountID   string
	SessionID   string
	Role        permission.Role
	Permissions []string
	TokenID     string
	ExpiresAt   time.Time
}

// HasPermission reports whether the access token carried perm.
func (p *Principal) HasPermission(perm string) bool {
	return p != nil && slices.Contains(p.Permissions, perm)
}

// AtLeast reports whether the principal's role ranks at or above min.
func (p *Principal) AtLeast(min permission.Role) bool {
	return p != nil && p.Role.AtLeast(min)
}

// AccountView is the account summary returned to clients.
type AccountView struct {
	ID          string          `json:"id"`
	Email       string          `json:"email"`
	Username    string          `json:"username"`
	FullName    string          `json:"fullName"`
	Role        permission.Role `json:"role"`
	Verified    bool            `json:"verified"`
	Active      bool            `json:"active"`
	TOTPEnabled bool            `json:"totpEnabled"`
	CreatedAt   time.Time       `json:"createdAt"`
}

func viewOf(a *accounts.Account) *AccountView {
	if a == nil {
		return nil
	}
	return &AccountView{
		ID:          a.ID,
		Email:       a.Email,
		Username:    a.Username,
		FullName:    a.FullName,
		Role:        a.Role,
		Verified:    a.Verified,
		Active:      a.Active,
		TOTPEnabled: a.TOTPEnabled,
		CreatedAt:   a.CreatedAt,
	}
}

// Tokens is the credential set handed to a client after login or refresh.
type Tokens struct {
	SessionID        string
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	CSRFToken        string
}

// LoginInput is one login attempt.
type LoginInput struct {
	Email    string
	Password string
	// TOTPCode is required for accounts with two-factor enabled.
	TOTPCode string
}

// LoginResult is a successful login.
type LoginResult struct {
	Account *AccountView
	Tokens  Tokens
}

// RegisterInput is a self-service signup request.
type RegisterInput struct {
	Email    string
	Username string
	FullName string
	Password string
}

// TOTPSetup is the pending two-factor secret shown to the user once.
type TOTPSetup struct {
	Secret string `json:"secret"`
	URI    string `json:"uri"`
}

// SessionInfo describes one live session of an account.
type SessionInfo struct {
	ID         string    `json:"id"`
	IP         string    `json:"ip,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUsedAt time.Time `json:"lastUsedAt"`
	Current    bool      `json:"current"`
}

// AuditEvent is an alias for the internal audit event type.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events.
type AuditSink = internalaudit.Sink

// NoOpSink drops audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink buffers audit events in a channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes audit events as JSON lines.
type JSONWriterSink = internalaudit.JSONWriterSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewLogSink writes audit events through log.
func NewLogSink(log zerolog.Logger) AuditSink {
	return internalaudit.NewLogSink(log)
}

// Notifier delivers verification and reset tokens to the mail pipeline.
type Notifier = notify.Notifier

// NotifyMessage is one out-of-band message.
type NotifyMessage = notify.Message
