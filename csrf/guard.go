package csrf

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalid covers a malformed token, a bad signature and a token bound
	// to another session.
	ErrInvalid = errors.New("csrf: invalid token")
	// ErrExpired is returned when the token is older than the max age or
	// dated too far in the future.
	ErrExpired = errors.New("csrf: token expired")
)

const (
	// DefaultMaxAge matches the lifetime of the csrf cookie.
	DefaultMaxAge = time.Hour
	// FutureSkew tolerates clock drift between instances.
	FutureSkew = 30 * time.Second

	minSecretBytes = 32
)

// Guard issues and verifies CSRF tokens bound to a session id:
//
//	<unix-seconds>.<hex(HMAC-SHA256(secret, "<sid>:<unix-seconds>"))>
type Guard struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewGuard creates a [Guard]. maxAge <= 0 selects [DefaultMaxAge].
func NewGuard(secret []byte, maxAge time.Duration, now func() time.Time) (*Guard, error) {
	if len(secret) < minSecretBytes {
		return nil, errors.New("csrf: secret must be at least 32 bytes")
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if now == nil {
		now = time.Now
	}
	return &Guard{secret: append([]byte(nil), secret...), maxAge: maxAge, now: now}, nil
}

// MaxAge returns the configured token lifetime.
func (g *Guard) MaxAge() time.Duration { return g.maxAge }

// Generate returns a token for sessionID stamped with the current time.
func (g *Guard) Generate(sessionID string) string {
	ts := strconv.FormatInt(g.now().Unix(), 10)
	return ts + "." + g.sign(sessionID, ts)
}

// Verify checks token against sessionID with the configured max age.
func (g *Guard) Verify(token, sessionID string) error {
	return g.VerifyMaxAge(token, sessionID, g.maxAge)
}

// VerifyMaxAge checks token against sessionID and rejects tokens older than
// maxAge.
func (g *Guard) VerifyMaxAge(token, sessionID string, maxAge time.Duration) error {
	if sessionID == "" {
		return ErrInvalid
	}
	ts, sig, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok || ts == "" || sig == "" {
		return ErrInvalid
	}
	issued, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrInvalid
	}

	expected := g.sign(sessionID, ts)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return ErrInvalid
	}

	age := g.now().Sub(time.Unix(issued, 0))
	if age > maxAge || age < -FutureSkew {
		return ErrExpired
	}
	return nil
}

func (g *Guard) sign(sessionID, ts string) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(sessionID))
	mac.Write([]byte{':'})
	mac.Write([]byte(ts))
	return hex.EncodeToString(mac.Sum(nil))
}
