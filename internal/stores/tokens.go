package stores

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// ErrTokenNotFound is returned when a one-time token is unknown, expired or
// already consumed.
var ErrTokenNotFound = errors.New("one-time token not found")

const oneTimeTokenBytes = 32

// OneTimeTokens issues opaque single-use tokens bound to a subject.
type OneTimeTokens struct {
	keyed   Keyed
	purpose string
}

// NewOneTimeTokens returns a token store whose keys are namespaced by purpose
// ("verify", "reset", ...).
func NewOneTimeTokens(keyed Keyed, purpose string) *OneTimeTokens {
	return &OneTimeTokens{keyed: keyed, purpose: purpose}
}

func (t *OneTimeTokens) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "ott:" + t.purpose + ":" + hex.EncodeToString(sum[:])
}

// Issue stores a fresh token for subject and returns the plaintext.
func (t *OneTimeTokens) Issue(ctx context.Context, subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("one-time token subject empty")
	}

	raw := make([]byte, oneTimeTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	if err := t.keyed.Put(ctx, t.key(token), subject, ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Consume redeems token and returns its subject. A token can be consumed once.
func (t *OneTimeTokens) Consume(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrTokenNotFound
	}

	subject, ok, err := t.keyed.Take(ctx, t.key(token))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrTokenNotFound
	}
	return subject, nil
}
