package otp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrBadSecret is returned for secrets that are not valid base32.
var ErrBadSecret = errors.New("otp: invalid secret")

const secretBytes = 20

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// TOTP implements RFC 6238 with HMAC-SHA1, which is what authenticator apps
// expect by default.
type TOTP struct {
	Issuer string
	Digits int
	Period int
	// Skew is the number of periods accepted on either side of now.
	Skew int
}

// Default returns 6 digits, 30s period and a skew of one step.
func Default(issuer string) TOTP {
	return TOTP{Issuer: issuer, Digits: 6, Period: 30, Skew: 1}
}

// GenerateSecret returns a fresh base32 secret.
func (t TOTP) GenerateSecret() (string, error) {
	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return b32.EncodeToString(raw), nil
}

// ProvisionURI builds the otpauth:// URI shown as a QR code.
func (t TOTP) ProvisionURI(secret, account string) string {
	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", t.Issuer)
	v.Set("period", strconv.Itoa(t.Period))
	v.Set("digits", strconv.Itoa(t.Digits))
	v.Set("algorithm", "SHA1")

	return "otpauth://totp/" + url.PathEscape(t.Issuer+":"+account) + "?" + v.Encode()
}

// Verify checks code against secret at now. On success it returns the
// matched counter, which callers store to refuse replays.
func (t TOTP) Verify(secret, code string, now time.Time) (bool, int64, error) {
	key, err := b32.DecodeString(strings.ToUpper(strings.TrimSpace(secret)))
	if err != nil || len(key) == 0 {
		return false, 0, ErrBadSecret
	}
	counter := t.matchedCounter(key, code, now)
	if counter < 0 {
		return false, 0, nil
	}
	return true, counter, nil
}

// matchedCounter returns the counter whose code equals code, or -1.
func (t TOTP) matchedCounter(key []byte, code string, now time.Time) int64 {
	code = strings.TrimSpace(code)
	if len(code) != t.Digits || !numeric(code) {
		return -1
	}

	base := now.Unix() / int64(t.Period)
	for step := -t.Skew; step <= t.Skew; step++ {
		counter := base + int64(step)
		if counter < 0 {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(hotp(key, counter, t.Digits)), []byte(code)) == 1 {
			return counter
		}
	}
	return -1
}

// Code returns the code for secret at now. It is used by tests and by
// tooling that enrolls devices.
func (t TOTP) Code(secret string, now time.Time) (string, error) {
	key, err := b32.DecodeString(strings.ToUpper(strings.TrimSpace(secret)))
	if err != nil {
		return "", ErrBadSecret
	}
	return hotp(key, now.Unix()/int64(t.Period), t.Digits), nil
}

func hotp(key []byte, counter int64, digits int) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		int(sum[offset+1])<<16 |
		int(sum[offset+2])<<8 |
		int(sum[offset+3])

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", digits, bin%mod)
}

func numeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
