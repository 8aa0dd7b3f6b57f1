package authcore

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MrEthical07/authcore/internal/flows"
)

// Check returns an error wrapping [ErrWeakPassword] naming the first rule
// pw breaks.
func (p PasswordPolicyConfig) Check(pw string) error {
	n := utf8.RuneCountInString(pw)
	if n < p.MinLength {
		return fmt.Errorf("%w: at least %d characters", ErrWeakPassword, p.MinLength)
	}
	if p.MaxLength > 0 && n > p.MaxLength {
		return fmt.Errorf("%w: at most %d characters", ErrWeakPassword, p.MaxLength)
	}

	var upper, lower, digit, symbol bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			symbol = true
		}
	}

	switch {
	case p.RequireUpper && !upper:
		return fmt.Errorf("%w: needs an uppercase letter", ErrWeakPassword)
	case p.RequireLower && !lower:
		return fmt.Errorf("%w: needs a lowercase letter", ErrWeakPassword)
	case p.RequireDigit && !digit:
		return fmt.Errorf("%w: needs a digit", ErrWeakPassword)
	case p.RequireSymbol && !symbol:
		return fmt.Errorf("%w: needs a symbol", ErrWeakPassword)
	}
	return nil
}

const (
	maxEmailLength    = 254
	minUsernameLength = 1
	maxUsernameLength = 32
	maxFullNameLength = 100
)

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" || len(email) > maxEmailLength {
		return fmt.Errorf("%w: email", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: email", ErrInvalidInput)
	}
	return nil
}

func validateRegistration(in flows.RegisterInput) error {
	if err := validateEmail(in.Email); err != nil {
		return err
	}

	username := strings.TrimSpace(in.Username)
	if len(username) < minUsernameLength || len(username) > maxUsernameLength {
		return fmt.Errorf("%w: username must be %d-%d characters", ErrInvalidInput, minUsernameLength, maxUsernameLength)
	}
	for _, r := range username {
		if !(r == '_' || r == '.' || r == '-' || r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			return fmt.Errorf("%w: username may contain letters, digits, '.', '_' and '-'", ErrInvalidInput)
		}
	}

	if utf8.RuneCountInString(in.FullName) > maxFullNameLength {
		return fmt.Errorf("%w: full name too long", ErrInvalidInput)
	}
	return nil
}
