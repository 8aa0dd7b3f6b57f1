package authcore

import (
	"errors"
	"strings"
	"testing"

	"github.com/MrEthical07/authcore/internal/flows"
)

func TestPasswordPolicy(t *testing.T) {
	p := DefaultConfig().PasswordPolicy
	cases := map[string]bool{
		"Passw0rd!":               true,
		"short1!":                 false,
		"alllowercase1!":          false,
		"ALLUPPERCASE1!":          false,
		"NoDigitsHere!":           false,
		"NoSymbols123":            false,
		strings.Repeat("Aa1!", 40): false,
	}
	for pw, ok := range cases {
		err := p.Check(pw)
		if ok && err != nil {
			t.Fatalf("Check(%q) = %v, want nil", pw, err)
		}
		if !ok && !errors.Is(err, ErrWeakPassword) {
			t.Fatalf("Check(%q) = %v, want ErrWeakPassword", pw, err)
		}
	}
}

func TestValidateRegistration(t *testing.T) {
	valid := flows.RegisterInput{Email: "ann@shop.test", Username: "ann.b-c_d", FullName: "Ann"}
	if err := validateRegistration(valid); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}
	short := flows.RegisterInput{Email: "a@x.com", Username: "au", FullName: "Au"}
	if err := validateRegistration(short); err != nil {
		t.Fatalf("two-letter username rejected: %v", err)
	}

	bad := []flows.RegisterInput{
		{Email: "ann", Username: "ann"},
		{Email: "Ann <ann@shop.test>", Username: "ann"},
		{Email: "ann@shop.test", Username: ""},
		{Email: "ann@shop.test", Username: "  "},
		{Email: "ann@shop.test", Username: strings.Repeat("a", 33)},
		{Email: "ann@shop.test", Username: "ann!"},
		{Email: "ann@shop.test", Username: "ännä"},
		{Email: "ann@shop.test", Username: "ann", FullName: strings.Repeat("x", 101)},
	}
	for _, in := range bad {
		if err := validateRegistration(in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("validateRegistration(%+v) = %v, want ErrInvalidInput", in, err)
		}
	}
}
