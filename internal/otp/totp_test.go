package otp

import (
	"encoding/base32"
	"strings"
	"testing"
	"time"
)

func TestRFC6238SHA1Vectors(t *testing.T) {
	m := TOTP{Issuer: "shop", Digits: 8, Period: 30, Skew: 0}
	secret := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString([]byte("12345678901234567890"))

	cases := []struct {
		ts   int64
		code string
	}{
		{59, "94287082"},
		{1111111109, "07081804"},
		{1111111111, "14050471"},
		{1234567890, "89005924"},
		{2000000000, "69279037"},
		{20000000000, "65353130"},
	}
	for _, tc := range cases {
		ok, _, err := m.Verify(secret, tc.code, time.Unix(tc.ts, 0))
		if err != nil || !ok {
			t.Fatalf("vector failed at t=%d, ok=%v err=%v", tc.ts, ok, err)
		}
	}
}

func TestVerifySkewWindow(t *testing.T) {
	m := Default("shop")
	secret, err := m.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	now := time.Unix(1_700_000_000, 0)
	code, err := m.Code(secret, now)
	if err != nil {
		t.Fatalf("Code: %v", err)
	}

	ok, counter, err := m.Verify(secret, code, now.Add(30*time.Second))
	if err != nil || !ok {
		t.Fatalf("one step of skew should pass: %v %v", ok, err)
	}
	if counter != now.Unix()/30 {
		t.Fatalf("matched counter = %d", counter)
	}

	if ok, _, _ := m.Verify(secret, code, now.Add(2*time.Minute)); ok {
		t.Fatal("code outside the skew window must fail")
	}
	if ok, _, _ := m.Verify(secret, "12ab56", now); ok {
		t.Fatal("non numeric code must fail")
	}
}

func TestProvisionURIAndBadSecret(t *testing.T) {
	m := Default("Health Shop")
	uri := m.ProvisionURI("JBSWY3DPEHPK3PXP", "ann@shop.test")
	if !strings.HasPrefix(uri, "otpauth://totp/Health%20Shop:ann@shop.test?") {
		t.Fatalf("unexpected uri %s", uri)
	}
	if !strings.Contains(uri, "secret=JBSWY3DPEHPK3PXP") {
		t.Fatalf("secret missing from uri %s", uri)
	}
	if _, _, err := m.Verify("not base32!", "123456", time.Now()); err != ErrBadSecret {
		t.Fatalf("expected ErrBadSecret, got %v", err)
	}
}
