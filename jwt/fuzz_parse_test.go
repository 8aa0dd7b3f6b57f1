package jwt

import (
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

// FuzzParse feeds arbitrary strings to the parser. It must never panic or
// return claims without an error.
func FuzzParse(f *testing.F) {
	mgr, err := NewManager(Config{
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("fuzz-secret-fuzz-secret-fuzz-secret!"),
		Issuer:        "fuzz",
		Leeway:        30 * time.Second,
	})
	if err != nil {
		f.Fatal(err)
	}

	valid, _, err := mgr.Sign(Claims{
		Kind:             KindAccess,
		SID:              "sid1",
		Role:             "customer",
		RegisteredClaims: gjwt.RegisteredClaims{Subject: "acct-1"},
	}, time.Minute)
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("not.a.jwt")
	f.Add("eyJhbGciOiJub25lIn0.eyJzdWIiOiJ0ZXN0In0.")

	f.Fuzz(func(t *testing.T, input string) {
		claims, err := mgr.Parse(input, KindAccess)
		if err == nil && claims == nil {
			t.Fatal("Parse returned nil claims without error")
		}
	})
}
