package authcore

import (
	"net/http"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults with secrets",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "short jwt secret",
			mutate: func(c *Config) {
				c.JWT.PrivateKey = []byte("too-short")
			},
		},
		{
			name: "refresh shorter than access",
			mutate: func(c *Config) {
				c.JWT.RefreshTTL = time.Minute
			},
		},
		{
			name: "unknown signing method",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "rs256"
			},
		},
		{
			name: "missing csrf secret",
			mutate: func(c *Config) {
				c.CSRF.Secret = nil
			},
		},
		{
			name: "samesite none without secure",
			mutate: func(c *Config) {
				c.Cookie.SameSite = http.SameSiteNoneMode
				c.Cookie.Secure = false
			},
		},
		{
			name: "zero login budget",
			mutate: func(c *Config) {
				c.RateLimit.LoginPerIP = RatePolicy{}
			},
		},
		{
			name: "policy min length below floor",
			mutate: func(c *Config) {
				c.PasswordPolicy.MinLength = 4
			},
		},
		{
			name: "totp skew too wide",
			mutate: func(c *Config) {
				c.TOTP.Skew = 5
			},
		},
		{
			name: "zero store timeout",
			mutate: func(c *Config) {
				c.Store.OperationTimeout = 0
			},
		},
		{
			name: "jwt only mode",
			mutate: func(c *Config) {
				c.ValidationMode = ModeJWTOnly
			},
			wantValid: true,
		},
		{
			name: "bad validation mode",
			mutate: func(c *Config) {
				c.ValidationMode = ValidationMode(9)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCloneConfigCopiesSecrets(t *testing.T) {
	cfg := testConfig()
	clone := cloneConfig(cfg)
	clone.JWT.PrivateKey[0] = 'X'
	clone.CSRF.Secret[0] = 'X'

	if cfg.JWT.PrivateKey[0] == 'X' || cfg.CSRF.Secret[0] == 'X' {
		t.Fatal("clone shares secret buffers with the original")
	}
}
