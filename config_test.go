package crossAuth

import (
	"strings"
	"testing"
	"time"
)

func validHS256Config() Config {
	cfg := defaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("test-signing-secret-0123456789abcdef")
	return cfg
}

func TestConfigValidateAcceptsDefaultsWithKeys(t *testing.T) {
	cfg := validHS256Config()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	ed := defaultConfig()
	ed.JWT.PrivateKey = []byte("ed25519-private-key-material")
	ed.JWT.PublicKey = []byte("ed25519-public-key-material")
	if err := ed.Validate(); err != nil {
		t.Fatalf("expected valid ed25519 config, got %v", err)
	}
}

func TestConfigValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"zero access ttl", func(c *Config) { c.JWT.AccessTTL = 0 }, "AccessTTL"},
		{"refresh not beyond access", func(c *Config) { c.JWT.RefreshTTL = c.JWT.AccessTTL }, "RefreshTTL"},
		{"unknown signing method", func(c *Config) { c.JWT.SigningMethod = "rs256" }, "signing method"},
		{"hs256 without key", func(c *Config) { c.JWT.PrivateKey = nil }, "hs256"},
		{"ed25519 without public key", func(c *Config) {
			c.JWT.SigningMethod = "ed25519"
			c.JWT.PublicKey = nil
		}, "ed25519"},
		{"odd digit count", func(c *Config) { c.TOTP.Digits = 7 }, "Digits"},
		{"short period", func(c *Config) { c.TOTP.Period = 10 }, "Period"},
		{"wide skew", func(c *Config) { c.TOTP.Skew = 3 }, "Skew"},
		{"bad totp algorithm", func(c *Config) { c.TOTP.Algorithm = "MD5" }, "Algorithm"},
		{"no backup codes", func(c *Config) { c.TOTP.BackupCodeCount = 0 }, "BackupCodeCount"},
		{"backup limiter off", func(c *Config) { c.TOTP.BackupCodeCooldown = 0 }, "backup code limiter"},
		{"totp limiter off", func(c *Config) { c.TOTP.TOTPMaxAttempts = 0 }, "attempt limiter"},
		{"zero challenge ttl", func(c *Config) { c.MFALogin.ChallengeTTL = 0 }, "ChallengeTTL"},
		{"zero challenge attempts", func(c *Config) { c.MFALogin.MaxAttempts = 0 }, "MaxAttempts"},
		{"zero sso ttl", func(c *Config) { c.SSO.TokenTTL = 0 }, "TokenTTL"},
		{"oversized sso ttl", func(c *Config) { c.SSO.TokenTTL = time.Hour }, "TokenTTL"},
		{"empty sso prefix", func(c *Config) { c.SSO.RedisPrefix = "" }, "RedisPrefix"},
		{"weak argon memory", func(c *Config) { c.Password.Memory = 1024 }, "Memory"},
		{"zero argon time", func(c *Config) { c.Password.Time = 0 }, "Time"},
		{"zero parallelism", func(c *Config) { c.Password.Parallelism = 0 }, "Parallelism"},
		{"short salt", func(c *Config) { c.Password.SaltLength = 8 }, "SaltLength"},
		{"short key", func(c *Config) { c.Password.KeyLength = 8 }, "KeyLength"},
		{"throttle without attempts", func(c *Config) { c.Security.MaxLoginAttempts = 0 }, "MaxLoginAttempts"},
		{"throttle without cooldown", func(c *Config) { c.Security.LoginCooldownDuration = 0 }, "LoginCooldownDuration"},
		{"audit without buffer", func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.BufferSize = 0
		}, "BufferSize"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validHS256Config()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Fatalf("error %q does not mention %q", err, tc.wantMsg)
			}
		})
	}
}

func TestConfigValidateThrottleDisabledIgnoresLimits(t *testing.T) {
	cfg := validHS256Config()
	cfg.Security.EnableLoginThrottle = false
	cfg.Security.MaxLoginAttempts = 0
	cfg.Security.LoginCooldownDuration = 0

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected disabled throttle to skip limit checks, got %v", err)
	}
}

func TestCloneConfigCopiesKeyMaterial(t *testing.T) {
	cfg := validHS256Config()
	cfg.JWT.PublicKey = []byte("public-material")

	cloned := cloneConfig(cfg)
	cloned.JWT.PrivateKey[0] = 'X'
	cloned.JWT.PublicKey[0] = 'X'

	if cfg.JWT.PrivateKey[0] == 'X' || cfg.JWT.PublicKey[0] == 'X' {
		t.Fatal("expected cloned key material to be independent")
	}
}
