package crossAuth

import (
	"errors"
	"strings"
	"time"
)

// Config is the engine configuration tree. Populate it once, pass it to the
// Builder, and treat it as immutable afterwards.
type Config struct {
	JWT      JWTConfig
	TOTP     TOTPConfig
	MFALogin MFALoginConfig
	SSO      SSOConfig
	Password PasswordConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// JWTConfig controls the issued access/refresh token pair.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "ed25519" (default) or "hs256"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
}

// TOTPConfig controls code generation and verification.
type TOTPConfig struct {
	Issuer    string
	Digits    int
	Period    int
	Algorithm string
	Skew      int

	BackupCodeCount       int
	BackupCodeMaxAttempts int
	BackupCodeCooldown    time.Duration
	TOTPMaxAttempts       int
	TOTPCooldown          time.Duration
}

// MFALoginConfig controls the login challenge issued when an account has an
// active MFA device.
type MFALoginConfig struct {
	ChallengeTTL time.Duration
	MaxAttempts  int
}

// SSOConfig controls the cross-website handoff tokens.
type SSOConfig struct {
	TokenTTL    time.Duration
	RedisPrefix string
}

// PasswordConfig carries the argon2id cost parameters.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// SecurityConfig carries login throttling policy.
type SecurityConfig struct {
	EnableLoginThrottle   bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
}

// AuditConfig controls the audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     5 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "ed25519",
		},
		TOTP: TOTPConfig{
			Digits:                6,
			Period:                30,
			Algorithm:             "SHA1",
			Skew:                  1,
			BackupCodeCount:       10,
			BackupCodeMaxAttempts: 5,
			BackupCodeCooldown:    10 * time.Minute,
			TOTPMaxAttempts:       5,
			TOTPCooldown:          time.Minute,
		},
		MFALogin: MFALoginConfig{
			ChallengeTTL: 5 * time.Minute,
			MaxAttempts:  5,
		},
		SSO: SSOConfig{
			TokenTTL:    5 * time.Minute,
			RedisPrefix: "xa",
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Security: SecurityConfig{
			EnableLoginThrottle:   true,
			MaxLoginAttempts:      5,
			LoginCooldownDuration: 15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must exceed AccessTTL")
	}
	if c.JWT.SigningMethod != "ed25519" && c.JWT.SigningMethod != "hs256" {
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.SigningMethod == "ed25519" && (len(c.JWT.PrivateKey) == 0 || len(c.JWT.PublicKey) == 0) {
		return errors.New("ed25519 requires PrivateKey and PublicKey")
	}
	if c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) == 0 {
		return errors.New("hs256 requires PrivateKey")
	}

	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return errors.New("TOTP Digits must be 6 or 8")
	}
	if c.TOTP.Period < 15 {
		return errors.New("TOTP Period must be >= 15 seconds")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 2 {
		return errors.New("TOTP Skew must be between 0 and 2")
	}
	switch strings.ToUpper(c.TOTP.Algorithm) {
	case "", "SHA1", "SHA256", "SHA512":
	default:
		return errors.New("TOTP Algorithm must be SHA1, SHA256, or SHA512")
	}
	if c.TOTP.BackupCodeCount <= 0 {
		return errors.New("TOTP BackupCodeCount must be > 0")
	}
	if c.TOTP.BackupCodeMaxAttempts <= 0 || c.TOTP.BackupCodeCooldown <= 0 {
		return errors.New("TOTP backup code limiter must be configured")
	}
	if c.TOTP.TOTPMaxAttempts <= 0 || c.TOTP.TOTPCooldown <= 0 {
		return errors.New("TOTP attempt limiter must be configured")
	}

	if c.MFALogin.ChallengeTTL <= 0 {
		return errors.New("MFALogin ChallengeTTL must be > 0")
	}
	if c.MFALogin.MaxAttempts <= 0 {
		return errors.New("MFALogin MaxAttempts must be > 0")
	}

	if c.SSO.TokenTTL <= 0 {
		return errors.New("SSO TokenTTL must be > 0")
	}
	if c.SSO.TokenTTL > 15*time.Minute {
		return errors.New("SSO TokenTTL must be <= 15m")
	}
	if c.SSO.RedisPrefix == "" {
		return errors.New("SSO RedisPrefix must not be empty")
	}

	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	if c.Security.EnableLoginThrottle {
		if c.Security.MaxLoginAttempts <= 0 {
			return errors.New("MaxLoginAttempts must be > 0 when login throttle is enabled")
		}
		if c.Security.LoginCooldownDuration <= 0 {
			return errors.New("LoginCooldownDuration must be > 0 when login throttle is enabled")
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
