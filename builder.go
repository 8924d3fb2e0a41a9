package crossAuth

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/crossAuth/jwt"
	"github.com/MrEthical07/crossAuth/password"
	"github.com/MrEthical07/crossAuth/permission"
)

// Builder assembles an [Engine]. Chain the With* setters and call Build
// exactly once.
type Builder struct {
	config Config
	redis  *redis.Client

	userProvider       UserProvider
	mfaProvider        MFAProvider
	permissionProvider PermissionProvider
	registry           *permission.Registry
	websiteProvider    WebsiteProvider
	sessionRecorder    SessionRecorder
	ssoStore           SSOTokenStore
	auditSink          AuditSink

	built bool
}

// New returns a Builder seeded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the entire configuration tree.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing the SSO token store, the MFA challenge
// store, and all attempt limiters.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithUserProvider sets the account lookup. Required.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithMFAProvider sets the TOTP device persistence. Required when any MFA
// operation will be called.
func (b *Builder) WithMFAProvider(mp MFAProvider) *Builder {
	b.mfaProvider = mp
	return b
}

// WithPermissionProvider sets the role and grant source.
func (b *Builder) WithPermissionProvider(pp PermissionProvider) *Builder {
	b.permissionProvider = pp
	return b
}

// WithPermissionRegistry sets the deployment's declared codename set.
// When present, permission checks answer false for any codename that was
// never registered, and superuser resolution is clipped to the registered
// universe. Register every codename, [permission.Registry.Freeze], then
// hand the registry to the builder.
func (b *Builder) WithPermissionRegistry(r *permission.Registry) *Builder {
	b.registry = r
	return b
}

// WithWebsiteProvider sets the website lookup. Required.
func (b *Builder) WithWebsiteProvider(wp WebsiteProvider) *Builder {
	b.websiteProvider = wp
	return b
}

// WithSessionRecorder sets an optional session notification hook.
func (b *Builder) WithSessionRecorder(sr SessionRecorder) *Builder {
	b.sessionRecorder = sr
	return b
}

// WithSSOTokenStore overrides the default Redis-backed token store.
func (b *Builder) WithSSOTokenStore(store SSOTokenStore) *Builder {
	b.ssoStore = store
	return b
}

// WithAuditSink sets the destination for audit events and enables the
// dispatcher.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = true
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles resolve-latency histogram collection.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, wires every component, and returns the
// Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}
	if b.websiteProvider == nil {
		return nil, errors.New("website provider required")
	}
	if b.redis == nil && b.ssoStore == nil {
		return nil, errors.New("redis client required")
	}

	engine := &Engine{
		config:             cloneConfig(cfg),
		userProvider:       b.userProvider,
		mfaProvider:        b.mfaProvider,
		permissionProvider: b.permissionProvider,
		registry:           b.registry,
		websiteProvider:    b.websiteProvider,
		sessionRecorder:    b.sessionRecorder,
	}

	if b.ssoStore != nil {
		engine.ssoStore = b.ssoStore
	} else {
		engine.ssoStore = newRedisSSOTokenStore(b.redis, cfg.SSO.RedisPrefix)
	}

	if b.redis != nil {
		engine.challengeStore = newMFAChallengeStore(b.redis)
		engine.totpLimiter = newTOTPLimiter(b.redis, "xtp", cfg.TOTP.TOTPMaxAttempts, cfg.TOTP.TOTPCooldown)
		engine.backupLimiter = newBackupCodeLimiter(b.redis, cfg.TOTP)
		if cfg.Security.EnableLoginThrottle {
			engine.loginLimiter = newLoginLimiter(b.redis, cfg.Security)
		}
	}

	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.totp = newTOTPManager(cfg.TOTP)

	ph, err := password.NewHasher(password.Params{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	b.built = true

	return engine, nil
}
