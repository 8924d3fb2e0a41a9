package crossAuth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/crossAuth/permission"
)

// UserRecord is the account record returned by [UserProvider]. Inactive
// accounts are treated exactly like unknown identifiers at login.
type UserRecord struct {
	UserID       string
	Email        string
	Username     string
	FullName     string
	PasswordHash string
	Active       bool
	Superuser    bool
	Staff        bool
}

// WebsiteRecord describes one website participating in the SSO federation.
type WebsiteRecord struct {
	ID                uuid.UUID
	Name              string
	Domain            string
	Active            bool
	AutoRegisterUsers bool
}

// MFADeviceRecord is the TOTP device state persisted by [MFAProvider].
// A device exists in one of two states: pending (created by setup, not yet
// confirmed) or active. Backup codes are stored hashed; the plaintext is
// returned to the user exactly once at generation time.
type MFADeviceRecord struct {
	UserID      string
	Secret      []byte
	Active      bool
	BackupCodes []BackupCodeRecord
	ActivatedAt time.Time
	LastUsedAt  time.Time
}

// BackupCodeRecord stores the SHA-256 hash of a single recovery code.
type BackupCodeRecord struct {
	Hash [32]byte
}

// MFASetup is returned by [Engine.BeginMFASetup]. BackupCodes holds the
// plaintext recovery codes for one-time display.
type MFASetup struct {
	SecretBase32 string
	URI          string
	BackupCodes  []string
}

// MFAStatusInfo is the read-only device summary from [Engine.MFAStatus].
type MFAStatusInfo struct {
	Configured      bool
	Active          bool
	BackupCodesLeft int
	ActivatedAt     time.Time
	LastUsedAt      time.Time
}

// SSOTokenRecord is the stored state of one handoff token. The store keys
// records by a digest of the opaque token string, never the token itself.
type SSOTokenRecord struct {
	UserID    string
	WebsiteID uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
	Used      bool
	UsedAt    time.Time
	IPAddress string
	UserAgent string
}

// SSOGrant is returned by [Engine.InitiateSSO].
type SSOGrant struct {
	Token       string
	RedirectURL string
	ExpiresAt   time.Time
}

// SessionTokens is an issued access/refresh pair.
type SessionTokens struct {
	AccessToken  string
	RefreshToken string
}

// LoginResult is the discriminated outcome of [Engine.LoginWithResult] and
// [Engine.ConfirmLoginMFA]. Exactly one of the two branches is populated:
// tokens on success, or MFARequired with a challenge handle.
type LoginResult struct {
	AccessToken  string
	RefreshToken string

	MFARequired  bool
	MFAType      string
	MFAChallenge string
}

// AuthResult carries the verified identity from [Engine.ValidateAccess].
type AuthResult struct {
	UserID    string
	WebsiteID string
	SessionID string
}

// UserProvider is the caller-supplied account lookup. Implementations must
// not distinguish "unknown" from "inactive" in timing-observable ways beyond
// what the engine already leaks.
type UserProvider interface {
	GetUserByIdentifier(ctx context.Context, identifier string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
}

// MFAProvider persists TOTP devices and backup codes.
//
// GetDevice returns (nil, nil) when the user has no device; errors are
// reserved for backend failures.
//
// ConsumeBackupCode must be atomic: when two concurrent calls present the
// same code hash, at most one may return true.
type MFAProvider interface {
	GetDevice(ctx context.Context, userID string) (*MFADeviceRecord, error)
	SaveDevice(ctx context.Context, device *MFADeviceRecord) error
	DeleteDevice(ctx context.Context, userID string) error
	ReplaceBackupCodes(ctx context.Context, userID string, codes []BackupCodeRecord) error
	ConsumeBackupCode(ctx context.Context, userID string, codeHash [32]byte) (bool, error)
	TouchDevice(ctx context.Context, userID string, usedAt time.Time) error
}

// PermissionProvider loads the raw material for permission resolution.
// The engine treats any error as "no permissions" on the boolean surfaces.
type PermissionProvider interface {
	UserAssignments(ctx context.Context, userID string) ([]permission.RoleAssignment, error)
	UserGrants(ctx context.Context, userID string) ([]permission.DirectGrant, error)
	AllPermissions(ctx context.Context) ([]permission.Permission, error)
}

// WebsiteProvider resolves websites and applies the per-website access rule
// after a successful login or SSO exchange. EnsureAccess decides between
// auto-registration and explicit-grant enforcement for the website.
type WebsiteProvider interface {
	GetWebsite(ctx context.Context, id uuid.UUID) (WebsiteRecord, error)
	EnsureAccess(ctx context.Context, userID string, websiteID uuid.UUID) error
}

// SessionRecorder receives a notification for every issued session.
// Calls are fire-and-forget; errors are audited, never surfaced.
type SessionRecorder interface {
	RecordSession(ctx context.Context, userID, websiteID, sessionID, ip, userAgent string)
}

// SSOTokenStore is the handoff token state machine. The default Redis
// implementation is wired by the Builder; the interface exists so tests and
// alternative backends can substitute one.
type SSOTokenStore interface {
	// Create persists a fresh token record under the token's digest.
	Create(ctx context.Context, token string, record *SSOTokenRecord, ttl time.Duration) error
	// AtomicRedeem marks the token used iff it is live and bound to
	// websiteID. Exactly one concurrent caller can win.
	AtomicRedeem(ctx context.Context, token string, websiteID uuid.UUID) (*SSOTokenRecord, error)
	// Peek reads the record without consuming it.
	Peek(ctx context.Context, token string) (*SSOTokenRecord, error)
	// InvalidateAllForUser marks every outstanding token for the user used.
	InvalidateAllForUser(ctx context.Context, userID string) (int, error)
}
