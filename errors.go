package crossAuth

import "errors"

var (
	// ErrUnauthorized is the generic rejection for invalid or expired
	// access tokens.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials covers unknown identifier, wrong password, and
	// inactive account alike so a caller cannot probe which one failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned by operations addressed to a user id
	// directly, never by login.
	ErrUserNotFound = errors.New("user not found")
	// ErrWebsiteNotFound marks a website id with no active record.
	ErrWebsiteNotFound = errors.New("website not found")
	// ErrWebsiteInactive marks a known website that is disabled.
	ErrWebsiteInactive = errors.New("website inactive")
	// ErrValidation wraps malformed-input failures.
	ErrValidation = errors.New("validation failed")
	// ErrLoginRateLimited signals the per-identifier login throttle.
	ErrLoginRateLimited = errors.New("login rate limited")

	// ErrMFARequired is returned by Login when the account has an active
	// MFA device and the caller must complete the challenge flow.
	ErrMFARequired = errors.New("mfa required")
	// ErrMFAInvalid covers a wrong TOTP or backup code.
	ErrMFAInvalid = errors.New("invalid mfa code")
	// ErrMFANotConfigured marks operations that need an active device.
	ErrMFANotConfigured = errors.New("mfa not configured")
	// ErrMFAAlreadyActive rejects a second setup while a device is active.
	ErrMFAAlreadyActive = errors.New("mfa device already active")
	// ErrMFASetupNotPending rejects confirmation without a pending setup.
	ErrMFASetupNotPending = errors.New("mfa setup not pending")
	// ErrMFARateLimited signals the TOTP attempt throttle.
	ErrMFARateLimited = errors.New("mfa attempts rate limited")
	// ErrMFAUnavailable wraps MFA backend faults.
	ErrMFAUnavailable = errors.New("mfa backend unavailable")
	// ErrBackupCodeInvalid covers an unknown or already consumed backup code.
	ErrBackupCodeInvalid = errors.New("invalid backup code")
	// ErrBackupCodeRateLimited signals the backup code attempt throttle.
	ErrBackupCodeRateLimited = errors.New("backup code rate limited")
	// ErrBackupCodeUnavailable wraps backup code backend faults.
	ErrBackupCodeUnavailable = errors.New("backup code backend unavailable")

	// ErrMFAChallengeInvalid marks an unknown login challenge handle.
	ErrMFAChallengeInvalid = errors.New("mfa challenge invalid")
	// ErrMFAChallengeExpired marks a challenge past its TTL; the client
	// must restart login rather than retry the code.
	ErrMFAChallengeExpired = errors.New("mfa challenge expired")
	// ErrMFAChallengeAttempts marks a challenge burned by too many wrong
	// codes.
	ErrMFAChallengeAttempts = errors.New("mfa challenge attempts exceeded")
	// ErrMFAChallengeReplay marks a concurrent double confirmation.
	ErrMFAChallengeReplay = errors.New("mfa challenge replay detected")
	// ErrMFAChallengeUnavailable wraps challenge store faults.
	ErrMFAChallengeUnavailable = errors.New("mfa challenge backend unavailable")

	// ErrSSOTokenInvalid covers unknown, expired, and website-mismatched
	// SSO tokens. A client that sees it restarts the handoff.
	ErrSSOTokenInvalid = errors.New("sso token invalid or expired")
	// ErrSSOTokenConsumed marks a token that was already redeemed.
	// Distinct from ErrSSOTokenInvalid so replay can be audited.
	ErrSSOTokenConsumed = errors.New("sso token already used")
	// ErrSSOUnavailable wraps SSO token store faults.
	ErrSSOUnavailable = errors.New("sso backend unavailable")

	// ErrPermissionDenied is returned by enforcement helpers.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrPermissionUnavailable wraps permission provider faults.
	ErrPermissionUnavailable = errors.New("permission backend unavailable")

	// ErrRefreshInvalid marks an unusable refresh token.
	ErrRefreshInvalid = errors.New("invalid refresh token")

	// ErrEngineNotReady is returned when a method is called on a nil or
	// partially built engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
