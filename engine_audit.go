package crossAuth

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventLoginRateLimited     = "login_rate_limited"
	auditEventRefreshSuccess       = "refresh_success"
	auditEventRefreshInvalid       = "refresh_invalid"
	auditEventMFARequired          = "mfa_required"
	auditEventMFASuccess           = "mfa_success"
	auditEventMFAFailure           = "mfa_failure"
	auditEventMFAAttemptsExceeded  = "mfa_attempts_exceeded"
	auditEventMFASetupStarted      = "mfa_setup_started"
	auditEventMFASetupConfirmed    = "mfa_setup_confirmed"
	auditEventMFADisabled          = "mfa_disabled"
	auditEventBackupCodesGenerated = "backup_codes_generated"
	auditEventBackupCodeUsed       = "backup_code_used"
	auditEventBackupCodeFailed     = "backup_code_failed"
	auditEventSSOTokenIssued       = "sso_token_issued"
	auditEventSSOTokenRedeemed     = "sso_token_redeemed"
	auditEventSSOTokenRejected     = "sso_token_rejected"
	auditEventSSOTokenReplayed     = "sso_token_replayed"
	auditEventSSOIPMismatch        = "sso_ip_mismatch"
	auditEventSSOLogout            = "sso_logout"
	auditEventPermissionDenied     = "permission_denied"
)

// AuditErrorCode is the normalized error label carried in AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrUnauthorized        AuditErrorCode = "unauthorized"
	auditErrInvalidCredentials  AuditErrorCode = "invalid_credentials"
	auditErrRateLimited         AuditErrorCode = "rate_limited"
	auditErrUserNotFound        AuditErrorCode = "user_not_found"
	auditErrWebsiteNotFound     AuditErrorCode = "website_not_found"
	auditErrWebsiteInactive     AuditErrorCode = "website_inactive"
	auditErrValidation          AuditErrorCode = "validation"
	auditErrMFARequired         AuditErrorCode = "mfa_required"
	auditErrMFAInvalid          AuditErrorCode = "mfa_invalid"
	auditErrMFANotConfigured    AuditErrorCode = "mfa_not_configured"
	auditErrMFAAttemptsExceeded AuditErrorCode = "mfa_attempts_exceeded"
	auditErrMFAReplay           AuditErrorCode = "mfa_replay"
	auditErrBackupCodeInvalid   AuditErrorCode = "backup_code_invalid"
	auditErrSSOTokenInvalid     AuditErrorCode = "sso_token_invalid"
	auditErrSSOTokenConsumed    AuditErrorCode = "sso_token_consumed"
	auditErrPermissionDenied    AuditErrorCode = "permission_denied"
	auditErrInvalidToken        AuditErrorCode = "invalid_token"
	auditErrUnavailable         AuditErrorCode = "backend_unavailable"
	auditErrInternal            AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	websiteID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		WebsiteID: websiteID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrMFARateLimited),
		errors.Is(err, ErrBackupCodeRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrWebsiteNotFound):
		return auditErrWebsiteNotFound
	case errors.Is(err, ErrWebsiteInactive):
		return auditErrWebsiteInactive
	case errors.Is(err, ErrValidation):
		return auditErrValidation
	case errors.Is(err, ErrMFARequired):
		return auditErrMFARequired
	case errors.Is(err, ErrMFAInvalid),
		errors.Is(err, ErrMFAChallengeInvalid),
		errors.Is(err, ErrMFAChallengeExpired),
		errors.Is(err, ErrMFASetupNotPending),
		errors.Is(err, ErrMFAAlreadyActive):
		return auditErrMFAInvalid
	case errors.Is(err, ErrMFANotConfigured):
		return auditErrMFANotConfigured
	case errors.Is(err, ErrMFAChallengeAttempts):
		return auditErrMFAAttemptsExceeded
	case errors.Is(err, ErrMFAChallengeReplay):
		return auditErrMFAReplay
	case errors.Is(err, ErrBackupCodeInvalid):
		return auditErrBackupCodeInvalid
	case errors.Is(err, ErrSSOTokenConsumed):
		return auditErrSSOTokenConsumed
	case errors.Is(err, ErrSSOTokenInvalid):
		return auditErrSSOTokenInvalid
	case errors.Is(err, ErrPermissionDenied):
		return auditErrPermissionDenied
	case errors.Is(err, ErrRefreshInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrMFAUnavailable),
		errors.Is(err, ErrMFAChallengeUnavailable),
		errors.Is(err, ErrBackupCodeUnavailable),
		errors.Is(err, ErrSSOUnavailable),
		errors.Is(err, ErrPermissionUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
