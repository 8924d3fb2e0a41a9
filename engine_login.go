package crossAuth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/crossAuth/internal"
)

// Login authenticates and returns the token pair directly. Accounts with an
// active MFA device cannot use this path; they get [ErrMFARequired] and must
// go through [Engine.LoginWithResult] or [Engine.LoginWithMFA].
func (e *Engine) Login(ctx context.Context, identifier, password string) (string, string, error) {
	result, err := e.LoginWithResult(ctx, identifier, password)
	if err != nil {
		return "", "", err
	}
	if result == nil {
		return "", "", ErrEngineNotReady
	}
	if result.MFARequired {
		return "", "", ErrMFARequired
	}
	return result.AccessToken, result.RefreshToken, nil
}

// LoginWithMFA authenticates and, when the account has an active device,
// confirms the issued challenge with the given TOTP or backup code in one
// call.
func (e *Engine) LoginWithMFA(ctx context.Context, identifier, password, code string) (string, string, error) {
	result, err := e.LoginWithResult(ctx, identifier, password)
	if err != nil {
		return "", "", err
	}
	if result == nil {
		return "", "", ErrEngineNotReady
	}
	if result.MFARequired {
		result, err = e.ConfirmLoginMFA(ctx, result.MFAChallenge, code)
		if err != nil {
			return "", "", err
		}
	}
	return result.AccessToken, result.RefreshToken, nil
}

// LoginWithResult authenticates the identifier/password pair. On success the
// result carries the token pair; when the account has an active MFA device it
// instead carries a challenge handle for [Engine.ConfirmLoginMFA]. Unknown
// identifier, wrong password, and inactive account all surface as
// [ErrInvalidCredentials].
func (e *Engine) LoginWithResult(ctx context.Context, identifier, password string) (*LoginResult, error) {
	if e == nil || e.passwordHash == nil || e.userProvider == nil {
		return nil, ErrEngineNotReady
	}
	ip := clientIPFromContext(ctx)

	if e.loginLimiter != nil {
		if err := e.loginLimiter.Check(ctx, identifier, ip); err != nil {
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", "", ErrLoginRateLimited, func() map[string]string {
				return map[string]string{
					"identifier": identifier,
				}
			})
			return nil, ErrLoginRateLimited
		}
	}

	if password == "" {
		return nil, e.failLogin(ctx, identifier, "", "empty_password")
	}

	user, err := e.userProvider.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		return nil, e.failLogin(ctx, identifier, "", "user_not_found")
	}

	ok, err := e.passwordHash.Verify(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, e.failLogin(ctx, identifier, user.UserID, "password_mismatch")
	}
	if !user.Active {
		return nil, e.failLogin(ctx, identifier, user.UserID, "account_inactive")
	}
	password = ""

	if e.mfaProvider != nil {
		device, err := e.mfaProvider.GetDevice(ctx, user.UserID)
		if err != nil {
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, user.UserID, "", "", ErrMFAUnavailable, nil)
			return nil, ErrMFAUnavailable
		}
		if device != nil && device.Active {
			challengeID, err := e.createLoginChallenge(ctx, user.UserID)
			if err != nil {
				e.metricInc(MetricLoginFailure)
				e.emitAudit(ctx, auditEventLoginFailure, false, user.UserID, "", "", err, nil)
				return nil, err
			}
			e.metricInc(MetricMFARequired)
			e.emitAudit(ctx, auditEventMFARequired, true, user.UserID, "", "", nil, func() map[string]string {
				return map[string]string{
					"identifier": identifier,
				}
			})
			return &LoginResult{
				MFARequired:  true,
				MFAType:      "totp",
				MFAChallenge: challengeID,
			}, nil
		}
	}

	return e.finishLogin(ctx, identifier, user)
}

// ConfirmLoginMFA completes a pending login challenge with a TOTP or backup
// code. The challenge is deleted on success; a delete that finds nothing
// means another caller already consumed it and the login is rejected as a
// replay.
func (e *Engine) ConfirmLoginMFA(ctx context.Context, challengeID, code string) (*LoginResult, error) {
	if e == nil || e.challengeStore == nil || e.userProvider == nil || e.totp == nil {
		return nil, ErrEngineNotReady
	}
	if challengeID == "" {
		return nil, ErrMFAChallengeInvalid
	}

	record, err := e.challengeStore.Get(ctx, challengeID)
	if err != nil {
		mapped := mapChallengeStoreError(err)
		e.metricInc(MetricMFAFailure)
		if errors.Is(mapped, ErrMFAChallengeExpired) {
			e.metricInc(MetricMFAChallengeExpired)
		}
		e.emitAudit(ctx, auditEventMFAFailure, false, "", "", "", mapped, func() map[string]string {
			return map[string]string{
				"reason": "challenge_load_failed",
			}
		})
		return nil, mapped
	}

	user, err := e.userProvider.GetUserByID(ctx, record.UserID)
	if err != nil || !user.Active {
		_, _ = e.challengeStore.Delete(ctx, challengeID)
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, auditEventMFAFailure, false, record.UserID, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": "account_unavailable",
			}
		})
		return nil, ErrInvalidCredentials
	}

	device, err := e.mfaProvider.GetDevice(ctx, user.UserID)
	if err != nil {
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, auditEventMFAFailure, false, user.UserID, "", "", ErrMFAUnavailable, nil)
		return nil, ErrMFAUnavailable
	}
	if device == nil || !device.Active {
		_, _ = e.challengeStore.Delete(ctx, challengeID)
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, auditEventMFAFailure, false, user.UserID, "", "", ErrMFAChallengeInvalid, func() map[string]string {
			return map[string]string{
				"reason": "device_missing_or_inactive",
			}
		})
		return nil, ErrMFAChallengeInvalid
	}

	if code == "" {
		return nil, e.failChallengeAttempt(ctx, challengeID, user.UserID, ErrMFAInvalid)
	}

	matched, err := e.verifyDeviceCode(ctx, device, code)
	if err != nil {
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, auditEventMFAFailure, false, user.UserID, "", "", err, nil)
		return nil, err
	}
	if !matched {
		return nil, e.failChallengeAttempt(ctx, challengeID, user.UserID, ErrMFAInvalid)
	}

	deleted, err := e.challengeStore.Delete(ctx, challengeID)
	if err != nil {
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, auditEventMFAFailure, false, user.UserID, "", "", ErrMFAChallengeUnavailable, nil)
		return nil, ErrMFAChallengeUnavailable
	}
	if !deleted {
		e.metricInc(MetricMFAReplayAttempt)
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, auditEventMFAFailure, false, user.UserID, "", "", ErrMFAChallengeReplay, nil)
		return nil, ErrMFAChallengeReplay
	}

	tokens, sessionID, err := e.issueSessionTokens(ctx, user.UserID, uuid.Nil)
	if err != nil {
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, auditEventMFAFailure, false, user.UserID, "", "", err, nil)
		return nil, err
	}

	e.metricInc(MetricMFASuccess)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventMFASuccess, true, user.UserID, "", sessionID, nil, nil)
	return &LoginResult{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, nil
}

func (e *Engine) failLogin(ctx context.Context, identifier, userID, reason string) error {
	if e.loginLimiter != nil {
		if err := e.loginLimiter.RecordFailure(ctx, identifier, clientIPFromContext(ctx)); err != nil {
			if errors.Is(err, ErrLoginRateLimited) {
				e.metricInc(MetricLoginRateLimited)
				e.emitAudit(ctx, auditEventLoginRateLimited, false, userID, "", "", ErrLoginRateLimited, func() map[string]string {
					return map[string]string{
						"identifier": identifier,
					}
				})
				return ErrLoginRateLimited
			}
		}
	}
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, "", "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{
			"identifier": identifier,
			"reason":     reason,
		}
	})
	return ErrInvalidCredentials
}

func (e *Engine) finishLogin(ctx context.Context, identifier string, user UserRecord) (*LoginResult, error) {
	tokens, sessionID, err := e.issueSessionTokens(ctx, user.UserID, uuid.Nil)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.UserID, "", "", err, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
				"reason":     "token_issue_failed",
			}
		})
		return nil, err
	}

	if e.loginLimiter != nil {
		// Counter reset is best-effort; a failure here must not undo a
		// successful authentication.
		_ = e.loginLimiter.Reset(ctx, identifier, clientIPFromContext(ctx))
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.UserID, "", sessionID, nil, func() map[string]string {
		return map[string]string{
			"identifier": identifier,
		}
	})

	return &LoginResult{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, nil
}

func (e *Engine) createLoginChallenge(ctx context.Context, userID string) (string, error) {
	if e.challengeStore == nil {
		return "", ErrEngineNotReady
	}
	id, err := internal.NewSessionID()
	if err != nil {
		return "", ErrMFAChallengeUnavailable
	}
	challengeID := id.String()

	ttl := e.config.MFALogin.ChallengeTTL
	record := &mfaChallengeRecord{
		UserID:    userID,
		WebsiteID: uuid.Nil,
		ExpiresAt: time.Now().Add(ttl).Unix(),
		Attempts:  0,
	}

	if err := e.challengeStore.Save(ctx, challengeID, record, ttl); err != nil {
		return "", mapChallengeStoreError(err)
	}
	return challengeID, nil
}

func (e *Engine) failChallengeAttempt(
	ctx context.Context,
	challengeID string,
	userID string,
	cause error,
) error {
	exceeded, recErr := e.challengeStore.RecordFailure(ctx, challengeID, e.config.MFALogin.MaxAttempts)
	if recErr != nil {
		e.metricInc(MetricMFAFailure)
		mapped := mapChallengeStoreError(recErr)
		e.emitAudit(ctx, auditEventMFAFailure, false, userID, "", "", mapped, nil)
		return mapped
	}
	if exceeded {
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, auditEventMFAAttemptsExceeded, false, userID, "", "", ErrMFAChallengeAttempts, nil)
		return ErrMFAChallengeAttempts
	}
	e.metricInc(MetricMFAFailure)
	if cause == nil {
		cause = ErrMFAInvalid
	}
	e.emitAudit(ctx, auditEventMFAFailure, false, userID, "", "", cause, nil)
	return cause
}

func mapChallengeStoreError(err error) error {
	switch {
	case errors.Is(err, errMFAChallengeNotFound):
		return ErrMFAChallengeInvalid
	case errors.Is(err, errMFAChallengeExpired):
		return ErrMFAChallengeExpired
	case errors.Is(err, errMFAChallengeBackend):
		return ErrMFAChallengeUnavailable
	default:
		return ErrMFAChallengeUnavailable
	}
}
