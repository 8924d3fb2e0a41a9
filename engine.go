package crossAuth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/crossAuth/internal"
	"github.com/MrEthical07/crossAuth/jwt"
	"github.com/MrEthical07/crossAuth/password"
	"github.com/MrEthical07/crossAuth/permission"
)

// Engine is the authentication core. Build one with [New] and share it; all
// methods are safe for concurrent use once Build returns.
type Engine struct {
	config Config

	userProvider       UserProvider
	mfaProvider        MFAProvider
	permissionProvider PermissionProvider
	registry           *permission.Registry
	websiteProvider    WebsiteProvider
	sessionRecorder    SessionRecorder

	ssoStore       SSOTokenStore
	challengeStore *mfaChallengeStore
	loginLimiter   *loginLimiter
	totpLimiter    *totpLimiter
	backupLimiter  *backupCodeLimiter

	audit        *auditDispatcher
	metrics      *Metrics
	passwordHash *password.Hasher
	totp         *totpManager
	jwtManager   *jwt.Manager
}

// Close flushes and stops the audit dispatcher. Call it during shutdown.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// ValidateAccess parses and verifies an access token. It is a pure JWT
// check; no Redis round trip happens on this path.
func (e *Engine) ValidateAccess(ctx context.Context, tokenStr string) (*AuthResult, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.jwtManager.ParseAccess(tokenStr)
	if err != nil {
		return nil, ErrUnauthorized
	}

	return &AuthResult{
		UserID:    claims.UID,
		WebsiteID: claims.WID,
		SessionID: claims.SID,
	}, nil
}

// RefreshSessionTokens exchanges a valid refresh token for a new
// access/refresh pair. The user must still exist and be active; a deactivated
// account cannot extend its sessions.
func (e *Engine) RefreshSessionTokens(ctx context.Context, refreshToken string) (*SessionTokens, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.jwtManager.ParseRefresh(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", "", ErrRefreshInvalid, func() map[string]string {
			return map[string]string{
				"reason": "parse_failed",
			}
		})
		return nil, ErrRefreshInvalid
	}

	user, err := e.userProvider.GetUserByID(ctx, claims.UID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.UID, claims.WID, claims.SID, ErrRefreshInvalid, func() map[string]string {
			return map[string]string{
				"reason": "user_not_found",
			}
		})
		return nil, ErrRefreshInvalid
	}
	if !user.Active {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, user.UserID, claims.WID, claims.SID, ErrRefreshInvalid, func() map[string]string {
			return map[string]string{
				"reason": "account_inactive",
			}
		})
		return nil, ErrRefreshInvalid
	}

	access, err := e.jwtManager.CreateAccess(claims.UID, claims.WID, claims.SID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, user.UserID, claims.WID, claims.SID, err, nil)
		return nil, err
	}
	refresh, err := e.jwtManager.CreateRefresh(claims.UID, claims.WID, claims.SID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, user.UserID, claims.WID, claims.SID, err, nil)
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, user.UserID, claims.WID, claims.SID, nil, nil)

	return &SessionTokens{AccessToken: access, RefreshToken: refresh}, nil
}

// issueSessionTokens mints a fresh session and the token pair for it, then
// notifies the session recorder. Recorder failures never fail the caller.
func (e *Engine) issueSessionTokens(
	ctx context.Context,
	userID string,
	websiteID uuid.UUID,
) (*SessionTokens, string, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, "", err
	}
	sessionID := sid.String()

	wid := ""
	if websiteID != uuid.Nil {
		wid = websiteID.String()
	}

	access, err := e.jwtManager.CreateAccess(userID, wid, sessionID)
	if err != nil {
		return nil, "", err
	}
	refresh, err := e.jwtManager.CreateRefresh(userID, wid, sessionID)
	if err != nil {
		return nil, "", err
	}

	if e.sessionRecorder != nil {
		e.sessionRecorder.RecordSession(
			ctx,
			userID,
			wid,
			sessionID,
			clientIPFromContext(ctx),
			userAgentFromContext(ctx),
		)
	}

	return &SessionTokens{AccessToken: access, RefreshToken: refresh}, sessionID, nil
}

// resolveActiveWebsite loads the website and rejects inactive ones.
func (e *Engine) resolveActiveWebsite(ctx context.Context, websiteID uuid.UUID) (WebsiteRecord, error) {
	site, err := e.websiteProvider.GetWebsite(ctx, websiteID)
	if err != nil {
		if errors.Is(err, ErrWebsiteNotFound) {
			return WebsiteRecord{}, ErrWebsiteNotFound
		}
		return WebsiteRecord{}, err
	}
	if !site.Active {
		return WebsiteRecord{}, ErrWebsiteInactive
	}
	return site, nil
}

func (e *Engine) observeLatency(id MetricID, start time.Time) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, time.Since(start))
}
