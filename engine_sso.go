package crossAuth

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/crossAuth/internal"
)

// InitiateSSO mints a single-use handoff token binding the user to the target
// website. The returned redirect URL carries the token as an sso_token query
// parameter; the token itself never enters server-side storage, only its
// digest does.
func (e *Engine) InitiateSSO(
	ctx context.Context,
	userID string,
	websiteID uuid.UUID,
	returnURL string,
) (*SSOGrant, error) {
	if e == nil || e.ssoStore == nil || e.userProvider == nil || e.websiteProvider == nil {
		return nil, ErrEngineNotReady
	}

	user, err := e.userProvider.GetUserByID(ctx, userID)
	if err != nil || !user.Active {
		e.emitAudit(ctx, auditEventSSOTokenRejected, false, userID, websiteID.String(), "", ErrUserNotFound, func() map[string]string {
			return map[string]string{
				"reason": "user_unavailable",
			}
		})
		return nil, ErrUserNotFound
	}

	site, err := e.resolveActiveWebsite(ctx, websiteID)
	if err != nil {
		e.emitAudit(ctx, auditEventSSOTokenRejected, false, userID, websiteID.String(), "", err, func() map[string]string {
			return map[string]string{
				"reason": "website_unavailable",
			}
		})
		return nil, err
	}

	token, err := internal.NewOpaqueToken()
	if err != nil {
		return nil, ErrSSOUnavailable
	}

	now := time.Now().UTC()
	ttl := e.config.SSO.TokenTTL
	record := &SSOTokenRecord{
		UserID:    user.UserID,
		WebsiteID: websiteID,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
		IPAddress: clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
	}
	if err := e.ssoStore.Create(ctx, token, record, ttl); err != nil {
		e.emitAudit(ctx, auditEventSSOTokenRejected, false, userID, websiteID.String(), "", ErrSSOUnavailable, func() map[string]string {
			return map[string]string{
				"reason": "store_create_failed",
			}
		})
		return nil, ErrSSOUnavailable
	}

	target := returnURL
	if target == "" {
		target = "https://" + site.Domain
	}

	e.metricInc(MetricSSOTokenIssued)
	e.emitAudit(ctx, auditEventSSOTokenIssued, true, user.UserID, websiteID.String(), "", nil, func() map[string]string {
		return map[string]string{
			"website": site.Domain,
		}
	})

	return &SSOGrant{
		Token:       token,
		RedirectURL: appendSSOToken(target, token),
		ExpiresAt:   record.ExpiresAt,
	}, nil
}

// ExchangeSSOToken redeems a handoff token at the target website and issues
// the session token pair. Redemption is atomic: of two concurrent exchanges
// of the same token, exactly one succeeds and the other gets
// [ErrSSOTokenConsumed]. Missing, expired, and wrong-website tokens all
// surface as [ErrSSOTokenInvalid].
func (e *Engine) ExchangeSSOToken(
	ctx context.Context,
	token string,
	websiteID uuid.UUID,
) (*SessionTokens, error) {
	if e == nil || e.ssoStore == nil || e.userProvider == nil || e.websiteProvider == nil {
		return nil, ErrEngineNotReady
	}
	if token == "" {
		return nil, ErrSSOTokenInvalid
	}

	record, err := e.ssoStore.AtomicRedeem(ctx, token, websiteID)
	if err != nil {
		return nil, e.rejectSSOExchange(ctx, websiteID, record, err)
	}

	if _, err := e.resolveActiveWebsite(ctx, websiteID); err != nil {
		e.emitAudit(ctx, auditEventSSOTokenRejected, false, record.UserID, websiteID.String(), "", err, func() map[string]string {
			return map[string]string{
				"reason": "website_unavailable",
			}
		})
		return nil, err
	}

	user, err := e.userProvider.GetUserByID(ctx, record.UserID)
	if err != nil || !user.Active {
		e.emitAudit(ctx, auditEventSSOTokenRejected, false, record.UserID, websiteID.String(), "", ErrUserNotFound, func() map[string]string {
			return map[string]string{
				"reason": "user_unavailable",
			}
		})
		return nil, ErrUserNotFound
	}

	// IP drift between initiation and exchange is recorded but does not
	// block the exchange; corporate NAT and mobile networks make a hard
	// match too brittle.
	if ip := clientIPFromContext(ctx); ip != "" && record.IPAddress != "" && ip != record.IPAddress {
		e.metricInc(MetricSSOIPMismatch)
		e.emitAudit(ctx, auditEventSSOIPMismatch, false, user.UserID, websiteID.String(), "", nil, func() map[string]string {
			return map[string]string{
				"issued_ip":   record.IPAddress,
				"exchange_ip": ip,
			}
		})
	}

	if err := e.websiteProvider.EnsureAccess(ctx, user.UserID, websiteID); err != nil {
		e.emitAudit(ctx, auditEventSSOTokenRejected, false, user.UserID, websiteID.String(), "", ErrPermissionDenied, func() map[string]string {
			return map[string]string{
				"reason": "website_access_denied",
			}
		})
		return nil, ErrPermissionDenied
	}

	tokens, sessionID, err := e.issueSessionTokens(ctx, user.UserID, websiteID)
	if err != nil {
		e.emitAudit(ctx, auditEventSSOTokenRejected, false, user.UserID, websiteID.String(), "", err, func() map[string]string {
			return map[string]string{
				"reason": "token_issue_failed",
			}
		})
		return nil, err
	}

	e.metricInc(MetricSSOTokenRedeemed)
	e.emitAudit(ctx, auditEventSSOTokenRedeemed, true, user.UserID, websiteID.String(), sessionID, nil, nil)

	return tokens, nil
}

// SSOTokenValid reports whether the token could still be redeemed, without
// consuming it.
func (e *Engine) SSOTokenValid(ctx context.Context, token string) bool {
	if e == nil || e.ssoStore == nil || token == "" {
		return false
	}
	record, err := e.ssoStore.Peek(ctx, token)
	if err != nil || record == nil {
		return false
	}
	return !record.Used && time.Now().Before(record.ExpiresAt)
}

// InvalidateSSOTokens marks every outstanding handoff token for the user as
// used. It backs the SSO logout sweep.
func (e *Engine) InvalidateSSOTokens(ctx context.Context, userID string) (int, error) {
	if e == nil || e.ssoStore == nil {
		return 0, ErrEngineNotReady
	}

	n, err := e.ssoStore.InvalidateAllForUser(ctx, userID)
	if err != nil {
		e.emitAudit(ctx, auditEventSSOLogout, false, userID, "", "", ErrSSOUnavailable, nil)
		return 0, ErrSSOUnavailable
	}

	if n > 0 {
		e.metricInc(MetricSSOTokenInvalidated)
	}
	e.emitAudit(ctx, auditEventSSOLogout, true, userID, "", "", nil, func() map[string]string {
		return map[string]string{
			"invalidated": strconv.Itoa(n),
		}
	})
	return n, nil
}

func (e *Engine) rejectSSOExchange(
	ctx context.Context,
	websiteID uuid.UUID,
	record *SSOTokenRecord,
	cause error,
) error {
	userID := ""
	if record != nil {
		userID = record.UserID
	}

	switch {
	case errors.Is(cause, errSSOTokenConsumed):
		e.metricInc(MetricSSOTokenReplayed)
		e.emitAudit(ctx, auditEventSSOTokenReplayed, false, userID, websiteID.String(), "", ErrSSOTokenConsumed, nil)
		return ErrSSOTokenConsumed
	case errors.Is(cause, errSSOTokenExpired):
		e.metricInc(MetricSSOTokenExpired)
		e.emitAudit(ctx, auditEventSSOTokenRejected, false, userID, websiteID.String(), "", ErrSSOTokenInvalid, func() map[string]string {
			return map[string]string{
				"reason": "expired",
			}
		})
		return ErrSSOTokenInvalid
	case errors.Is(cause, errSSOTokenNotFound), errors.Is(cause, errSSOWebsiteMismatch):
		e.emitAudit(ctx, auditEventSSOTokenRejected, false, userID, websiteID.String(), "", ErrSSOTokenInvalid, nil)
		return ErrSSOTokenInvalid
	default:
		e.emitAudit(ctx, auditEventSSOTokenRejected, false, userID, websiteID.String(), "", ErrSSOUnavailable, nil)
		return ErrSSOUnavailable
	}
}

// appendSSOToken attaches the sso_token query parameter, respecting any
// query string already present on the URL.
func appendSSOToken(target, token string) string {
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + "sso_token=" + token
}
