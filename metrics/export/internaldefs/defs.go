package internaldefs

import (
	crossAuth "github.com/MrEthical07/crossAuth"
)

// CounterDef binds an engine metric ID to its stable wire name.
type CounterDef struct {
	ID   crossAuth.MetricID
	Name string
	Help string
}

// HistogramDef binds a latency histogram to its stable wire name.
type HistogramDef struct {
	ID   crossAuth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: crossAuth.MetricLoginSuccess, Name: "crossauth_login_success_total", Help: "Successful login attempts."},
	{ID: crossAuth.MetricLoginFailure, Name: "crossauth_login_failure_total", Help: "Failed login attempts."},
	{ID: crossAuth.MetricLoginRateLimited, Name: "crossauth_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: crossAuth.MetricMFARequired, Name: "crossauth_mfa_required_total", Help: "Login flows requiring MFA step-up."},
	{ID: crossAuth.MetricMFASuccess, Name: "crossauth_mfa_success_total", Help: "Successful MFA confirmations."},
	{ID: crossAuth.MetricMFAFailure, Name: "crossauth_mfa_failure_total", Help: "Failed MFA confirmations."},
	{ID: crossAuth.MetricMFAReplayAttempt, Name: "crossauth_mfa_replay_attempt_total", Help: "Detected MFA challenge replay attempts."},
	{ID: crossAuth.MetricMFAChallengeExpired, Name: "crossauth_mfa_challenge_expired_total", Help: "MFA challenges that expired before confirmation."},
	{ID: crossAuth.MetricBackupCodeUsed, Name: "crossauth_backup_code_used_total", Help: "Successful backup-code authentications."},
	{ID: crossAuth.MetricBackupCodeFailed, Name: "crossauth_backup_code_failed_total", Help: "Failed backup-code authentications."},
	{ID: crossAuth.MetricBackupCodeRegenerated, Name: "crossauth_backup_code_regenerated_total", Help: "Backup-code regeneration operations."},
	{ID: crossAuth.MetricTOTPSetupStarted, Name: "crossauth_totp_setup_started_total", Help: "Started TOTP device setups."},
	{ID: crossAuth.MetricTOTPSetupConfirmed, Name: "crossauth_totp_setup_confirmed_total", Help: "Confirmed TOTP device setups."},
	{ID: crossAuth.MetricTOTPDisabled, Name: "crossauth_totp_disabled_total", Help: "Disabled TOTP devices."},
	{ID: crossAuth.MetricSSOTokenIssued, Name: "crossauth_sso_token_issued_total", Help: "Issued SSO handoff tokens."},
	{ID: crossAuth.MetricSSOTokenRedeemed, Name: "crossauth_sso_token_redeemed_total", Help: "Redeemed SSO handoff tokens."},
	{ID: crossAuth.MetricSSOTokenReplayed, Name: "crossauth_sso_token_replayed_total", Help: "SSO tokens presented after consumption."},
	{ID: crossAuth.MetricSSOTokenExpired, Name: "crossauth_sso_token_expired_total", Help: "SSO tokens presented after expiry."},
	{ID: crossAuth.MetricSSOTokenInvalidated, Name: "crossauth_sso_token_invalidated_total", Help: "SSO logout sweeps that invalidated tokens."},
	{ID: crossAuth.MetricSSOIPMismatch, Name: "crossauth_sso_ip_mismatch_total", Help: "SSO exchanges from a different IP than issuance."},
	{ID: crossAuth.MetricPermissionGranted, Name: "crossauth_permission_granted_total", Help: "Permission checks that answered true."},
	{ID: crossAuth.MetricPermissionDenied, Name: "crossauth_permission_denied_total", Help: "Permission checks that answered false."},
	{ID: crossAuth.MetricRefreshSuccess, Name: "crossauth_refresh_success_total", Help: "Successful token refresh operations."},
	{ID: crossAuth.MetricRefreshFailure, Name: "crossauth_refresh_failure_total", Help: "Failed token refresh operations."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: crossAuth.MetricResolveLatency, Name: "crossauth_resolve_latency_seconds", Help: "Permission resolution latency histogram."},
}

// HistogramBounds are the upper bucket bounds, in seconds, matching the
// engine's fixed millisecond buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix carries the bounds in instrument-name-safe form.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to the cumulative form both
// exposition formats expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
