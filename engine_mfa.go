package crossAuth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/crossAuth/internal"
)

// BeginMFASetup creates a pending TOTP device for the user and returns the
// provisioning material. An existing pending device is replaced with a fresh
// secret; an active device must be disabled first. The plaintext backup codes
// appear only in the returned [MFASetup].
func (e *Engine) BeginMFASetup(ctx context.Context, userID string) (*MFASetup, error) {
	if e == nil || e.totp == nil || e.mfaProvider == nil || e.userProvider == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, ErrUserNotFound
	}

	user, err := e.userProvider.GetUserByID(ctx, userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	if !user.Active {
		return nil, ErrUserNotFound
	}

	existing, err := e.mfaProvider.GetDevice(ctx, userID)
	if err != nil {
		return nil, ErrMFAUnavailable
	}
	if existing != nil && existing.Active {
		return nil, ErrMFAAlreadyActive
	}

	secretRaw, secretBase32, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, ErrMFAUnavailable
	}

	plainCodes, err := internal.NewBackupCodes(e.config.TOTP.BackupCodeCount)
	if err != nil {
		return nil, ErrMFAUnavailable
	}
	hashed := make([]BackupCodeRecord, 0, len(plainCodes))
	for _, code := range plainCodes {
		hashed = append(hashed, BackupCodeRecord{Hash: internal.HashBackupCode(code)})
	}

	device := &MFADeviceRecord{
		UserID:      userID,
		Secret:      secretRaw,
		Active:      false,
		BackupCodes: hashed,
	}
	if err := e.mfaProvider.SaveDevice(ctx, device); err != nil {
		return nil, ErrMFAUnavailable
	}

	account := user.Email
	if account == "" {
		account = user.Username
	}
	if account == "" {
		account = userID
	}

	e.metricInc(MetricTOTPSetupStarted)
	e.emitAudit(ctx, auditEventMFASetupStarted, true, userID, "", "", nil, nil)

	return &MFASetup{
		SecretBase32: secretBase32,
		URI:          e.totp.ProvisionURI(secretBase32, account),
		BackupCodes:  plainCodes,
	}, nil
}

// ConfirmMFASetup activates the pending device after the user proves they
// hold the secret by supplying a current TOTP code.
func (e *Engine) ConfirmMFASetup(ctx context.Context, userID, code string) error {
	if e == nil || e.totp == nil || e.mfaProvider == nil {
		return ErrEngineNotReady
	}
	if userID == "" {
		return ErrUserNotFound
	}

	device, err := e.mfaProvider.GetDevice(ctx, userID)
	if err != nil {
		return ErrMFAUnavailable
	}
	if device == nil {
		return ErrMFASetupNotPending
	}
	if device.Active {
		return ErrMFAAlreadyActive
	}

	ok, err := e.totp.VerifyCode(device.Secret, code, time.Now())
	if err != nil {
		return ErrMFAUnavailable
	}
	if !ok {
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, auditEventMFAFailure, false, userID, "", "", ErrMFAInvalid, func() map[string]string {
			return map[string]string{
				"reason": "setup_code_mismatch",
			}
		})
		return ErrMFAInvalid
	}

	device.Active = true
	device.ActivatedAt = time.Now().UTC()
	if err := e.mfaProvider.SaveDevice(ctx, device); err != nil {
		return ErrMFAUnavailable
	}

	e.metricInc(MetricTOTPSetupConfirmed)
	e.emitAudit(ctx, auditEventMFASetupConfirmed, true, userID, "", "", nil, nil)
	return nil
}

// DisableMFA removes the user's device. It requires the account password and
// a currently valid TOTP or backup code, so a stolen session alone cannot
// strip the second factor.
func (e *Engine) DisableMFA(ctx context.Context, userID, password, code string) error {
	if e == nil || e.passwordHash == nil || e.mfaProvider == nil || e.userProvider == nil {
		return ErrEngineNotReady
	}
	if userID == "" {
		return ErrUserNotFound
	}

	user, err := e.userProvider.GetUserByID(ctx, userID)
	if err != nil {
		return ErrUserNotFound
	}

	ok, err := e.passwordHash.Verify(password, user.PasswordHash)
	if err != nil || !ok {
		e.emitAudit(ctx, auditEventMFAFailure, false, userID, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": "disable_password_mismatch",
			}
		})
		return ErrInvalidCredentials
	}

	device, err := e.mfaProvider.GetDevice(ctx, userID)
	if err != nil {
		return ErrMFAUnavailable
	}
	if device == nil || !device.Active {
		return ErrMFANotConfigured
	}

	matched, err := e.verifyDeviceCode(ctx, device, code)
	if err != nil {
		return err
	}
	if !matched {
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, auditEventMFAFailure, false, userID, "", "", ErrMFAInvalid, func() map[string]string {
			return map[string]string{
				"reason": "disable_code_mismatch",
			}
		})
		return ErrMFAInvalid
	}

	if err := e.mfaProvider.DeleteDevice(ctx, userID); err != nil {
		return ErrMFAUnavailable
	}
	if e.totpLimiter != nil {
		_ = e.totpLimiter.Reset(ctx, userID)
	}
	if e.backupLimiter != nil {
		_ = e.backupLimiter.Reset(ctx, userID)
	}

	e.metricInc(MetricTOTPDisabled)
	e.emitAudit(ctx, auditEventMFADisabled, true, userID, "", "", nil, nil)
	return nil
}

// RegenerateBackupCodes replaces the full backup code set. A valid TOTP or
// remaining backup code is required; the new plaintext codes are returned
// exactly once.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, userID, code string) ([]string, error) {
	if e == nil || e.mfaProvider == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, ErrUserNotFound
	}

	device, err := e.mfaProvider.GetDevice(ctx, userID)
	if err != nil {
		return nil, ErrMFAUnavailable
	}
	if device == nil || !device.Active {
		return nil, ErrMFANotConfigured
	}

	matched, err := e.verifyDeviceCode(ctx, device, code)
	if err != nil {
		return nil, err
	}
	if !matched {
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, auditEventMFAFailure, false, userID, "", "", ErrMFAInvalid, func() map[string]string {
			return map[string]string{
				"reason": "regenerate_code_mismatch",
			}
		})
		return nil, ErrMFAInvalid
	}

	plainCodes, err := internal.NewBackupCodes(e.config.TOTP.BackupCodeCount)
	if err != nil {
		return nil, ErrMFAUnavailable
	}
	hashed := make([]BackupCodeRecord, 0, len(plainCodes))
	for _, c := range plainCodes {
		hashed = append(hashed, BackupCodeRecord{Hash: internal.HashBackupCode(c)})
	}
	if err := e.mfaProvider.ReplaceBackupCodes(ctx, userID, hashed); err != nil {
		return nil, ErrMFAUnavailable
	}

	e.metricInc(MetricBackupCodeRegenerated)
	e.emitAudit(ctx, auditEventBackupCodesGenerated, true, userID, "", "", nil, nil)
	return plainCodes, nil
}

// MFAStatus reports the device state without exposing secrets.
func (e *Engine) MFAStatus(ctx context.Context, userID string) (*MFAStatusInfo, error) {
	if e == nil || e.mfaProvider == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, ErrUserNotFound
	}

	device, err := e.mfaProvider.GetDevice(ctx, userID)
	if err != nil {
		return nil, ErrMFAUnavailable
	}
	if device == nil {
		return &MFAStatusInfo{}, nil
	}

	return &MFAStatusInfo{
		Configured:      true,
		Active:          device.Active,
		BackupCodesLeft: len(device.BackupCodes),
		ActivatedAt:     device.ActivatedAt,
		LastUsedAt:      device.LastUsedAt,
	}, nil
}

// VerifyMFACode checks a code against the user's active device: TOTP first,
// backup code fallback. A matched backup code is consumed. The boolean result
// distinguishes mismatch from the error cases (rate limit, backend down).
func (e *Engine) VerifyMFACode(ctx context.Context, userID, code string) (bool, error) {
	if e == nil || e.mfaProvider == nil || e.totp == nil {
		return false, ErrEngineNotReady
	}

	device, err := e.mfaProvider.GetDevice(ctx, userID)
	if err != nil {
		return false, ErrMFAUnavailable
	}
	if device == nil || !device.Active {
		return false, ErrMFANotConfigured
	}

	return e.verifyDeviceCode(ctx, device, code)
}

// verifyDeviceCode runs the TOTP-then-backup verification for an active
// device. Both paths sit behind their own Redis attempt limiter. A backup
// match consumes the code through the provider's atomic compare.
func (e *Engine) verifyDeviceCode(ctx context.Context, device *MFADeviceRecord, code string) (bool, error) {
	if code == "" {
		return false, nil
	}

	if e.totpLimiter != nil {
		if err := e.totpLimiter.Check(ctx, device.UserID); err != nil {
			if errors.Is(err, ErrMFARateLimited) {
				return false, ErrMFARateLimited
			}
			return false, ErrMFAUnavailable
		}
	}

	ok, err := e.totp.VerifyCode(device.Secret, code, time.Now())
	if err == nil && ok {
		if e.totpLimiter != nil {
			_ = e.totpLimiter.Reset(ctx, device.UserID)
		}
		_ = e.mfaProvider.TouchDevice(ctx, device.UserID, time.Now().UTC())
		e.metricInc(MetricMFASuccess)
		return true, nil
	}

	// A code shaped like a TOTP code is charged to the TOTP limiter only;
	// a mistyped authenticator code must not burn the backup-code budget.
	normalized := normalizeCode(code)
	if len(normalized) == e.config.TOTP.Digits && isNumericString(normalized) {
		if e.totpLimiter != nil {
			if recErr := e.totpLimiter.RecordFailure(ctx, device.UserID); recErr != nil {
				if errors.Is(recErr, ErrMFARateLimited) {
					return false, ErrMFARateLimited
				}
				return false, ErrMFAUnavailable
			}
		}
		return false, nil
	}

	// Anything else can only be a backup code attempt.
	consumed, berr := e.consumeBackupCode(ctx, device.UserID, code)
	if berr != nil {
		return false, berr
	}
	if consumed {
		e.metricInc(MetricBackupCodeUsed)
		e.emitAudit(ctx, auditEventBackupCodeUsed, true, device.UserID, "", "", nil, nil)
		_ = e.mfaProvider.TouchDevice(ctx, device.UserID, time.Now().UTC())
		return true, nil
	}
	return false, nil
}

func (e *Engine) consumeBackupCode(ctx context.Context, userID, code string) (bool, error) {
	if e.backupLimiter != nil {
		if err := e.backupLimiter.Check(ctx, userID); err != nil {
			if errors.Is(err, ErrBackupCodeRateLimited) {
				return false, ErrBackupCodeRateLimited
			}
			return false, ErrBackupCodeUnavailable
		}
	}

	consumed, err := e.mfaProvider.ConsumeBackupCode(ctx, userID, internal.HashBackupCode(code))
	if err != nil {
		return false, ErrBackupCodeUnavailable
	}
	if consumed {
		if e.backupLimiter != nil {
			_ = e.backupLimiter.Reset(ctx, userID)
		}
		return true, nil
	}

	e.metricInc(MetricBackupCodeFailed)
	e.emitAudit(ctx, auditEventBackupCodeFailed, false, userID, "", "", ErrBackupCodeInvalid, nil)
	if e.backupLimiter != nil {
		if recErr := e.backupLimiter.RecordFailure(ctx, userID); recErr != nil {
			if errors.Is(recErr, ErrBackupCodeRateLimited) {
				return false, ErrBackupCodeRateLimited
			}
			return false, ErrBackupCodeUnavailable
		}
	}
	return false, nil
}
