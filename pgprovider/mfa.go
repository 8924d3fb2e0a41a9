package pgprovider

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	crossAuth "github.com/MrEthical07/crossAuth"
)

// GetDevice loads the user's TOTP device with its unconsumed backup codes.
// Returns (nil, nil) when no device exists.
func (s *Store) GetDevice(ctx context.Context, userID string) (*crossAuth.MFADeviceRecord, error) {
	device := &crossAuth.MFADeviceRecord{UserID: userID}
	var activatedAt, lastUsedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		select secret, is_active, activated_at, last_used_at
		from mfa_devices
		where user_id = $1
	`, userID).Scan(&device.Secret, &device.Active, &activatedAt, &lastUsedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if activatedAt.Valid {
		device.ActivatedAt = activatedAt.Time
	}
	if lastUsedAt.Valid {
		device.LastUsedAt = lastUsedAt.Time
	}

	rows, err := s.db.QueryContext(ctx,
		`select code_hash from mfa_backup_codes where user_id = $1 order by code_hash`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		if len(raw) != 32 {
			return nil, fmt.Errorf("backup code hash for user %s has %d bytes", userID, len(raw))
		}
		var record crossAuth.BackupCodeRecord
		copy(record.Hash[:], raw)
		device.BackupCodes = append(device.BackupCodes, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return device, nil
}

// SaveDevice upserts the device row and replaces its backup code set in one
// transaction.
func (s *Store) SaveDevice(ctx context.Context, device *crossAuth.MFADeviceRecord) error {
	if device == nil {
		return errors.New("nil device")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into mfa_devices (user_id, secret, is_active, activated_at, last_used_at)
		values ($1, $2, $3, $4, $5)
		on conflict (user_id) do update
		set secret = excluded.secret,
		    is_active = excluded.is_active,
		    activated_at = excluded.activated_at,
		    last_used_at = excluded.last_used_at
	`, device.UserID, device.Secret, device.Active,
		nullTime(device.ActivatedAt), nullTime(device.LastUsedAt)); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`delete from mfa_backup_codes where user_id = $1`, device.UserID); err != nil {
		return err
	}
	for _, code := range device.BackupCodes {
		if _, err := tx.ExecContext(ctx, `
			insert into mfa_backup_codes (user_id, code_hash)
			values ($1, $2)
		`, device.UserID, code.Hash[:]); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) DeleteDevice(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`delete from mfa_backup_codes where user_id = $1`, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`delete from mfa_devices where user_id = $1`, userID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) ReplaceBackupCodes(ctx context.Context, userID string, codes []crossAuth.BackupCodeRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`delete from mfa_backup_codes where user_id = $1`, userID); err != nil {
		return err
	}
	for _, code := range codes {
		if _, err := tx.ExecContext(ctx, `
			insert into mfa_backup_codes (user_id, code_hash)
			values ($1, $2)
		`, userID, code.Hash[:]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ConsumeBackupCode deletes the matching code row. The delete is the
// atomicity guarantee: two concurrent calls race on the same row and
// exactly one sees an affected row.
func (s *Store) ConsumeBackupCode(ctx context.Context, userID string, codeHash [32]byte) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		delete from mfa_backup_codes
		where user_id = $1 and code_hash = $2
	`, userID, codeHash[:])
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) TouchDevice(ctx context.Context, userID string, usedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		update mfa_devices set last_used_at = $2 where user_id = $1
	`, userID, usedAt)
	return err
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
