package pgprovider

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	crossAuth "github.com/MrEthical07/crossAuth"
)

// Store implements every crossAuth provider interface on one *sql.DB.
type Store struct {
	db *sql.DB
}

var (
	_ crossAuth.UserProvider       = (*Store)(nil)
	_ crossAuth.MFAProvider        = (*Store)(nil)
	_ crossAuth.PermissionProvider = (*Store)(nil)
	_ crossAuth.WebsiteProvider    = (*Store)(nil)
	_ crossAuth.SessionRecorder    = (*Store)(nil)
)

// Open connects to Postgres via the pgx stdlib driver.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing handle. The caller keeps ownership of db.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Bootstrap applies [Schema].
func (s *Store) Bootstrap(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, Schema)
	return err
}

const userColumns = `id, email, username, full_name, password_hash, is_active, is_superuser, is_staff`

func scanUser(row *sql.Row) (crossAuth.UserRecord, error) {
	var u crossAuth.UserRecord
	err := row.Scan(&u.UserID, &u.Email, &u.Username, &u.FullName,
		&u.PasswordHash, &u.Active, &u.Superuser, &u.Staff)
	if errors.Is(err, sql.ErrNoRows) {
		return crossAuth.UserRecord{}, crossAuth.ErrUserNotFound
	}
	if err != nil {
		return crossAuth.UserRecord{}, err
	}
	return u, nil
}

// GetUserByIdentifier matches email first, then username. Email comparison
// is case-insensitive; usernames are exact.
func (s *Store) GetUserByIdentifier(ctx context.Context, identifier string) (crossAuth.UserRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where lower(email) = lower($1) or username = $1
		limit 1
	`, identifier)
	return scanUser(row)
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (crossAuth.UserRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where id = $1
	`, userID)
	return scanUser(row)
}

func (s *Store) GetWebsite(ctx context.Context, id uuid.UUID) (crossAuth.WebsiteRecord, error) {
	var w crossAuth.WebsiteRecord
	err := s.db.QueryRowContext(ctx, `
		select id, name, domain, is_active, auto_register_users
		from websites
		where id = $1
	`, id).Scan(&w.ID, &w.Name, &w.Domain, &w.Active, &w.AutoRegisterUsers)
	if errors.Is(err, sql.ErrNoRows) {
		return crossAuth.WebsiteRecord{}, crossAuth.ErrWebsiteNotFound
	}
	if err != nil {
		return crossAuth.WebsiteRecord{}, err
	}
	return w, nil
}

// EnsureAccess applies the website's registration rule. Auto-registering
// websites get an access row on first contact; the rest require one to
// already exist.
func (s *Store) EnsureAccess(ctx context.Context, userID string, websiteID uuid.UUID) error {
	var autoRegister bool
	err := s.db.QueryRowContext(ctx,
		`select auto_register_users from websites where id = $1`, websiteID,
	).Scan(&autoRegister)
	if errors.Is(err, sql.ErrNoRows) {
		return crossAuth.ErrWebsiteNotFound
	}
	if err != nil {
		return err
	}

	if autoRegister {
		_, err := s.db.ExecContext(ctx, `
			insert into website_access (user_id, website_id)
			values ($1, $2)
			on conflict (user_id, website_id) do nothing
		`, userID, websiteID)
		return err
	}

	var exists bool
	err = s.db.QueryRowContext(ctx, `
		select exists (
			select 1 from website_access
			where user_id = $1 and website_id = $2
		)
	`, userID, websiteID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return crossAuth.ErrPermissionDenied
	}
	return nil
}

// GrantAccess inserts an explicit access row, for websites that do not
// auto-register.
func (s *Store) GrantAccess(ctx context.Context, userID string, websiteID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		insert into website_access (user_id, website_id)
		values ($1, $2)
		on conflict (user_id, website_id) do nothing
	`, userID, websiteID)
	return err
}

// RecordSession inserts a session audit row. Failures are swallowed; the
// engine treats session recording as fire-and-forget.
func (s *Store) RecordSession(ctx context.Context, userID, websiteID, sessionID, ip, userAgent string) {
	var website any
	if websiteID != "" {
		website = websiteID
	}
	_, _ = s.db.ExecContext(ctx, `
		insert into sessions (id, user_id, website_id, ip_address, user_agent)
		values ($1, $2, $3, $4, $5)
		on conflict (id) do nothing
	`, sessionID, userID, website, ip, userAgent)
}
