// Package pgprovider is the PostgreSQL reference implementation of the
// crossAuth provider interfaces.
//
// [Store] implements [crossAuth.UserProvider], [crossAuth.MFAProvider],
// [crossAuth.PermissionProvider], [crossAuth.WebsiteProvider] and
// [crossAuth.SessionRecorder] on a single database handle. It uses the pgx
// stdlib driver and explicit SQL; there is no ORM layer and no query
// generation.
//
// [Schema] holds the bootstrap DDL. It is idempotent and intended for tests
// and first-run provisioning, not as a migration system.
package pgprovider
