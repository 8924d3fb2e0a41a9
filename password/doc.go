// Package password hashes and verifies user passwords with argon2id.
//
// Hashes are stored in PHC string format so the parameters travel with the
// hash and the cost can be raised later without invalidating old records.
// NeedsRehash reports when a stored hash was produced with weaker parameters
// than the current configuration.
package password
