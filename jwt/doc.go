// Package jwt issues and verifies the access/refresh token pairs the engine
// hands out after a successful login.
//
// Access tokens carry the user id, the website the session was opened
// against, and a session id. Refresh tokens carry the same identity with a
// longer TTL and a "typ" claim so the two kinds can never be swapped for one
// another. Signing supports ed25519 and HS256, with optional kid-based key
// sets for rotation.
package jwt
