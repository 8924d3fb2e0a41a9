// Package crossAuth is an embeddable authentication engine for a federation
// of websites sharing one user base: password login with optional TOTP MFA,
// single-use SSO handoff tokens for moving a session across sites, and a
// scoped role/permission resolver.
//
// The package is the public surface. It exposes [Engine], [Builder],
// [Config], the provider interfaces, and value types. Engine methods are
// safe to call from multiple goroutines once [Builder.Build] returns.
//
// # Storage boundaries
//
// Durable records (users, websites, MFA devices, roles, grants) stay
// behind the caller-supplied provider interfaces; crossAuth never owns that
// storage. Short-lived state with TTL semantics (SSO tokens, MFA login
// challenges, attempt counters) lives in Redis and is managed internally.
//
// # Token model
//
// Sessions are a JWT access/refresh pair signed with Ed25519 or HS256. SSO
// handoff tokens are opaque random strings, stored by digest and redeemable
// exactly once; redemption is a single Lua script so concurrent exchanges
// cannot both win.
package crossAuth
