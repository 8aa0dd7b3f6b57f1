// Package stores provides the expiring keyed store shared by the rate limiter,
// the token revocation set, and the one-time token records used by email
// verification and password reset.
//
// # Design
//
// [Keyed] is the abstraction; [Redis] is the networked implementation. Every
// key carries a store-native TTL so nothing needs a background reaper.
// Counters are incremented and given their window TTL in one Lua script, so
// concurrent attempts can never leave a counter without expiry or undercount.
//
// One-time tokens are stored under the SHA-256 of the plaintext and consumed
// with GETDEL, so a token can be redeemed exactly once.
//
// # What this package must NOT do
//
//   - Import authcore or any sibling internal package.
//   - Log or expose plaintext tokens.
package stores
