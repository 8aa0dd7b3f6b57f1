// Package session is the server-side session registry.
//
// Each session is a Redis hash keyed by session id and is indexed per account
// in a Redis set, so every device of an account can be listed or revoked at
// once. A session records the jti of the one refresh token allowed to rotate
// it; rotation is a compare-and-swap in Lua, and presenting an older refresh
// token deletes the session.
//
// Expiry is native Redis TTL. A missing key means the session was revoked or
// expired; callers cannot tell the two apart and do not need to.
//
// The store needs a single Redis primary; Redis Cluster is not supported.
//
// This package does not parse tokens or make authorization decisions.
package session
