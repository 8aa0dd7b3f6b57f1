// Package token issues, verifies and revokes access and refresh tokens.
//
// Signing and parsing are delegated to package jwt. This package adds the
// revocation set: a revoked jti is kept in the shared keyed store for the
// remainder of the token's lifetime, so every instance rejects it.
package token
