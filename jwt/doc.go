// Package jwt signs and parses the two token kinds issued by authcore:
// short-lived access tokens carrying role and permissions, and long-lived
// refresh tokens bound to a session id.
//
// Parsing pins the algorithm, checks issuer and audience when configured,
// and maps library errors onto [ErrMalformed], [ErrExpired] and
// [ErrWrongKind]. Revocation is not checked here; see package token.
package jwt
