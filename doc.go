// Package authcore is the session and credential security core of the shop.
//
// It issues short-lived JWT access tokens and rotating refresh tokens backed
// by a server-side session registry, binds CSRF tokens to sessions, rate
// limits login and signup, locks accounts after repeated failures and
// revokes sessions on logout, password change and admin action.
//
// [Engine] methods are safe for concurrent use after [Builder.Build]. All
// shared state lives in Redis (sessions, counters, revocations, one-time
// tokens) and the relational account store, so any number of processes can
// serve the same users.
//
// # Architecture boundaries
//
// authcore exposes [Engine], [Builder], [Config], the error taxonomy and
// value types. Orchestration lives in internal/flows; storage and crypto
// live in the accounts, session, token, jwt, password and csrf packages.
// The HTTP surface is in httpapi and middleware.
package authcore
