// Package limiters provides the shop's rate-limit policies built on top of
// the internal/rate primitives.
//
// # Limiters
//
//   - [LoginLimiter]: failed-login budget per client IP and per email.
//   - [Throttle]: atomic per-key budget for registration (per IP), password
//     reset requests and verification resends (per email).
//
// All limiters are nil-safe: calling any method on a nil receiver allows the
// attempt.
//
// # What this package must NOT do
//
//   - Import authcore or any sibling internal package except internal/rate.
//   - Decide consequences; flow functions map decisions to errors.
package limiters
