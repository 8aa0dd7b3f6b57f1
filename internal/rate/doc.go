// Package rate implements fixed-window attempt counters on top of the shared
// keyed store.
//
// # Window semantics
//
// The first recorded attempt creates the counter with a TTL equal to the
// window; later attempts increment it without touching the TTL. A key is
// blocked once its count reaches the limit and stays blocked until the TTL
// elapses. Increment and expiry happen in one atomic store operation.
//
// # What this package must NOT do
//
//   - Decide which keys a flow uses (that lives in internal/limiters).
//   - Keep any in-process state; counters must be shared across instances.
package rate
