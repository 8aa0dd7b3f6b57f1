// Package csrf implements session-bound, time-stamped CSRF tokens.
//
// The token is returned to the browser in a readable cookie and echoed back
// in the X-CSRF-Token header on unsafe requests. Verification needs only the
// shared secret and the session id from the access token, so no server-side
// state is kept.
package csrf
