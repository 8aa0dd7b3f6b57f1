// Package otp implements time-based one-time passwords (RFC 6238) for
// optional two-factor login.
package otp
