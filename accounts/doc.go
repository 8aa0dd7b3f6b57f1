// Package accounts owns the account record: the gorm model, the [Store]
// interface with its gorm implementation, and [Credentials], which combines
// the store with the password hasher to create accounts and check logins.
//
// Lockout state lives on the account row. The failed counter and the lock
// expiry are updated in a single SQL statement so concurrent failures
// cannot lose an increment.
package accounts
