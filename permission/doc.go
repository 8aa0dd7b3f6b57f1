// Package permission defines the closed, ordered role set used by the shop
// (customer < staff < admin < superadmin) and the permission names each role
// carries into access tokens.
//
// # Ordering
//
// Authorization checks compare ranks with [Role.AtLeast]; callers never match
// role names against ad hoc lists. Higher roles inherit every permission of
// the roles below them.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import authcore, jwt, or session.
package permission
