// Package middleware adapts [authcore.Engine] to echo.
//
// # Guards
//
//   - [Authenticate] authorizes the access cookie with the engine's
//     configured validation mode.
//   - [RequireStrict] and [RequireJWTOnly] pin the mode for one route group.
//   - [RequireRole] and [RequirePermission] check the authenticated principal.
//   - [CSRF] enforces the double-submit CSRF token on unsafe methods.
//
// Guards return authcore errors unchanged; the HTTP error handler maps them
// to statuses with [authcore.HTTPStatus]. This package never parses tokens
// or talks to Redis itself.
package middleware
