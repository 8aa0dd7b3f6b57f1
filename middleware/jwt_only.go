package middleware

import (
	"github.com/MrEthical07/authcore"
	"github.com/labstack/echo/v4"
)

// RequireJWTOnly authorizes with [authcore.ModeJWTOnly], skipping the
// session lookup. Logged-out access tokens are still rejected through the
// revocation set.
func RequireJWTOnly(engine *authcore.Engine) echo.MiddlewareFunc {
	return Guard(engine, authcore.ModeJWTOnly)
}
