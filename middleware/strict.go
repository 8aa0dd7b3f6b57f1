package middleware

import (
	"github.com/MrEthical07/authcore"
	"github.com/labstack/echo/v4"
)

// RequireStrict authorizes with [authcore.ModeStrict] regardless of the
// engine default, so a revoked session is rejected immediately.
func RequireStrict(engine *authcore.Engine) echo.MiddlewareFunc {
	return Guard(engine, authcore.ModeStrict)
}
