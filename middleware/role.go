package middleware

import (
	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/permission"
	"github.com/labstack/echo/v4"
)

// RequireRole rejects principals ranked below min. It must run after a guard.
func RequireRole(min permission.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := Principal(c)
			if p == nil {
				return authcore.ErrNotAuthenticated
			}
			if !p.AtLeast(min) {
				return authcore.ErrInsufficientRole
			}
			return next(c)
		}
	}
}

// RequirePermission rejects principals whose access token lacks perm.
func RequirePermission(perm string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := Principal(c)
			if p == nil {
				return authcore.ErrNotAuthenticated
			}
			if !p.HasPermission(perm) {
				return authcore.ErrInsufficientRole
			}
			return next(c)
		}
	}
}
