package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/MrEthical07/authcore"
	"github.com/labstack/echo/v4"
)

// CSRF requires unsafe requests to echo the csrf cookie in the CSRF header
// and checks the token against the principal's session. It must run after
// a guard.
func CSRF(engine *authcore.Engine) echo.MiddlewareFunc {
	if engine == nil {
		return notReady
	}
	cfg := engine.Config()
	header, cookieName := cfg.CSRF.HeaderName, cfg.Cookie.CSRFName

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch c.Request().Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
				return next(c)
			}

			p := Principal(c)
			if p == nil {
				return authcore.ErrNotAuthenticated
			}

			sent := c.Request().Header.Get(header)
			cookie, err := c.Cookie(cookieName)
			if sent == "" || err != nil || subtle.ConstantTimeCompare([]byte(sent), []byte(cookie.Value)) != 1 {
				return authcore.ErrCSRFFailure
			}
			if err := engine.VerifyCSRF(c.Request().Context(), p, sent); err != nil {
				return err
			}
			return next(c)
		}
	}
}
