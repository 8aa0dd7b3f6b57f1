package middleware

import (
	"github.com/MrEthical07/authcore"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const principalKey = "authcore.principal"

// Principal returns the caller stored by a guard, or nil.
func Principal(c echo.Context) *authcore.Principal {
	p, _ := c.Get(principalKey).(*authcore.Principal)
	return p
}

// Authenticate authorizes the access cookie and stores the principal on the
// echo context and the request context.
func Authenticate(engine *authcore.Engine) echo.MiddlewareFunc {
	if engine == nil {
		return notReady
	}
	return Guard(engine, engine.Config().ValidationMode)
}

// Guard is [Authenticate] with an explicit validation mode.
func Guard(engine *authcore.Engine, mode authcore.ValidationMode) echo.MiddlewareFunc {
	if engine == nil {
		return notReady
	}
	cookieName := engine.Config().Cookie.AccessName

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				return authcore.ErrNotAuthenticated
			}

			r := c.Request()
			p, err := engine.AuthorizeMode(r.Context(), cookie.Value, mode)
			if err != nil {
				return err
			}

			zerolog.Ctx(r.Context()).UpdateContext(func(l zerolog.Context) zerolog.Context {
				return l.Str("account_id", p.AccountID)
			})
			c.Set(principalKey, p)
			c.SetRequest(r.WithContext(authcore.WithPrincipal(r.Context(), p)))
			return next(c)
		}
	}
}

func notReady(echo.HandlerFunc) echo.HandlerFunc {
	return func(echo.Context) error {
		return authcore.ErrEngineNotReady
	}
}
