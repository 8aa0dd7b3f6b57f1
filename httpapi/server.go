package httpapi

import (
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/middleware"
	"github.com/MrEthical07/authcore/permission"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// Handler holds the engine and the cookie settings derived from its config.
type Handler struct {
	engine     *authcore.Engine
	cookies    authcore.CookieConfig
	accessTTL  time.Duration
	refreshTTL time.Duration
	csrfMaxAge time.Duration
}

func NewHandler(engine *authcore.Engine) *Handler {
	cfg := engine.Config()
	return &Handler{
		engine:     engine,
		cookies:    cfg.Cookie,
		accessTTL:  cfg.JWT.AccessTTL,
		refreshTTL: cfg.JWT.RefreshTTL,
		csrfMaxAge: cfg.CSRF.MaxAge,
	}
}

// NewServer returns an echo instance with recovery, request ids, request
// logging, the error envelope and every /auth route. The client IP is the
// socket peer unless [WithTrustedProxies] says otherwise.
func NewServer(engine *authcore.Engine, log zerolog.Logger, opts ...ServerOption) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler
	e.IPExtractor = echo.ExtractIPDirect()
	for _, opt := range opts {
		opt(e)
	}

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(RequestLogger(log))
	e.Use(ClientContext())

	NewHandler(engine).Register(e)
	return e
}

// Register mounts the /auth routes on e.
func (h *Handler) Register(e *echo.Echo) {
	public := e.Group("/auth")
	public.POST("/register", h.register)
	public.POST("/login", h.login)
	public.POST("/refresh", h.refresh)
	public.POST("/verify-email", h.verifyEmail)
	public.GET("/verify-email", h.verifyEmail)
	public.POST("/resend-verification", h.resendVerification)
	public.POST("/forgot-password", h.forgotPassword)
	public.POST("/reset-password", h.resetPassword)

	private := public.Group("", middleware.Authenticate(h.engine), middleware.CSRF(h.engine))
	private.POST("/logout", h.logout)
	private.POST("/logout-all", h.logoutAll)
	private.POST("/change-password", h.changePassword)
	private.GET("/me", h.me)
	private.GET("/sessions", h.listSessions)
	private.DELETE("/sessions/:id", h.revokeSession)
	private.POST("/2fa/setup", h.setupTOTP)
	private.POST("/2fa/enable", h.enableTOTP)
	private.POST("/2fa/disable", h.disableTOTP)

	admin := private.Group("/admin", middleware.RequireRole(permission.RoleAdmin))
	admin.PATCH("/accounts/:id", h.updateAccount)
	admin.DELETE("/accounts/:id", h.deleteAccount)
}

// ClientContext copies the caller's IP and user agent into the request
// context for rate limiting, session records and audit events.
func ClientContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r := c.Request()
			ctx := authcore.WithClientIP(r.Context(), c.RealIP())
			ctx = authcore.WithUserAgent(ctx, r.UserAgent())
			c.SetRequest(r.WithContext(ctx))
			return next(c)
		}
	}
}
