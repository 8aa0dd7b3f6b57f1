package httpapi

import (
	"net/http"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/labstack/echo/v4"
)

func (h *Handler) cookie(name, value, path string, maxAge time.Duration, httpOnly bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   h.cookies.Domain,
		MaxAge:   int(maxAge / time.Second),
		Secure:   h.cookies.Secure,
		HttpOnly: httpOnly,
		SameSite: h.cookies.SameSite,
	}
}

func (h *Handler) refreshPath() string {
	if h.cookies.RefreshPath == "" {
		return "/"
	}
	return h.cookies.RefreshPath
}

func (h *Handler) setTokenCookies(c echo.Context, t authcore.Tokens) {
	c.SetCookie(h.cookie(h.cookies.AccessName, t.AccessToken, "/", h.accessTTL, true))
	c.SetCookie(h.cookie(h.cookies.RefreshName, t.RefreshToken, h.refreshPath(), h.refreshTTL, true))
	c.SetCookie(h.cookie(h.cookies.CSRFName, t.CSRFToken, "/", h.csrfMaxAge, false))
}

// clearTokenCookies expires all three cookies. MaxAge -1 is sent as
// Max-Age=0.
func (h *Handler) clearTokenCookies(c echo.Context) {
	c.SetCookie(h.cookie(h.cookies.AccessName, "", "/", -time.Second, true))
	c.SetCookie(h.cookie(h.cookies.RefreshName, "", h.refreshPath(), -time.Second, true))
	c.SetCookie(h.cookie(h.cookies.CSRFName, "", "/", -time.Second, false))
}

func (h *Handler) cookieValue(c echo.Context, name string) string {
	ck, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}
