package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/middleware"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TOTPCode string `json:"totpCode"`
}

type changePasswordRequest struct {
	Current string `json:"current"`
	New     string `json:"new"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type loginResponse struct {
	Account     *authcore.AccountView `json:"account,omitempty"`
	CSRFToken   string                `json:"csrfToken,omitempty"`
	Requires2FA bool                  `json:"requires2fa,omitempty"`
}

type statusResponse struct {
	Status string `json:"status"`
}

var okStatus = statusResponse{Status: "ok"}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return fmt.Errorf("%w: malformed request body", authcore.ErrInvalidInput)
	}
	return nil
}

func handlerLog(c echo.Context, name string) zerolog.Logger {
	return zerolog.Ctx(c.Request().Context()).With().Str("handler", name).Logger()
}

func (h *Handler) register(c echo.Context) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	view, err := h.engine.Register(c.Request().Context(), authcore.RegisterInput(req))
	if err != nil {
		return err
	}

	l := handlerLog(c, "auth_register")
	l.Info().Str("account_id", view.ID).Msg("account registered")
	return c.JSON(http.StatusOK, echo.Map{"account": view})
}

func (h *Handler) login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.engine.Login(c.Request().Context(), authcore.LoginInput(req))
	if errors.Is(err, authcore.ErrTOTPRequired) {
		return c.JSON(http.StatusOK, loginResponse{Requires2FA: true})
	}
	if err != nil {
		return err
	}

	h.setTokenCookies(c, res.Tokens)
	l := handlerLog(c, "auth_login")
	l.Info().Str("account_id", res.Account.ID).Str("session_id", res.Tokens.SessionID).Msg("login successful")
	return c.JSON(http.StatusOK, loginResponse{Account: res.Account, CSRFToken: res.Tokens.CSRFToken})
}

func (h *Handler) refresh(c echo.Context) error {
	tok := h.cookieValue(c, h.cookies.RefreshName)
	if tok == "" {
		return authcore.ErrInvalidOrExpiredToken
	}

	tokens, err := h.engine.Refresh(c.Request().Context(), tok)
	if err != nil {
		if errors.Is(err, authcore.ErrInvalidOrExpiredToken) || errors.Is(err, authcore.ErrAccountInactive) {
			h.clearTokenCookies(c)
		}
		return err
	}

	h.setTokenCookies(c, *tokens)
	return c.JSON(http.StatusOK, loginResponse{CSRFToken: tokens.CSRFToken})
}

func (h *Handler) logout(c echo.Context) error {
	p := middleware.Principal(c)
	if err := h.engine.Logout(c.Request().Context(), p, h.cookieValue(c, h.cookies.RefreshName)); err != nil {
		return err
	}
	h.clearTokenCookies(c)
	return c.JSON(http.StatusOK, okStatus)
}

func (h *Handler) logoutAll(c echo.Context) error {
	n, err := h.engine.LogoutAll(c.Request().Context(), middleware.Principal(c))
	if err != nil {
		return err
	}
	h.clearTokenCookies(c)
	return c.JSON(http.StatusOK, echo.Map{"sessionsRevoked": n})
}

func (h *Handler) changePassword(c echo.Context) error {
	var req changePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	p := middleware.Principal(c)
	if err := h.engine.ChangePassword(c.Request().Context(), p, req.Current, req.New); err != nil {
		return err
	}

	h.clearTokenCookies(c)
	l := handlerLog(c, "auth_change_password")
	l.Info().Str("account_id", p.AccountID).Msg("password changed")
	return c.JSON(http.StatusOK, okStatus)
}

func (h *Handler) verifyEmail(c echo.Context) error {
	tok := c.QueryParam("token")
	if c.Request().Method != http.MethodGet {
		var req tokenRequest
		if err := bind(c, &req); err != nil {
			return err
		}
		tok = req.Token
	}
	if tok == "" {
		return fmt.Errorf("%w: token", authcore.ErrInvalidInput)
	}

	if err := h.engine.VerifyEmail(c.Request().Context(), tok); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"verified": true})
}

func (h *Handler) resendVerification(c echo.Context) error {
	var req emailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.engine.ResendVerification(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, okStatus)
}

func (h *Handler) forgotPassword(c echo.Context) error {
	var req emailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.engine.RequestPasswordReset(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, okStatus)
}

func (h *Handler) resetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.engine.ResetPassword(c.Request().Context(), req.Token, req.Password); err != nil {
		return err
	}
	h.clearTokenCookies(c)
	return c.JSON(http.StatusOK, okStatus)
}
