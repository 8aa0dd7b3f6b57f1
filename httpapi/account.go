package httpapi

import (
	"fmt"
	"net/http"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/middleware"
	"github.com/MrEthical07/authcore/permission"
	"github.com/labstack/echo/v4"
)

type codeRequest struct {
	Code string `json:"code"`
}

type updateAccountRequest struct {
	Role   *string `json:"role"`
	Active *bool   `json:"active"`
}

func (h *Handler) me(c echo.Context) error {
	view, err := h.engine.Me(c.Request().Context(), middleware.Principal(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"account": view})
}

func (h *Handler) listSessions(c echo.Context) error {
	list, err := h.engine.ListSessions(c.Request().Context(), middleware.Principal(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": list})
}

func (h *Handler) revokeSession(c echo.Context) error {
	p := middleware.Principal(c)
	sid := c.Param("id")
	if err := h.engine.RevokeSession(c.Request().Context(), p, sid); err != nil {
		return err
	}
	if sid == p.SessionID {
		h.clearTokenCookies(c)
	}
	return c.JSON(http.StatusOK, okStatus)
}

func (h *Handler) setupTOTP(c echo.Context) error {
	setup, err := h.engine.SetupTOTP(c.Request().Context(), middleware.Principal(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, setup)
}

func (h *Handler) enableTOTP(c echo.Context) error {
	var req codeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.engine.EnableTOTP(c.Request().Context(), middleware.Principal(c), req.Code); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, okStatus)
}

func (h *Handler) disableTOTP(c echo.Context) error {
	var req codeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.engine.DisableTOTP(c.Request().Context(), middleware.Principal(c), req.Code); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, okStatus)
}

func (h *Handler) updateAccount(c echo.Context) error {
	var req updateAccountRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Role == nil && req.Active == nil {
		return fmt.Errorf("%w: role or active required", authcore.ErrInvalidInput)
	}

	ctx := c.Request().Context()
	actor := middleware.Principal(c)
	id := c.Param("id")

	if req.Role != nil {
		role, err := permission.Parse(*req.Role)
		if err != nil {
			return fmt.Errorf("%w: %v", authcore.ErrInvalidInput, err)
		}
		if err := h.engine.SetRole(ctx, actor, id, role); err != nil {
			return err
		}
	}
	if req.Active != nil {
		if err := h.engine.SetActive(ctx, actor, id, *req.Active); err != nil {
			return err
		}
	}

	l := handlerLog(c, "admin_update_account")
	l.Info().Str("actor_id", actor.AccountID).Str("target_id", id).Msg("account updated")
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) deleteAccount(c echo.Context) error {
	actor := middleware.Principal(c)
	id := c.Param("id")
	if err := h.engine.DeleteAccount(c.Request().Context(), actor, id); err != nil {
		return err
	}

	l := handlerLog(c, "admin_delete_account")
	l.Info().Str("actor_id", actor.AccountID).Str("target_id", id).Msg("account deleted")
	return c.NoContent(http.StatusNoContent)
}
