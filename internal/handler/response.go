package handler

import (
	"errors"
	"net/http"
	"strconv"

	"fashionshop/internal/domain/model"
	"fashionshop/internal/logger"
	"fashionshop/internal/middleware"
	"fashionshop/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

// usecaseのエラー種別をHTTPステータスに変換する（変換はここだけ）
func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}

	if se, ok := usecase.AsInsufficientStock(err); ok {
		return c.JSON(http.StatusConflict, ErrorResponse{Error: "insufficient stock", Details: se})
	}

	ue, ok := usecase.AsError(err)
	if !ok {
		logger.Error(c.Request().Context()).Err(err).Str("path", c.Path()).Msg("unhandled error")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}

	status := statusFor(ue.Kind)
	if status == http.StatusInternalServerError {
		logger.Error(c.Request().Context()).Err(err).Str("path", c.Path()).Msg("internal error")
		return c.JSON(status, ErrorResponse{Error: "internal error"})
	}
	return c.JSON(status, ErrorResponse{Error: ue.PublicMessage()})
}

func statusFor(kind error) int {
	switch {
	case errors.Is(kind, usecase.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(kind, usecase.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(kind, usecase.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(kind, usecase.ErrNotFound), errors.Is(kind, usecase.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(kind, usecase.ErrConflict),
		errors.Is(kind, usecase.ErrDuplicateSubscription),
		errors.Is(kind, usecase.ErrProductInStock),
		errors.Is(kind, usecase.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func getUserIDFromContext(c echo.Context) (int64, bool) {
	id, ok := c.Get(middleware.CtxUserIDKey).(int64)
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}

// 認証ミドルウェアが入れた値から呼び出し元を作る。無ければゲスト。
func identityFromContext(c echo.Context) usecase.Identity {
	id, ok := getUserIDFromContext(c)
	if !ok {
		return usecase.Guest()
	}
	role, _ := c.Get(middleware.CtxUserRoleKey).(string)
	return usecase.Identity{UserID: id, Role: model.Role(role)}
}

func parseIDParam(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// page/limitはデフォルト1/20
func pageParams(c echo.Context) (int, int, bool) {
	page, limit := 1, 20
	if v := c.QueryParam("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, false
		}
		page = p
	}
	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, false
		}
		limit = l
	}
	return page, limit, true
}
