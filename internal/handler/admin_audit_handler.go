package handler

import (
	"net/http"
	"strconv"
	"time"

	"fashionshop/internal/domain/model"
	"fashionshop/internal/middleware"
	"fashionshop/internal/repository"
	"fashionshop/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AdminAuditHandler struct {
	uc *usecase.AuditLogUsecase
}

func NewAdminAuditHandler(uc *usecase.AuditLogUsecase) *AdminAuditHandler {
	return &AdminAuditHandler{uc: uc}
}

func (h *AdminAuditHandler) RegisterRoutes(e *echo.Echo, guards middleware.Guards) {
	admin := e.Group("/admin", guards.Admin...)
	admin.GET("/audit-logs", h.list)
}

// GET /admin/audit-logs?resource_type=order&resource_id=12&from=...
func (h *AdminAuditHandler) list(c echo.Context) error {
	page, limit, ok := pageParams(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid page or limit"})
	}

	f := repository.AuditLogFilter{
		Page:         page,
		Limit:        limit,
		Action:       model.AuditAction(c.QueryParam("action")),
		ResourceType: model.AuditResourceType(c.QueryParam("resource_type")),
	}

	for name, dst := range map[string]**int64{"actor_user_id": &f.ActorUserID, "resource_id": &f.ResourceID} {
		v := c.QueryParam(name)
		if v == "" {
			continue
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + name})
		}
		*dst = &id
	}

	for name, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		v := c.QueryParam(name)
		if v == "" {
			continue
		}
		tm, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + name})
		}
		*dst = &tm
	}

	out, err := h.uc.List(c.Request().Context(), identityFromContext(c), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
