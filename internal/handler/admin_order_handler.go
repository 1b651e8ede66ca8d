package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"fashionshop/internal/middleware"
	"fashionshop/internal/repository"
	"fashionshop/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AdminOrderHandler struct {
	uc *usecase.AdminOrderUsecase
}

func NewAdminOrderHandler(uc *usecase.AdminOrderUsecase) *AdminOrderHandler {
	return &AdminOrderHandler{uc: uc}
}

type AdvanceOrderRequest struct {
	TrackingNumber string `json:"tracking_number"`
	Note           string `json:"note"`
}

type AdminDecisionRequest struct {
	Note string `json:"note"`
}

type decisionFunc func(ctx context.Context, actor usecase.Identity, orderID int64, in usecase.AdminDecisionInput) (usecase.OrderOutput, error)

func (h *AdminOrderHandler) RegisterRoutes(e *echo.Echo, guards middleware.Guards) {
	admin := e.Group("/admin/orders", guards.Admin...)

	admin.GET("", h.list)
	admin.POST("/:id/advance", h.advance)
	admin.POST("/:id/cancel", h.decision(h.uc.Cancel))
	admin.POST("/:id/cancellation/approve", h.decision(h.uc.ApproveCancellation))
	admin.POST("/:id/cancellation/reject", h.decision(h.uc.RejectCancellation))
	admin.POST("/:id/return/approve", h.decision(h.uc.ApproveReturn))
	admin.POST("/:id/return/reject", h.decision(h.uc.RejectReturn))
	admin.POST("/:id/exchange/approve", h.decision(h.uc.ApproveExchange))
	admin.POST("/:id/exchange/reject", h.decision(h.uc.RejectExchange))
}

func (h *AdminOrderHandler) list(c echo.Context) error {
	page, limit, ok := pageParams(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid page or limit"})
	}

	var userID *int64
	if v := c.QueryParam("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user_id"})
		}
		userID = &id
	}

	var fromPtr *time.Time
	if v := c.QueryParam("from"); v != "" {
		tm, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid from"})
		}
		fromPtr = &tm
	}

	var toPtr *time.Time
	if v := c.QueryParam("to"); v != "" {
		tm, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid to"})
		}
		toPtr = &tm
	}

	out, err := h.uc.List(c.Request().Context(), identityFromContext(c), repository.AdminOrderListFilter{
		Page:   page,
		Limit:  limit,
		Status: c.QueryParam("status"),
		UserID: userID,
		From:   fromPtr,
		To:     toPtr,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) advance(c echo.Context) error {
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req AdvanceOrderRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.Advance(c.Request().Context(), identityFromContext(c), orderID, usecase.AdvanceOrderInput{
		TrackingNumber: req.TrackingNumber,
		Note:           req.Note,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 承認・却下系は入力が同じなので1つにまとめる
func (h *AdminOrderHandler) decision(fn decisionFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		orderID, ok := parseIDParam(c, "id")
		if !ok {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
		}

		var req AdminDecisionRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
		}

		out, err := fn(c.Request().Context(), identityFromContext(c), orderID, usecase.AdminDecisionInput{Note: req.Note})
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, out)
	}
}
