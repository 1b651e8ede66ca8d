package handler

import (
	"net/http"

	"fashionshop/internal/middleware"
	"fashionshop/internal/usecase"

	"github.com/labstack/echo/v4"
)

type StockNotificationHandler struct {
	uc *usecase.StockNotificationUsecase
}

func NewStockNotificationHandler(uc *usecase.StockNotificationUsecase) *StockNotificationHandler {
	return &StockNotificationHandler{uc: uc}
}

// emailはゲストのみ必要
type SubscribeRequest struct {
	ProductID int64  `json:"product_id"`
	Email     string `json:"email"`
}

func (h *StockNotificationHandler) RegisterRoutes(e *echo.Echo, guards middleware.Guards) {
	subscribe := append(append([]echo.MiddlewareFunc{}, guards.Optional...), guards.Limited)
	e.POST("/stock-notifications", h.subscribe, subscribe...)

	g := e.Group("/stock-notifications", guards.Required...)
	g.GET("", h.listMine)
	g.DELETE("/:product_id", h.unsubscribe)
}

func (h *StockNotificationHandler) subscribe(c echo.Context) error {
	var req SubscribeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.Subscribe(c.Request().Context(), identityFromContext(c), usecase.SubscribeInput{
		ProductID: req.ProductID,
		Email:     req.Email,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *StockNotificationHandler) listMine(c echo.Context) error {
	out, err := h.uc.ListMine(c.Request().Context(), identityFromContext(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *StockNotificationHandler) unsubscribe(c echo.Context) error {
	productID, ok := parseIDParam(c, "product_id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid product_id"})
	}

	if err := h.uc.Unsubscribe(c.Request().Context(), identityFromContext(c), productID); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
