package handler

import (
	"net/http"

	"fashionshop/internal/middleware"
	"fashionshop/internal/usecase"

	"github.com/labstack/echo/v4"
)

const headerIdempotencyKey = "X-Idempotency-Key"

type OrderHandler struct {
	uc        *usecase.OrderUsecase
	lifecycle *usecase.OrderLifecycleUsecase
}

func NewOrderHandler(uc *usecase.OrderUsecase, lifecycle *usecase.OrderLifecycleUsecase) *OrderHandler {
	return &OrderHandler{uc: uc, lifecycle: lifecycle}
}

// itemsが空ならカートから注文する（ログイン時のみ）
type OrderCreateRequest struct {
	Items            []usecase.OrderLineInput `json:"items"`
	AddressID        int64                    `json:"address_id"`
	InvoiceAddressID int64                    `json:"invoice_address_id"`
	Address          *usecase.AddressInput    `json:"address"`
	InvoiceAddress   *usecase.AddressInput    `json:"invoice_address"`
	Guest            *usecase.GuestInput      `json:"guest"`
	ShippingMethod   string                   `json:"shipping_method"`
	PaymentMethod    string                   `json:"payment_method"`
	InvoiceType      string                   `json:"invoice_type"`
	TaxID            string                   `json:"tax_id"`
	TaxOffice        string                   `json:"tax_office"`
	CompanyTitle     string                   `json:"company_title"`
	Note             string                   `json:"note"`
}

type ReasonRequest struct {
	Reason string `json:"reason"`
}

type ExchangeRequest struct {
	Reason             string `json:"reason"`
	OrderItemID        int64  `json:"order_item_id"`
	RequestedProductID int64  `json:"requested_product_id"`
	RequestedSize      string `json:"requested_size"`
	RequestedColor     string `json:"requested_color"`
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo, guards middleware.Guards) {
	// ゲスト注文も受ける
	create := append(append([]echo.MiddlewareFunc{}, guards.Optional...), guards.Limited)
	e.POST("/orders", h.create, create...)

	g := e.Group("/orders", guards.Required...)
	g.GET("", h.list)
	g.GET("/:id", h.detail)
	g.POST("/:id/cancellation", h.requestCancellation)
	g.POST("/:id/return", h.requestReturn)
	g.POST("/:id/exchange", h.requestExchange)
}

func (h *OrderHandler) create(c echo.Context) error {
	var req OrderCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	//二重送信防止キーはヘッダーから受け取る（bodyには入れない）
	idemKey := c.Request().Header.Get(headerIdempotencyKey)

	out, err := h.uc.PlaceOrder(c.Request().Context(), identityFromContext(c), usecase.PlaceOrderInput{
		Items:            req.Items,
		AddressID:        req.AddressID,
		InvoiceAddressID: req.InvoiceAddressID,
		Address:          req.Address,
		InvoiceAddress:   req.InvoiceAddress,
		Guest:            req.Guest,
		ShippingMethod:   req.ShippingMethod,
		PaymentMethod:    req.PaymentMethod,
		InvoiceType:      req.InvoiceType,
		TaxID:            req.TaxID,
		TaxOffice:        req.TaxOffice,
		CompanyTitle:     req.CompanyTitle,
		Note:             req.Note,
		IdempotencyKey:   idemKey,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, out)
}

func (h *OrderHandler) list(c echo.Context) error {
	page, limit, ok := pageParams(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid page or limit"})
	}

	out, err := h.uc.ListMyOrders(c.Request().Context(), identityFromContext(c), page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.uc.GetMyOrder(c.Request().Context(), identityFromContext(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) requestCancellation(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}
	var req ReasonRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.lifecycle.RequestCancellation(c.Request().Context(), identityFromContext(c), id, req.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) requestReturn(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}
	var req ReasonRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.lifecycle.RequestReturn(c.Request().Context(), identityFromContext(c), id, req.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) requestExchange(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}
	var req ExchangeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.lifecycle.RequestExchange(c.Request().Context(), identityFromContext(c), id, usecase.ExchangeRequestInput{
		Reason:             req.Reason,
		OrderItemID:        req.OrderItemID,
		RequestedProductID: req.RequestedProductID,
		RequestedSize:      req.RequestedSize,
		RequestedColor:     req.RequestedColor,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
