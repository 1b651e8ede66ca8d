package handler

import (
	"net/http"
	"strconv"

	"fashionshop/internal/domain/model"
	"fashionshop/internal/middleware"
	"fashionshop/internal/repository"
	"fashionshop/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// 商品の作成・更新。在庫はここでは変えない（/admin/inventory を使う）。
type ProductUpsertRequest struct {
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Price          decimal.Decimal `json:"price"`
	InitialStock   int64           `json:"initial_stock"`
	MinStockLevel  int64           `json:"min_stock_level"`
	IsActive       bool            `json:"is_active"`
	IsReturnable   bool            `json:"is_returnable"`
	IsExchangeable bool            `json:"is_exchangeable"`
}

type RestockRequest struct {
	Quantity int64  `json:"quantity"`
	Reason   string `json:"reason"`
}

type AdjustStockRequest struct {
	Stock  int64  `json:"stock"`
	Reason string `json:"reason"`
}

// /admin/products と /admin/inventory をまとめる
type AdminProductHandler struct {
	products  *usecase.ProductUsecase
	inventory *usecase.InventoryUsecase
}

// DI
func NewAdminProductHandler(products *usecase.ProductUsecase, inventory *usecase.InventoryUsecase) *AdminProductHandler {
	return &AdminProductHandler{products: products, inventory: inventory}
}

func (h *AdminProductHandler) RegisterRoutes(e *echo.Echo, guards middleware.Guards) {
	admin := e.Group("/admin", guards.Admin...)

	admin.POST("/products", h.createProduct)
	admin.PUT("/products/:id", h.updateProduct)
	admin.DELETE("/products/:id", h.deleteProduct)

	admin.GET("/inventory/movements", h.listMovements)
	admin.POST("/inventory/:product_id/restock", h.restock)
	admin.POST("/inventory/:product_id/adjust", h.adjust)
	admin.GET("/inventory/:product_id/reconcile", h.reconcile)
}

func (req ProductUpsertRequest) toInput() usecase.AdminProductInput {
	return usecase.AdminProductInput{
		Name:           req.Name,
		Description:    req.Description,
		Price:          req.Price,
		InitialStock:   req.InitialStock,
		MinStockLevel:  req.MinStockLevel,
		IsActive:       req.IsActive,
		IsReturnable:   req.IsReturnable,
		IsExchangeable: req.IsExchangeable,
	}
}

func (h *AdminProductHandler) createProduct(c echo.Context) error {
	var req ProductUpsertRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.products.AdminCreateProduct(c.Request().Context(), identityFromContext(c), req.toInput())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *AdminProductHandler) updateProduct(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req ProductUpsertRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	if err := h.products.AdminUpdateProduct(c.Request().Context(), identityFromContext(c), id, req.toInput()); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "updated"})
}

func (h *AdminProductHandler) deleteProduct(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	if err := h.products.AdminDeleteProduct(c.Request().Context(), identityFromContext(c), id); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "deleted"})
}

func (h *AdminProductHandler) restock(c echo.Context) error {
	productID, ok := parseIDParam(c, "product_id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid product_id"})
	}

	var req RestockRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.inventory.Restock(c.Request().Context(), identityFromContext(c), productID, usecase.RestockInput{
		Quantity: req.Quantity,
		Reason:   req.Reason,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminProductHandler) adjust(c echo.Context) error {
	productID, ok := parseIDParam(c, "product_id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid product_id"})
	}

	var req AdjustStockRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.inventory.Adjust(c.Request().Context(), identityFromContext(c), productID, usecase.AdjustStockInput{
		NewStock: req.Stock,
		Reason:   req.Reason,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminProductHandler) listMovements(c echo.Context) error {
	page, limit, ok := pageParams(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid page or limit"})
	}

	f := repository.MovementFilter{Page: page, Limit: limit}
	if v := c.QueryParam("product_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid product_id"})
		}
		f.ProductID = &id
	}
	if v := c.QueryParam("order_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid order_id"})
		}
		f.OrderID = &id
	}
	if v := c.QueryParam("type"); v != "" {
		t := model.MovementType(v)
		if t != model.MovementIn && t != model.MovementOut {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid type"})
		}
		f.Type = &t
	}

	out, err := h.inventory.ListMovements(c.Request().Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminProductHandler) reconcile(c echo.Context) error {
	productID, ok := parseIDParam(c, "product_id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid product_id"})
	}

	out, err := h.inventory.Reconcile(c.Request().Context(), productID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
