package handlers

import (
	"net/http"

	"storefront/internal/common"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/labstack/echo/v4"
)

const maxStockQuantity = 1_000_000_000

// ProductHandlers handles HTTP requests for products
type ProductHandlers struct {
	productService services.ProductService
}

// NewProductHandlers creates a new product handlers instance
func NewProductHandlers(productService services.ProductService) *ProductHandlers {
	return &ProductHandlers{
		productService: productService,
	}
}

// ProductRequest is the body of product create and update
type ProductRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	Price           int64  `json:"price"`
	DefaultQuantity int    `json:"default_quantity"`
}

// RestockRequest is the body of POST /admin/product/:id/restock
type RestockRequest struct {
	Quantity int `json:"quantity"`
}

// ProductListResponse wraps the catalog listing
type ProductListResponse struct {
	Message string            `json:"message"`
	Data    []*models.Product `json:"data"`
}

// CreateProduct handles POST /admin/product
//
//	@Summary	Create a product with its stock row
//	@Tags		admin
//	@Security	BearerAuth
//	@Accept		json
//	@Produce	json
//	@Param		body	body		ProductRequest	true	"product"
//	@Success	201		{object}	map[string]interface{}
//	@Failure	400		{object}	common.ErrorResponse
//	@Failure	401		{object}	common.ErrorResponse
//	@Failure	403		{object}	common.ErrorResponse
//	@Router		/admin/product [post]
func (h *ProductHandlers) CreateProduct(c echo.Context) error {
	var req ProductRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := common.ValidateNonNegativeInteger(req.DefaultQuantity, "default_quantity", maxStockQuantity); err != nil {
		return common.SendValidationError(c, "default_quantity", err.Error())
	}

	product := &models.Product{Name: req.Name, Description: req.Description, Price: req.Price}
	created, err := h.productService.Create(c.Request().Context(), product, req.DefaultQuantity)
	if err != nil {
		return common.SendAppError(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message": "Product created successfully",
		"data":    created,
	})
}

// UpdateProduct handles PUT /admin/product/:id
//
//	@Summary	Update a product
//	@Tags		admin
//	@Security	BearerAuth
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string			true	"product id"
//	@Param		body	body		ProductRequest	true	"product"
//	@Success	200		{object}	map[string]interface{}
//	@Failure	404		{object}	common.ErrorResponse
//	@Router		/admin/product/{id} [put]
func (h *ProductHandlers) UpdateProduct(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	var req ProductRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	updated, err := h.productService.Update(c.Request().Context(), &models.Product{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
	})
	if err != nil {
		return common.SendAppError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Product updated successfully",
		"data":    updated,
	})
}

// DeleteProduct handles DELETE /admin/product/:id
//
//	@Summary	Delete a product and its stock
//	@Tags		admin
//	@Security	BearerAuth
//	@Param		id	path		string	true	"product id"
//	@Success	200	{object}	map[string]string
//	@Failure	404	{object}	common.ErrorResponse
//	@Failure	409	{object}	common.ErrorResponse
//	@Router		/admin/product/{id} [delete]
func (h *ProductHandlers) DeleteProduct(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	if err := h.productService.Delete(c.Request().Context(), id); err != nil {
		return common.SendAppError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Product deleted successfully"})
}

// RestockProduct handles POST /admin/product/:id/restock
//
//	@Summary	Add stock to a product
//	@Tags		admin
//	@Security	BearerAuth
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string			true	"product id"
//	@Param		body	body		RestockRequest	true	"quantity"
//	@Success	200		{object}	map[string]interface{}
//	@Failure	404		{object}	common.ErrorResponse
//	@Failure	409		{object}	common.ErrorResponse
//	@Router		/admin/product/{id}/restock [post]
func (h *ProductHandlers) RestockProduct(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	var req RestockRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := common.ValidatePositiveInteger(req.Quantity, "quantity", maxStockQuantity); err != nil {
		return common.SendValidationError(c, "quantity", err.Error())
	}

	stock, err := h.productService.Restock(c.Request().Context(), id, req.Quantity)
	if err != nil {
		return common.SendAppError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Stock updated successfully",
		"data":    stock,
	})
}

// ListProducts handles GET /product/
//
//	@Summary	List products
//	@Tags		products
//	@Produce	json
//	@Success	200	{object}	ProductListResponse
//	@Failure	500	{object}	common.ErrorResponse
//	@Router		/product/ [get]
func (h *ProductHandlers) ListProducts(c echo.Context) error {
	products, err := h.productService.List(c.Request().Context())
	if err != nil {
		return common.SendAppError(c, err)
	}

	message := "Products retrieved successfully"
	if len(products) == 0 {
		message = "No products found"
		products = []*models.Product{}
	}
	return c.JSON(http.StatusOK, ProductListResponse{Message: message, Data: products})
}
