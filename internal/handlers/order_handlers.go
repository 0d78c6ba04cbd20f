package handlers

import (
	"net/http"

	"storefront/internal/common"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/labstack/echo/v4"
)

const maxOrderQuantity = 1_000_000

// OrderHandlers handles HTTP requests for orders
type OrderHandlers struct {
	orderService services.OrderService
}

// NewOrderHandlers creates a new order handlers instance
func NewOrderHandlers(orderService services.OrderService) *OrderHandlers {
	return &OrderHandlers{
		orderService: orderService,
	}
}

// BuyRequest is the body of POST /order/buy
type BuyRequest struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// BuyResponse is returned when an order commits
type BuyResponse struct {
	Message        string        `json:"message"`
	Data           *models.Order `json:"data"`
	RemainingStock int           `json:"remaining_stock"`
}

// OrderListResponse wraps the order history
type OrderListResponse struct {
	Message string          `json:"message"`
	Data    []*models.Order `json:"data"`
}

// BuyProduct handles POST /order/buy
//
//	@Summary	Place an order
//	@Tags		orders
//	@Accept		json
//	@Produce	json
//	@Param		body	body		BuyRequest	true	"order"
//	@Success	201		{object}	BuyResponse
//	@Failure	400		{object}	common.ErrorResponse
//	@Failure	404		{object}	common.ErrorResponse
//	@Failure	409		{object}	common.ErrorResponse
//	@Failure	429		{object}	common.ErrorResponse
//	@Router		/order/buy [post]
func (h *OrderHandlers) BuyProduct(c echo.Context) error {
	var req BuyRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	userID, err := common.ValidateUUID(req.UserID, "user_id")
	if err != nil {
		return common.SendValidationError(c, "user_id", err.Error())
	}
	productID, err := common.ValidateUUID(req.ProductID, "product_id")
	if err != nil {
		return common.SendValidationError(c, "product_id", err.Error())
	}
	if err := common.ValidatePositiveInteger(req.Quantity, "quantity", maxOrderQuantity); err != nil {
		return common.SendValidationError(c, "quantity", err.Error())
	}

	placed, err := h.orderService.PlaceOrder(c.Request().Context(), userID, productID, req.Quantity)
	if err != nil {
		return common.SendAppError(c, err)
	}

	return c.JSON(http.StatusCreated, BuyResponse{
		Message:        "Order placed successfully",
		Data:           placed.Order,
		RemainingStock: placed.RemainingStock,
	})
}

// ListOrders handles GET /order/
//
//	@Summary	List all orders
//	@Tags		orders
//	@Produce	json
//	@Success	200	{object}	OrderListResponse
//	@Failure	500	{object}	common.ErrorResponse
//	@Router		/order/ [get]
func (h *OrderHandlers) ListOrders(c echo.Context) error {
	orders, err := h.orderService.ListOrders(c.Request().Context())
	if err != nil {
		return common.SendAppError(c, err)
	}

	message := "Orders retrieved successfully"
	if len(orders) == 0 {
		message = "No orders found"
		orders = []*models.Order{}
	}
	return c.JSON(http.StatusOK, OrderListResponse{Message: message, Data: orders})
}
