package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nursace/storefront/internal/core/domain"
	"github.com/nursace/storefront/internal/core/service"
	"github.com/nursace/storefront/internal/port"
)

// Script names the gateway signs its callbacks with: the last path segment
// of the callback URL.
const (
	checkScript  = "check"
	resultScript = "result"
)

type HTTPHandler struct {
	checkout *service.CheckoutService
	orders   *service.OrderService
	cart     *service.CartService
	gateway  port.PaymentGateway
}

func NewHTTPHandler(checkout *service.CheckoutService, orders *service.OrderService, cart *service.CartService, gateway port.PaymentGateway) *HTTPHandler {
	return &HTTPHandler{checkout: checkout, orders: orders, cart: cart, gateway: gateway}
}

func (h *HTTPHandler) Register(r *gin.Engine) {
	r.GET("/health", h.HealthCheck)

	r.POST("/orders/checkout", h.Checkout)
	r.POST("/orders/payment/check", h.PaymentCheck)
	r.POST("/orders/payment/result", h.PaymentResult)
	r.POST("/orders/:id/cancel", h.CancelOrder)
	r.POST("/orders/:id/payment-link", h.PaymentLink)
	r.GET("/orders/:id", h.GetOrder)
	r.GET("/orders", h.ListOrders)
	r.GET("/orders/last-order-info", h.LastOrderInfo)

	r.POST("/cart", h.AddToCart)
	r.GET("/cart", h.GetCart)
	r.GET("/cart/count", h.CartCount)
	r.PUT("/cart/update-count", h.UpdateCartCount)
	r.DELETE("/cart/remove", h.RemoveFromCart)
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type checkoutRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`

	Email        string `json:"email"`
	FirstName    string `json:"first_name" binding:"required"`
	LastName     string `json:"last_name" binding:"required"`
	AddressLine1 string `json:"address_line1" binding:"required"`
	City         string `json:"city" binding:"required"`
	Region       string `json:"region" binding:"required"`
	PostalCode   string `json:"postal_code" binding:"required"`
	Phone        string `json:"phone" binding:"required"`
	OrderNote    string `json:"order_note"`
	IsSave       bool   `json:"is_save"`
}

func (h *HTTPHandler) Checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errJSON(c, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}
	owner, err := parseOwner(req.UserID, req.SessionID)
	if err != nil {
		errJSON(c, http.StatusBadRequest, "MissingOwner", err.Error())
		return
	}

	resp, err := h.checkout.Checkout(c.Request.Context(), service.CheckoutRequest{
		Owner: owner,
		Info: domain.OrderInfo{
			Email:        req.Email,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			AddressLine1: req.AddressLine1,
			City:         req.City,
			Region:       req.Region,
			PostalCode:   req.PostalCode,
			Phone:        req.Phone,
			OrderNote:    req.OrderNote,
		},
		SaveInfo: req.IsSave,
	})
	if errors.Is(err, service.ErrPaymentLink) {
		// The order committed; only the redirect failed. Report the id so the
		// caller can retry link generation.
		c.JSON(http.StatusBadGateway, gin.H{
			"order_id": resp.OrderID,
			"error":    gin.H{"kind": "PaymentLinkFailed", "message": "payment link generation failed, retry later"},
		})
		return
	}
	if err != nil {
		h.domainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id":    resp.OrderID,
		"payment_url": resp.PaymentURL,
	})
}

func (h *HTTPHandler) PaymentLink(c *gin.Context) {
	orderID, ok := pathOrderID(c)
	if !ok {
		return
	}
	url, err := h.checkout.PaymentLink(c.Request.Context(), orderID)
	if err != nil {
		h.domainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "payment_url": url})
}

// PaymentCheck is the gateway's pre-authorization probe. The gateway treats
// any non-200 as a transport failure, so outcomes ride in the body.
func (h *HTTPHandler) PaymentCheck(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		writeCheckReply(c, service.CallbackReply{Description: "Invalid form data"})
		return
	}
	form := c.Request.PostForm
	if !h.gateway.VerifyCallback(checkScript, form) {
		writeCheckReply(c, service.CallbackReply{Description: "Invalid signature"})
		return
	}

	orderID, err := strconv.ParseInt(form.Get("pg_order_id"), 10, 64)
	if err != nil {
		writeCheckReply(c, service.CallbackReply{Description: "Missing pg_order_id"})
		return
	}
	amount := form.Get("pg_amount")
	if amount == "" {
		writeCheckReply(c, service.CallbackReply{Description: "Missing pg_amount"})
		return
	}

	writeCheckReply(c, h.orders.CheckPayment(c.Request.Context(), orderID, amount))
}

// PaymentResult applies the gateway's verdict. Always 200; duplicates are
// absorbed downstream.
func (h *HTTPHandler) PaymentResult(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		writeResultReply(c, service.CallbackReply{Description: "Invalid form data"})
		return
	}
	form := c.Request.PostForm
	if !h.gateway.VerifyCallback(resultScript, form) {
		writeResultReply(c, service.CallbackReply{Description: "Invalid signature"})
		return
	}

	orderID, err := strconv.ParseInt(form.Get("pg_order_id"), 10, 64)
	if err != nil {
		writeResultReply(c, service.CallbackReply{Description: "Missing pg_order_id"})
		return
	}

	writeResultReply(c, h.orders.HandlePaymentResult(c.Request.Context(), service.PaymentResult{
		OrderID:    orderID,
		PaymentID:  form.Get("pg_payment_id"),
		Amount:     form.Get("pg_amount"),
		ResultCode: form.Get("pg_result"),
	}))
}

// The two callbacks answer in the gateway's respective vocabularies.
func writeCheckReply(c *gin.Context, reply service.CallbackReply) {
	if reply.OK {
		c.JSON(http.StatusOK, gin.H{"pg_status": "ok"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pg_status": "error", "pg_error_description": reply.Description})
}

func writeResultReply(c *gin.Context, reply service.CallbackReply) {
	if reply.OK {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "error", "message": reply.Description})
}

func (h *HTTPHandler) CancelOrder(c *gin.Context) {
	orderID, ok := pathOrderID(c)
	if !ok {
		return
	}
	if err := h.orders.Cancel(c.Request.Context(), orderID); err != nil {
		h.domainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order cancelled"})
}

func (h *HTTPHandler) GetOrder(c *gin.Context) {
	orderID, ok := pathOrderID(c)
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.domainError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderJSON(order))
}

func (h *HTTPHandler) ListOrders(c *gin.Context) {
	owner, err := parseOwner(c.Query("user_id"), c.Query("session_id"))
	if err != nil {
		errJSON(c, http.StatusBadRequest, "MissingOwner", err.Error())
		return
	}
	sort := domain.OrderSort{
		ByID:    c.Query("sort_by_id"),
		ByPrice: c.Query("sort_by_price"),
		ByDate:  c.Query("sort_by_date"),
	}
	orders, err := h.orders.ListOrders(c.Request.Context(), owner, sort)
	if err != nil {
		h.domainError(c, err)
		return
	}
	out := make([]gin.H, len(orders))
	for i := range orders {
		out[i] = orderJSON(&orders[i])
	}
	c.JSON(http.StatusOK, out)
}

func (h *HTTPHandler) LastOrderInfo(c *gin.Context) {
	userID, err := uuid.Parse(c.Query("user_id"))
	if err != nil {
		errJSON(c, http.StatusBadRequest, "BadRequest", "valid user_id required")
		return
	}
	info, err := h.orders.LastOrderInfo(c.Request.Context(), userID)
	if err != nil {
		h.domainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"first_name":    info.FirstName,
		"last_name":     info.LastName,
		"address_line1": info.AddressLine1,
		"city":          info.City,
		"region":        info.Region,
		"postal_code":   info.PostalCode,
		"phone":         info.Phone,
		"email":         info.Email,
		"order_note":    info.OrderNote,
	})
}

type addToCartRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	ProductID int64  `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

func (h *HTTPHandler) AddToCart(c *gin.Context) {
	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errJSON(c, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	owner, err := parseOwner(req.UserID, req.SessionID)
	if err != nil {
		errJSON(c, http.StatusBadRequest, "MissingOwner", err.Error())
		return
	}

	line, err := h.cart.Add(c.Request.Context(), owner, req.ProductID, req.Quantity)
	if err != nil {
		h.domainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         line.ID,
		"product_id": line.ProductID,
		"quantity":   line.Quantity,
	})
}

func (h *HTTPHandler) GetCart(c *gin.Context) {
	owner, err := parseOwner(c.Query("user_id"), c.Query("session_id"))
	if err != nil {
		errJSON(c, http.StatusBadRequest, "MissingOwner", err.Error())
		return
	}
	lines, err := h.cart.Lines(c.Request.Context(), owner)
	if err != nil {
		h.domainError(c, err)
		return
	}
	out := make([]gin.H, len(lines))
	for i, l := range lines {
		entry := gin.H{
			"id":         l.ID,
			"product_id": l.ProductID,
			"quantity":   l.Quantity,
			"added_at":   l.AddedAt,
		}
		if l.Product != nil {
			entry["product"] = gin.H{
				"good_id":      l.Product.GoodID,
				"good_name":    l.Product.GoodName,
				"retail_price": l.Product.RetailPrice.StringFixed(2),
				"display":      l.Product.Display,
			}
		}
		out[i] = entry
	}
	c.JSON(http.StatusOK, out)
}

func (h *HTTPHandler) CartCount(c *gin.Context) {
	owner, err := parseOwner(c.Query("user_id"), c.Query("session_id"))
	if err != nil {
		errJSON(c, http.StatusBadRequest, "MissingOwner", err.Error())
		return
	}
	count, err := h.cart.Count(c.Request.Context(), owner)
	if err != nil {
		h.domainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *HTTPHandler) UpdateCartCount(c *gin.Context) {
	owner, err := parseOwner(c.Query("user_id"), c.Query("session_id"))
	if err != nil {
		errJSON(c, http.StatusBadRequest, "MissingOwner", err.Error())
		return
	}
	productID, err := strconv.ParseInt(c.Query("product_id"), 10, 64)
	if err != nil {
		errJSON(c, http.StatusBadRequest, "BadRequest", "valid product_id required")
		return
	}
	quantity, err := strconv.Atoi(c.Query("new_quantity"))
	if err != nil {
		errJSON(c, http.StatusBadRequest, "BadRequest", "valid new_quantity required")
		return
	}

	if err := h.cart.SetQuantity(c.Request.Context(), owner, productID, quantity); err != nil {
		h.domainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Quantity updated"})
}

func (h *HTTPHandler) RemoveFromCart(c *gin.Context) {
	owner, err := parseOwner(c.Query("user_id"), c.Query("session_id"))
	if err != nil {
		errJSON(c, http.StatusBadRequest, "MissingOwner", err.Error())
		return
	}
	productID, err := strconv.ParseInt(c.Query("product_id"), 10, 64)
	if err != nil {
		errJSON(c, http.StatusBadRequest, "BadRequest", "valid product_id required")
		return
	}

	if err := h.cart.Remove(c.Request.Context(), owner, productID); err != nil {
		h.domainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// domainError maps service errors to a machine-readable kind and status.
func (h *HTTPHandler) domainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrMissingOwner):
		errJSON(c, http.StatusBadRequest, "MissingOwner", err.Error())
	case errors.Is(err, domain.ErrEmptyCart):
		errJSON(c, http.StatusBadRequest, "EmptyCart", err.Error())
	case errors.Is(err, service.ErrInvalidQuantity):
		errJSON(c, http.StatusBadRequest, "InvalidQuantity", err.Error())
	case errors.Is(err, domain.ErrProductUnavailable):
		errJSON(c, http.StatusConflict, "ProductUnavailable", err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		errJSON(c, http.StatusConflict, "InsufficientStock", err.Error())
	case errors.Is(err, domain.ErrBelowMinimumOrder):
		errJSON(c, http.StatusConflict, "BelowMinimumOrder", err.Error())
	case errors.Is(err, domain.ErrAlreadyPaid):
		errJSON(c, http.StatusConflict, "AlreadyPaid", err.Error())
	case errors.Is(err, service.ErrNotPayable):
		errJSON(c, http.StatusConflict, "NotPayable", err.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		errJSON(c, http.StatusNotFound, "OrderNotFound", err.Error())
	case errors.Is(err, domain.ErrOrderInfoNotFound):
		errJSON(c, http.StatusNotFound, "OrderInfoNotFound", err.Error())
	case errors.Is(err, domain.ErrCartLineNotFound):
		errJSON(c, http.StatusNotFound, "CartLineNotFound", err.Error())
	case errors.Is(err, service.ErrPaymentLink):
		errJSON(c, http.StatusBadGateway, "PaymentLinkFailed", err.Error())
	default:
		errJSON(c, http.StatusInternalServerError, "InternalError", "internal error")
	}
}

func errJSON(c *gin.Context, status int, kind, message string) {
	c.JSON(status, gin.H{"error": gin.H{"kind": kind, "message": message}})
}

func pathOrderID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		errJSON(c, http.StatusBadRequest, "BadRequest", "valid order id required")
		return 0, false
	}
	return id, true
}

// parseOwner accepts exactly one of the two ids; empty strings mean absent.
func parseOwner(userID, sessionID string) (domain.Owner, error) {
	var owner domain.Owner
	if userID != "" {
		id, err := uuid.Parse(userID)
		if err != nil {
			return owner, err
		}
		owner.UserID = &id
	}
	if sessionID != "" {
		id, err := uuid.Parse(sessionID)
		if err != nil {
			return owner, err
		}
		owner.SessionID = &id
	}
	if !owner.Valid() {
		return owner, domain.ErrMissingOwner
	}
	return owner, nil
}

func orderJSON(o *domain.Order) gin.H {
	out := gin.H{
		"id":          o.ID,
		"total_price": o.TotalPrice.StringFixed(2),
		"status":      o.Status.String(),
		"created_at":  o.CreatedAt.Format(time.RFC3339),
	}
	if o.UserID != nil {
		out["user_id"] = o.UserID.String()
	}
	if o.SessionID != nil {
		out["session_id"] = o.SessionID.String()
	}
	if len(o.Items) > 0 {
		items := make([]gin.H, len(o.Items))
		for i, it := range o.Items {
			items[i] = gin.H{
				"product_id":   it.ProductID,
				"product_name": it.ProductName,
				"quantity":     it.Quantity,
				"price":        it.Price.StringFixed(2),
			}
		}
		out["items"] = items
	}
	if o.Info != nil {
		out["info"] = gin.H{
			"first_name":    o.Info.FirstName,
			"last_name":     o.Info.LastName,
			"address_line1": o.Info.AddressLine1,
			"city":          o.Info.City,
			"region":        o.Info.Region,
			"postal_code":   o.Info.PostalCode,
			"phone":         o.Info.Phone,
			"email":         o.Info.Email,
			"order_note":    o.Info.OrderNote,
		}
	}
	return out
}
