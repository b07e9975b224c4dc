package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"shopfront_back_end/internal/middleware"
	"shopfront_back_end/internal/models"
	"shopfront_back_end/internal/services"
)

type OrderHandler struct {
	orders        Orders
	defaultOrigin string
}

func NewOrderHandler(orders Orders, defaultOrigin string) *OrderHandler {
	return &OrderHandler{orders: orders, defaultOrigin: defaultOrigin}
}

// requestOrigin picks the storefront URL checkout redirects back to:
// the Origin header, then the scheme and host of the Referer, then the default.
func (h *OrderHandler) requestOrigin(c *gin.Context) string {
	if o := strings.TrimSpace(c.GetHeader("Origin")); o != "" && o != "null" {
		return o
	}
	if ref := c.GetHeader("Referer"); ref != "" {
		if u, err := url.Parse(ref); err == nil && u.Scheme != "" && u.Host != "" {
			return u.Scheme + "://" + u.Host
		}
	}
	return h.defaultOrigin
}

func (h *OrderHandler) PlaceStripe(c *gin.Context) {
	var in struct {
		Items   []models.OrderItem `json:"items"`
		Amount  float64            `json:"amount"`
		Address models.Address     `json:"address"`
	}
	if !bindJSON(c, &in) {
		return
	}
	res, err := h.orders.PlaceOrder(c.Request.Context(), services.PlaceOrderInput{
		UserID:  middleware.UserID(c),
		Items:   in.Items,
		Amount:  in.Amount,
		Address: in.Address,
		Origin:  h.requestOrigin(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orderId": res.OrderID, "session_url": res.SessionURL})
}

// flexBool accepts true/false and the strings "true"/"false" the checkout redirect carries.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = flexBool(strings.EqualFold(strings.TrimSpace(s), "true"))
		return nil
	}
	var v bool
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*b = flexBool(v)
	return nil
}

func (h *OrderHandler) VerifyStripe(c *gin.Context) {
	var in struct {
		OrderID string   `json:"orderId"`
		Success flexBool `json:"success"`
	}
	if !bindJSON(c, &in) {
		return
	}
	verified, err := h.orders.VerifyPayment(c.Request.Context(), in.OrderID, bool(in.Success), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": verified})
}

func (h *OrderHandler) UserOrders(c *gin.Context) {
	orders, err := h.orders.ListByUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orders": orders})
}

func (h *OrderHandler) AllOrders(c *gin.Context) {
	orders, err := h.orders.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orders": orders})
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var in struct {
		OrderID string `json:"orderId"`
		Status  string `json:"status"`
	}
	if !bindJSON(c, &in) {
		return
	}
	order, err := h.orders.UpdateStatus(c.Request.Context(), in.OrderID, in.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Status Updated", "order": order})
}

func (h *OrderHandler) StripeStats(c *gin.Context) {
	stats, err := h.orders.DashboardStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}
