// Package handlers exposes the shop services over HTTP.
package handlers

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"shopfront_back_end/internal/apperr"
	"shopfront_back_end/internal/logging"
	"shopfront_back_end/internal/models"
	"shopfront_back_end/internal/services"
)

type Accounts interface {
	Register(ctx context.Context, name, email, password string) (*services.AuthResult, error)
	Login(ctx context.Context, email, password string) (*services.AuthResult, error)
	AdminLogin(ctx context.Context, email, password string) (*services.AuthResult, error)
}

type Catalog interface {
	Add(ctx context.Context, in services.ProductInput, images []services.ImageUpload) (*models.Product, error)
	List(ctx context.Context) ([]models.Product, error)
	Get(ctx context.Context, id string) (*models.Product, error)
	Delete(ctx context.Context, id string) (*models.Product, error)
	Search(ctx context.Context, query string) ([]models.Product, error)
}

type Carts interface {
	Get(ctx context.Context, userID string) (models.CartData, error)
	Add(ctx context.Context, userID, itemID, size string) (models.CartData, error)
	Update(ctx context.Context, userID, itemID, size string, quantity int) (models.CartData, error)
	Remove(ctx context.Context, userID, itemID, size string) (models.CartData, error)
}

type Orders interface {
	PlaceOrder(ctx context.Context, in services.PlaceOrderInput) (*services.PlaceOrderResult, error)
	VerifyPayment(ctx context.Context, orderID string, success bool, userID string) (bool, error)
	ListAll(ctx context.Context) ([]models.Order, error)
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
	UpdateStatus(ctx context.Context, orderID, status string) (*models.Order, error)
	DashboardStats(ctx context.Context) (*models.DashboardStats, error)
}

var errBadBody = apperr.Validation("Invalid request body")

// respondError writes the {success:false, message, errors?} envelope for err.
func respondError(c *gin.Context, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		err = apperr.Upstream("Request timed out", err)
	}
	status := apperr.HTTPStatus(err)
	e := apperr.From(err)
	if status >= 500 {
		_ = c.Error(err)
		logging.FromContext(c.Request.Context()).Error("request failed", "error", err)
	}
	body := gin.H{"success": false, "message": e.Message}
	if len(e.Details) > 0 {
		body["errors"] = e.Details
	}
	c.JSON(status, body)
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, errBadBody)
		return false
	}
	return true
}
