package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shopfront_back_end/internal/middleware"
)

type CartHandler struct {
	carts Carts
}

func NewCartHandler(carts Carts) *CartHandler {
	return &CartHandler{carts: carts}
}

type cartLine struct {
	ItemID   string `json:"itemId"`
	Size     string `json:"size"`
	Quantity int    `json:"quantity"`
}

func (h *CartHandler) Get(c *gin.Context) {
	cart, err := h.carts.Get(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cartData": cart})
}

func (h *CartHandler) Add(c *gin.Context) {
	var in cartLine
	if !bindJSON(c, &in) {
		return
	}
	cart, err := h.carts.Add(c.Request.Context(), middleware.UserID(c), in.ItemID, in.Size)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Added To Cart", "cartData": cart})
}

func (h *CartHandler) Update(c *gin.Context) {
	var in cartLine
	if !bindJSON(c, &in) {
		return
	}
	cart, err := h.carts.Update(c.Request.Context(), middleware.UserID(c), in.ItemID, in.Size, in.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Cart Updated", "cartData": cart})
}

func (h *CartHandler) Remove(c *gin.Context) {
	var in cartLine
	if !bindJSON(c, &in) {
		return
	}
	cart, err := h.carts.Remove(c.Request.Context(), middleware.UserID(c), in.ItemID, in.Size)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Cart cleared", "cartData": cart})
}
