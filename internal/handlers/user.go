package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	accounts Accounts
}

func NewUserHandler(accounts Accounts) *UserHandler {
	return &UserHandler{accounts: accounts}
}

type credentials struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *UserHandler) Register(c *gin.Context) {
	var in credentials
	if !bindJSON(c, &in) {
		return
	}
	res, err := h.accounts.Register(c.Request.Context(), in.Name, in.Email, in.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"token":   res.Token,
		"message": "User registered successfully",
	})
}

func (h *UserHandler) Login(c *gin.Context) {
	var in credentials
	if !bindJSON(c, &in) {
		return
	}
	res, err := h.accounts.Login(c.Request.Context(), in.Email, in.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   res.Token,
		"message": "User logged in successfully",
	})
}

func (h *UserHandler) AdminLogin(c *gin.Context) {
	var in credentials
	if !bindJSON(c, &in) {
		return
	}
	res, err := h.accounts.AdminLogin(c.Request.Context(), in.Email, in.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   res.Token,
		"role":    res.User.Role,
		"message": "User logged in successfully",
	})
}
