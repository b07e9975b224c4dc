package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"shopfront_back_end/internal/cache"
	"shopfront_back_end/internal/handlers"
	"shopfront_back_end/internal/metrics"
	"shopfront_back_end/internal/middleware"
)

// Deps carries everything the router wires. Limits and Metrics may be nil.
type Deps struct {
	Users      *handlers.UserHandler
	Products   *handlers.ProductHandler
	Carts      *handlers.CartHandler
	CartSocket *handlers.CartSocket
	Orders     *handlers.OrderHandler

	Tokens     middleware.TokenParser
	UserFinder middleware.UserFinder
	Limits     *cache.RateCounter
	Metrics    *metrics.Metrics
	Log        *slog.Logger
	Origins    []string
	ReqTimeout time.Duration
}

func New(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(d.Log))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     d.Origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "token"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "API Working")
	})

	auth := middleware.Authenticate(d.Tokens, d.UserFinder)
	admin := []gin.HandlerFunc{auth, middleware.RequireAdmin()}

	api := r.Group("/api/v1")

	// registered before the timeout: the socket outlives a request
	api.GET("/cart/ws", auth, d.CartSocket.Serve)

	api.Use(middleware.Timeout(d.ReqTimeout))

	user := api.Group("/user")
	{
		login, register := []gin.HandlerFunc{}, []gin.HandlerFunc{}
		if d.Limits != nil {
			login = append(login, middleware.LoginRateLimit(d.Limits))
			register = append(register, middleware.RegisterRateLimit(d.Limits))
		}
		user.POST("/register", append(register, d.Users.Register)...)
		user.POST("/login", append(login, d.Users.Login)...)
		user.POST("/admin", append(login, d.Users.AdminLogin)...)
	}

	product := api.Group("/product")
	{
		product.GET("/list", d.Products.List)
		search := []gin.HandlerFunc{}
		if d.Limits != nil {
			search = append(search, middleware.SearchRateLimit(d.Limits))
		}
		product.GET("/search", append(search, d.Products.Search)...)
		product.GET("/:id", d.Products.Get)
		product.POST("/add", append(admin, d.Products.Add)...)
		product.DELETE("/:id", append(admin, d.Products.Delete)...)
	}

	cart := api.Group("/cart", auth)
	{
		if d.Limits != nil {
			cart.Use(middleware.CartRateLimit(d.Limits))
		}
		cart.GET("/get-cart", d.Carts.Get)
		cart.POST("/add-cart", d.Carts.Add)
		cart.POST("/update-cart", d.Carts.Update)
		cart.DELETE("/delete-cart", d.Carts.Remove)
	}

	order := api.Group("/order")
	{
		order.POST("/place-order-stripe", auth, d.Orders.PlaceStripe)
		order.POST("/verify-stripe", auth, d.Orders.VerifyStripe)
		order.GET("/user-orders", auth, d.Orders.UserOrders)
		order.GET("/all-orders", append(admin, d.Orders.AllOrders)...)
		order.POST("/update-status", append(admin, d.Orders.UpdateStatus)...)
		order.GET("/stripe-stats", append(admin, d.Orders.StripeStats)...)
	}

	return r
}
