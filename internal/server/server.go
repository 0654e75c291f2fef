package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kihuni/Hoodie-Hub/internal/config"
	"github.com/kihuni/Hoodie-Hub/internal/domain"
	"github.com/kihuni/Hoodie-Hub/internal/infrastructure/receipt"
	"github.com/kihuni/Hoodie-Hub/internal/metrics"
	"github.com/kihuni/Hoodie-Hub/internal/usecase"
)

const sessionHeader = "X-Session-Key"

type Server struct {
	cfg       config.Config
	catalog   *usecase.CatalogService
	carts     *usecase.CartService
	checkout  *usecase.CheckoutService
	reconcile *usecase.ReconcileService
	orders    *usecase.OrderService
	auth      *usecase.AuthService
	receipts  *receipt.Generator
	engine    *gin.Engine
}

type Deps struct {
	Catalog   *usecase.CatalogService
	Carts     *usecase.CartService
	Checkout  *usecase.CheckoutService
	Reconcile *usecase.ReconcileService
	Orders    *usecase.OrderService
	Auth      *usecase.AuthService
	Receipts  *receipt.Generator
}

func New(cfg config.Config, deps Deps) *Server {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{
		cfg:       cfg,
		catalog:   deps.Catalog,
		carts:     deps.Carts,
		checkout:  deps.Checkout,
		reconcile: deps.Reconcile,
		orders:    deps.Orders,
		auth:      deps.Auth,
		receipts:  deps.Receipts,
		engine:    gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.cors())
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", gin.WrapH(metrics.Handler()))
	s.engine.GET("/sitemap.xml", s.handleSitemap)

	api := s.engine.Group("/api")
	api.GET("/products", s.handleListProducts)
	api.GET("/products/:id", s.handleGetProduct)
	api.GET("/products/:id/stock", s.handleCheckStock)

	api.POST("/auth/register", s.handleRegister)
	api.POST("/auth/login", s.handleLogin)
	api.POST("/auth/logout", s.identity(), s.handleLogout)

	cart := api.Group("/cart", s.identity())
	cart.GET("", s.handleGetCart)
	cart.POST("/items", s.handleAddItem)
	cart.PUT("/items/:id", s.handleUpdateItem)
	cart.DELETE("/items/:id", s.handleRemoveItem)

	api.POST("/checkout", s.identity(), s.handleCheckout)
	api.POST("/mpesa/callback", s.handleCallback)

	ord := api.Group("/orders", s.identity())
	ord.GET("", s.handleListOrders)
	ord.GET("/:id", s.handleGetOrder)
	ord.GET("/:id/status", s.handleOrderStatus)
	ord.POST("/:id/cancel", s.handleCancelOrder)
	ord.POST("/:id/fulfill", s.handleFulfillOrder)
	ord.GET("/:id/receipt", s.handleOrderReceipt)
}

func (s *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, "+sessionHeader)
		c.Header("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// identity resolves the caller to a cart owner: a verified bearer token
// names a user, otherwise the session key header is used. A caller with
// neither gets a fresh session key, echoed back in the response header.
func (s *Server) identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) > 7 && authz[:7] == "Bearer " {
			if user, err := s.auth.Verify(c.Request.Context(), authz[7:]); err == nil {
				c.Set("user", user)
				c.Set("ref", domain.CartRef{UserID: user.UserID})
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		key := c.GetHeader(sessionHeader)
		if key == "" {
			key = uuid.NewString()
		}
		c.Header(sessionHeader, key)
		c.Set("ref", domain.CartRef{SessionKey: key})
		c.Next()
	}
}

func cartRef(c *gin.Context) domain.CartRef {
	v, _ := c.Get("ref")
	ref, _ := v.(domain.CartRef)
	return ref
}

func currentUser(c *gin.Context) *domain.User {
	v, ok := c.Get("user")
	if !ok {
		return nil
	}
	u, _ := v.(*domain.User)
	return u
}

// fail translates service errors into HTTP responses.
func fail(c *gin.Context, err error) {
	var gw *usecase.GatewayError
	switch {
	case errors.As(err, &gw):
		status := http.StatusPaymentRequired
		if gw.Unavailable {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": gw.Message})
	case errors.Is(err, usecase.ErrProductNotFound),
		errors.Is(err, usecase.ErrItemNotFound),
		errors.Is(err, usecase.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, usecase.ErrOutOfStock),
		errors.Is(err, usecase.ErrInsufficientStock),
		errors.Is(err, usecase.ErrIllegalTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, usecase.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		switch err.(type) {
		case usecase.ErrBadRequest:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case usecase.ErrConflict:
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case usecase.ErrNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
	}
}
