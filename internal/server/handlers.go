package server

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kihuni/Hoodie-Hub/internal/domain"
	"github.com/kihuni/Hoodie-Hub/internal/usecase"
)

func (s *Server) handleListProducts(c *gin.Context) {
	products, err := s.catalog.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": products})
}

func (s *Server) handleGetProduct(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}
	p, err := s.catalog.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": p})
}

// handleCheckStock answers whether a quantity can be added right now. Stock
// is advisory, so a positive answer is not a reservation.
func (s *Server) handleCheckStock(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}
	quantity, err := strconv.Atoi(c.DefaultQuery("quantity", "1"))
	if err != nil || quantity <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quantity"})
		return
	}
	switch err := s.catalog.CheckStock(c.Request.Context(), id, quantity); {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"available": true})
	case errors.Is(err, usecase.ErrOutOfStock), errors.Is(err, usecase.ErrInsufficientStock):
		c.JSON(http.StatusOK, gin.H{"available": false, "reason": err.Error()})
	default:
		fail(c, err)
	}
}

func (s *Server) handleGetCart(c *gin.Context) {
	ref := cartRef(c)
	cart, err := s.carts.GetOrCreate(c.Request.Context(), ref)
	if err != nil {
		fail(c, err)
		return
	}
	total, err := s.carts.Total(c.Request.Context(), ref)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":      cart,
		"itemCount": cart.ItemCount(),
		"total":     total.StringFixed(2),
	})
}

type addItemReq struct {
	ProductID string `json:"productId" binding:"required"`
	Size      string `json:"size" binding:"required"`
	Quantity  int    `json:"quantity"`
}

func (s *Server) handleAddItem(c *gin.Context) {
	var req addItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	cart, err := s.carts.AddItem(c.Request.Context(), cartRef(c), productID, req.Size, req.Quantity)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": cart, "itemCount": cart.ItemCount()})
}

type updateItemReq struct {
	Quantity int `json:"quantity"`
}

func (s *Server) handleUpdateItem(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}
	var req updateItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cart, err := s.carts.UpdateItem(c.Request.Context(), cartRef(c), itemID, req.Quantity)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": cart, "itemCount": cart.ItemCount()})
}

func (s *Server) handleRemoveItem(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}
	cart, err := s.carts.RemoveItem(c.Request.Context(), cartRef(c), itemID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": cart, "itemCount": cart.ItemCount()})
}

type checkoutReq struct {
	Name             string `json:"name" binding:"required"`
	PhoneNumber      string `json:"phoneNumber" binding:"required"`
	DeliveryLocation string `json:"deliveryLocation" binding:"required"`
}

func (s *Server) handleCheckout(c *gin.Context) {
	var req checkoutReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ref := cartRef(c)
	info := usecase.CustomerInfo{
		Name:             req.Name,
		PhoneNumber:      req.PhoneNumber,
		DeliveryLocation: req.DeliveryLocation,
	}
	if !ref.Anonymous() {
		info.UserID = ref.UserID
	}
	result, err := s.checkout.Checkout(c.Request.Context(), ref, info)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"data": result})
}

// handleCallback receives the gateway's payment confirmation. The response
// is always a well-formed ack body; reconciliation outcomes never surface
// as HTTP errors.
func (s *Server) handleCallback(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		raw = nil
	}
	result := s.reconcile.Reconcile(c.Request.Context(), raw)
	c.JSON(http.StatusOK, result.Ack())
}

func (s *Server) handleListOrders(c *gin.Context) {
	u := currentUser(c)
	if u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "login required"})
		return
	}
	orders, err := s.orders.ListForUser(c.Request.Context(), u.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": orders})
}

func (s *Server) orderID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) handleGetOrder(c *gin.Context) {
	id, ok := s.orderID(c)
	if !ok {
		return
	}
	order, err := s.orders.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (s *Server) handleOrderStatus(c *gin.Context) {
	id, ok := s.orderID(c)
	if !ok {
		return
	}
	view, err := s.orders.Status(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": view})
}

func (s *Server) handleCancelOrder(c *gin.Context) {
	id, ok := s.orderID(c)
	if !ok {
		return
	}
	userID := ""
	if u := currentUser(c); u != nil {
		userID = u.UserID
	}
	if err := s.orders.Cancel(c.Request.Context(), id, userID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"orderId": id, "status": domain.OrderCancelled}})
}

func (s *Server) handleFulfillOrder(c *gin.Context) {
	id, ok := s.orderID(c)
	if !ok {
		return
	}
	if err := s.orders.Fulfill(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"orderId": id, "status": domain.OrderFulfilled}})
}

// handleOrderReceipt streams a PDF receipt for a settled order.
func (s *Server) handleOrderReceipt(c *gin.Context) {
	id, ok := s.orderID(c)
	if !ok {
		return
	}
	order, err := s.orders.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	if order.Status != domain.OrderPaid && order.Status != domain.OrderFulfilled {
		c.JSON(http.StatusConflict, gin.H{"error": "receipt available only for paid orders"})
		return
	}
	pdf, err := s.receipts.Generate(order)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=receipt-%s.pdf", order.ID))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

type registerReq struct {
	Username    string `json:"username" binding:"required"`
	Email       string `json:"email"`
	Password    string `json:"password" binding:"required"`
	PhoneNumber string `json:"phoneNumber"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := s.auth.Register(c.Request.Context(), req.Username, req.Email, req.Password, req.PhoneNumber)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": u})
}

type loginReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	token, u, err := s.auth.Login(c.Request.Context(), req.Username, req.Password, c.GetHeader(sessionHeader))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"token": token, "user": u}})
}

func (s *Server) handleLogout(c *gin.Context) {
	u := currentUser(c)
	if u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "login required"})
		return
	}
	sessionKey, err := s.auth.Logout(c.Request.Context(), u.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header(sessionHeader, sessionKey)
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"sessionKey": sessionKey}})
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

type sitemapSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

func (s *Server) handleSitemap(c *gin.Context) {
	products, err := s.catalog.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	set := sitemapSet{
		Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs: []sitemapURL{
			{Loc: s.cfg.SiteBaseURL + "/", ChangeFreq: "daily", Priority: "1.0"},
		},
	}
	for _, p := range products {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        fmt.Sprintf("%s/products/%s", s.cfg.SiteBaseURL, p.ID),
			ChangeFreq: "weekly",
			Priority:   "0.8",
		})
	}
	c.XML(http.StatusOK, set)
}
