// Package fakeshop is an in-memory stand-in for the storefront REST API used
// by tests. It implements just enough of the cart and auth endpoints to drive
// the client end to end, with hooks for failures and slow responses.
package fakeshop

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"storefront-client/internal/domain"
)

// Route keys as reported by Hits/FailNext/Hold.
const (
	RouteGetCart     = "GET /api/cart/"
	RouteAdd         = "POST /api/cart/add/"
	RouteIncrease    = "POST /api/cart/increase/:id/"
	RouteDecrease    = "POST /api/cart/decrease/:id/"
	RouteUpdate      = "PUT /api/cart/update/:id/"
	RouteRemove      = "DELETE /api/cart/remove/:id/"
	RouteClear       = "POST /api/cart/clear/"
	RouteItemCount   = "GET /api/cart/item-count/"
	RouteGuestLogin  = "POST /api/auth/guest-login/"
	RouteGoogleLogin = "POST /api/auth/google-auth/"
	RouteVerifyToken = "POST /api/auth/verify-token/"

	CSRFToken = "fake-csrf-token"
)

type line struct {
	id        int64
	productID int64
	quantity  int
}

type account struct {
	user  domain.User
	lines []*line
}

// Hold delays one response on a route. The handler runs first, so the body
// reflects the state at that moment; Arrived closes once it is computed and the
// client sees nothing until Release. Bodies stay small enough to sit in the
// server's write buffer.
type Hold struct {
	Arrived chan struct{}
	release chan struct{}
	once    sync.Once
}

func (h *Hold) Release() {
	h.once.Do(func() { close(h.release) })
}

type Server struct {
	*httptest.Server

	mu           sync.Mutex
	products     map[int64]domain.CartProduct
	accounts     map[string]*account
	googleTokens map[string]domain.User
	nextUserID   int64
	nextLineID   int64
	failures     map[string][]int
	holds        map[string][]*Hold
	hits         map[string]int
	headers      map[string]http.Header
}

// New starts the fake with a small product catalogue.
func New() *Server {
	s := &Server{
		products:     make(map[int64]domain.CartProduct),
		accounts:     make(map[string]*account),
		googleTokens: make(map[string]domain.User),
		failures:     make(map[string][]int),
		holds:        make(map[string][]*Hold),
		hits:         make(map[string]int),
		headers:      make(map[string]http.Header),
	}
	s.AddProduct(domain.CartProduct{
		ID: 1, Name: "Dental Mirror", Slug: "dental-mirror",
		Price: decimal.NewFromInt(10), CurrentPrice: decimal.NewFromInt(10),
		Images: []domain.ProductImage{{ID: 11, Image: "/media/products/mirror.jpg", IsPrimary: true}},
	})
	s.AddProduct(domain.CartProduct{
		ID: 2, Name: "Scaler", Slug: "scaler",
		Price: decimal.NewFromInt(30), SalePrice: decimal.NewNullDecimal(decimal.NewFromInt(25)), OnSale: true,
		CurrentPrice: decimal.NewFromInt(25),
	})
	s.Server = httptest.NewServer(s.router())
	return s
}

func (s *Server) AddProduct(p domain.CartProduct) {
	s.mu.Lock()
	s.products[p.ID] = p
	s.mu.Unlock()
}

// AddGoogleToken makes idToken acceptable to the google-auth endpoint.
func (s *Server) AddGoogleToken(idToken string, user domain.User) {
	s.mu.Lock()
	s.googleTokens[idToken] = user
	s.mu.Unlock()
}

// NewGuest registers a guest directly and returns its access token.
func (s *Server) NewGuest() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	access, _ := s.newAccountLocked(domain.User{IsGuest: true})
	return access
}

// Put sets the quantity of productID in the cart owned by access and returns the line id.
func (s *Server) Put(access string, productID int64, quantity int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accounts[access]
	if acc == nil {
		panic("fakeshop: unknown access token " + access)
	}
	for _, l := range acc.lines {
		if l.productID == productID {
			l.quantity = quantity
			return l.id
		}
	}
	s.nextLineID++
	acc.lines = append(acc.lines, &line{id: s.nextLineID, productID: productID, quantity: quantity})
	return s.nextLineID
}

// Revoke makes access answer 401 from now on.
func (s *Server) Revoke(access string) {
	s.mu.Lock()
	delete(s.accounts, access)
	s.mu.Unlock()
}

// FailNext makes the next request on route answer status.
func (s *Server) FailNext(route string, status int) {
	s.mu.Lock()
	s.failures[route] = append(s.failures[route], status)
	s.mu.Unlock()
}

// HoldNext delays the next response on route until the returned hold is released.
func (s *Server) HoldNext(route string) *Hold {
	h := &Hold{Arrived: make(chan struct{}), release: make(chan struct{})}
	s.mu.Lock()
	s.holds[route] = append(s.holds[route], h)
	s.mu.Unlock()
	return h
}

func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// LastHeader returns a header of the latest request on route.
func (s *Server) LastHeader(route, name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h := s.headers[route]; h != nil {
		return h.Get(name)
	}
	return ""
}

func (s *Server) router() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.track)

	r.POST("/api/auth/guest-login/", s.guestLogin)
	r.POST("/api/auth/google-auth/", s.googleLogin)
	r.POST("/api/auth/verify-token/", s.verifyToken)

	cart := r.Group("/api/cart", s.authenticate)
	cart.GET("/", s.getCart)
	cart.POST("/add/", s.add)
	cart.POST("/increase/:id/", s.step(1))
	cart.POST("/decrease/:id/", s.step(-1))
	cart.PUT("/update/:id/", s.update)
	cart.DELETE("/remove/:id/", s.remove)
	cart.POST("/clear/", s.clear)
	cart.GET("/item-count/", s.itemCount)
	return r
}

func (s *Server) track(c *gin.Context) {
	route := c.Request.Method + " " + c.FullPath()

	s.mu.Lock()
	s.hits[route]++
	s.headers[route] = c.Request.Header.Clone()
	var status int
	if q := s.failures[route]; len(q) > 0 {
		status, s.failures[route] = q[0], q[1:]
	}
	var hold *Hold
	if q := s.holds[route]; len(q) > 0 {
		hold, s.holds[route] = q[0], q[1:]
	}
	s.mu.Unlock()

	if _, err := c.Cookie("csrftoken"); err != nil {
		c.SetCookie("csrftoken", CSRFToken, 3600, "/", "", false, false)
	}
	if status != 0 {
		c.AbortWithStatusJSON(status, gin.H{"detail": "injected failure"})
	} else {
		c.Next()
	}
	if hold != nil {
		close(hold.Arrived)
		select {
		case <-hold.release:
		case <-time.After(10 * time.Second):
		}
	}
}

func (s *Server) authenticate(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	s.mu.Lock()
	acc := s.accounts[token]
	s.mu.Unlock()
	if token == "" || acc == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Authentication credentials were not provided."})
		return
	}
	c.Set("account", acc)
	c.Next()
}

func (s *Server) guestLogin(c *gin.Context) {
	s.mu.Lock()
	access, acc := s.newAccountLocked(domain.User{IsGuest: true})
	user := acc.user
	s.mu.Unlock()
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Guest user created successfully",
		"data":    gin.H{"access": access, "refresh": "refresh-" + access, "user": user},
	})
}

func (s *Server) googleLogin(c *gin.Context) {
	var in struct {
		IDToken string `json:"id_token"`
	}
	_ = c.ShouldBindJSON(&in)

	s.mu.Lock()
	profile, ok := s.googleTokens[in.IDToken]
	var access string
	var acc *account
	if ok {
		access, acc = s.newAccountLocked(profile)
	}
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Google authentication failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Google authentication successful",
		"data":    gin.H{"access": access, "refresh": "refresh-" + access, "user": acc.user},
	})
}

func (s *Server) verifyToken(c *gin.Context) {
	var in struct {
		Token string `json:"token"`
	}
	_ = c.ShouldBindJSON(&in)
	if in.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Token is required"})
		return
	}

	s.mu.Lock()
	acc := s.accounts[in.Token]
	var user domain.User
	if acc != nil {
		user = acc.user
	}
	s.mu.Unlock()

	if acc == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Token is valid", "data": gin.H{"user": user}})
}

func (s *Server) getCart(c *gin.Context) {
	acc := c.MustGet("account").(*account)
	s.mu.Lock()
	cart := s.cartLocked(acc)
	s.mu.Unlock()
	c.JSON(http.StatusOK, cart)
}

func (s *Server) add(c *gin.Context) {
	acc := c.MustGet("account").(*account)
	var in struct {
		ProductID int64 `json:"product_id"`
		Quantity  int   `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&in); err != nil || in.Quantity < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"quantity": []string{"Ensure this value is greater than or equal to 1."}})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[in.ProductID]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{"product_id": []string{"Product not found."}})
		return
	}
	status := http.StatusCreated
	found := false
	for _, l := range acc.lines {
		if l.productID == in.ProductID {
			l.quantity += in.Quantity
			status = http.StatusOK
			found = true
		}
	}
	if !found {
		s.nextLineID++
		acc.lines = append(acc.lines, &line{id: s.nextLineID, productID: in.ProductID, quantity: in.Quantity})
	}
	c.JSON(status, domain.CartMutation{Message: "Item added to cart successfully", Cart: s.cartLocked(acc)})
}

func (s *Server) step(delta int) gin.HandlerFunc {
	return func(c *gin.Context) {
		acc := c.MustGet("account").(*account)
		s.mu.Lock()
		defer s.mu.Unlock()
		idx, ok := s.lineLocked(c, acc)
		if !ok {
			return
		}
		l := acc.lines[idx]
		message := "Item quantity increased"
		if delta < 0 {
			if l.quantity > 1 {
				l.quantity--
				message = "Item quantity decreased"
			} else {
				acc.lines = append(acc.lines[:idx], acc.lines[idx+1:]...)
				message = "Item removed from cart"
			}
		} else {
			l.quantity++
		}
		c.JSON(http.StatusOK, domain.CartMutation{Message: message, Cart: s.cartLocked(acc)})
	}
}

func (s *Server) update(c *gin.Context) {
	acc := c.MustGet("account").(*account)
	var in struct {
		Quantity int `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&in); err != nil || in.Quantity < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"quantity": []string{"Ensure this value is greater than or equal to 1."}})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.lineLocked(c, acc)
	if !ok {
		return
	}
	acc.lines[idx].quantity = in.Quantity
	c.JSON(http.StatusOK, domain.CartMutation{Message: "Item quantity updated", Cart: s.cartLocked(acc)})
}

func (s *Server) remove(c *gin.Context) {
	acc := c.MustGet("account").(*account)
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.lineLocked(c, acc)
	if !ok {
		return
	}
	acc.lines = append(acc.lines[:idx], acc.lines[idx+1:]...)
	c.JSON(http.StatusOK, domain.CartMutation{Message: "Item removed from cart", Cart: s.cartLocked(acc)})
}

func (s *Server) clear(c *gin.Context) {
	acc := c.MustGet("account").(*account)
	s.mu.Lock()
	defer s.mu.Unlock()
	acc.lines = nil
	c.JSON(http.StatusOK, domain.CartMutation{Message: "Cart cleared successfully", Cart: s.cartLocked(acc)})
}

func (s *Server) itemCount(c *gin.Context) {
	acc := c.MustGet("account").(*account)
	s.mu.Lock()
	total := 0
	for _, l := range acc.lines {
		total += l.quantity
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"total_quantity": total})
}

func (s *Server) lineLocked(c *gin.Context, acc *account) (int, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err == nil {
		for i, l := range acc.lines {
			if l.id == id {
				return i, true
			}
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
	return 0, false
}

func (s *Server) newAccountLocked(user domain.User) (string, *account) {
	s.nextUserID++
	user.ID = s.nextUserID
	if user.Username == "" {
		user.Username = fmt.Sprintf("guest_%08d", s.nextUserID)
	}
	user.CreatedAt = time.Now().UTC()
	access := fmt.Sprintf("access-%d", s.nextUserID)
	acc := &account{user: user}
	s.accounts[access] = acc
	return access, acc
}

func (s *Server) cartLocked(acc *account) domain.Cart {
	cart := domain.Cart{ID: acc.user.ID, User: acc.user.ID, Items: []domain.CartItem{}, TotalPrice: decimal.Zero}
	for _, l := range acc.lines {
		p := s.products[l.productID]
		total := p.CurrentPrice.Mul(decimal.NewFromInt(int64(l.quantity)))
		cart.Items = append(cart.Items, domain.CartItem{ID: l.id, Product: p, Quantity: l.quantity, TotalPrice: total})
		cart.TotalItems += l.quantity
		cart.TotalPrice = cart.TotalPrice.Add(total)
	}
	return cart
}
