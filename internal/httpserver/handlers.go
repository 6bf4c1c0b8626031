package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storefront-client/internal/domain"
	cartsvc "storefront-client/internal/service/cart"
)

type handlers struct {
	deps   Deps
	logger logrus.FieldLogger
}

type sessionResponse struct {
	Authenticated bool                  `json:"authenticated"`
	User          *domain.User          `json:"user,omitempty"`
	Pending       *domain.PendingAction `json:"pending,omitempty"`
}

type googleLoginRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

type addItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

type addItemResponse struct {
	LoginRequired bool                  `json:"login_required"`
	Pending       *domain.PendingAction `json:"pending,omitempty"`
	Cart          interface{}           `json:"cart"`
}

func (h *handlers) session(c *gin.Context) {
	c.JSON(http.StatusOK, h.sessionBody())
}

func (h *handlers) sessionBody() sessionResponse {
	return sessionResponse{
		Authenticated: h.deps.Session.IsAuthenticated(),
		User:          h.deps.Session.User(),
		Pending:       h.deps.Cart.Pending(),
	}
}

func (h *handlers) guestLogin(c *gin.Context) {
	if _, err := h.deps.Auth.GuestLogin(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessionBody())
}

func (h *handlers) googleLogin(c *gin.Context) {
	var req googleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id_token required"})
		return
	}
	if _, err := h.deps.Auth.GoogleLogin(c.Request.Context(), req.IDToken); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessionBody())
}

func (h *handlers) logout(c *gin.Context) {
	if err := h.deps.Auth.Logout(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessionBody())
}

func (h *handlers) abandonPending(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"abandoned": h.deps.Cart.AbandonPending()})
}

func (h *handlers) cartPage(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Presenter.CartPage())
}

func (h *handlers) checkout(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Presenter.Checkout())
}

func (h *handlers) refreshCart(c *gin.Context) {
	h.deps.Cart.Fetch(c.Request.Context())
	c.JSON(http.StatusOK, h.deps.Presenter.CartPage())
}

func (h *handlers) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product_id required"})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	out, err := h.deps.Cart.RequestAdd(c.Request.Context(), req.ProductID, req.Quantity)
	if err != nil {
		h.fail(c, err)
		return
	}
	if out.Pending != nil {
		c.JSON(http.StatusAccepted, addItemResponse{LoginRequired: true, Pending: out.Pending, Cart: h.deps.Presenter.CartPage()})
		return
	}
	c.JSON(http.StatusOK, addItemResponse{Cart: h.deps.Presenter.CartPage()})
}

func (h *handlers) itemAction(action func(ctx context.Context, itemID int64) (domain.Cart, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		itemID, ok := itemIDParam(c)
		if !ok {
			return
		}
		if _, err := action(c.Request.Context(), itemID); err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, h.deps.Presenter.CartPage())
	}
}

func (h *handlers) updateItem(c *gin.Context) {
	itemID, ok := itemIDParam(c)
	if !ok {
		return
	}
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity required"})
		return
	}
	if _, err := h.deps.Cart.Update(c.Request.Context(), itemID, req.Quantity); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.deps.Presenter.CartPage())
}

func (h *handlers) clearCart(c *gin.Context) {
	if _, err := h.deps.Cart.Clear(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.deps.Presenter.CartPage())
}

func (h *handlers) badge(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Presenter.Badge())
}

func (h *handlers) refreshBadge(c *gin.Context) {
	h.deps.Cart.RefreshCount(c.Request.Context())
	c.JSON(http.StatusOK, h.deps.Presenter.Badge())
}

func (h *handlers) toasts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"toasts": h.deps.Presenter.Toasts()})
}

func (h *handlers) dismissToast(c *gin.Context) {
	if !h.deps.Presenter.DismissToast(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "toast not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func itemIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return 0, false
	}
	return id, true
}

// fail maps service errors onto status codes.
func (h *handlers) fail(c *gin.Context, err error) {
	_ = c.Error(err)

	var loginErr *domain.LoginError
	var httpErr *domain.HTTPError
	switch {
	case errors.Is(err, cartsvc.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &loginErr):
		c.JSON(http.StatusUnauthorized, gin.H{"error": loginErr.Message})
	case errors.Is(err, domain.ErrAuthRequired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "login required"})
	case errors.As(err, &httpErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "storefront api error", "upstream_status": httpErr.Status})
	case errors.Is(err, domain.ErrNetwork):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storefront api unreachable"})
	default:
		h.logger.WithError(err).Error("unhandled error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
