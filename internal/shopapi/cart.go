package shopapi

import (
	"context"
	"fmt"
	"net/http"

	"storefront-client/internal/domain"
)

type addRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type updateRequest struct {
	Quantity int `json:"quantity"`
}

type itemCountResponse struct {
	TotalQuantity int `json:"total_quantity"`
}

func (c *Client) GetCart(ctx context.Context) (*domain.Cart, error) {
	var cart domain.Cart
	if err := c.do(ctx, http.MethodGet, "/api/cart/", nil, &cart); err != nil {
		return nil, err
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	return &cart, nil
}

func (c *Client) AddItem(ctx context.Context, productID int64, quantity int) (*domain.CartMutation, error) {
	return c.mutate(ctx, http.MethodPost, "/api/cart/add/", addRequest{ProductID: productID, Quantity: quantity})
}

func (c *Client) IncreaseItem(ctx context.Context, itemID int64) (*domain.CartMutation, error) {
	return c.mutate(ctx, http.MethodPost, fmt.Sprintf("/api/cart/increase/%d/", itemID), nil)
}

func (c *Client) DecreaseItem(ctx context.Context, itemID int64) (*domain.CartMutation, error) {
	return c.mutate(ctx, http.MethodPost, fmt.Sprintf("/api/cart/decrease/%d/", itemID), nil)
}

func (c *Client) UpdateItem(ctx context.Context, itemID int64, quantity int) (*domain.CartMutation, error) {
	return c.mutate(ctx, http.MethodPut, fmt.Sprintf("/api/cart/update/%d/", itemID), updateRequest{Quantity: quantity})
}

func (c *Client) RemoveItem(ctx context.Context, itemID int64) (*domain.CartMutation, error) {
	return c.mutate(ctx, http.MethodDelete, fmt.Sprintf("/api/cart/remove/%d/", itemID), nil)
}

func (c *Client) ClearCart(ctx context.Context) (*domain.CartMutation, error) {
	return c.mutate(ctx, http.MethodPost, "/api/cart/clear/", nil)
}

func (c *Client) ItemCount(ctx context.Context) (int, error) {
	var out itemCountResponse
	if err := c.do(ctx, http.MethodGet, "/api/cart/item-count/", nil, &out); err != nil {
		return 0, err
	}
	return out.TotalQuantity, nil
}

func (c *Client) mutate(ctx context.Context, method, path string, in interface{}) (*domain.CartMutation, error) {
	var out domain.CartMutation
	if err := c.do(ctx, method, path, in, &out); err != nil {
		return nil, err
	}
	if out.Cart.Items == nil {
		out.Cart.Items = []domain.CartItem{}
	}
	return &out, nil
}
