package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart mirrors the storefront API cart payload. The server owns it; the
// client only keeps the last applied copy.
type Cart struct {
	ID         int64           `json:"id,omitempty"`
	User       int64           `json:"user,omitempty"`
	Items      []CartItem      `json:"items"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	CreatedAt  *time.Time      `json:"created_at,omitempty"`
	UpdatedAt  *time.Time      `json:"updated_at,omitempty"`
}

type CartItem struct {
	ID         int64           `json:"id"`
	Product    CartProduct     `json:"product"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
	AddedAt    *time.Time      `json:"added_at,omitempty"`
	UpdatedAt  *time.Time      `json:"updated_at,omitempty"`
}

// EmptyCart is what an anonymous or failed read renders as.
func EmptyCart() Cart {
	return Cart{Items: []CartItem{}, TotalPrice: decimal.Zero}
}

// IsEmpty reports whether the cart has no line items.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Clone returns a copy that shares no slices with c.
func (c Cart) Clone() Cart {
	out := c
	out.Items = make([]CartItem, len(c.Items))
	for i, item := range c.Items {
		item.Product.Images = append([]ProductImage(nil), item.Product.Images...)
		out.Items[i] = item
	}
	return out
}

// CartMutation is the response body of every cart write endpoint.
type CartMutation struct {
	Message string `json:"message"`
	Cart    Cart   `json:"cart"`
}

// PendingAction is an add-to-cart intent waiting for a login to finish.
type PendingAction struct {
	ProductID int64     `json:"productId"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
}
