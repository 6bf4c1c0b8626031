package presenter

import (
	"github.com/shopspring/decimal"

	"storefront-client/internal/domain"
)

const (
	currency        = "Rs "
	emptyCartTitle  = "Your cart is empty"
	emptyCartDetail = "Add some products to get started!"
)

type CartRow struct {
	ItemID    int64  `json:"item_id"`
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Image     string `json:"image"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	LineTotal string `json:"line_total"`
}

// CartPage is the rendered cart table. Empty carts carry the placeholder
// texts instead of rows.
type CartPage struct {
	Rows        []CartRow `json:"rows"`
	Empty       bool      `json:"empty"`
	EmptyTitle  string    `json:"empty_title,omitempty"`
	EmptyDetail string    `json:"empty_detail,omitempty"`
	ItemCount   int       `json:"item_count"`
	Subtotal    string    `json:"subtotal"`
	Shipping    string    `json:"shipping"`
	Total       string    `json:"total"`
}

// CartView renders the cart page. The shipping charge is always added, even
// to an empty cart.
func CartView(cart domain.Cart, shipping decimal.Decimal) CartPage {
	page := CartPage{
		Rows:      make([]CartRow, 0, len(cart.Items)),
		ItemCount: cart.TotalItems,
		Subtotal:  money(cart.TotalPrice),
		Shipping:  money(shipping),
		Total:     money(cart.TotalPrice.Add(shipping)),
	}
	if cart.IsEmpty() {
		page.Empty = true
		page.EmptyTitle = emptyCartTitle
		page.EmptyDetail = emptyCartDetail
		page.ItemCount = 0
		page.Subtotal = money(decimal.Zero)
		page.Total = money(shipping)
		return page
	}
	for _, item := range cart.Items {
		page.Rows = append(page.Rows, CartRow{
			ItemID:    item.ID,
			ProductID: item.Product.ID,
			Name:      item.Product.Name,
			Image:     item.Product.PrimaryImage(),
			UnitPrice: money(item.Product.CurrentPrice),
			Quantity:  item.Quantity,
			LineTotal: money(item.TotalPrice),
		})
	}
	return page
}

type SummaryLine struct {
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

type Summary struct {
	Lines    []SummaryLine `json:"lines"`
	Subtotal string        `json:"subtotal"`
	Shipping string        `json:"shipping"`
	Total    string        `json:"total"`
}

// CheckoutSummary renders the order summary with two decimals. An empty cart
// shows zero for every amount, shipping included.
func CheckoutSummary(cart domain.Cart, shipping decimal.Decimal) Summary {
	if cart.IsEmpty() {
		zero := fixed(decimal.Zero)
		return Summary{Lines: []SummaryLine{}, Subtotal: zero, Shipping: zero, Total: zero}
	}
	out := Summary{
		Lines:    make([]SummaryLine, 0, len(cart.Items)),
		Subtotal: fixed(cart.TotalPrice),
		Shipping: fixed(shipping),
		Total:    fixed(cart.TotalPrice.Add(shipping)),
	}
	for _, item := range cart.Items {
		out.Lines = append(out.Lines, SummaryLine{
			Name:      item.Product.Name,
			Quantity:  item.Quantity,
			UnitPrice: fixed(item.Product.CurrentPrice),
			LineTotal: fixed(item.TotalPrice),
		})
	}
	return out
}

func money(d decimal.Decimal) string {
	return currency + d.String()
}

func fixed(d decimal.Decimal) string {
	return currency + d.StringFixed(2)
}
