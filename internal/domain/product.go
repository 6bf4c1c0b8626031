package domain

import "github.com/shopspring/decimal"

// FallbackProductImage is shown when a product has no images.
const FallbackProductImage = "/static/img/products/product-img-1.jpg"

type CartProduct struct {
	ID           int64               `json:"id"`
	Name         string              `json:"name"`
	Slug         string              `json:"slug,omitempty"`
	Price        decimal.Decimal     `json:"price"`
	SalePrice    decimal.NullDecimal `json:"sale_price"`
	OnSale       bool                `json:"on_sale"`
	CurrentPrice decimal.Decimal     `json:"current_price"`
	Images       []ProductImage      `json:"images"`
	Category     string              `json:"category,omitempty"`
}

type ProductImage struct {
	ID        int64  `json:"id"`
	Image     string `json:"image"`
	AltText   string `json:"alt_text,omitempty"`
	IsPrimary bool   `json:"is_primary"`
}

// PrimaryImage returns the primary image URL, the first image when none is
// flagged, or the fallback image.
func (p CartProduct) PrimaryImage() string {
	for _, img := range p.Images {
		if img.IsPrimary {
			return img.Image
		}
	}
	if len(p.Images) > 0 {
		return p.Images[0].Image
	}
	return FallbackProductImage
}
