package cartcache

import (
	"context"

	"storefront-client/internal/domain"
)

// Cache keeps the last cart the reconciler applied for a profile. It is a
// rendering aid only; the server stays authoritative.
type Cache interface {
	Get(ctx context.Context, profile string) (*domain.Cart, error)
	Set(ctx context.Context, profile string, cart domain.Cart) error
	Delete(ctx context.Context, profile string) error
}
