package session

import (
	"context"

	"storefront-client/internal/domain"
)

// Repository persists one session per profile. Save and Delete each touch the
// whole record, so readers never observe a partially written session.
type Repository interface {
	Get(ctx context.Context, profile string) (*domain.Session, error)
	Save(ctx context.Context, profile string, s domain.Session) error
	Delete(ctx context.Context, profile string) error
}
