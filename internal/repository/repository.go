package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/nkiryanov/bookshop/internal/models"
)

// Identity repository interface
type IdentityRepo interface {
	// Create identity with already hashed secret
	// If identity with the identifier exists already has to return error apperrors.ErrIdentityAlreadyExists
	CreateIdentity(ctx context.Context, identifier string, secretHash string, role models.Role) (models.Identity, error)

	// Get identity by it's id or identifier (exact match)
	// If identity not found must return apperrors.ErrIdentityNotFound
	GetIdentityByID(ctx context.Context, id uuid.UUID) (models.Identity, error)
	GetIdentityByIdentifier(ctx context.Context, identifier string) (models.Identity, error)
}

// Storage groups repositories sharing the same connection (or transaction)
type Storage interface {
	Identity() IdentityRepo

	// Run fn in transaction. Commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
