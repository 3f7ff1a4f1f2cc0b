// Package memory keeps identities in process memory.
// Nothing survives a restart, so it backs tests only.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/bookshop/internal/apperrors"
	"github.com/nkiryanov/bookshop/internal/models"
	"github.com/nkiryanov/bookshop/internal/repository"
)

type Storage struct {
	identities *IdentityRepo
}

func NewStorage() *Storage {
	return &Storage{
		identities: &IdentityRepo{
			byID: make(map[uuid.UUID]models.Identity),
		},
	}
}

func (s *Storage) Identity() repository.IdentityRepo {
	return s.identities
}

// InTx runs fn against the same storage: changes are not rolled back on error
func (s *Storage) InTx(_ context.Context, fn func(repository.Storage) error) error {
	return fn(s)
}

type IdentityRepo struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]models.Identity
}

func (r *IdentityRepo) CreateIdentity(_ context.Context, identifier string, secretHash string, role models.Role) (models.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, i := range r.byID {
		if i.Identifier == identifier {
			return models.Identity{}, apperrors.ErrIdentityAlreadyExists
		}
	}

	identity := models.Identity{
		ID:         uuid.New(),
		CreatedAt:  time.Now().UTC(),
		Identifier: identifier,
		SecretHash: secretHash,
		Role:       role,
	}
	r.byID[identity.ID] = identity

	return identity, nil
}

func (r *IdentityRepo) GetIdentityByID(_ context.Context, id uuid.UUID) (models.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, ok := r.byID[id]
	if !ok {
		return models.Identity{}, apperrors.ErrIdentityNotFound
	}
	return identity, nil
}

func (r *IdentityRepo) GetIdentityByIdentifier(_ context.Context, identifier string) (models.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, i := range r.byID {
		if i.Identifier == identifier {
			return i, nil
		}
	}
	return models.Identity{}, apperrors.ErrIdentityNotFound
}
