package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/nkiryanov/bookshop/internal/apperrors"
	"github.com/nkiryanov/bookshop/internal/models"
	"github.com/nkiryanov/bookshop/internal/repository"
)

// Compared against when identifier is unknown,
// so unknown identifier and wrong secret take the same time
const dummySecret = "bookshop-dummy-secret"

// Verifier checks identifier and secret against stored hashes
type Verifier struct {
	hasher     PasswordHasher
	identities repository.IdentityRepo
	dummyHash  string
}

func NewVerifier(hasher PasswordHasher, identities repository.IdentityRepo) (*Verifier, error) {
	if hasher == nil {
		hasher = DefaultHasher
	}
	if identities == nil {
		return nil, errors.New("identity repo must not be nil")
	}

	dummyHash, err := hasher.Hash(dummySecret)
	if err != nil {
		return nil, fmt.Errorf("can't prepare dummy hash. Err: %w", err)
	}

	return &Verifier{
		hasher:     hasher,
		identities: identities,
		dummyHash:  dummyHash,
	}, nil
}

// Verify returns identity if secret matches the stored hash
// Unknown identifier and wrong secret both return apperrors.ErrInvalidCredentials
func (v *Verifier) Verify(ctx context.Context, identifier string, secret string) (models.Identity, error) {
	if identifier == "" || secret == "" {
		return models.Identity{}, apperrors.ErrInvalidCredentials
	}

	identity, err := v.identities.GetIdentityByIdentifier(ctx, identifier)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrIdentityNotFound):
		_ = v.hasher.Compare(v.dummyHash, secret)
		return models.Identity{}, apperrors.ErrInvalidCredentials
	default:
		return models.Identity{}, fmt.Errorf("can't get identity. Err: %w", err)
	}

	if err := v.hasher.Compare(identity.SecretHash, secret); err != nil {
		return models.Identity{}, apperrors.ErrInvalidCredentials
	}

	return identity, nil
}
