package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/bookshop/internal/apperrors"
	"github.com/nkiryanov/bookshop/internal/models"
)

type IdentityRepo struct {
	DB DBTX
}

const createIdentity = `-- name: CreateIdentity
INSERT INTO identities (id, identifier, secret_hash, role)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at, identifier, secret_hash, role
`

func (r *IdentityRepo) CreateIdentity(ctx context.Context, identifier string, secretHash string, role models.Role) (models.Identity, error) {
	rows, _ := r.DB.Query(ctx, createIdentity, uuid.New(), identifier, secretHash, role)
	identity, err := pgx.CollectOneRow(rows, rowToIdentity)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return identity, apperrors.ErrIdentityAlreadyExists
		}

		return identity, fmt.Errorf("db error: %w", err)
	}

	return identity, nil
}

const getIdentityByID = `-- name: GetIdentityByID
SELECT id, created_at, identifier, secret_hash, role FROM identities
WHERE id = $1
`

func (r *IdentityRepo) GetIdentityByID(ctx context.Context, id uuid.UUID) (models.Identity, error) {
	rows, _ := r.DB.Query(ctx, getIdentityByID, id)
	return collectIdentity(rows)
}

const getIdentityByIdentifier = `-- name: GetIdentityByIdentifier
SELECT id, created_at, identifier, secret_hash, role FROM identities
WHERE identifier = $1
`

func (r *IdentityRepo) GetIdentityByIdentifier(ctx context.Context, identifier string) (models.Identity, error) {
	rows, _ := r.DB.Query(ctx, getIdentityByIdentifier, identifier)
	return collectIdentity(rows)
}

func collectIdentity(rows pgx.Rows) (models.Identity, error) {
	identity, err := pgx.CollectOneRow(rows, rowToIdentity)

	switch {
	case err == nil:
		return identity, nil
	case errors.Is(err, pgx.ErrNoRows):
		return identity, apperrors.ErrIdentityNotFound
	default:
		return identity, fmt.Errorf("db error: %w", err)
	}
}

func rowToIdentity(row pgx.CollectableRow) (models.Identity, error) {
	var i models.Identity
	err := row.Scan(&i.ID, &i.CreatedAt, &i.Identifier, &i.SecretHash, &i.Role)
	return i, err
}
