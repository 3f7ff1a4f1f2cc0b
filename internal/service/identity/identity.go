package identity

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/nkiryanov/bookshop/internal/apperrors"
	"github.com/nkiryanov/bookshop/internal/models"
	"github.com/nkiryanov/bookshop/internal/repository"
	"github.com/nkiryanov/bookshop/internal/service/auth"
)

// Service provisions identities allowed to sign in
type Service struct {
	hasher  auth.PasswordHasher
	storage repository.Storage
}

func NewService(hasher auth.PasswordHasher, storage repository.Storage) *Service {
	if hasher == nil {
		hasher = auth.DefaultHasher
	}

	return &Service{
		hasher:  hasher,
		storage: storage,
	}
}

// Create identity storing only the hash of the secret
func (s *Service) Create(ctx context.Context, identifier string, secret string, role models.Role) (models.Identity, error) {
	var identity models.Identity

	if identifier == "" || secret == "" {
		return identity, errors.New("identifier and secret must not be empty")
	}
	if role == "" {
		role = models.RoleAdmin
	}

	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return identity, fmt.Errorf("can't use this as secret. Err: %w", err)
	}

	identity, err = s.storage.Identity().CreateIdentity(ctx, identifier, hash, role)
	if err != nil {
		return identity, fmt.Errorf("can't create identity. Err: %w", err)
	}

	return identity, nil
}

type seedFile struct {
	Identities []struct {
		Identifier string      `yaml:"identifier"`
		Secret     string      `yaml:"secret"`
		Role       models.Role `yaml:"role"`
	} `yaml:"identities"`
}

// SeedReport tells what Seed did with every entry of the file
type SeedReport struct {
	Created []string
	Skipped []string // already existed
}

// Seed creates identities listed in YAML document:
//
//	identities:
//	  - identifier: admin@bookshop.local
//	    secret: Admin123
//	    role: admin
//
// Existing identifiers are skipped, so seeding may run repeatedly.
// All identities are created in one transaction.
func (s *Service) Seed(ctx context.Context, r io.Reader) (SeedReport, error) {
	var report SeedReport
	var file seedFile

	if err := yaml.NewDecoder(r).Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return report, fmt.Errorf("can't parse seed file. Err: %w", err)
	}

	for i, entry := range file.Identities {
		if entry.Identifier == "" || entry.Secret == "" {
			return report, fmt.Errorf("seed entry %d: identifier and secret are required", i)
		}
	}

	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		inTx := &Service{hasher: s.hasher, storage: tx}
		for _, entry := range file.Identities {
			_, err := tx.Identity().GetIdentityByIdentifier(ctx, entry.Identifier)
			switch {
			case err == nil:
				report.Skipped = append(report.Skipped, entry.Identifier)
				continue
			case !errors.Is(err, apperrors.ErrIdentityNotFound):
				return err
			}

			if _, err := inTx.Create(ctx, entry.Identifier, entry.Secret, entry.Role); err != nil {
				return err
			}
			report.Created = append(report.Created, entry.Identifier)
		}
		return nil
	})
	if err != nil {
		return SeedReport{}, fmt.Errorf("can't seed identities. Err: %w", err)
	}

	return report, nil
}
