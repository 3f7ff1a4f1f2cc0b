package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/nkiryanov/bookshop/internal/apperrors"
	"github.com/nkiryanov/bookshop/internal/models"
	"github.com/nkiryanov/bookshop/internal/repository"
)

const (
	defaultAccessHeaderName = "Authorization"
	defaultAccessAuthScheme = "Bearer"
)

type Config struct {
	// Hasher to use during login
	// bcrypt is used if not set
	Hasher PasswordHasher

	// Header and scheme the bearer token is sent with
	// 'Authorization: Bearer <token>' if not set
	AccessHeaderName string
	AccessAuthScheme string
}

type tokenManager interface {
	Issue(subjectID string) (models.IssuedToken, error)
	Verify(token string) (subjectID string, err error)
}

// Auth service
type AuthService struct {
	verifier   *Verifier
	tokens     tokenManager
	identities repository.IdentityRepo

	accessHeaderName string
	accessAuthScheme string
}

func NewService(cfg Config, tokens tokenManager, identities repository.IdentityRepo) (*AuthService, error) {
	if tokens == nil {
		return nil, errors.New("token manager must not be nil")
	}

	verifier, err := NewVerifier(cfg.Hasher, identities)
	if err != nil {
		return nil, err
	}

	if cfg.AccessHeaderName == "" {
		cfg.AccessHeaderName = defaultAccessHeaderName
	}
	if cfg.AccessAuthScheme == "" {
		cfg.AccessAuthScheme = defaultAccessAuthScheme
	}

	return &AuthService{
		verifier:         verifier,
		tokens:           tokens,
		identities:       identities,
		accessHeaderName: cfg.AccessHeaderName,
		accessAuthScheme: cfg.AccessAuthScheme,
	}, nil
}

// Login checks credentials and issues token for admin identities
// Any credential failure returns apperrors.ErrInvalidCredentials
func (s *AuthService) Login(ctx context.Context, identifier string, secret string) (models.Session, error) {
	identity, err := s.verifier.Verify(ctx, identifier, secret)
	if err != nil {
		return models.Session{}, err
	}

	// The panel has binary admin flag: other roles may exist but can't sign in
	if !identity.IsAdmin() {
		return models.Session{}, apperrors.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(identity.ID.String())
	if err != nil {
		return models.Session{}, fmt.Errorf("token could not be issued. Err: %w", err)
	}

	return models.Session{Token: token, Identity: identity}, nil
}

// Authenticate reads bearer token from request and returns its subject
// Returns apperrors.ErrMissingToken if request has no bearer token,
// otherwise any error of token verification
func (s *AuthService) Authenticate(r *http.Request) (subjectID string, err error) {
	token, err := s.readToken(r)
	if err != nil {
		return "", err
	}

	return s.tokens.Verify(token)
}

// Identity returns identity the subject refers to
func (s *AuthService) Identity(ctx context.Context, subjectID string) (models.Identity, error) {
	id, err := uuid.Parse(subjectID)
	if err != nil {
		return models.Identity{}, apperrors.ErrIdentityNotFound
	}

	return s.identities.GetIdentityByID(ctx, id)
}

// SetToken writes token to response header the same way clients send it back
func (s *AuthService) SetToken(w http.ResponseWriter, token models.IssuedToken) {
	w.Header().Set(s.accessHeaderName, s.accessAuthScheme+" "+token.Value)
}

func (s *AuthService) readToken(r *http.Request) (string, error) {
	header := r.Header.Get(s.accessHeaderName)
	if header == "" {
		return "", apperrors.ErrMissingToken
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, s.accessAuthScheme) {
		return "", apperrors.ErrMissingToken
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", apperrors.ErrMissingToken
	}

	return token, nil
}
