package tokenmanager

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/bookshop/internal/apperrors"
	"github.com/nkiryanov/bookshop/internal/models"
)

const (
	defaultTokenTTL      = 24 * time.Hour
	defaultSigningMethod = "HS256"
)

// Token manager with sensible default
type Config struct {
	// Secret key to sign tokens
	// Required to be set. Changing it invalidates every token issued before
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm: HS256, HS384 or HS512
	// If not set than default is used
	Alg string

	// Token lifetime
	// If not set than default is used
	TTL time.Duration

	// Tolerated clock skew when checking expiration
	Leeway time.Duration

	// Clock. time.Now if not set
	Now func() time.Time
}

// TokenManager issues and verifies stateless bearer tokens
// It is safe for concurrent use: all fields are read only after New
type TokenManager struct {
	key    []byte
	alg    jwt.SigningMethod
	ttl    time.Duration
	leeway time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

func New(cfg Config) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	alg, ok := jwt.GetSigningMethod(cfg.Alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("signing method %q is not supported, use one of HS256, HS384, HS512", cfg.Alg)
	}

	switch {
	case cfg.TTL == 0:
		cfg.TTL = defaultTokenTTL
	case cfg.TTL < 0:
		return nil, errors.New("token ttl must be positive")
	}

	if cfg.Leeway < 0 {
		return nil, errors.New("leeway must not be negative")
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	// Claims are validated by hand: jwt treats 'now == exp' as expired
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{alg.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithoutClaimsValidation(),
	)

	return &TokenManager{
		key:    []byte(cfg.SecretKey),
		alg:    alg,
		ttl:    cfg.TTL,
		leeway: cfg.Leeway,
		now:    cfg.Now,
		parser: parser,
	}, nil
}

// Issue signs token for the subject valid for configured TTL
func (m *TokenManager) Issue(subjectID string) (models.IssuedToken, error) {
	if subjectID == "" {
		return models.IssuedToken{}, errors.New("subject must not be empty")
	}

	now := m.now().Truncate(time.Second)
	expiresAt := now.Add(m.ttl)

	token := jwt.NewWithClaims(m.alg, jwt.RegisteredClaims{
		ID:        uuid.NewString(), // not checked; reserved for a denylist
		Subject:   subjectID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})

	value, err := token.SignedString(m.key)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing token. Err: %w", err)
	}

	return models.IssuedToken{
		Value:     value,
		SubjectID: subjectID,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify checks token signature and expiration and returns its subject
// Returns apperrors.ErrMalformedToken, apperrors.ErrForgedToken or apperrors.ErrTokenExpired
func (m *TokenManager) Verify(token string) (subjectID string, err error) {
	claims := &jwt.RegisteredClaims{}

	_, err = m.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.key, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return "", fmt.Errorf("%w. Err: %w", apperrors.ErrForgedToken, err)
	default:
		return "", fmt.Errorf("%w. Err: %w", apperrors.ErrMalformedToken, err)
	}

	if claims.Subject == "" || claims.ExpiresAt == nil {
		return "", fmt.Errorf("%w. Err: required claims 'sub' or 'exp' are missing", apperrors.ErrMalformedToken)
	}

	if m.now().After(claims.ExpiresAt.Add(m.leeway)) {
		return "", fmt.Errorf("%w. Expired at %s", apperrors.ErrTokenExpired, claims.ExpiresAt.UTC().Format(time.RFC3339))
	}

	return claims.Subject, nil
}

// TTL returns lifetime of issued tokens
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}
