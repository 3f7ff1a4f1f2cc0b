package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/bookshop/internal/apperrors"
	"github.com/nkiryanov/bookshop/internal/handlers/authctx"
	"github.com/nkiryanov/bookshop/internal/handlers/render"
	"github.com/nkiryanov/bookshop/internal/logger"
	"github.com/nkiryanov/bookshop/internal/metrics"
	"github.com/nkiryanov/bookshop/internal/models"
)

type AuthHandler struct {
	authService authService
	logger      logger.Logger
	metrics     metrics.Recorder
	gate        func(http.Handler) http.Handler
}

type identityResponse struct {
	ID         uuid.UUID   `json:"id"`
	Identifier string      `json:"identifier"`
	Role       models.Role `json:"role"`
}

func newIdentityResponse(i models.Identity) identityResponse {
	return identityResponse{ID: i.ID, Identifier: i.Identifier, Role: i.Role}
}

// NewAuth creates login and 'me' handlers
// gate protects the 'me' endpoint
func NewAuth(as authService, l logger.Logger, m metrics.Recorder, gate func(http.Handler) http.Handler) *AuthHandler {
	return &AuthHandler{
		authService: as,
		logger:      l,
		metrics:     m,
		gate:        gate,
	}
}

func (h *AuthHandler) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", h.login)
	mux.Handle("GET /me", h.gate(http.HandlerFunc(h.me)))

	return mux
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	type LoginRequest struct {
		Identifier string `json:"identifier" validate:"required,max=254"`
		Password   string `json:"password" validate:"required,max=1024"`
	}
	type LoginSuccessResponse struct {
		Token     string           `json:"token"`
		ExpiresAt time.Time        `json:"expires_at"`
		User      identityResponse `json:"user"`
	}

	data, err := render.BindAndValidate[LoginRequest](w, r)
	if err != nil {
		h.logger.Debug("login request rejected", "error", err)
		return
	}

	session, err := h.authService.Login(r.Context(), data.Identifier, data.Password)
	if err != nil {
		switch {
		case apperrors.IsAuthFailure(err):
			h.metrics.RecordLogin(metrics.LoginRejected)
			h.logger.Info("login failed", "identifier", data.Identifier)
			render.ServiceError(w, "Invalid credentials", http.StatusUnauthorized)
		default:
			h.metrics.RecordLogin(metrics.LoginError)
			h.logger.Error("login error", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	h.metrics.RecordLogin(metrics.LoginSuccess)
	h.logger.Info("logged in", "identity", session.Identity.ID)

	h.authService.SetToken(w, session.Token)
	render.JSON(w, LoginSuccessResponse{
		Token:     session.Token.Value,
		ExpiresAt: session.Token.ExpiresAt.UTC(),
		User:      newIdentityResponse(session.Identity),
	})
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := authctx.SubjectFromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	identity, err := h.authService.Identity(r.Context(), subjectID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrIdentityNotFound):
			// token outlived its identity
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
		default:
			h.logger.Error("can't load identity", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, newIdentityResponse(identity))
}
