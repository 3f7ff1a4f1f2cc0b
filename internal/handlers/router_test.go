package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/bookshop/internal/handlers/authctx"
	"github.com/nkiryanov/bookshop/internal/logger"
	"github.com/nkiryanov/bookshop/internal/metrics"
	"github.com/nkiryanov/bookshop/internal/models"
	"github.com/nkiryanov/bookshop/internal/repository/memory"
	"github.com/nkiryanov/bookshop/internal/service/auth"
	"github.com/nkiryanov/bookshop/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/bookshop/internal/service/identity"
)

type routerEnv struct {
	handler    http.Handler
	now        *time.Time
	storage    *memory.Storage
	identities *identity.Service
	registry   *prometheus.Registry

	// calls of the privileged collaborator
	booksCalled  int
	booksSubject string
}

func newRouterEnv(t *testing.T, opts ...Option) *routerEnv {
	t.Helper()

	hasher := auth.BcryptHasher{Cost: bcrypt.MinCost}
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	env := &routerEnv{
		now:      &now,
		storage:  memory.NewStorage(),
		registry: prometheus.NewRegistry(),
	}
	env.identities = identity.NewService(hasher, env.storage)

	tokens, err := tokenmanager.New(tokenmanager.Config{
		SecretKey: "test-secret",
		TTL:       24 * time.Hour,
		Now:       func() time.Time { return *env.now },
	})
	require.NoError(t, err)

	s, err := auth.NewService(auth.Config{Hasher: hasher}, tokens, env.storage.Identity())
	require.NoError(t, err)

	books := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.booksCalled++
		env.booksSubject, _ = authctx.SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusCreated)
	})

	opts = append([]Option{
		WithPrivileged("POST /api/books", books),
		WithMetrics(env.registry, metrics.NewCollector(env.registry)),
		WithCORS([]string{"http://localhost:3000"}),
	}, opts...)

	env.handler = NewRouter(s, logger.NewNoOpLogger(), opts...)

	return env
}

func (e *routerEnv) do(t *testing.T, method string, path string, body string, header http.Header) (*http.Response, string) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}

	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)

	resp := w.Result()
	defer resp.Body.Close() //nolint:errcheck
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, string(data)
}

func (e *routerEnv) login(t *testing.T, identifier string, password string) (*http.Response, string) {
	t.Helper()
	data := `{"identifier": "` + identifier + `", "password": "` + password + `"}`
	return e.do(t, http.MethodPost, "/api/auth/login", data, http.Header{"Content-Type": {"application/json"}})
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": {"Bearer " + token}}
}

const unauthorizedBody = `{"error": "service_error", "message": "Unauthorized"}`

func TestRouter_Login(t *testing.T) {
	t.Run("login ok", func(t *testing.T) {
		env := newRouterEnv(t)
		admin, err := env.identities.Create(t.Context(), "admin@example.com", "admin123", models.RoleAdmin)
		require.NoError(t, err)

		resp, body := env.login(t, "admin@example.com", "admin123")

		require.Equalf(t, http.StatusOK, resp.StatusCode, "body: %s", body)
		var got struct {
			Token     string    `json:"token"`
			ExpiresAt time.Time `json:"expires_at"`
			User      struct {
				ID         string `json:"id"`
				Identifier string `json:"identifier"`
				Role       string `json:"role"`
			} `json:"user"`
		}
		require.NoError(t, json.Unmarshal([]byte(body), &got))
		assert.NotEmpty(t, got.Token)
		assert.True(t, env.now.Add(24*time.Hour).Equal(got.ExpiresAt), "expires in 24h, got %s", got.ExpiresAt)
		assert.Equal(t, admin.ID.String(), got.User.ID)
		assert.Equal(t, "admin@example.com", got.User.Identifier)
		assert.Equal(t, "admin", got.User.Role)
		assert.Equal(t, "Bearer "+got.Token, resp.Header.Get("Authorization"))
	})

	// Wrong secret, unknown identifier and non-admin role look the same to client
	t.Run("login rejected", func(t *testing.T) {
		env := newRouterEnv(t)
		_, err := env.identities.Create(t.Context(), "admin@example.com", "admin123", models.RoleAdmin)
		require.NoError(t, err)
		_, err = env.identities.Create(t.Context(), "editor@example.com", "editor123", models.RoleEditor)
		require.NoError(t, err)

		for _, c := range [][2]string{
			{"admin@example.com", "wrongpass"},
			{"nobody@example.com", "admin123"},
			{"editor@example.com", "editor123"},
		} {
			resp, body := env.login(t, c[0], c[1])

			require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "body: %s", body)
			require.JSONEq(t, `{"error": "service_error", "message": "Invalid credentials"}`, body)
			require.Empty(t, resp.Header.Get("Authorization"), "no token on failed login")
		}
	})

	t.Run("bad request", func(t *testing.T) {
		env := newRouterEnv(t)

		resp, body := env.do(t, http.MethodPost, "/api/auth/login", `not-json`, nil)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Contains(t, body, "decoding_failed")

		resp, body = env.do(t, http.MethodPost, "/api/auth/login", `{"identifier": "admin@example.com"}`, nil)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.JSONEq(t, `{
			"error": "validation_failed",
			"message": "Request validation failed",
			"fields": {"password": "This field is required"}
		}`, body)
	})

	t.Run("login is POST only", func(t *testing.T) {
		env := newRouterEnv(t)

		resp, _ := env.do(t, http.MethodGet, "/api/auth/login", "", nil)

		require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestRouter_Gate(t *testing.T) {
	setup := func(t *testing.T) (*routerEnv, models.Identity, string) {
		env := newRouterEnv(t)
		admin, err := env.identities.Create(t.Context(), "admin@example.com", "admin123", models.RoleAdmin)
		require.NoError(t, err)

		resp, body := env.login(t, "admin@example.com", "admin123")
		require.Equalf(t, http.StatusOK, resp.StatusCode, "body: %s", body)
		token := strings.TrimPrefix(resp.Header.Get("Authorization"), "Bearer ")

		return env, admin, token
	}

	t.Run("token still valid after 23h59m", func(t *testing.T) {
		env, admin, token := setup(t)
		*env.now = env.now.Add(23*time.Hour + 59*time.Minute)

		resp, body := env.do(t, http.MethodPost, "/api/books", `{}`, bearer(token))

		require.Equalf(t, http.StatusCreated, resp.StatusCode, "body: %s", body)
		require.Equal(t, 1, env.booksCalled)
		require.Equal(t, admin.ID.String(), env.booksSubject)
	})

	t.Run("token expired after 24h1m", func(t *testing.T) {
		env, _, token := setup(t)
		*env.now = env.now.Add(24*time.Hour + time.Minute)

		resp, body := env.do(t, http.MethodPost, "/api/books", `{}`, bearer(token))

		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.JSONEq(t, unauthorizedBody, body)
		require.Equal(t, 0, env.booksCalled)
	})

	t.Run("missing header rejected before handler", func(t *testing.T) {
		env, _, _ := setup(t)

		resp, body := env.do(t, http.MethodPost, "/api/books", `{}`, nil)

		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.JSONEq(t, unauthorizedBody, body)
		require.Equal(t, 0, env.booksCalled, "collaborator must not run")
	})

	t.Run("tampered token", func(t *testing.T) {
		env, _, token := setup(t)

		for _, tampered := range []string{token + "x", "not.a.token", token[:len(token)-10]} {
			resp, body := env.do(t, http.MethodPost, "/api/books", `{}`, bearer(tampered))

			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			require.JSONEq(t, unauthorizedBody, body)
		}
		require.Equal(t, 0, env.booksCalled)
	})

	t.Run("me", func(t *testing.T) {
		env, admin, token := setup(t)

		resp, body := env.do(t, http.MethodGet, "/api/auth/me", "", bearer(token))
		require.Equalf(t, http.StatusOK, resp.StatusCode, "body: %s", body)
		require.JSONEq(t, `{"id": "`+admin.ID.String()+`", "identifier": "admin@example.com", "role": "admin"}`, body)

		resp, body = env.do(t, http.MethodGet, "/api/auth/me", "", nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.JSONEq(t, unauthorizedBody, body)
	})

	t.Run("gate rejections counted by reason", func(t *testing.T) {
		env, _, token := setup(t)
		env.do(t, http.MethodPost, "/api/books", `{}`, nil)
		*env.now = env.now.Add(48 * time.Hour)
		env.do(t, http.MethodPost, "/api/books", `{}`, bearer(token))

		resp, body := env.do(t, http.MethodGet, "/metrics", "", nil)

		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, `bookshop_auth_gate_rejected_total{reason="missing"} 1`)
		assert.Contains(t, body, `bookshop_auth_gate_rejected_total{reason="expired"} 1`)
		assert.Contains(t, body, `bookshop_auth_logins_total{outcome="success"} 1`)
		assert.Contains(t, body, `bookshop_http_status_total{status_code="401"} 2`)
	})
}

func TestRouter_CORS(t *testing.T) {
	env := newRouterEnv(t)

	resp, _ := env.do(t, http.MethodOptions, "/api/auth/login", "", http.Header{
		"Origin":                        {"http://localhost:3000"},
		"Access-Control-Request-Method": {http.MethodPost},
	})

	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Authorization", resp.Header.Get("Access-Control-Expose-Headers"))
}

func TestRouter_Recover(t *testing.T) {
	env := newRouterEnv(t, WithPrivileged("GET /api/panic", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))
	_, err := env.identities.Create(t.Context(), "admin@example.com", "admin123", models.RoleAdmin)
	require.NoError(t, err)
	resp, _ := env.login(t, "admin@example.com", "admin123")

	resp, body := env.do(t, http.MethodGet, "/api/panic", "", http.Header{"Authorization": {resp.Header.Get("Authorization")}})

	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.JSONEq(t, `{"error": "service_error", "message": "Internal server error"}`, body)
}
