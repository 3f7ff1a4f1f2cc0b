package e2e

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/bookshop/internal/handlers"
	"github.com/nkiryanov/bookshop/internal/handlers/authctx"
	"github.com/nkiryanov/bookshop/internal/logger"
	"github.com/nkiryanov/bookshop/internal/repository/postgres"
	"github.com/nkiryanov/bookshop/internal/service/auth"
	"github.com/nkiryanov/bookshop/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/bookshop/internal/service/identity"
	"github.com/nkiryanov/bookshop/internal/testutil"
)

const (
	LoginURL = "/api/auth/login"
	MeURL    = "/api/auth/me"
	BooksURL = "/api/books"

	TestSecret = "test-secret"
)

// Clock the server sees. Starts at real time
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Books stands for a privileged collaborator: it remembers who called it
type Books struct {
	mu       sync.Mutex
	subjects []string
}

func (b *Books) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	subject, _ := authctx.SubjectFromContext(r.Context())

	b.mu.Lock()
	b.subjects = append(b.subjects, subject)
	b.mu.Unlock()

	w.WriteHeader(http.StatusCreated)
}

func (b *Books) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.subjects...)
}

type Services struct {
	AuthService *auth.AuthService
	Identities  *identity.Service
	Clock       *Clock
	Books       *Books
}

// Create db transaction and run server in with that connection (one connection cause one transaction)
// The created transaction passed to inner function: so, you can safely use testutil.WithTx with it
func ServeWithTx(dbpool *pgxpool.Pool, t *testing.T, secret string, fn func(tx pgx.Tx, srvURL string, services Services)) {
	testutil.WithTx(dbpool, t, func(tx pgx.Tx) {
		hasher := auth.BcryptHasher{Cost: bcrypt.MinCost}
		clock := &Clock{now: time.Now()}
		books := &Books{}

		// Initialize repositories
		storage := postgres.NewStorage(tx)

		// Initialize services
		tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: secret, Now: clock.Now})
		require.NoError(t, err, "token manager should be created without errors")

		as, err := auth.NewService(auth.Config{Hasher: hasher}, tokenManager, storage.Identity())
		require.NoError(t, err, "auth service starting error", err)

		// Complete all together as router
		router := handlers.NewRouter(as, logger.NewNoOpLogger(),
			handlers.WithPrivileged("POST "+BooksURL, books),
		)

		// Run http server with the router in transaction
		srv := httptest.NewServer(router)
		defer srv.Close()

		fn(tx, srv.URL, Services{
			AuthService: as,
			Identities:  identity.NewService(hasher, storage),
			Clock:       clock,
			Books:       books,
		})
	})
}
