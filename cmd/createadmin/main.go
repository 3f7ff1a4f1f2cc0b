// Command createadmin provisions identities allowed to sign in to the admin panel
//
//	createadmin -d postgres://... -i admin@bookshop.local
//	createadmin -d postgres://... --from-file identities.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/nkiryanov/bookshop/internal/apperrors"
	"github.com/nkiryanov/bookshop/internal/db"
	"github.com/nkiryanov/bookshop/internal/models"
	"github.com/nkiryanov/bookshop/internal/repository/postgres"
	"github.com/nkiryanov/bookshop/internal/service/auth"
	"github.com/nkiryanov/bookshop/internal/service/identity"
)

// readPassword reads without echo; replaced in tests
var readPassword = term.ReadPassword

type options struct {
	DatabaseDSN string
	Identifier  string
	Role        string
	FromFile    string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Getenv, os.Stdout, os.Args[1:]); err != nil {
		slog.Error("can't create admin", "error", err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, getenv func(string) string, out io.Writer, args []string) error {
	o, err := parseArgs(args, getenv)
	if err != nil {
		return err
	}

	pool, err := db.ConnectAndMigrate(ctx, o.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("error while connecting to db. Err: %w", err)
	}
	defer pool.Close()

	svc := identity.NewService(auth.DefaultHasher, postgres.NewStorage(pool))

	return execute(ctx, svc, o, out, func() (string, error) {
		return promptPassword(out, int(os.Stdin.Fd()))
	})
}

func parseArgs(args []string, getenv func(string) string) (options, error) {
	o := options{
		DatabaseDSN: getenv("DATABASE_URI"),
		Role:        string(models.RoleAdmin),
	}

	fs := pflag.NewFlagSet("createadmin", pflag.ContinueOnError)
	fs.StringVarP(&o.DatabaseDSN, "database", "d", o.DatabaseDSN, "Database connection string")
	fs.StringVarP(&o.Identifier, "identifier", "i", o.Identifier, "Identifier (e-mail) to sign in with")
	fs.StringVarP(&o.Role, "role", "r", o.Role, "Role of the identity")
	fs.StringVarP(&o.FromFile, "from-file", "f", o.FromFile, "YAML file with identities to create")

	if err := fs.Parse(args); err != nil {
		return o, err
	}

	switch {
	case o.DatabaseDSN == "":
		return o, errors.New("database DSN is required: set DATABASE_URI or --database")
	case o.Identifier == "" && o.FromFile == "":
		return o, errors.New("either --identifier or --from-file is required")
	case o.Identifier != "" && o.FromFile != "":
		return o, errors.New("--identifier and --from-file are mutually exclusive")
	}

	return o, nil
}

func execute(ctx context.Context, svc *identity.Service, o options, out io.Writer, password func() (string, error)) error {
	if o.FromFile != "" {
		f, err := os.Open(o.FromFile)
		if err != nil {
			return err
		}
		defer f.Close() //nolint:errcheck

		report, err := svc.Seed(ctx, f)
		if err != nil {
			return err
		}
		for _, identifier := range report.Created {
			_, _ = fmt.Fprintf(out, "created: %s\n", identifier)
		}
		for _, identifier := range report.Skipped {
			_, _ = fmt.Fprintf(out, "already exists, skipped: %s\n", identifier)
		}
		return nil
	}

	secret, err := password()
	if err != nil {
		return err
	}

	created, err := svc.Create(ctx, o.Identifier, secret, models.Role(o.Role))
	switch {
	case err == nil:
		_, _ = fmt.Fprintf(out, "created: %s (%s)\n", created.Identifier, created.ID)
		return nil
	case errors.Is(err, apperrors.ErrIdentityAlreadyExists):
		_, _ = fmt.Fprintf(out, "already exists, skipped: %s\n", o.Identifier)
		return nil
	default:
		return err
	}
}

// promptPassword asks password twice from terminal
func promptPassword(w io.Writer, fd int) (string, error) {
	read := func(prompt string) (string, error) {
		if _, err := fmt.Fprint(w, prompt); err != nil {
			return "", err
		}
		pw, err := readPassword(fd)
		_, _ = fmt.Fprintln(w)
		if err != nil {
			return "", err
		}
		return string(pw), nil
	}

	first, err := read("Enter password: ")
	if err != nil {
		return "", err
	}
	if first == "" {
		return "", errors.New("password must not be empty")
	}

	second, err := read("Repeat password: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passwords do not match")
	}

	return first, nil
}
