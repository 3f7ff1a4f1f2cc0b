package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/bookshop/internal/logger"
)

const (
	defaultListenAddr   = "localhost:8000"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction
	defaultTokenTTL     = 24 * time.Hour

	// Shorter secrets are refused in production
	minProductionSecretLen = 32
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the bookshop service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret key to sign access tokens with
	// Changing it invalidates every issued token
	SecretKey string

	// Access token lifetime and tolerated clock skew
	TokenTTL    time.Duration
	TokenLeeway time.Duration

	// Environment
	Environment string

	// Origins allowed to make cross origin requests
	CORSOrigins []string

	// Serve prometheus metrics on /metrics
	Metrics bool
}

func NewConfig() *Config {
	return &Config{
		LogLevel:    defaultLoggingLevel,
		ListenAddr:  defaultListenAddr,
		Environment: defaultEnvironment,
		TokenTTL:    defaultTokenTTL,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}
	setList := func(o *[]string) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			*o = (*o)[:0]
			for item := range strings.SplitSeq(value, ",") {
				if item = strings.TrimSpace(item); item != "" {
					*o = append(*o, item)
				}
			}
			return nil
		}
	}
	setBool := func(o *bool) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			b, err := strconv.ParseBool(value)
			if err != nil {
				return err
			}
			*o = b
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":  setString(&c.ListenAddr),
		"DATABASE_URI": setString(&c.DatabaseDSN),
		"SECRET_KEY":   setString(&c.SecretKey),
		"TOKEN_TTL":    setDuration(&c.TokenTTL),
		"TOKEN_LEEWAY": setDuration(&c.TokenLeeway),
		"LOG_LEVEL":    setString(&c.LogLevel),
		"ENVIRONMENT":  setString(&c.Environment),
		"CORS_ORIGINS": setList(&c.CORSOrigins),
		"METRICS":      setBool(&c.Metrics),
	}

	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			return fmt.Errorf("invalid %s. Err: %w", key, err)
		}
	}

	return nil
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("bookshop", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key to sign access tokens")
	fs.DurationVarP(&c.TokenTTL, "token-ttl", "t", c.TokenTTL, "Access token lifetime")
	fs.DurationVar(&c.TokenLeeway, "token-leeway", c.TokenLeeway, "Tolerated clock skew on token expiration")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringSliceVarP(&c.CORSOrigins, "cors-origins", "c", c.CORSOrigins, "Origins allowed to make cross origin requests")
	fs.BoolVarP(&c.Metrics, "metrics", "m", c.Metrics, "Serve prometheus metrics on /metrics")

	return fs.Parse(args)
}

// Validate refuses configuration the server must not start with
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != logger.EnvProduction && c.Environment != logger.EnvDevelopment {
		errs = append(errs, fmt.Errorf("unknown environment %q, use dev or prod", c.Environment))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database DSN is required"))
	}
	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key is required"))
	}
	if c.Environment == logger.EnvProduction && c.SecretKey != "" && len(c.SecretKey) < minProductionSecretLen {
		errs = append(errs, fmt.Errorf("secret key must be at least %d characters in production", minProductionSecretLen))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token ttl must be positive"))
	}
	if c.TokenLeeway < 0 {
		errs = append(errs, errors.New("token leeway must not be negative"))
	}

	return errors.Join(errs...)
}
