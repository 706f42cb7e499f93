// Package store provides quote-request storage backends for the bakery bot.
//
// The default backend is a JSON flat file matching the layout the staff
// tooling already reads. SQLite and PostgreSQL backends are available for
// installations that outgrow the file.
package store

import (
	"errors"
	"strings"

	"github.com/saboresdadori/bakerybot/internal/models"
)

// ErrQuoteNotFound is returned when a status update targets an unknown quote.
var ErrQuoteNotFound = errors.New("quote not found")

// Store defines the interface for recording and managing quote requests.
type Store interface {
	// AddQuote appends a new quote request with status "novo" and returns
	// the stored record.
	AddQuote(number, message string, hasImage bool) (models.Quote, error)

	// ListQuotes returns quote requests, optionally filtered by status.
	// An empty status returns everything.
	ListQuotes(status models.QuoteStatus) ([]models.Quote, error)

	// UpdateQuoteStatus changes the status of a quote and stamps updatedAt.
	// Returns ErrQuoteNotFound if the id is unknown.
	UpdateQuoteStatus(id int64, status models.QuoteStatus) error

	// Stats aggregates quote counts by status.
	Stats() (models.QuoteStats, error)

	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	// Path is the JSON quotes file location (file backend).
	Path string
	// DSN is the database connection string (SQLite or PostgreSQL backends).
	DSN string
}

// Option defines a configuration option for a store backend.
type Option func(*Opts)

// WithJSONPath sets the quotes file path for the JSON file backend.
func WithJSONPath(path string) Option {
	return func(o *Opts) {
		o.Path = path
	}
}

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType classifies a DSN as "postgres", "sqlite" or "json" so the
// caller can pick a backend. Postgres URLs and key=value DSNs are detected by
// shape; a path ending in .json selects the file backend; anything else is
// treated as a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	if strings.HasSuffix(dsn, ".json") {
		return "json"
	}
	return "sqlite"
}

// New creates a store backend based on the provided options: DSN selects
// SQLite or PostgreSQL, otherwise the JSON file backend is used.
func New(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.DSN != "" {
		switch DetectDSNType(cfg.DSN) {
		case "postgres":
			return NewPostgresStore(WithPostgresDSN(cfg.DSN))
		case "sqlite":
			return NewSQLiteStore(WithSQLiteDSN(cfg.DSN))
		default:
			return NewJSONFileStore(WithJSONPath(cfg.DSN))
		}
	}
	return NewJSONFileStore(WithJSONPath(cfg.Path))
}
