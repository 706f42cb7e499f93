// Package store provides storage backends for the bakery bot.
//
// This file implements a PostgreSQL-backed quote store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/saboresdadori/bakerybot/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists quotes in a PostgreSQL database.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db, now: time.Now}, nil
}

// AddQuote inserts a new quote request.
func (s *PostgresStore) AddQuote(number, message string, hasImage bool) (models.Quote, error) {
	now := s.now()
	quote := models.Quote{
		ID:        now.UnixMilli(),
		Number:    number,
		Message:   message,
		Timestamp: now,
		Status:    models.QuoteStatusNew,
		HasImage:  hasImage,
	}
	if err := quote.Validate(); err != nil {
		slog.Error("PostgresStore.AddQuote validation failed", "error", err, "number", number)
		return models.Quote{}, err
	}

	_, err := s.db.Exec(
		`INSERT INTO quotes (id, numero, mensagem, timestamp, status, tem_imagem) VALUES ($1, $2, $3, $4, $5, $6)`,
		quote.ID, quote.Number, quote.Message, quote.Timestamp, quote.Status, quote.HasImage,
	)
	if err != nil {
		slog.Error("PostgresStore.AddQuote failed", "error", err, "number", number)
		return models.Quote{}, fmt.Errorf("failed to insert quote for %s: %w", number, err)
	}
	slog.Info("PostgresStore.AddQuote succeeded", "id", quote.ID, "number", number)
	return quote, nil
}

// ListQuotes returns quotes in insertion order, optionally filtered by status.
func (s *PostgresStore) ListQuotes(status models.QuoteStatus) ([]models.Quote, error) {
	query := `SELECT id, numero, mensagem, timestamp, status, tem_imagem, updated_at FROM quotes`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore.ListQuotes query failed", "error", err)
		return nil, fmt.Errorf("failed to query quotes: %w", err)
	}
	defer rows.Close()

	var quotes []models.Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			slog.Error("PostgresStore.ListQuotes scan failed", "error", err)
			return nil, err
		}
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore.ListQuotes rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate quote rows: %w", err)
	}
	slog.Debug("PostgresStore.ListQuotes succeeded", "count", len(quotes))
	return quotes, nil
}

// UpdateQuoteStatus changes the status of a quote and stamps updated_at.
func (s *PostgresStore) UpdateQuoteStatus(id int64, status models.QuoteStatus) error {
	if !models.IsValidQuoteStatus(status) {
		return models.ErrInvalidQuoteStatus
	}

	res, err := s.db.Exec(`UPDATE quotes SET status = $1, updated_at = $2 WHERE id = $3`, status, s.now(), id)
	if err != nil {
		slog.Error("PostgresStore.UpdateQuoteStatus failed", "error", err, "id", id)
		return fmt.Errorf("failed to update quote %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		slog.Warn("PostgresStore.UpdateQuoteStatus quote not found", "id", id)
		return ErrQuoteNotFound
	}
	slog.Info("PostgresStore.UpdateQuoteStatus succeeded", "id", id, "status", status)
	return nil
}

// Stats aggregates quote counts by status.
func (s *PostgresStore) Stats() (models.QuoteStats, error) {
	quotes, err := s.ListQuotes("")
	if err != nil {
		return models.QuoteStats{}, err
	}
	return aggregateStats(quotes), nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
