// Package store provides storage backends for the bakery bot.
//
// This file implements the JSON flat-file backend. Every mutation reads and
// rewrites the whole collection; acceptable only at small scale.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/saboresdadori/bakerybot/internal/models"
)

// Constants for the JSON file store configuration
const (
	// DefaultQuotesFile is the default quotes file name.
	DefaultQuotesFile = "orcamentos.json"
	// DefaultDirPermissions defines the default permissions for data directories.
	DefaultDirPermissions = 0755
	// DefaultFilePermissions defines the default permissions for the quotes file.
	DefaultFilePermissions = 0644
)

// JSONFileStore persists quotes as a single JSON array on disk. The mutex
// serializes the read-modify-write cycles; there is no cross-process
// coordination.
type JSONFileStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time // injectable clock for tests
}

// NewJSONFileStore creates a JSON file store, creating the file with an
// empty collection if it does not exist.
func NewJSONFileStore(opts ...Option) (*JSONFileStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	path := cfg.Path
	if path == "" {
		path = DefaultQuotesFile
	}
	slog.Debug("NewJSONFileStore invoked", "path", path)

	if err := os.MkdirAll(filepath.Dir(path), DefaultDirPermissions); err != nil {
		slog.Error("Failed to create quotes directory", "error", err, "path", path)
		return nil, fmt.Errorf("failed to create quotes directory: %w", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte("[]\n"), DefaultFilePermissions); err != nil {
			slog.Error("Failed to create quotes file", "error", err, "path", path)
			return nil, fmt.Errorf("failed to create quotes file: %w", err)
		}
		slog.Info("Quotes file created", "path", path)
	}

	return &JSONFileStore{path: path, now: time.Now}, nil
}

// load reads the whole collection. Callers must hold the mutex.
func (s *JSONFileStore) load() ([]models.Quote, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read quotes file: %w", err)
	}
	var quotes []models.Quote
	if err := json.Unmarshal(data, &quotes); err != nil {
		return nil, fmt.Errorf("failed to parse quotes file: %w", err)
	}
	return quotes, nil
}

// save rewrites the whole collection. Callers must hold the mutex.
func (s *JSONFileStore) save(quotes []models.Quote) error {
	data, err := json.MarshalIndent(quotes, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode quotes: %w", err)
	}
	if err := os.WriteFile(s.path, data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("failed to write quotes file: %w", err)
	}
	return nil
}

// AddQuote appends a new quote request and rewrites the file.
func (s *JSONFileStore) AddQuote(number, message string, hasImage bool) (models.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	quotes, err := s.load()
	if err != nil {
		slog.Error("JSONFileStore.AddQuote load failed", "error", err)
		return models.Quote{}, err
	}

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
		slog.Error("JSONFileStore.AddQuote validation failed", "error", err, "number", number)
		return models.Quote{}, err
	}

	quotes = append(quotes, quote)
	if err := s.save(quotes); err != nil {
		slog.Error("JSONFileStore.AddQuote save failed", "error", err, "number", number)
		return models.Quote{}, err
	}
	slog.Info("JSONFileStore.AddQuote succeeded", "id", quote.ID, "number", number, "has_image", hasImage)
	return quote, nil
}

// ListQuotes returns quotes in file order, optionally filtered by status.
func (s *JSONFileStore) ListQuotes(status models.QuoteStatus) ([]models.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	quotes, err := s.load()
	if err != nil {
		slog.Error("JSONFileStore.ListQuotes load failed", "error", err)
		return nil, err
	}
	if status == "" {
		slog.Debug("JSONFileStore.ListQuotes succeeded", "count", len(quotes))
		return quotes, nil
	}

	var filtered []models.Quote
	for _, q := range quotes {
		if q.Status == status {
			filtered = append(filtered, q)
		}
	}
	slog.Debug("JSONFileStore.ListQuotes succeeded", "count", len(filtered), "status", status)
	return filtered, nil
}

// UpdateQuoteStatus changes the status of a quote and rewrites the file.
func (s *JSONFileStore) UpdateQuoteStatus(id int64, status models.QuoteStatus) error {
	if !models.IsValidQuoteStatus(status) {
		return models.ErrInvalidQuoteStatus
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	quotes, err := s.load()
	if err != nil {
		slog.Error("JSONFileStore.UpdateQuoteStatus load failed", "error", err)
		return err
	}
	for i := range quotes {
		if quotes[i].ID == id {
			now := s.now()
			quotes[i].Status = status
			quotes[i].UpdatedAt = &now
			if err := s.save(quotes); err != nil {
				slog.Error("JSONFileStore.UpdateQuoteStatus save failed", "error", err, "id", id)
				return err
			}
			slog.Info("JSONFileStore.UpdateQuoteStatus succeeded", "id", id, "status", status)
			return nil
		}
	}
	slog.Warn("JSONFileStore.UpdateQuoteStatus quote not found", "id", id)
	return ErrQuoteNotFound
}

// Stats aggregates quote counts by status.
func (s *JSONFileStore) Stats() (models.QuoteStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	quotes, err := s.load()
	if err != nil {
		slog.Error("JSONFileStore.Stats load failed", "error", err)
		return models.QuoteStats{}, err
	}
	return aggregateStats(quotes), nil
}

// Close is a no-op for the file backend.
func (s *JSONFileStore) Close() error {
	return nil
}

// aggregateStats computes counts over a quote collection. Shared with the
// database backends' tests.
func aggregateStats(quotes []models.Quote) models.QuoteStats {
	stats := models.QuoteStats{Total: len(quotes)}
	for _, q := range quotes {
		switch q.Status {
		case models.QuoteStatusNew:
			stats.New++
		case models.QuoteStatusInProgress:
			stats.InProgress++
		case models.QuoteStatusDone:
			stats.Done++
		}
		if q.HasImage {
			stats.WithImage++
		}
	}
	return stats
}
