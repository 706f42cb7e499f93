package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/saboresdadori/bakerybot/internal/models"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(WithSQLiteDSN(filepath.Join(t.TempDir(), "quotes.db")))
	if err != nil {
		t.Fatalf("failed to create SQLite store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_AddListUpdate(t *testing.T) {
	s := newTestSQLiteStore(t)

	base := time.Now()
	calls := 0
	s.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Millisecond)
	}

	q1, err := s.AddQuote("5511999999999@s.whatsapp.net", "Produto: bolo de chocolate, 1kg", false)
	if err != nil {
		t.Fatalf("AddQuote failed: %v", err)
	}
	q2, err := s.AddQuote("5511888888888@s.whatsapp.net", "foto de referência em anexo", true)
	if err != nil {
		t.Fatalf("AddQuote failed: %v", err)
	}

	all, err := s.ListQuotes("")
	if err != nil {
		t.Fatalf("ListQuotes failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(all))
	}
	if all[0].ID != q1.ID || all[1].ID != q2.ID {
		t.Errorf("expected insertion order, got ids %d, %d", all[0].ID, all[1].ID)
	}
	if !all[1].HasImage {
		t.Errorf("expected tem_imagem to round-trip")
	}

	if err := s.UpdateQuoteStatus(q1.ID, models.QuoteStatusDone); err != nil {
		t.Fatalf("UpdateQuoteStatus failed: %v", err)
	}
	done, err := s.ListQuotes(models.QuoteStatusDone)
	if err != nil {
		t.Fatalf("ListQuotes failed: %v", err)
	}
	if len(done) != 1 || done[0].ID != q1.ID {
		t.Fatalf("expected only the completed quote, got %+v", done)
	}
	if done[0].UpdatedAt == nil {
		t.Errorf("expected updated_at to be stamped")
	}

	if err := s.UpdateQuoteStatus(12345, models.QuoteStatusDone); !errors.Is(err, ErrQuoteNotFound) {
		t.Errorf("expected ErrQuoteNotFound for unknown id, got %v", err)
	}
}

func TestSQLiteStore_Stats(t *testing.T) {
	s := newTestSQLiteStore(t)

	base := time.Now()
	calls := 0
	s.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Millisecond)
	}

	q1, _ := s.AddQuote("111", "Produto: torta de limão", true)
	if _, err := s.AddQuote("222", "Produto: kit festa 100 pessoas", false); err != nil {
		t.Fatalf("AddQuote failed: %v", err)
	}
	if err := s.UpdateQuoteStatus(q1.ID, models.QuoteStatusInProgress); err != nil {
		t.Fatalf("UpdateQuoteStatus failed: %v", err)
	}

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	want := models.QuoteStats{Total: 2, New: 1, InProgress: 1, WithImage: 1}
	if stats != want {
		t.Errorf("expected stats %+v, got %+v", want, stats)
	}
}
