package store

import (
	"database/sql"
	"fmt"

	"github.com/saboresdadori/bakerybot/internal/models"
)

// scanQuote scans a Quote from sql.Rows. Column order: id, numero, mensagem,
// timestamp, status, tem_imagem, updated_at.
func scanQuote(rows *sql.Rows) (models.Quote, error) {
	var q models.Quote
	var updatedAt sql.NullTime
	err := rows.Scan(&q.ID, &q.Number, &q.Message, &q.Timestamp, &q.Status, &q.HasImage, &updatedAt)
	if err != nil {
		return q, fmt.Errorf("scan quote failed: %w", err)
	}
	if updatedAt.Valid {
		q.UpdatedAt = &updatedAt.Time
	}
	return q, nil
}
