package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/internal/domain/port"
	pkgpostgres "github.com/bibbank/loginrisk/pkg/postgres"
)

// AuditRepository implements port.AuditRepository using PostgreSQL.
type AuditRepository struct {
	db DB
}

var _ port.AuditRepository = (*AuditRepository)(nil)

// NewAuditRepository creates a new PostgreSQL-backed audit repository.
func NewAuditRepository(db DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append inserts entries in one transaction. Re-appending an entry with a
// known ID is a no-op.
func (r *AuditRepository) Append(ctx context.Context, entries ...model.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}

	return pkgpostgres.WithTransaction(ctx, r.db, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, e := range entries {
			fields, err := json.Marshal(e.Fields)
			if err != nil {
				return fmt.Errorf("failed to marshal audit fields: %w", err)
			}
			if e.Fields == nil {
				fields = []byte("{}")
			}
			batch.Queue(`
				INSERT INTO audit_log (id, kind, step, error, fields, occurred_at)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (id) DO NOTHING
			`, e.ID, e.Kind, e.Step, e.Error, fields, e.OccurredAt)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to append audit entries: %w", err)
		}
		return nil
	})
}

// ListRecent returns the newest entries first. An empty kind matches all.
func (r *AuditRepository) ListRecent(ctx context.Context, kind string, limit int) ([]model.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, kind, step, error, fields, occurred_at
		FROM audit_log
		WHERE ($1 = '' OR kind = $1)
		ORDER BY occurred_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		var (
			id         uuid.UUID
			entryKind  string
			step       string
			errText    string
			fieldsDoc  []byte
			occurredAt time.Time
		)
		if err := rows.Scan(&id, &entryKind, &step, &errText, &fieldsDoc, &occurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}

		var fields map[string]string
		if err := json.Unmarshal(fieldsDoc, &fields); err != nil {
			return nil, fmt.Errorf("failed to decode audit fields: %w", err)
		}
		if len(fields) == 0 {
			fields = nil
		}

		entries = append(entries, model.AuditEntry{
			ID:         id,
			Kind:       entryKind,
			Step:       step,
			Error:      errText,
			Fields:     fields,
			OccurredAt: occurredAt.UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit rows: %w", err)
	}

	return entries, nil
}
