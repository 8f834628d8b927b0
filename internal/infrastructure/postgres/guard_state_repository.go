package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/internal/domain/port"
	pkgpostgres "github.com/bibbank/loginrisk/pkg/postgres"
)

// DB is the subset of *pgxpool.Pool the repositories need.
type DB interface {
	pkgpostgres.Querier
	pkgpostgres.TxBeginner
}

// GuardStateRepository implements port.GuardStateRepository using
// PostgreSQL. The guard is a singleton row keyed by name.
type GuardStateRepository struct {
	db   DB
	name string
}

var _ port.GuardStateRepository = (*GuardStateRepository)(nil)

// NewGuardStateRepository creates a repository storing the guard called name.
func NewGuardStateRepository(db DB, name string) *GuardStateRepository {
	return &GuardStateRepository{db: db, name: name}
}

// Save upserts the snapshot.
func (r *GuardStateRepository) Save(ctx context.Context, s model.GuardSnapshot) error {
	doc, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal guard snapshot: %w", err)
	}

	return pkgpostgres.WithTransaction(ctx, r.db, func(tx pgx.Tx) error {
		query := `
			INSERT INTO guard_state (id, state, rolled_back, rollback_reason, snapshot, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				state = EXCLUDED.state,
				rolled_back = EXCLUDED.rolled_back,
				rollback_reason = EXCLUDED.rollback_reason,
				snapshot = EXCLUDED.snapshot,
				updated_at = EXCLUDED.updated_at
		`
		if _, err := tx.Exec(ctx, query,
			r.name,
			s.State,
			s.RolledBack,
			s.RollbackReason,
			doc,
			s.LastUpdated,
		); err != nil {
			return fmt.Errorf("failed to save guard state: %w", err)
		}
		return nil
	})
}

// Load returns the stored snapshot.
func (r *GuardStateRepository) Load(ctx context.Context) (model.GuardSnapshot, bool, error) {
	var doc []byte
	err := r.db.QueryRow(ctx, `SELECT snapshot FROM guard_state WHERE id = $1`, r.name).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.GuardSnapshot{}, false, nil
	}
	if err != nil {
		return model.GuardSnapshot{}, false, fmt.Errorf("failed to load guard state: %w", err)
	}

	var s model.GuardSnapshot
	if err := json.Unmarshal(doc, &s); err != nil {
		return model.GuardSnapshot{}, false, fmt.Errorf("failed to decode guard snapshot: %w", err)
	}
	return s, true, nil
}
