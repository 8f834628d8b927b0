package port

import (
	"context"

	"github.com/bibbank/loginrisk/internal/domain/model"
)

// GuardStateRepository persists the safety guard state so a restart does not
// silently undo a rollback.
type GuardStateRepository interface {
	// Save stores the current guard snapshot.
	Save(ctx context.Context, snapshot model.GuardSnapshot) error

	// Load returns the last stored snapshot. found is false when none exists.
	Load(ctx context.Context) (snapshot model.GuardSnapshot, found bool, err error)
}

// AuditRepository stores audit entries for later review.
type AuditRepository interface {
	Append(ctx context.Context, entries ...model.AuditEntry) error
	ListRecent(ctx context.Context, kind string, limit int) ([]model.AuditEntry, error)
}

// EventPublisher defines the port for publishing domain events.
type EventPublisher interface {
	// Publish sends one or more domain events to the messaging infrastructure.
	Publish(ctx context.Context, events ...any) error
}
