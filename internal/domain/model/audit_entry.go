package model

import (
	"time"

	"github.com/google/uuid"
)

// Audit entry kinds.
const (
	AuditKindStepError         = "step_error"
	AuditKindProviderError     = "provider_error"
	AuditKindShadowDisagree    = "shadow_disagreement"
	AuditKindOverrideActive    = "runtime_override"
	AuditKindPluginFailOpen    = "plugin_fail_open"
	AuditKindRollbackTriggered = "rollback_triggered"
	AuditKindAssessment        = "assessment"
)

// AuditEntry is one record handed to the mandatory audit logger.
type AuditEntry struct {
	OccurredAt time.Time         `json:"occurred_at"`
	Fields     map[string]string `json:"fields,omitempty"`
	Kind       string            `json:"kind"`
	Step       string            `json:"step,omitempty"`
	Error      string            `json:"error,omitempty"`
	ID         uuid.UUID         `json:"id"`
}

// NewAuditEntry stamps an entry with a fresh ID and the current UTC time.
func NewAuditEntry(kind, step string, err error, fields map[string]string) AuditEntry {
	e := AuditEntry{
		ID:         uuid.New(),
		Kind:       kind,
		Step:       step,
		Fields:     fields,
		OccurredAt: time.Now().UTC(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}
