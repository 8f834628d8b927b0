package dto

import (
	"time"

	"github.com/bibbank/loginrisk/internal/domain/model"
)

// ListAuditEntriesRequest filters the audit log. An empty Kind matches all.
type ListAuditEntriesRequest struct {
	Kind  string `json:"kind,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// AuditEntryResponse is one audit record.
type AuditEntryResponse struct {
	OccurredAt time.Time         `json:"occurred_at"`
	Fields     map[string]string `json:"fields,omitempty"`
	ID         string            `json:"id"`
	Kind       string            `json:"kind"`
	Step       string            `json:"step,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// FromAuditEntry maps a domain audit entry to the response DTO.
func FromAuditEntry(e model.AuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:         e.ID.String(),
		Kind:       e.Kind,
		Step:       e.Step,
		Error:      e.Error,
		Fields:     e.Fields,
		OccurredAt: e.OccurredAt,
	}
}
