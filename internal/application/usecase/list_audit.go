package usecase

import (
	"context"
	"fmt"

	"github.com/bibbank/loginrisk/internal/application/dto"
	"github.com/bibbank/loginrisk/internal/domain/port"
)

// MaxAuditPage caps a single audit listing.
const MaxAuditPage = 500

// ListAuditEntries returns the most recent audit records.
type ListAuditEntries struct {
	repo port.AuditRepository
}

// NewListAuditEntries creates a new ListAuditEntries use case.
func NewListAuditEntries(repo port.AuditRepository) *ListAuditEntries {
	return &ListAuditEntries{repo: repo}
}

// Execute reads the audit log, newest first.
func (uc *ListAuditEntries) Execute(ctx context.Context, req dto.ListAuditEntriesRequest) ([]dto.AuditEntryResponse, error) {
	if req.Limit < 0 || req.Limit > MaxAuditPage {
		return nil, fmt.Errorf("%w: limit must be between 0 and %d", ErrInvalidRequest, MaxAuditPage)
	}

	entries, err := uc.repo.ListRecent(ctx, req.Kind, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}

	out := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.FromAuditEntry(e))
	}
	return out, nil
}
