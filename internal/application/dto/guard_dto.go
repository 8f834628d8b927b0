package dto

import (
	"time"

	"github.com/bibbank/loginrisk/internal/domain/model"
)

// GuardStateResponse describes the safety guard.
type GuardStateResponse struct {
	LastUpdated        time.Time `json:"last_updated"`
	State              string    `json:"state"`
	RollbackReason     string    `json:"rollback_reason,omitempty"`
	Classification     string    `json:"classification"`
	TenantAllowList    []string  `json:"tenant_allow_list"`
	BucketAllowList    []int     `json:"bucket_allow_list"`
	V2Percentage       int       `json:"v2_percentage"`
	ShadowPercentage   int       `json:"shadow_percentage"`
	TotalComparisons   int       `json:"total_comparisons"`
	V2WeakerPercentage float64   `json:"v2_weaker_percentage"`
	RolledBack         bool      `json:"rolled_back"`
	TriggeredRollback  bool      `json:"triggered_rollback,omitempty"`
}

// ResetGuardRequest is the input DTO for re-arming the guard. A nil Rollout
// restores the configured default.
type ResetGuardRequest struct {
	Rollout *model.RolloutConfig `json:"rollout,omitempty"`
	Actor   string               `json:"actor"`
}

// FromSnapshot maps a guard snapshot to the response DTO.
func FromSnapshot(s model.GuardSnapshot) GuardStateResponse {
	return GuardStateResponse{
		State:              s.State,
		RolledBack:         s.RolledBack,
		RollbackReason:     s.RollbackReason,
		V2Percentage:       s.Rollout.V2Percentage,
		ShadowPercentage:   s.Rollout.ShadowPercentage,
		TenantAllowList:    s.Rollout.TenantAllowList,
		BucketAllowList:    s.Rollout.BucketAllowList,
		TotalComparisons:   s.Metrics.TotalComparisons,
		V2WeakerPercentage: s.Metrics.V2WeakerPercentage,
		Classification:     s.Metrics.Classification,
		LastUpdated:        s.LastUpdated,
	}
}
