// Package flags assigns login attempts to pipeline versions with stable
// hash buckets.
package flags

import (
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/internal/domain/port"
)

// Buckets is the number of rollout buckets.
const Buckets = 100

// Version numbers handed out by the resolver.
const (
	VersionStable    = 1
	VersionCandidate = 2
)

// BucketResolver implements port.FlagResolver. A caller lands in the same
// bucket on every request, so raising a percentage only ever adds callers.
type BucketResolver struct {
	salt string
}

var _ port.FlagResolver = (*BucketResolver)(nil)

// NewBucketResolver creates a resolver. Changing salt reshuffles buckets.
func NewBucketResolver(salt string) *BucketResolver {
	return &BucketResolver{salt: salt}
}

// Bucket returns the 0..99 bucket of a subject.
func (r *BucketResolver) Bucket(subject string) int {
	return bucket(r.salt, subject)
}

// Resolve picks the version for rc:
//   - allow-listed tenants and buckets, and buckets under V2Percentage, get v2
//   - otherwise buckets under ShadowPercentage (hashed independently) get v2
//     in shadow mode, which serves the v1 answer
//   - everyone else gets v1
func (r *BucketResolver) Resolve(rc model.RiskContext, rollout model.RolloutConfig) port.FlagResolution {
	subject := subjectOf(rc)
	b := bucket(r.salt, subject)

	if rc.TenantID != "" && slices.Contains(rollout.TenantAllowList, rc.TenantID) {
		return port.FlagResolution{Version: VersionCandidate}
	}
	if slices.Contains(rollout.BucketAllowList, b) || b < rollout.V2Percentage {
		return port.FlagResolution{Version: VersionCandidate}
	}
	if bucket(r.salt+":shadow", subject) < rollout.ShadowPercentage {
		return port.FlagResolution{Version: VersionCandidate, ShadowMode: true}
	}
	return port.FlagResolution{Version: VersionStable}
}

func subjectOf(rc model.RiskContext) string {
	switch {
	case rc.UserID != "":
		return rc.TenantID + "/" + rc.UserID
	case rc.IP != "":
		return "ip/" + rc.IP
	default:
		return ""
	}
}

func bucket(salt, subject string) int {
	d := xxhash.New()
	_, _ = d.WriteString(salt)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(subject)
	return int(d.Sum64() % Buckets)
}
