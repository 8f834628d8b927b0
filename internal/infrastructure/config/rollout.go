package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bibbank/loginrisk/internal/domain/model"
)

// rolloutFile mirrors the YAML layout. Pointers tell "absent" from "false".
type rolloutFile struct {
	V2Percentage     int      `yaml:"v2_percentage"`
	ShadowPercentage int      `yaml:"shadow_percentage"`
	TenantAllowList  []string `yaml:"tenant_allow_list"`
	BucketAllowList  []int    `yaml:"bucket_allow_list"`
	AutoRollback     struct {
		Enabled          *bool         `yaml:"enabled"`
		MinComparisons   int           `yaml:"min_comparisons"`
		ThresholdPercent float64       `yaml:"threshold_percent"`
		Window           time.Duration `yaml:"window"`
	} `yaml:"auto_rollback"`
}

// DefaultRollout sends all traffic to v1 with auto-rollback armed.
func DefaultRollout() model.RolloutConfig {
	return model.RolloutConfig{AutoRollback: model.DefaultAutoRollbackPolicy()}
}

// LoadRollout reads the rollout YAML file. A missing file yields
// DefaultRollout.
func LoadRollout(path string) (model.RolloutConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultRollout(), nil
	}
	if err != nil {
		return model.RolloutConfig{}, fmt.Errorf("read rollout file: %w", err)
	}
	return ParseRollout(data)
}

// ParseRollout decodes and validates a rollout document.
func ParseRollout(data []byte) (model.RolloutConfig, error) {
	var f rolloutFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return model.RolloutConfig{}, fmt.Errorf("parse rollout file: %w", err)
	}

	policy := model.AutoRollbackPolicy{
		Enabled:          true,
		MinComparisons:   f.AutoRollback.MinComparisons,
		ThresholdPercent: f.AutoRollback.ThresholdPercent,
		Window:           f.AutoRollback.Window,
	}
	if f.AutoRollback.Enabled != nil {
		policy.Enabled = *f.AutoRollback.Enabled
	}

	rc := model.RolloutConfig{
		V2Percentage:     f.V2Percentage,
		ShadowPercentage: f.ShadowPercentage,
		TenantAllowList:  f.TenantAllowList,
		BucketAllowList:  f.BucketAllowList,
		AutoRollback:     policy.WithDefaults(),
	}
	if err := ValidateRollout(rc); err != nil {
		return model.RolloutConfig{}, err
	}
	return rc, nil
}

// ValidateRollout checks percentage and bucket ranges.
func ValidateRollout(rc model.RolloutConfig) error {
	if rc.V2Percentage < 0 || rc.V2Percentage > 100 {
		return fmt.Errorf("v2_percentage %d out of range 0..100", rc.V2Percentage)
	}
	if rc.ShadowPercentage < 0 || rc.ShadowPercentage > 100 {
		return fmt.Errorf("shadow_percentage %d out of range 0..100", rc.ShadowPercentage)
	}
	for _, b := range rc.BucketAllowList {
		if b < 0 || b > 99 {
			return fmt.Errorf("bucket %d out of range 0..99", b)
		}
	}
	return nil
}

// ValidateGuardInterval checks that every guard evaluation covers a window
// that has not already closed: the interval must be shorter than the
// auto-rollback window.
func ValidateGuardInterval(interval time.Duration, rc model.RolloutConfig) error {
	if w := rc.AutoRollback.WithDefaults().Window; interval >= w {
		return fmt.Errorf("GUARD_INTERVAL %s must be shorter than auto_rollback.window %s", interval, w)
	}
	return nil
}
