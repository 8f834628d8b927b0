package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/bibbank/loginrisk/internal/application/dto"
	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/internal/domain/pipeline"
	"github.com/bibbank/loginrisk/internal/domain/port"
)

// RolloutSource supplies the current rollout configuration and whether v2
// traffic has been rolled back.
type RolloutSource interface {
	Rollout() model.RolloutConfig
	IsRolledBack() bool
}

// AssessLogin is the use case for scoring one login attempt.
type AssessLogin struct {
	engine   *pipeline.Engine
	rollout  RolloutSource
	locator  port.GeoLocator
	template pipeline.Config
	logger   *slog.Logger
	now      func() time.Time
}

// NewAssessLogin creates a new AssessLogin use case. template carries the
// process-wide pipeline settings; per-request fields are filled on Execute.
// locator may be nil.
func NewAssessLogin(
	engine *pipeline.Engine,
	rollout RolloutSource,
	locator port.GeoLocator,
	template pipeline.Config,
	logger *slog.Logger,
) *AssessLogin {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssessLogin{
		engine:   engine,
		rollout:  rollout,
		locator:  locator,
		template: template,
		logger:   logger,
		now:      time.Now,
	}
}

// Execute enriches the context, runs the pipeline and maps the result.
func (uc *AssessLogin) Execute(ctx context.Context, req dto.AssessLoginRequest) (dto.AssessLoginResponse, error) {
	rc := req.Context.Clone()
	if rc.Timestamp.IsZero() {
		rc.Timestamp = uc.now().UTC()
	}

	// 1. Fill a missing location from the IP.
	if rc.Geo == nil && rc.IP != "" && uc.locator != nil {
		geo, found, err := uc.locator.Locate(rc.IP)
		switch {
		case err != nil:
			uc.logger.Debug("geoip lookup failed", slog.String("error", err.Error()))
		case found:
			rc = rc.WithGeo(geo)
		}
	}

	// 2. Build the per-call configuration.
	cfg := uc.template
	cfg.Context = rc
	cfg.Version = req.Version
	cfg.ShadowMode = req.ShadowMode
	cfg.Fingerprint = req.Fingerprint
	if uc.rollout != nil {
		cfg.Rollout = uc.rollout.Rollout()
		cfg.V2Halted = uc.rollout.IsRolledBack()
	}

	// 3. Run the pipeline.
	res, err := uc.engine.Execute(ctx, cfg)
	if err != nil {
		return dto.AssessLoginResponse{}, err
	}
	return dto.FromResult(res, rc.Timestamp), nil
}
