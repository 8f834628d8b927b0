package grpc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/bibbank/loginrisk/internal/application/dto"
	"github.com/bibbank/loginrisk/internal/application/usecase"
	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/internal/domain/pipeline"
	"github.com/bibbank/loginrisk/internal/domain/plugin"
	"github.com/bibbank/loginrisk/internal/infrastructure/fingerprint"
	"github.com/bibbank/loginrisk/pkg/auth"
)

// Metadata keys a login front end forwards from the end user's request.
const (
	MetadataDeviceID        = "x-device-id"
	MetadataClientUserAgent = "x-client-user-agent"
)

// claimsFromContext returns the caller's claims or Unauthenticated.
func claimsFromContext(ctx context.Context) (*auth.Claims, error) {
	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}
	return claims, nil
}

// Compile-time assertion that LoginRiskHandler implements LoginRiskServiceServer.
var _ LoginRiskServiceServer = (*LoginRiskHandler)(nil)

// LoginRiskHandler implements the gRPC LoginRiskServiceServer interface.
type LoginRiskHandler struct {
	UnimplementedLoginRiskServiceServer
	assessLogin   *usecase.AssessLogin
	getGuardState *usecase.GetGuardState
	resetGuard    *usecase.ResetGuard
	listAudit     *usecase.ListAuditEntries
	logger        *slog.Logger
}

// NewLoginRiskHandler creates a new gRPC handler. listAudit may be nil when
// no audit store is configured.
func NewLoginRiskHandler(
	assessLogin *usecase.AssessLogin,
	getGuardState *usecase.GetGuardState,
	resetGuard *usecase.ResetGuard,
	listAudit *usecase.ListAuditEntries,
	logger *slog.Logger,
) *LoginRiskHandler {
	return &LoginRiskHandler{
		assessLogin:   assessLogin,
		getGuardState: getGuardState,
		resetGuard:    resetGuard,
		listAudit:     listAudit,
		logger:        logger,
	}
}

// Proto-aligned request/response message types.

// GeoMsg represents the proto Geo message.
type GeoMsg struct {
	Country   string  `json:"country"`
	Region    string  `json:"region"`
	City      string  `json:"city"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SignalsMsg represents the proto RiskSignals message. Absent scores are nil.
type SignalsMsg struct {
	PreviousGeo     *GeoMsg  `json:"previous_geo"`
	ReputationScore *float64 `json:"reputation_score"`
	VelocityScore   *float64 `json:"velocity_score"`
	IsVPN           bool     `json:"is_vpn"`
	IsTor           bool     `json:"is_tor"`
	IsProxy         bool     `json:"is_proxy"`
}

// FingerprintMsg represents the proto DeviceFingerprint message.
type FingerprintMsg struct {
	DeviceID     string `json:"device_id"`
	UserAgent    string `json:"user_agent"`
	ScreenWidth  int32  `json:"screen_width"`
	ScreenHeight int32  `json:"screen_height"`
}

// AssessLoginRequest represents the proto AssessLoginRequest message.
type AssessLoginRequest struct {
	Geo               *GeoMsg         `json:"geo"`
	Signals           *SignalsMsg     `json:"signals"`
	Fingerprint       *FingerprintMsg `json:"fingerprint"`
	UserID            string          `json:"user_id"`
	TenantID          string          `json:"tenant_id"`
	IP                string          `json:"ip"`
	PreviousSessionID string          `json:"previous_session_id"`
	Timestamp         string          `json:"timestamp"`
	Version           int32           `json:"version"`
	ShadowMode        bool            `json:"shadow_mode"`
}

// LoginAssessmentMsg represents the proto LoginAssessment message.
type LoginAssessmentMsg struct {
	DeviceID       string   `json:"device_id"`
	DeviceType     string   `json:"device_type"`
	RiskLevel      string   `json:"risk_level"`
	Action         string   `json:"action"`
	BlockReason    string   `json:"block_reason"`
	AssessedAt     *timestamppb.Timestamp `json:"assessed_at"`
	TriggeredRules []string               `json:"triggered_rules"`
	RiskScore      int32                  `json:"risk_score"`
	Version        int32                  `json:"version"`
	ShadowMode     bool                   `json:"shadow_mode"`
}

// AssessLoginResponse represents the proto AssessLoginResponse message.
type AssessLoginResponse struct {
	Assessment *LoginAssessmentMsg `json:"assessment"`
}

// RolloutMsg represents the proto Rollout message.
type RolloutMsg struct {
	TenantAllowList  []string `json:"tenant_allow_list"`
	BucketAllowList  []int32  `json:"bucket_allow_list"`
	V2Percentage     int32    `json:"v2_percentage"`
	ShadowPercentage int32    `json:"shadow_percentage"`
}

// GuardStateMsg represents the proto GuardState message.
type GuardStateMsg struct {
	State              string                 `json:"state"`
	RollbackReason     string                 `json:"rollback_reason"`
	Classification     string                 `json:"classification"`
	LastUpdated        *timestamppb.Timestamp `json:"last_updated"`
	Rollout            *RolloutMsg            `json:"rollout"`
	TotalComparisons   int32                  `json:"total_comparisons"`
	V2WeakerPercentage float64                `json:"v2_weaker_percentage"`
	RolledBack         bool                   `json:"rolled_back"`
}

// GetGuardStateRequest represents the proto GetGuardStateRequest message.
type GetGuardStateRequest struct{}

// GetGuardStateResponse represents the proto GetGuardStateResponse message.
type GetGuardStateResponse struct {
	Guard *GuardStateMsg `json:"guard"`
}

// ResetGuardRequest represents the proto ResetGuardRequest message. A nil
// Rollout restores the configured default.
type ResetGuardRequest struct {
	Rollout *RolloutMsg `json:"rollout"`
}

// ResetGuardResponse represents the proto ResetGuardResponse message.
type ResetGuardResponse struct {
	Guard *GuardStateMsg `json:"guard"`
}

// AuditEntryMsg represents the proto AuditEntry message.
type AuditEntryMsg struct {
	Fields     map[string]string      `json:"fields"`
	OccurredAt *timestamppb.Timestamp `json:"occurred_at"`
	ID         string                 `json:"id"`
	Kind       string                 `json:"kind"`
	Step       string                 `json:"step"`
	Error      string                 `json:"error"`
}

// ListAuditEntriesRequest represents the proto ListAuditEntriesRequest message.
type ListAuditEntriesRequest struct {
	Kind  string `json:"kind"`
	Limit int32  `json:"limit"`
}

// ListAuditEntriesResponse represents the proto ListAuditEntriesResponse message.
type ListAuditEntriesResponse struct {
	Entries []*AuditEntryMsg `json:"entries"`
}

// AssessLogin handles a login assessment request.
func (h *LoginRiskHandler) AssessLogin(ctx context.Context, req *AssessLoginRequest) (*AssessLoginResponse, error) {
	claims, err := claimsFromContext(ctx)
	if err != nil {
		return nil, err
	}

	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	tenantID := req.TenantID
	if claims.TenantID != "" {
		if tenantID != "" && tenantID != claims.TenantID {
			return nil, status.Error(codes.PermissionDenied, "tenant_id does not match caller")
		}
		tenantID = claims.TenantID
	}

	rc := model.RiskContext{
		UserID:            req.UserID,
		TenantID:          tenantID,
		IP:                req.IP,
		PreviousSessionID: req.PreviousSessionID,
		Geo:               geoFromMsg(req.Geo),
		Signals:           signalsFromMsg(req.Signals),
	}
	if req.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid timestamp: %v", err)
		}
		rc.Timestamp = ts.UTC()
	}
	if req.Version < 0 {
		return nil, status.Error(codes.InvalidArgument, "version must not be negative")
	}

	var fp *pipeline.DeterministicFingerprint
	if req.Fingerprint != nil {
		fp = &pipeline.DeterministicFingerprint{
			DeviceID:     req.Fingerprint.DeviceID,
			UserAgent:    req.Fingerprint.UserAgent,
			ScreenWidth:  int(req.Fingerprint.ScreenWidth),
			ScreenHeight: int(req.Fingerprint.ScreenHeight),
		}
	} else {
		ctx = withClientHints(ctx)
	}

	h.logger.Debug("assessing login",
		slog.String("tenant_id", tenantID),
		slog.String("caller", claims.Subject),
	)

	result, err := h.assessLogin.Execute(ctx, dto.AssessLoginRequest{
		Context:     rc,
		Fingerprint: fp,
		Version:     int(req.Version),
		ShadowMode:  req.ShadowMode,
	})
	if err != nil {
		return nil, h.assessError(err)
	}

	return &AssessLoginResponse{
		Assessment: &LoginAssessmentMsg{
			DeviceID:       result.DeviceID,
			DeviceType:     result.DeviceType,
			RiskScore:      int32(result.RiskScore),
			RiskLevel:      result.RiskLevel,
			Action:         result.Action,
			BlockReason:    result.BlockReason,
			TriggeredRules: result.TriggeredRules,
			Version:        int32(result.Version),
			ShadowMode:     result.ShadowMode,
			AssessedAt:     timestamppb.New(result.AssessedAt),
		},
	}, nil
}

// GetGuardState returns the safety guard state.
func (h *LoginRiskHandler) GetGuardState(ctx context.Context, _ *GetGuardStateRequest) (*GetGuardStateResponse, error) {
	if _, err := claimsFromContext(ctx); err != nil {
		return nil, err
	}
	return &GetGuardStateResponse{Guard: toGuardStateMsg(h.getGuardState.Execute(ctx))}, nil
}

// ResetGuard re-arms a rolled-back guard. The caller's subject is recorded
// as the actor.
func (h *LoginRiskHandler) ResetGuard(ctx context.Context, req *ResetGuardRequest) (*ResetGuardResponse, error) {
	claims, err := claimsFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	in := dto.ResetGuardRequest{Actor: claims.Subject}
	if req.Rollout != nil {
		r := rolloutFromMsg(req.Rollout)
		in.Rollout = &r
	}

	resp, err := h.resetGuard.Execute(ctx, in)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidRequest) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		h.logger.Error("failed to reset safety guard", slog.String("error", err.Error()))
		return nil, status.Error(codes.Internal, "internal error")
	}

	h.logger.Warn("safety guard reset via API", slog.String("actor", claims.Subject))
	return &ResetGuardResponse{Guard: toGuardStateMsg(resp)}, nil
}

// ListAuditEntries returns recent audit records.
func (h *LoginRiskHandler) ListAuditEntries(ctx context.Context, req *ListAuditEntriesRequest) (*ListAuditEntriesResponse, error) {
	if _, err := claimsFromContext(ctx); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if h.listAudit == nil {
		return nil, status.Error(codes.FailedPrecondition, "audit store not configured")
	}

	entries, err := h.listAudit.Execute(ctx, dto.ListAuditEntriesRequest{Kind: req.Kind, Limit: int(req.Limit)})
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidRequest) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		h.logger.Error("failed to list audit entries", slog.String("error", err.Error()))
		return nil, status.Error(codes.Internal, "internal error")
	}

	out := make([]*AuditEntryMsg, 0, len(entries))
	for _, e := range entries {
		out = append(out, &AuditEntryMsg{
			ID:         e.ID,
			Kind:       e.Kind,
			Step:       e.Step,
			Error:      e.Error,
			Fields:     e.Fields,
			OccurredAt: timestamppb.New(e.OccurredAt),
		})
	}
	return &ListAuditEntriesResponse{Entries: out}, nil
}

// assessError maps pipeline failures onto status codes. Internal detail is
// logged, not returned.
func (h *LoginRiskHandler) assessError(err error) error {
	var pluginErr *plugin.PluginError
	var stepErr *pipeline.StepError

	switch {
	case errors.Is(err, fingerprint.ErrNoClientHints):
		return status.Error(codes.InvalidArgument, "fingerprint or client user agent is required")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "risk assessment timed out")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "risk assessment canceled")
	case errors.Is(err, pipeline.ErrMissingAuditLogger),
		errors.Is(err, pipeline.ErrMissingFingerprintSource),
		errors.Is(err, pipeline.ErrNoFallbackVersion),
		errors.Is(err, plugin.ErrTooManyPlugins):
		h.logger.Error("risk pipeline misconfigured", slog.String("error", err.Error()))
		return status.Error(codes.FailedPrecondition, "risk pipeline misconfigured")
	case errors.As(err, &pluginErr):
		h.logger.Error("risk plugin failed",
			slog.String("plugin", pluginErr.PluginID),
			slog.String("stage", pluginErr.Stage),
			slog.String("error", pluginErr.Err.Error()),
		)
		return status.Error(codes.Internal, "risk plugin failed")
	case errors.As(err, &stepErr):
		h.logger.Error("risk pipeline step failed",
			slog.String("step", stepErr.Step),
			slog.String("error", stepErr.Err.Error()),
		)
		return status.Error(codes.Internal, "internal error")
	default:
		h.logger.Error("failed to assess login", slog.String("error", err.Error()))
		return status.Error(codes.Internal, "internal error")
	}
}

// withClientHints forwards the end user's device metadata to the
// fingerprint collector.
func withClientHints(ctx context.Context) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}
	hints := fingerprint.ClientHints{
		DeviceID:  first(md.Get(MetadataDeviceID)),
		UserAgent: first(md.Get(MetadataClientUserAgent)),
	}
	if hints.DeviceID == "" && hints.UserAgent == "" {
		return ctx
	}
	return fingerprint.WithClientHints(ctx, hints)
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

func geoFromMsg(m *GeoMsg) *model.Geo {
	if m == nil {
		return nil
	}
	return &model.Geo{
		Country: m.Country,
		Region:  m.Region,
		City:    m.City,
		Lat:     m.Latitude,
		Lng:     m.Longitude,
	}
}

func signalsFromMsg(m *SignalsMsg) *model.RiskSignals {
	if m == nil {
		return nil
	}
	return &model.RiskSignals{
		PreviousGeo:     geoFromMsg(m.PreviousGeo),
		ReputationScore: m.ReputationScore,
		VelocityScore:   m.VelocityScore,
		IsVPN:           m.IsVPN,
		IsTor:           m.IsTor,
		IsProxy:         m.IsProxy,
	}
}

func rolloutFromMsg(m *RolloutMsg) model.RolloutConfig {
	buckets := make([]int, 0, len(m.BucketAllowList))
	for _, b := range m.BucketAllowList {
		buckets = append(buckets, int(b))
	}
	return model.RolloutConfig{
		V2Percentage:     int(m.V2Percentage),
		ShadowPercentage: int(m.ShadowPercentage),
		TenantAllowList:  m.TenantAllowList,
		BucketAllowList:  buckets,
	}
}

func toGuardStateMsg(g dto.GuardStateResponse) *GuardStateMsg {
	buckets := make([]int32, 0, len(g.BucketAllowList))
	for _, b := range g.BucketAllowList {
		buckets = append(buckets, int32(b))
	}
	msg := &GuardStateMsg{
		State:              g.State,
		RolledBack:         g.RolledBack,
		RollbackReason:     g.RollbackReason,
		Classification:     g.Classification,
		TotalComparisons:   int32(g.TotalComparisons),
		V2WeakerPercentage: g.V2WeakerPercentage,
		Rollout: &RolloutMsg{
			V2Percentage:     int32(g.V2Percentage),
			ShadowPercentage: int32(g.ShadowPercentage),
			TenantAllowList:  g.TenantAllowList,
			BucketAllowList:  buckets,
		},
	}
	if !g.LastUpdated.IsZero() {
		msg.LastUpdated = timestamppb.New(g.LastUpdated)
	}
	return msg
}
