package service

import (
	"fmt"
	"math"
	"net/netip"

	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/internal/domain/valueobject"
)

// Signal names reported in a Breakdown.
const (
	SignalUnknownDevice      = "unknown_device"
	SignalIoTDevice          = "iot_device"
	SignalMissingOS          = "missing_os"
	SignalMissingBrowser     = "missing_browser"
	SignalHighRiskCountry    = "high_risk_country"
	SignalGeoMismatch        = "geo_mismatch"
	SignalTor                = "tor"
	SignalVPN                = "vpn"
	SignalProxy              = "proxy"
	SignalReputationCritical = "reputation_critical"
	SignalReputationLow      = "reputation_low"
	SignalHighVelocity       = "high_velocity"
)

// highVelocityThreshold is where velocity starts being reported as a signal.
const highVelocityThreshold = 50

// ScoreInput is what the weighted scorer looks at.
type ScoreInput struct {
	Device  model.DeviceInfo
	Context model.RiskContext
}

// Breakdown is a scored input with per-category detail.
type Breakdown struct {
	Signals  []string
	Device   float64
	Geo      float64
	Network  float64
	Velocity float64
	Total    int
	ValidIP  bool
}

// WeightedScorer turns categorized signals into a 0..100 score.
type WeightedScorer struct {
	penalties Penalties
}

// NewWeightedScorer creates a WeightedScorer with the given penalty table.
func NewWeightedScorer(p Penalties) *WeightedScorer {
	return &WeightedScorer{penalties: p}
}

// Score returns the weighted total for in.
func (s *WeightedScorer) Score(in ScoreInput, w model.RiskWeights) (int, error) {
	b, err := s.Breakdown(in, w)
	if err != nil {
		return 0, err
	}
	return b.Total, nil
}

// Breakdown scores in and reports each category subscore and the signals
// that contributed. An absent or malformed IP yields an all-zero breakdown.
func (s *WeightedScorer) Breakdown(in ScoreInput, w model.RiskWeights) (Breakdown, error) {
	if !ValidateRiskWeights(w) {
		return Breakdown{}, fmt.Errorf("%w: %+v", ErrInvalidWeights, w)
	}
	if !validIP(in.Context.IP) {
		return Breakdown{Signals: []string{}}, nil
	}

	b := Breakdown{ValidIP: true, Signals: make([]string, 0, 4)}
	b.Device = s.deviceScore(in.Device, &b.Signals)
	b.Geo = s.geoScore(in.Context, &b.Signals)
	b.Network = s.networkScore(in.Context.Signals, &b.Signals)
	b.Velocity = velocityScore(in.Context.Signals)
	if b.Velocity >= highVelocityThreshold {
		b.Signals = append(b.Signals, SignalHighVelocity)
	}

	b.Total = clampScore(b.Device*w.Device + b.Geo*w.Geo + b.Network*w.Network + b.Velocity*w.Velocity)
	return b, nil
}

func (s *WeightedScorer) deviceScore(d model.DeviceInfo, signals *[]string) float64 {
	var total int
	switch d.EffectiveType() {
	case valueobject.DeviceUnknown:
		total += s.penalties.UnknownDevice
		*signals = append(*signals, SignalUnknownDevice)
	case valueobject.DeviceIoT:
		total += s.penalties.IoTDevice
		*signals = append(*signals, SignalIoTDevice)
	}
	if d.OS == "" {
		total += s.penalties.MissingOS
		*signals = append(*signals, SignalMissingOS)
	}
	if d.Browser == "" {
		total += s.penalties.MissingBrowser
		*signals = append(*signals, SignalMissingBrowser)
	}
	return clamp(float64(total))
}

func (s *WeightedScorer) geoScore(rc model.RiskContext, signals *[]string) float64 {
	country := rc.Country()
	if country == "" {
		return 0
	}
	var total int
	if s.penalties.isHighRiskCountry(country) {
		total += s.penalties.HighRiskCountry
		*signals = append(*signals, SignalHighRiskCountry)
	}
	if prev := rc.PreviousCountry(); prev != "" && prev != country {
		total += s.penalties.GeoMismatch
		*signals = append(*signals, SignalGeoMismatch)
	}
	return clamp(float64(total))
}

func (s *WeightedScorer) networkScore(sig *model.RiskSignals, signals *[]string) float64 {
	if sig == nil {
		return 0
	}
	var total int
	if sig.IsTor {
		total += s.penalties.Tor
		*signals = append(*signals, SignalTor)
	}
	if sig.IsVPN {
		total += s.penalties.VPN
		*signals = append(*signals, SignalVPN)
	}
	if sig.IsProxy {
		total += s.penalties.Proxy
		*signals = append(*signals, SignalProxy)
	}

	if rep, ok := finite(sig.ReputationScore); ok {
		switch {
		case rep > 0 && rep < 10:
			total += s.penalties.ReputationCritical
			*signals = append(*signals, SignalReputationCritical)
		case rep >= 10 && rep < 50:
			total += s.penalties.ReputationLow
			*signals = append(*signals, SignalReputationLow)
		}
	}
	return clamp(float64(total))
}

// velocityScore maps velocity linearly onto [0,100].
func velocityScore(sig *model.RiskSignals) float64 {
	if sig == nil {
		return 0
	}
	v, ok := finite(sig.VelocityScore)
	if !ok {
		return 0
	}
	return clamp(v)
}

// finite returns the value behind p when it is present, finite and non-negative.
func finite(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	v := *p
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}

func validIP(ip string) bool {
	if ip == "" {
		return false
	}
	_, err := netip.ParseAddr(ip)
	return err == nil
}
