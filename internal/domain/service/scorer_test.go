package service_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/internal/domain/service"
	"github.com/bibbank/loginrisk/internal/domain/valueobject"
)

func knownDevice() model.DeviceInfo {
	return model.DeviceInfo{
		DeviceID:   "dev-1",
		DeviceType: valueobject.DeviceDesktop,
		OS:         "macOS",
		Browser:    "Safari",
	}
}

func TestValidateRiskWeights(t *testing.T) {
	tests := []struct {
		name string
		w    model.RiskWeights
		want bool
	}{
		{"defaults", service.DefaultRiskWeights(), true},
		{"sum 0.9", model.RiskWeights{Device: 0.3, Geo: 0.3, Network: 0.3}, true},
		{"sum 1.1", model.RiskWeights{Device: 0.3, Geo: 0.3, Network: 0.3, Velocity: 0.2}, true},
		{"sum too low", model.RiskWeights{Device: 0.2, Geo: 0.2, Network: 0.2, Velocity: 0.2}, false},
		{"sum too high", model.RiskWeights{Device: 0.5, Geo: 0.5, Network: 0.5}, false},
		{"negative component", model.RiskWeights{Device: -0.1, Geo: 0.5, Network: 0.5, Velocity: 0.1}, false},
		{"component above one", model.RiskWeights{Device: 1.05}, false},
		{"nan component", model.RiskWeights{Device: math.NaN(), Geo: 0.5, Network: 0.5}, false},
		{"zero", model.RiskWeights{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, service.ValidateRiskWeights(tt.w))
		})
	}
}

func TestDefaultRiskWeights_IsACopy(t *testing.T) {
	w := service.DefaultRiskWeights()
	w.Device = 0.9

	assert.Equal(t, 0.25, service.DefaultRiskWeights().Device)
	assert.True(t, service.ValidateRiskWeights(service.DefaultRiskWeights()))
}

func TestWeightedScorer_InvalidWeights(t *testing.T) {
	scorer := service.NewWeightedScorer(service.DefaultPenalties())

	_, err := scorer.Score(service.ScoreInput{}, model.RiskWeights{Device: 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrInvalidWeights)
}

func TestWeightedScorer_ZeroWithoutValidIP(t *testing.T) {
	scorer := service.NewWeightedScorer(service.DefaultPenalties())
	risky := model.RiskContext{
		Geo: &model.Geo{Country: "KP"},
		Signals: &model.RiskSignals{
			IsTor:         true,
			VelocityScore: model.Float(100),
			PreviousGeo:   &model.Geo{Country: "US"},
		},
	}

	for _, ip := range []string{"", "not-an-ip", "256.1.1.1", "1.2.3", "::gg"} {
		t.Run("ip="+ip, func(t *testing.T) {
			got, err := scorer.Score(service.ScoreInput{Context: risky.WithIP(ip)}, service.DefaultRiskWeights())
			require.NoError(t, err)
			assert.Zero(t, got)
		})
	}

	t.Run("empty context", func(t *testing.T) {
		got, err := scorer.Score(service.ScoreInput{}, service.DefaultRiskWeights())
		require.NoError(t, err)
		assert.Zero(t, got)
	})
}

func TestWeightedScorer_AcceptsIPForms(t *testing.T) {
	scorer := service.NewWeightedScorer(service.DefaultPenalties())
	rc := model.RiskContext{Signals: &model.RiskSignals{IsTor: true}}

	for _, ip := range []string{"203.0.113.7", "2001:db8::1", "::1", "fe80::1%eth0", "::ffff:192.0.2.1"} {
		t.Run(ip, func(t *testing.T) {
			got, err := scorer.Score(service.ScoreInput{Device: knownDevice(), Context: rc.WithIP(ip)}, service.DefaultRiskWeights())
			require.NoError(t, err)
			// tor 60 * network 0.30
			assert.Equal(t, 18, got)
		})
	}
}

func TestWeightedScorer_Categories(t *testing.T) {
	scorer := service.NewWeightedScorer(service.DefaultPenalties())
	w := service.DefaultRiskWeights()

	t.Run("unknown device with no os or browser", func(t *testing.T) {
		b, err := scorer.Breakdown(service.ScoreInput{
			Device:  model.DeviceInfo{DeviceType: valueobject.DeviceUnknown},
			Context: model.RiskContext{IP: "10.0.0.1"},
		}, w)
		require.NoError(t, err)
		assert.Equal(t, 75.0, b.Device)
		assert.ElementsMatch(t, []string{"unknown_device", "missing_os", "missing_browser"}, b.Signals)
		assert.Equal(t, 19, b.Total) // round(75 * 0.25)
	})

	t.Run("iot device", func(t *testing.T) {
		d := knownDevice()
		d.DeviceType = valueobject.DeviceIoT
		b, err := scorer.Breakdown(service.ScoreInput{Device: d, Context: model.RiskContext{IP: "10.0.0.1"}}, w)
		require.NoError(t, err)
		assert.Equal(t, 30.0, b.Device)
	})

	t.Run("high risk country with mismatch", func(t *testing.T) {
		b, err := scorer.Breakdown(service.ScoreInput{
			Device: knownDevice(),
			Context: model.RiskContext{
				IP:      "10.0.0.1",
				Geo:     &model.Geo{Country: "KP"},
				Signals: &model.RiskSignals{PreviousGeo: &model.Geo{Country: "US"}},
			},
		}, w)
		require.NoError(t, err)
		assert.Equal(t, 80.0, b.Geo)
		assert.Equal(t, 20, b.Total)
	})

	t.Run("no country means no geo contribution", func(t *testing.T) {
		b, err := scorer.Breakdown(service.ScoreInput{
			Device: knownDevice(),
			Context: model.RiskContext{
				IP:      "10.0.0.1",
				Signals: &model.RiskSignals{PreviousGeo: &model.Geo{Country: "US"}},
			},
		}, w)
		require.NoError(t, err)
		assert.Zero(t, b.Geo)
	})

	t.Run("network flags clamp at 100", func(t *testing.T) {
		b, err := scorer.Breakdown(service.ScoreInput{
			Device: knownDevice(),
			Context: model.RiskContext{
				IP:      "10.0.0.1",
				Signals: &model.RiskSignals{IsTor: true, IsVPN: true, IsProxy: true, ReputationScore: model.Float(5)},
			},
		}, w)
		require.NoError(t, err)
		assert.Equal(t, 100.0, b.Network)
		assert.Equal(t, 30, b.Total)
	})
}

func TestWeightedScorer_ReputationTiers(t *testing.T) {
	scorer := service.NewWeightedScorer(service.DefaultPenalties())

	tests := []struct {
		rep  float64
		want float64
	}{
		{0, 0},
		{0.5, 50},
		{9.99, 50},
		{10, 20},
		{49.9, 20},
		{50, 0},
		{100, 0},
		{-1, 0},
		{math.NaN(), 0},
		{math.Inf(1), 0},
		{math.Inf(-1), 0},
	}

	for _, tt := range tests {
		b, err := scorer.Breakdown(service.ScoreInput{
			Device:  knownDevice(),
			Context: model.RiskContext{IP: "10.0.0.1", Signals: &model.RiskSignals{ReputationScore: model.Float(tt.rep)}},
		}, service.DefaultRiskWeights())
		require.NoError(t, err)
		assert.Equal(t, tt.want, b.Network, "reputation %v", tt.rep)
	}
}

func TestWeightedScorer_VelocityNormalization(t *testing.T) {
	scorer := service.NewWeightedScorer(service.DefaultPenalties())

	tests := []struct {
		v    *float64
		want float64
	}{
		{nil, 0},
		{model.Float(math.NaN()), 0},
		{model.Float(-5), 0},
		{model.Float(math.Inf(1)), 0},
		{model.Float(40), 40},
		{model.Float(250), 100},
	}

	for _, tt := range tests {
		b, err := scorer.Breakdown(service.ScoreInput{
			Device:  knownDevice(),
			Context: model.RiskContext{IP: "10.0.0.1", Signals: &model.RiskSignals{VelocityScore: tt.v}},
		}, service.DefaultRiskWeights())
		require.NoError(t, err)
		assert.Equal(t, tt.want, b.Velocity)
		assert.GreaterOrEqual(t, b.Total, 0)
		assert.LessOrEqual(t, b.Total, 100)
	}
}

func TestWeightedScorer_Deterministic(t *testing.T) {
	scorer := service.NewWeightedScorer(service.DefaultPenalties())
	in := service.ScoreInput{
		Device: model.DeviceInfo{DeviceType: valueobject.DeviceMobile, OS: "iOS"},
		Context: model.RiskContext{
			IP:      "2001:db8::7",
			Geo:     &model.Geo{Country: "IR"},
			Signals: &model.RiskSignals{IsVPN: true, VelocityScore: model.Float(70), ReputationScore: model.Float(20)},
		},
	}

	first, err := scorer.Score(in, service.DefaultRiskWeights())
	require.NoError(t, err)
	for range 20 {
		got, err := scorer.Score(in, service.DefaultRiskWeights())
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}
}

func TestWeightedScorer_CustomPenalties(t *testing.T) {
	p := service.DefaultPenalties()
	p.Tor = 100
	scorer := service.NewWeightedScorer(p)

	got, err := scorer.Score(service.ScoreInput{
		Device:  knownDevice(),
		Context: model.RiskContext{IP: "10.0.0.1", Signals: &model.RiskSignals{IsTor: true}},
	}, model.RiskWeights{Network: 1})
	require.NoError(t, err)
	assert.Equal(t, 100, got)
}
