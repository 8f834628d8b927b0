package model

import "time"

// Geo is a coarse geographic location.
type Geo struct {
	Country string  `json:"country,omitempty"`
	Region  string  `json:"region,omitempty"`
	City    string  `json:"city,omitempty"`
	Lat     float64 `json:"lat,omitempty"`
	Lng     float64 `json:"lng,omitempty"`
}

// RiskSignals carries network and behavioural signals. Nil scores mean the
// signal was not supplied.
type RiskSignals struct {
	PreviousGeo     *Geo     `json:"previous_geo,omitempty"`
	ReputationScore *float64 `json:"reputation_score,omitempty"`
	VelocityScore   *float64 `json:"velocity_score,omitempty"`
	IsVPN           bool     `json:"is_vpn"`
	IsTor           bool     `json:"is_tor"`
	IsProxy         bool     `json:"is_proxy"`
}

// RiskContext is the caller-supplied context of a login attempt. Values are
// treated as immutable: the With* helpers return modified copies.
type RiskContext struct {
	Timestamp         time.Time    `json:"timestamp"`
	Geo               *Geo         `json:"geo,omitempty"`
	Signals           *RiskSignals `json:"signals,omitempty"`
	IP                string       `json:"ip,omitempty"`
	UserID            string       `json:"user_id,omitempty"`
	TenantID          string       `json:"tenant_id,omitempty"`
	PreviousSessionID string       `json:"previous_session_id,omitempty"`
}

// Clone returns a deep copy that shares no pointers with c.
func (c RiskContext) Clone() RiskContext {
	out := c
	out.Geo = cloneGeo(c.Geo)
	if c.Signals != nil {
		s := *c.Signals
		s.PreviousGeo = cloneGeo(c.Signals.PreviousGeo)
		s.ReputationScore = cloneFloat(c.Signals.ReputationScore)
		s.VelocityScore = cloneFloat(c.Signals.VelocityScore)
		out.Signals = &s
	}
	return out
}

// WithIP returns a copy of c with the given IP.
func (c RiskContext) WithIP(ip string) RiskContext {
	out := c.Clone()
	out.IP = ip
	return out
}

// WithGeo returns a copy of c with the given location.
func (c RiskContext) WithGeo(g Geo) RiskContext {
	out := c.Clone()
	out.Geo = &g
	return out
}

// WithSignals returns a copy of c with the given signals.
func (c RiskContext) WithSignals(s RiskSignals) RiskContext {
	out := c.Clone()
	cp := s
	cp.PreviousGeo = cloneGeo(s.PreviousGeo)
	cp.ReputationScore = cloneFloat(s.ReputationScore)
	cp.VelocityScore = cloneFloat(s.VelocityScore)
	out.Signals = &cp
	return out
}

// Country returns the current country or "".
func (c RiskContext) Country() string {
	if c.Geo == nil {
		return ""
	}
	return c.Geo.Country
}

// PreviousCountry returns the previous country or "".
func (c RiskContext) PreviousCountry() string {
	if c.Signals == nil || c.Signals.PreviousGeo == nil {
		return ""
	}
	return c.Signals.PreviousGeo.Country
}

// Float is a convenience for building optional scores.
func Float(v float64) *float64 {
	return &v
}

func cloneGeo(g *Geo) *Geo {
	if g == nil {
		return nil
	}
	cp := *g
	return &cp
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
