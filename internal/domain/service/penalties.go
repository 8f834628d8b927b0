package service

import "slices"

// Penalties holds every fixed contribution the weighted scorer adds. Each
// category subscore is clamped to [0,100] after its penalties are summed.
type Penalties struct {
	HighRiskCountries  []string
	UnknownDevice      int
	IoTDevice          int
	MissingOS          int
	MissingBrowser     int
	HighRiskCountry    int
	GeoMismatch        int
	Tor                int
	VPN                int
	Proxy              int
	ReputationCritical int
	ReputationLow      int
}

// DefaultPenalties returns the penalty table used when none is supplied.
func DefaultPenalties() Penalties {
	return Penalties{
		UnknownDevice:      40,
		IoTDevice:          30,
		MissingOS:          20,
		MissingBrowser:     15,
		HighRiskCountry:    50,
		GeoMismatch:        30,
		Tor:                60,
		VPN:                30,
		Proxy:              25,
		ReputationCritical: 50,
		ReputationLow:      20,
		HighRiskCountries:  []string{"KP", "IR", "SY", "CU", "RU"},
	}
}

func (p Penalties) isHighRiskCountry(country string) bool {
	return country != "" && slices.Contains(p.HighRiskCountries, country)
}
