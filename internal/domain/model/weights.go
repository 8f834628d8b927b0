package model

// RiskWeights weights each scoring category. A set is valid when every
// component is in [0,1] and the sum is in [0.9,1.1].
type RiskWeights struct {
	Device   float64 `json:"device" yaml:"device"`
	Geo      float64 `json:"geo" yaml:"geo"`
	Network  float64 `json:"network" yaml:"network"`
	Velocity float64 `json:"velocity" yaml:"velocity"`
}

// Sum returns the total of all components.
func (w RiskWeights) Sum() float64 {
	return w.Device + w.Geo + w.Network + w.Velocity
}

// IsZero reports whether no weight was set.
func (w RiskWeights) IsZero() bool {
	return w == RiskWeights{}
}
