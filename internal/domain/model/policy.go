package model

// Policy holds the thresholds the local assessor maps scores onto.
type Policy struct {
	Weights        RiskWeights `json:"weights" yaml:"weights"`
	MFAThreshold   int         `json:"mfa_threshold" yaml:"mfa_threshold"`
	BlockThreshold int         `json:"block_threshold" yaml:"block_threshold"`
}

const (
	DefaultMFAThreshold   = 40
	DefaultBlockThreshold = 80
)

// WithDefaults fills unset thresholds. Weights are left to the scorer.
func (p Policy) WithDefaults() Policy {
	if p.MFAThreshold <= 0 {
		p.MFAThreshold = DefaultMFAThreshold
	}
	if p.BlockThreshold <= 0 {
		p.BlockThreshold = DefaultBlockThreshold
	}
	return p
}
