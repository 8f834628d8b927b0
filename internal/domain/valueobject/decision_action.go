package valueobject

import "fmt"

// DecisionAction is the action a login flow should take after assessment.
type DecisionAction struct {
	value string
}

var (
	ActionLogin = DecisionAction{value: "login"}
	ActionMFA   = DecisionAction{value: "mfa"}
	ActionBlock = DecisionAction{value: "block"}
)

// DecisionActionFromString reconstructs a DecisionAction from its string representation.
func DecisionActionFromString(s string) (DecisionAction, error) {
	switch s {
	case "login":
		return ActionLogin, nil
	case "mfa":
		return ActionMFA, nil
	case "block":
		return ActionBlock, nil
	default:
		return DecisionAction{}, fmt.Errorf("invalid decision action: %q", s)
	}
}

// DecisionActionFromScore maps a score onto an action using the MFA and block thresholds.
func DecisionActionFromScore(score, mfaThreshold, blockThreshold int) DecisionAction {
	switch {
	case score >= blockThreshold:
		return ActionBlock
	case score >= mfaThreshold:
		return ActionMFA
	default:
		return ActionLogin
	}
}

// String returns the string representation.
func (d DecisionAction) String() string {
	return d.value
}

// Rank orders actions by strictness: login=1, mfa=2, block=3, unset=0.
func (d DecisionAction) Rank() int {
	switch d.value {
	case "login":
		return 1
	case "mfa":
		return 2
	case "block":
		return 3
	default:
		return 0
	}
}

// IsZero returns true if the action has not been set.
func (d DecisionAction) IsZero() bool {
	return d.value == ""
}

// Equal checks equality with another DecisionAction.
func (d DecisionAction) Equal(other DecisionAction) bool {
	return d.value == other.value
}

// IsBlock returns true if the action is block.
func (d DecisionAction) IsBlock() bool {
	return d.value == "block"
}
