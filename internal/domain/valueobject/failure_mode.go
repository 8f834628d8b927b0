package valueobject

// FailureMode selects how a component reacts to an internal failure.
type FailureMode string

const (
	// FailClosed treats the failure as maximum risk and aborts.
	FailClosed FailureMode = "fail-closed"
	// FailOpen proceeds as if the failing component were absent.
	FailOpen FailureMode = "fail-open"
)

// OrDefault returns FailClosed for the zero value.
func (m FailureMode) OrDefault() FailureMode {
	if m == "" {
		return FailClosed
	}
	return m
}
