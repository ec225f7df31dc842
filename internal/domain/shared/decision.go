package shared

// DecisionStatus is the three-state outcome of a risk or capability check
type DecisionStatus string

const (
	// DecisionPass indicates the check passed with no reservations
	DecisionPass DecisionStatus = "PASS"

	// DecisionWarn indicates a non-blocking concern. Matches carry the
	// warning downstream and the score penalty applies.
	DecisionWarn DecisionStatus = "WARN"

	// DecisionFail indicates an authoritative block. No retry; only an
	// explicit privileged manual approval can override it.
	DecisionFail DecisionStatus = "FAIL"
)

// severity orders statuses so the worst contributor can be selected
func (s DecisionStatus) severity() int {
	switch s {
	case DecisionFail:
		return 2
	case DecisionWarn:
		return 1
	default:
		return 0
	}
}

// WorstOf returns the most severe of the given statuses.
// An empty argument list returns PASS.
func WorstOf(statuses ...DecisionStatus) DecisionStatus {
	worst := DecisionPass
	for _, s := range statuses {
		if s.severity() > worst.severity() {
			worst = s
		}
	}
	return worst
}

// Decision is the structured result of a single risk or capability check.
// Code is machine readable (e.g. SAME_PAN, EXPORT_LICENSE_MISSING);
// Reason is the human explanation kept for audit.
type Decision struct {
	Status  DecisionStatus
	Code    string
	Reason  string
	Details map[string]string
}

// Pass builds a passing decision
func Pass() Decision {
	return Decision{Status: DecisionPass}
}

// Warn builds a warning decision with code and reason
func Warn(code, reason string) Decision {
	return Decision{Status: DecisionWarn, Code: code, Reason: reason}
}

// Fail builds a failing decision with code and reason
func Fail(code, reason string) Decision {
	return Decision{Status: DecisionFail, Code: code, Reason: reason}
}

// WithDetail attaches a key/value detail and returns the decision
func (d Decision) WithDetail(key, value string) Decision {
	if d.Details == nil {
		d.Details = make(map[string]string)
	}
	d.Details[key] = value
	return d
}

// IsBlocking reports whether the decision must stop the flow
func (d Decision) IsBlocking() bool {
	return d.Status == DecisionFail
}
