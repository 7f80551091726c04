package policy

import "fmt"

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError fails a check.
	SeverityError Severity = "error"
)

// ParseSeverity returns the severity named s.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityInfo, SeverityWarning, SeverityError:
		return Severity(s), nil
	default:
		return "", fmt.Errorf("unknown severity %q", s)
	}
}

// Policy is a named Rego module.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description,omitempty"`

	// Rego contains the Rego module source.
	Rego string `json:"rego"`

	// Severity applies to violations that do not set their own.
	Severity Severity `json:"severity"`
}

// Input is the document a policy sees as input.
type Input struct {
	Factory string         `json:"factory"`
	Model   string         `json:"model"`
	Attrs   map[string]any `json:"attrs"`
}

// Violation is one element of a policy's deny set.
type Violation struct {
	Policy   string   `json:"policy"`
	Factory  string   `json:"factory"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// String formats v for terminal output.
func (v Violation) String() string {
	return fmt.Sprintf("[%s] %s: %s (policy %s)", v.Severity, v.Factory, v.Message, v.Policy)
}

// Result collects the violations of a check.
type Result struct {
	// Factories is the number of factories checked.
	Factories int `json:"factories"`

	// Policies is the number of policies evaluated per factory.
	Policies int `json:"policies"`

	Violations []Violation `json:"violations,omitempty"`
}

// Allowed reports whether no violation has error severity.
func (r *Result) Allowed() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityError {
			return false
		}
	}
	return true
}
