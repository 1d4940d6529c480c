package domain

import "fmt"

type FailureSource string

const (
	FailureFromStructured  FailureSource = "structured"
	FailureFromRawText     FailureSource = "raw_text"
	FailureFromStatus      FailureSource = "status"
	FailureFromUnreachable FailureSource = "unreachable"
)

const UnreachableMessage = "network error or server unreachable"

// FailureDetail is the best diagnostic text available for a failed backend call.
type FailureDetail struct {
	StatusCode int
	Status     string
	Message    string
	Source     FailureSource
}

func (d FailureDetail) String() string {
	switch d.Source {
	case FailureFromStructured:
		return d.Message
	case FailureFromRawText:
		return fmt.Sprintf("status %s: %s", d.statusText(), d.Message)
	case FailureFromStatus:
		return fmt.Sprintf("status %s", d.statusText())
	default:
		if d.Message != "" {
			return d.Message
		}
		return UnreachableMessage
	}
}

func (d FailureDetail) statusText() string {
	if d.Status != "" {
		return d.Status
	}
	return fmt.Sprintf("%d", d.StatusCode)
}
