package stresstest

import (
	"fmt"
	"strings"
	"time"

	"github.com/studiowebux/orderstress/internal/executor"
)

// Outcome classifies what the server did with one order
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted" // 2xx
	OutcomeRejected Outcome = "rejected" // any other status
	OutcomeError    Outcome = "error"    // no response
)

// Result is the observed response for one order case
type Result struct {
	RunID      int64     `json:"-" yaml:"-"`
	Seq        int       `json:"seq" yaml:"seq"`
	CaseName   string    `json:"case" yaml:"case"`
	Payload    string    `json:"payload" yaml:"payload"`
	StatusCode int       `json:"status" yaml:"status"`
	Body       string    `json:"body,omitempty" yaml:"body,omitempty"`
	Query      string    `json:"query,omitempty" yaml:"query,omitempty"`
	QueryError string    `json:"queryError,omitempty" yaml:"queryError,omitempty"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
	DurationMs int64     `json:"durationMs" yaml:"durationMs"`
	ElapsedMs  int64     `json:"elapsedMs" yaml:"elapsedMs"`
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
	Outcome    Outcome   `json:"outcome" yaml:"outcome"`
}

// classify sets Outcome from StatusCode and Error
func (r *Result) classify() {
	switch {
	case r.Error != "":
		r.Outcome = OutcomeError
	case executor.IsSuccessStatus(r.StatusCode):
		r.Outcome = OutcomeAccepted
	default:
		r.Outcome = OutcomeRejected
	}
}

// Display returns the projected body when a query was applied, else the raw body
func (r *Result) Display() string {
	if r.Query != "" {
		return r.Query
	}
	return strings.TrimSpace(r.Body)
}

// Line renders the result the way it is printed during a run:
//
//	Order [{"id":1,"quantity":1}] → {"success":true,...}
//	Order [] → HTTP 400: {"success":false,...}
//	Order [{"id":1,"quantity":1}] → Error: connection refused
func (r *Result) Line() string {
	switch r.Outcome {
	case OutcomeError:
		return fmt.Sprintf("Order %s → Error: %s", r.Payload, r.Error)
	case OutcomeAccepted:
		return fmt.Sprintf("Order %s → %s", r.Payload, r.Display())
	default:
		return fmt.Sprintf("Order %s → HTTP %d: %s", r.Payload, r.StatusCode, r.Display())
	}
}
