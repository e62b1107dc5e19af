package stresstest

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/studiowebux/orderstress/internal/filter"
	"github.com/studiowebux/orderstress/internal/types"
)

// Dispatch modes
const (
	ModeBasic   = "basic"
	ModeSession = "session"
)

// Run statuses
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// DefaultRequestTimeout applies when Config.RequestTimeout is zero
const DefaultRequestTimeout = 5 * time.Second

// OrderPath is the endpoint every order case is posted to
const OrderPath = "/api/order"

// Config represents a stress run configuration
type Config struct {
	Name           string
	Mode           string
	BaseURL        string
	Account        string        // username bound to the session, session mode only
	Stagger        time.Duration // delay between two consecutive launches
	RequestTimeout time.Duration // timeout for individual requests (default: 5s)
}

// Run represents a stress run record
type Run struct {
	ID             int64      `json:"id" yaml:"id"`
	ScenarioName   string     `json:"scenario" yaml:"scenario"`
	Mode           string     `json:"mode" yaml:"mode"`
	BaseURL        string     `json:"baseUrl" yaml:"baseUrl"`
	Account        string     `json:"account,omitempty" yaml:"account,omitempty"`
	StartedAt      time.Time  `json:"startedAt" yaml:"startedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty" yaml:"completedAt,omitempty"`
	Status         string     `json:"status" yaml:"status"`
	TotalOrders    int        `json:"totalOrders" yaml:"totalOrders"`
	TotalSent      int        `json:"totalSent" yaml:"totalSent"`
	TotalCompleted int        `json:"totalCompleted" yaml:"totalCompleted"`
	TotalAccepted  int        `json:"totalAccepted" yaml:"totalAccepted"`
	TotalRejected  int        `json:"totalRejected" yaml:"totalRejected"`
	TotalErrors    int        `json:"totalErrors" yaml:"totalErrors"`
	AvgDurationMs  float64    `json:"avgDurationMs" yaml:"avgDurationMs"`
	MinDurationMs  int64      `json:"minDurationMs" yaml:"minDurationMs"`
	MaxDurationMs  int64      `json:"maxDurationMs" yaml:"maxDurationMs"`
	P50DurationMs  int64      `json:"p50DurationMs" yaml:"p50DurationMs"`
	P95DurationMs  int64      `json:"p95DurationMs" yaml:"p95DurationMs"`
	P99DurationMs  int64      `json:"p99DurationMs" yaml:"p99DurationMs"`
}

// ExecutionConfig contains the runtime configuration for dispatching a scenario
type ExecutionConfig struct {
	Scenario *types.Scenario
	Config   *Config
	// Client is shared by every order; session runs pass the cookie-carrying client.
	// When nil a pooled client is built from Config.RequestTimeout.
	Client *http.Client
	// Query is an optional JMESPath projection applied to each response body
	Query *filter.Query
	// OnResult is called from a single goroutine, once per result, in arrival order
	OnResult func(*Result)
}

// Validate validates the run configuration
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config name is required")
	}
	switch c.Mode {
	case ModeBasic, ModeSession:
	default:
		return fmt.Errorf("unknown mode %q (basic/session)", c.Mode)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base URL must be an absolute http(s) URL, got %q", c.BaseURL)
	}
	if c.Stagger < 0 {
		return fmt.Errorf("stagger cannot be negative")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request timeout cannot be negative")
	}
	return nil
}

// GetRequestTimeout returns the per-request timeout
func (c *Config) GetRequestTimeout() time.Duration {
	if c.RequestTimeout == 0 {
		return DefaultRequestTimeout
	}
	return c.RequestTimeout
}

// OrderURL returns the absolute order endpoint
func (c *Config) OrderURL() string {
	return types.JoinURL(strings.TrimSpace(c.BaseURL), OrderPath)
}

// IsRunning returns true if the run is currently in progress
func (r *Run) IsRunning() bool {
	return r.Status == StatusRunning
}

// IsCompleted returns true if the run has finished
func (r *Run) IsCompleted() bool {
	return r.Status == StatusCompleted || r.Status == StatusCancelled
}

// Duration returns how long the run took, or zero while it is running
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}
