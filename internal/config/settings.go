package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultBaseURL is where the order API is expected to listen
	DefaultBaseURL = "http://localhost:3000"
	// DefaultStagger is the delay between two request launches
	DefaultStagger = 100 * time.Millisecond
	// DefaultRequestTimeout bounds a single request
	DefaultRequestTimeout = 5 * time.Second

	EnvBaseURL = "ORDERSTRESS_BASE_URL"
	EnvStagger = "ORDERSTRESS_STAGGER"
	EnvTimeout = "ORDERSTRESS_TIMEOUT"
)

// Settings holds the values every command can start from
type Settings struct {
	BaseURL        string        `yaml:"base_url"`
	Stagger        time.Duration `yaml:"stagger"`
	RequestTimeout time.Duration `yaml:"timeout"`
	Scenario       string        `yaml:"scenario,omitempty"`
	Output         string        `yaml:"output,omitempty"`
	HistoryEnabled *bool         `yaml:"history,omitempty"`
}

// DefaultSettings returns settings matching a local development server
func DefaultSettings() *Settings {
	enabled := true
	return &Settings{
		BaseURL:        DefaultBaseURL,
		Stagger:        DefaultStagger,
		RequestTimeout: DefaultRequestTimeout,
		Output:         "text",
		HistoryEnabled: &enabled,
	}
}

// LoadSettings reads the settings file at path and applies environment overrides.
// A missing file is not an error.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, s); err != nil {
				return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read settings file %s: %w", path, err)
		}
	}

	if err := s.applyEnv(); err != nil {
		return nil, err
	}

	if s.HistoryEnabled == nil {
		enabled := true
		s.HistoryEnabled = &enabled
	}

	return s, nil
}

func (s *Settings) applyEnv() error {
	if v := os.Getenv(EnvBaseURL); v != "" {
		s.BaseURL = v
	}
	if v := os.Getenv(EnvStagger); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvStagger, err)
		}
		s.Stagger = d
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvTimeout, err)
		}
		s.RequestTimeout = d
	}
	return nil
}

// IsHistoryEnabled reports whether runs should be persisted
func (s *Settings) IsHistoryEnabled() bool {
	return s.HistoryEnabled == nil || *s.HistoryEnabled
}

// Validate validates the settings
func (s *Settings) Validate() error {
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base url %q: %w", s.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base url must be http or https, got %q", s.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("base url %q has no host", s.BaseURL)
	}
	if s.Stagger < 0 {
		return fmt.Errorf("stagger cannot be negative")
	}
	if s.RequestTimeout <= 0 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	switch s.Output {
	case "", "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q (text/json/yaml)", s.Output)
	}
	return nil
}

// Marshal encodes the settings in the settings file format
func (s *Settings) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settings: %w", err)
	}
	return data, nil
}

// Save writes the settings to path
func (s *Settings) Save(path string) error {
	data, err := s.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, FilePermissions); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}
