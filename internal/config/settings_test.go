package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettings_MissingFileUsesDefaults(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, s.BaseURL)
	assert.Equal(t, 100*time.Millisecond, s.Stagger)
	assert.Equal(t, 5*time.Second, s.RequestTimeout)
	assert.True(t, s.IsHistoryEnabled())
	assert.NoError(t, s.Validate())
}

func TestLoadSettings_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
base_url: http://127.0.0.1:8080
stagger: 250ms
timeout: 2s
scenario: orders.yaml
history: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s, err := LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8080", s.BaseURL)
	assert.Equal(t, 250*time.Millisecond, s.Stagger)
	assert.Equal(t, 2*time.Second, s.RequestTimeout)
	assert.Equal(t, "orders.yaml", s.Scenario)
	assert.False(t, s.IsHistoryEnabled())
}

func TestLoadSettings_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: http://file:1\nstagger: 1s\n"), 0644))

	t.Setenv(EnvBaseURL, "http://env:2")
	t.Setenv(EnvStagger, "10ms")
	t.Setenv(EnvTimeout, "750ms")

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "http://env:2", s.BaseURL)
	assert.Equal(t, 10*time.Millisecond, s.Stagger)
	assert.Equal(t, 750*time.Millisecond, s.RequestTimeout)
}

func TestLoadSettings_InvalidEnv(t *testing.T) {
	t.Setenv(EnvStagger, "soon")
	_, err := LoadSettings("")
	assert.Error(t, err)
}

func TestLoadSettings_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stagger: [1, 2"), 0644))
	_, err := LoadSettings(path)
	assert.Error(t, err)
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{"defaults", func(s *Settings) {}, false},
		{"https", func(s *Settings) { s.BaseURL = "https://shop.example.com" }, false},
		{"zero stagger", func(s *Settings) { s.Stagger = 0 }, false},
		{"no scheme", func(s *Settings) { s.BaseURL = "localhost:3000" }, true},
		{"ftp", func(s *Settings) { s.BaseURL = "ftp://localhost" }, true},
		{"negative stagger", func(s *Settings) { s.Stagger = -time.Millisecond }, true},
		{"zero timeout", func(s *Settings) { s.RequestTimeout = 0 }, true},
		{"bad output", func(s *Settings) { s.Output = "xml" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(s)
			err := s.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSettings_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	s := DefaultSettings()
	s.Stagger = 300 * time.Millisecond
	require.NoError(t, s.Save(path))

	loaded, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, 300*time.Millisecond, loaded.Stagger)
	assert.Equal(t, DefaultBaseURL, loaded.BaseURL)
}

func TestInitialize_HomeOverride(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "home")
	t.Setenv(HomeEnv, dir)

	require.NoError(t, Initialize())
	assert.Equal(t, dir, ConfigDir)
	assert.Equal(t, filepath.Join(dir, "orderstress.db"), DatabasePath)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), SettingsFile)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
