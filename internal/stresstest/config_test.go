package stresstest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{Name: "default", Mode: ModeBasic, BaseURL: "http://localhost:3000", Stagger: 100 * time.Millisecond}
	}

	assert.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing name", func(c *Config) { c.Name = "" }},
		{"unknown mode", func(c *Config) { c.Mode = "flood" }},
		{"relative url", func(c *Config) { c.BaseURL = "/api" }},
		{"no scheme", func(c *Config) { c.BaseURL = "localhost:3000" }},
		{"ftp scheme", func(c *Config) { c.BaseURL = "ftp://localhost" }},
		{"negative stagger", func(c *Config) { c.Stagger = -time.Millisecond }},
		{"negative timeout", func(c *Config) { c.RequestTimeout = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestConfig_Defaults(t *testing.T) {
	c := &Config{BaseURL: "http://localhost:3000/"}
	assert.Equal(t, DefaultRequestTimeout, c.GetRequestTimeout())
	assert.Equal(t, "http://localhost:3000/api/order", c.OrderURL())

	c.RequestTimeout = time.Second
	assert.Equal(t, time.Second, c.GetRequestTimeout())
}

func TestResult_Line(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   string
	}{
		{
			name:   "accepted",
			result: Result{Payload: `[{"id":1,"quantity":1}]`, StatusCode: 200, Body: "{\"success\":true,\"orderId\":7,\"total\":29.99}\n"},
			want:   `Order [{"id":1,"quantity":1}] → {"success":true,"orderId":7,"total":29.99}`,
		},
		{
			name:   "created counts as accepted",
			result: Result{Payload: `[]`, StatusCode: 201, Body: `{}`},
			want:   `Order [] → {}`,
		},
		{
			name:   "rejected",
			result: Result{Payload: `[]`, StatusCode: 400, Body: `{"success":false,"error":"Invalid JSON"}`},
			want:   `Order [] → HTTP 400: {"success":false,"error":"Invalid JSON"}`,
		},
		{
			name:   "transport error",
			result: Result{Payload: `[{"id":99,"quantity":1}]`, Error: "dial tcp: connection refused"},
			want:   `Order [{"id":99,"quantity":1}] → Error: dial tcp: connection refused`,
		},
		{
			name:   "projected body",
			result: Result{Payload: `[]`, StatusCode: 400, Body: `{"error":"x"}`, Query: `"x"`},
			want:   `Order [] → HTTP 400: "x"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.result
			r.classify()
			assert.Equal(t, tt.want, r.Line())
		})
	}
}

func TestRun_Duration(t *testing.T) {
	start := time.Now()
	r := &Run{StartedAt: start, Status: StatusRunning}
	assert.Zero(t, r.Duration())
	assert.False(t, r.IsCompleted())

	end := start.Add(650 * time.Millisecond)
	r.CompletedAt = &end
	r.Status = StatusCancelled
	assert.Equal(t, 650*time.Millisecond, r.Duration())
	assert.True(t, r.IsCompleted())
}
