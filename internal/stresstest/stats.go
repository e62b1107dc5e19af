package stresstest

import (
	"sort"
)

// Stats holds runtime statistics for a stress run
type Stats struct {
	TotalOrders     int
	CompletedOrders int
	AcceptedCount   int // 2xx
	RejectedCount   int // non-2xx
	ErrorCount      int // no response (timeouts, connection failures, cancellation)
	ActiveRequests  int // orders currently in flight
	Durations       []int64
	TotalDurationMs int64
	MinDurationMs   int64
	MaxDurationMs   int64
}

// NewStats creates a new Stats instance
func NewStats() *Stats {
	return &Stats{
		Durations:     make([]int64, 0, 16),
		MinDurationMs: -1,
		MaxDurationMs: -1,
	}
}

// AddResult adds an order result to the statistics
func (s *Stats) AddResult(durationMs int64, outcome Outcome) {
	s.CompletedOrders++
	s.TotalDurationMs += durationMs
	s.Durations = append(s.Durations, durationMs)

	switch outcome {
	case OutcomeAccepted:
		s.AcceptedCount++
	case OutcomeRejected:
		s.RejectedCount++
	default:
		s.ErrorCount++
	}

	if s.MinDurationMs == -1 || durationMs < s.MinDurationMs {
		s.MinDurationMs = durationMs
	}
	if s.MaxDurationMs == -1 || durationMs > s.MaxDurationMs {
		s.MaxDurationMs = durationMs
	}
}

// AvgDurationMs returns the average duration in milliseconds
func (s *Stats) AvgDurationMs() float64 {
	if s.CompletedOrders == 0 {
		return 0
	}
	return float64(s.TotalDurationMs) / float64(s.CompletedOrders)
}

// Min returns the minimum duration, or 0 if no results
func (s *Stats) Min() int64 {
	if s.MinDurationMs == -1 {
		return 0
	}
	return s.MinDurationMs
}

// Max returns the maximum duration, or 0 if no results
func (s *Stats) Max() int64 {
	if s.MaxDurationMs == -1 {
		return 0
	}
	return s.MaxDurationMs
}

// Percentile calculates the percentile value (p should be between 0 and 100)
func (s *Stats) Percentile(p float64) int64 {
	if len(s.Durations) == 0 {
		return 0
	}

	sorted := make([]int64, len(s.Durations))
	copy(sorted, s.Durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	index := (p / 100.0) * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	// Linear interpolation between lower and upper
	weight := index - float64(lower)
	return int64(float64(sorted[lower])*(1-weight) + float64(sorted[upper])*weight)
}

// P50 returns the 50th percentile (median)
func (s *Stats) P50() int64 {
	return s.Percentile(50)
}

// P95 returns the 95th percentile
func (s *Stats) P95() int64 {
	return s.Percentile(95)
}

// P99 returns the 99th percentile
func (s *Stats) P99() int64 {
	return s.Percentile(99)
}

func (s *Stats) rate(n int) float64 {
	if s.CompletedOrders == 0 {
		return 0
	}
	return float64(n) / float64(s.CompletedOrders) * 100
}

// AcceptRate returns the share of 2xx answers as a percentage
func (s *Stats) AcceptRate() float64 {
	return s.rate(s.AcceptedCount)
}

// RejectRate returns the share of non-2xx answers as a percentage
func (s *Stats) RejectRate() float64 {
	return s.rate(s.RejectedCount)
}

// ErrorRate returns the share of orders that got no response as a percentage
func (s *Stats) ErrorRate() float64 {
	return s.rate(s.ErrorCount)
}

// Progress returns the completion progress as a percentage
func (s *Stats) Progress() float64 {
	if s.TotalOrders == 0 {
		return 0
	}
	return float64(s.CompletedOrders) / float64(s.TotalOrders) * 100
}
