package models

import "time"

// Step is one segment of a pattern: hold the actuator at Intensity for Duration.
// Intensity 0 means an off gap.
type Step struct {
	Duration  time.Duration
	Intensity float64
}

// Pattern is a named, ordered timing/intensity sequence executed on a channel.
// Patterns are configuration-defined and immutable at runtime.
type Pattern struct {
	Name  string
	Steps []Step
}

// TotalDuration sums all step durations.
func (p Pattern) TotalDuration() time.Duration {
	var total time.Duration
	for _, s := range p.Steps {
		total += s.Duration
	}
	return total
}

// FireRequest asks one channel's sequencer to execute a pattern.
type FireRequest struct {
	EventType string
	Label     string
	Pattern   Pattern
	Priority  Priority
	Timestamp time.Time
}
