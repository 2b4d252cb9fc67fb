package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewEventIntentClampsConfidence(t *testing.T) {
	assert.Equal(t, 1.0, NewEventIntent("doorbell", 1.4, "").Confidence)
	assert.Equal(t, 0.0, NewEventIntent("doorbell", -0.2, "").Confidence)
	assert.Equal(t, 0.85, NewEventIntent("doorbell", 0.85, "").Confidence)
}

func TestParsePriority(t *testing.T) {
	assert.Equal(t, PriorityLow, ParsePriority("low"))
	assert.Equal(t, PriorityMedium, ParsePriority("medium"))
	assert.Equal(t, PriorityHigh, ParsePriority("high"))
	assert.Equal(t, PriorityMedium, ParsePriority("whatever"))
}

func TestPriorityOrdering(t *testing.T) {
	assert.True(t, PriorityLow < PriorityMedium)
	assert.True(t, PriorityMedium < PriorityHigh)
}

func TestPatternTotalDuration(t *testing.T) {
	p := Pattern{Steps: []Step{
		{Duration: 800 * time.Millisecond, Intensity: 1},
		{Duration: 200 * time.Millisecond, Intensity: 0},
		{Duration: 800 * time.Millisecond, Intensity: 1},
	}}
	assert.Equal(t, 1800*time.Millisecond, p.TotalDuration())
}
