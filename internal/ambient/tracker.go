package ambient

import (
	"errors"
	"sort"
	"sync"
)

// ErrNoSamples is returned by Calibrate when the calibration window produced
// nothing; the tracker falls back to its conservative default level.
var ErrNoSamples = errors.New("no calibration samples collected")

// Tracker maintains the adaptive ambient noise baseline. The detector updates
// it on below-threshold or low-confidence samples and reads it on every
// detection decision, so all access goes through one mutex.
type Tracker struct {
	mu         sync.Mutex
	level      float64
	window     []float64
	windowSize int
	fallback   float64
}

// NewTracker builds a Tracker with the given rolling window capacity and the
// default level used before calibration or when calibration fails.
func NewTracker(windowSize int, defaultLevel float64) *Tracker {
	if windowSize <= 0 {
		windowSize = 50
	}
	return &Tracker{
		level:      defaultLevel,
		window:     make([]float64, 0, windowSize),
		windowSize: windowSize,
		fallback:   defaultLevel,
	}
}

// Calibrate sets the baseline to the median of a batch of level samples.
// Median rather than mean so a transient sound during calibration does not
// skew the baseline. An empty batch keeps the conservative default and
// returns ErrNoSamples.
func (t *Tracker) Calibrate(samples []float64) (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(samples) == 0 {
		t.level = t.fallback
		return t.level, ErrNoSamples
	}
	t.level = median(samples)
	t.window = t.window[:0]
	return t.level, nil
}

// Update pushes one level sample into the rolling window, evicting the
// oldest beyond capacity, and recomputes the baseline as the window median.
func (t *Tracker) Update(sample float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.window = append(t.window, sample)
	if len(t.window) > t.windowSize {
		t.window = t.window[1:]
	}
	t.level = median(t.window)
}

// Level returns the current ambient baseline.
func (t *Tracker) Level() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.level
}

// WindowLen reports the rolling window fill, for status reporting.
func (t *Tracker) WindowLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.window)
}

// Threshold returns the detection trigger level for a given ambient baseline
// and sensitivity. Pure function: strictly increasing in both inputs for
// positive levels, so louder rooms raise the bar instead of causing false
// triggers.
func Threshold(level, sensitivity float64) float64 {
	return level * (1.0 + 5.0*sensitivity)
}

// Threshold returns the trigger level for the tracker's current baseline.
func (t *Tracker) Threshold(sensitivity float64) float64 {
	return Threshold(t.Level(), sensitivity)
}

// median copies its input before sorting; callers keep ordering.
func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
