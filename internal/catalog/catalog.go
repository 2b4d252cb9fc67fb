package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"sensebridge/internal/models"
)

// EventSpec describes how one configured event type is presented.
type EventSpec struct {
	Label         string          `json:"label"`
	Priority      models.Priority `json:"-"`
	PriorityName  string          `json:"priority"`
	HapticPattern string          `json:"haptic_pattern"`
	VisualPattern string          `json:"visual_pattern"`
}

// Catalog maps event types to their presentation and holds the named
// vibration/flash pattern tables. It is read-only while the dispatcher runs;
// reloads only happen between stop/start cycles.
type Catalog struct {
	events map[string]EventSpec
	haptic map[string]models.Pattern
	visual map[string]models.Pattern
}

const (
	// DefaultHapticPattern is the fallback when a configured name is unknown.
	DefaultHapticPattern = "short_double"
	// DefaultVisualPattern is the fallback when a configured name is unknown.
	DefaultVisualPattern = "flash_medium"
)

func steps(pairs ...float64) []models.Step {
	out := make([]models.Step, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, models.Step{
			Duration:  time.Duration(pairs[i] * float64(time.Second)),
			Intensity: pairs[i+1],
		})
	}
	return out
}

func defaultHapticPatterns() map[string]models.Pattern {
	return map[string]models.Pattern{
		"short_single": {Name: "short_single", Steps: steps(0.2, 1.0)},
		"short_double": {Name: "short_double", Steps: steps(0.2, 1.0, 0.1, 0.0, 0.2, 1.0)},
		"short_triple": {Name: "short_triple", Steps: steps(0.2, 1.0, 0.1, 0.0, 0.2, 1.0, 0.1, 0.0, 0.2, 1.0)},
		"long_single":  {Name: "long_single", Steps: steps(0.8, 1.0)},
		"long_double":  {Name: "long_double", Steps: steps(0.8, 1.0, 0.2, 0.0, 0.8, 1.0)},
		"continuous":   {Name: "continuous", Steps: steps(3.0, 1.0)},
		"escalating":   {Name: "escalating", Steps: steps(0.2, 0.3, 0.1, 0.0, 0.2, 0.6, 0.1, 0.0, 0.3, 1.0)},
	}
}

func defaultVisualPatterns() map[string]models.Pattern {
	return map[string]models.Pattern{
		"flash_low":    {Name: "flash_low", Steps: steps(0.5, 0.3, 0.5, 0.0)},
		"flash_medium": {Name: "flash_medium", Steps: steps(0.5, 0.6, 0.5, 0.0)},
		"flash_bright": {Name: "flash_bright", Steps: steps(0.5, 1.0, 0.5, 0.0)},
		"flash_urgent": {Name: "flash_urgent", Steps: steps(0.2, 1.0, 0.2, 0.0, 0.2, 1.0, 0.2, 0.0, 0.2, 1.0)},
		"constant":     {Name: "constant", Steps: steps(2.0, 1.0)},
		"gentle_pulse": {Name: "gentle_pulse", Steps: steps(0.5, 0.3, 0.5, 0.1, 0.5, 0.3, 0.5, 0.0)},
	}
}

func defaultEvents() map[string]EventSpec {
	return map[string]EventSpec{
		"doorbell": {
			Label:         "Doorbell",
			Priority:      models.PriorityHigh,
			HapticPattern: "long_double",
			VisualPattern: "flash_bright",
		},
		"knock": {
			Label:         "Knock, knock",
			Priority:      models.PriorityHigh,
			HapticPattern: "short_triple",
			VisualPattern: "flash_medium",
		},
		"microwave_beep": {
			Label:         "Microwave",
			Priority:      models.PriorityMedium,
			HapticPattern: "short_double",
			VisualPattern: "flash_low",
		},
		"alarm": {
			Label:         "Alarm",
			Priority:      models.PriorityHigh,
			HapticPattern: "continuous",
			VisualPattern: "flash_urgent",
		},
	}
}

// Default returns a Catalog with the built-in events and pattern tables.
func Default() *Catalog {
	return &Catalog{
		events: defaultEvents(),
		haptic: defaultHapticPatterns(),
		visual: defaultVisualPatterns(),
	}
}

// Load reads an event catalog JSON file (event_type -> EventSpec) and merges
// it over the built-in events. The pattern tables stay built-in. An empty
// path returns the defaults.
func Load(path string) (*Catalog, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	var events map[string]EventSpec
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	for name, spec := range events {
		spec.Priority = models.ParsePriority(spec.PriorityName)
		if spec.Label == "" {
			spec.Label = name
		}
		if spec.HapticPattern == "" {
			spec.HapticPattern = DefaultHapticPattern
		}
		if spec.VisualPattern == "" {
			spec.VisualPattern = DefaultVisualPattern
		}
		c.events[name] = spec
	}
	return c, nil
}

// Resolve looks up an event type; ok is false for unconfigured types.
func (c *Catalog) Resolve(eventType string) (EventSpec, bool) {
	spec, ok := c.events[eventType]
	return spec, ok
}

// EventTypes lists all configured event types.
func (c *Catalog) EventTypes() []string {
	out := make([]string, 0, len(c.events))
	for name := range c.events {
		out = append(out, name)
	}
	return out
}

// HapticPattern returns the named vibration pattern, falling back to
// short_double for unknown names.
func (c *Catalog) HapticPattern(name string) models.Pattern {
	if p, ok := c.haptic[name]; ok {
		return p
	}
	return c.haptic[DefaultHapticPattern]
}

// VisualPattern returns the named flash pattern, falling back to
// flash_medium for unknown names.
func (c *Catalog) VisualPattern(name string) models.Pattern {
	if p, ok := c.visual[name]; ok {
		return p
	}
	return c.visual[DefaultVisualPattern]
}
