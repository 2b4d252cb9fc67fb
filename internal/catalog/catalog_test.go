package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sensebridge/internal/models"
)

func TestDefaultCatalogEvents(t *testing.T) {
	c := Default()

	spec, ok := c.Resolve("doorbell")
	require.True(t, ok)
	assert.Equal(t, "Doorbell", spec.Label)
	assert.Equal(t, models.PriorityHigh, spec.Priority)
	assert.Equal(t, "long_double", spec.HapticPattern)
	assert.Equal(t, "flash_bright", spec.VisualPattern)

	_, ok = c.Resolve("car_horn")
	assert.False(t, ok)
}

func TestLongDoubleSteps(t *testing.T) {
	c := Default()
	p := c.HapticPattern("long_double")

	require.Len(t, p.Steps, 3)
	assert.Equal(t, models.Step{Duration: 800 * time.Millisecond, Intensity: 1.0}, p.Steps[0])
	assert.Equal(t, models.Step{Duration: 200 * time.Millisecond, Intensity: 0.0}, p.Steps[1])
	assert.Equal(t, models.Step{Duration: 800 * time.Millisecond, Intensity: 1.0}, p.Steps[2])
}

func TestPatternsNeverEmpty(t *testing.T) {
	c := Default()
	for _, name := range []string{"short_single", "short_double", "short_triple", "long_single", "long_double", "continuous", "escalating"} {
		assert.NotEmpty(t, c.HapticPattern(name).Steps, "haptic %s", name)
	}
	for _, name := range []string{"flash_low", "flash_medium", "flash_bright", "flash_urgent", "constant", "gentle_pulse"} {
		assert.NotEmpty(t, c.VisualPattern(name).Steps, "visual %s", name)
	}
}

func TestUnknownPatternFallsBack(t *testing.T) {
	c := Default()

	assert.Equal(t, DefaultHapticPattern, c.HapticPattern("no_such_pattern").Name)
	assert.Equal(t, DefaultVisualPattern, c.VisualPattern("no_such_pattern").Name)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.json")
	raw := `{
		"car_horn": {"label": "Car horn", "priority": "high", "haptic_pattern": "short_triple", "visual_pattern": "flash_urgent"},
		"microwave_beep": {"label": "Oven", "priority": "low"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	c, err := Load(path)
	require.NoError(t, err)

	horn, ok := c.Resolve("car_horn")
	require.True(t, ok)
	assert.Equal(t, models.PriorityHigh, horn.Priority)
	assert.Equal(t, "short_triple", horn.HapticPattern)

	// merged entry overrides the default and fills missing patterns
	oven, ok := c.Resolve("microwave_beep")
	require.True(t, ok)
	assert.Equal(t, "Oven", oven.Label)
	assert.Equal(t, models.PriorityLow, oven.Priority)
	assert.Equal(t, DefaultHapticPattern, oven.HapticPattern)

	// untouched defaults survive
	_, ok = c.Resolve("doorbell")
	assert.True(t, ok)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Len(t, c.EventTypes(), 4)
}

func TestLoadBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
