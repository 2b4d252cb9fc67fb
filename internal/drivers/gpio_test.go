package drivers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sensebridge/internal/logging"
)

// fakeSysfs lays out an already-exported pin directory.
func fakeSysfs(t *testing.T, pin int) string {
	t.Helper()
	root := t.TempDir()
	pinDir := filepath.Join(root, "gpio18")
	require.NoError(t, os.MkdirAll(pinDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "unexport"), nil, 0644))
	return root
}

func readValue(t *testing.T, root string) string {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(root, "gpio18", "value"))
	require.NoError(t, err)
	return string(raw)
}

func TestGPIOActivateDeactivate(t *testing.T) {
	root := fakeSysfs(t, 18)
	d, err := newGPIODriver(18, root, logging.NewNop())
	require.NoError(t, err)

	require.NoError(t, d.Activate(context.Background(), 1.0))
	assert.Equal(t, "1", readValue(t, root))

	require.NoError(t, d.Deactivate(context.Background()))
	assert.Equal(t, "0", readValue(t, root))
}

func TestGPIOZeroIntensityWritesOff(t *testing.T) {
	root := fakeSysfs(t, 18)
	d, err := newGPIODriver(18, root, logging.NewNop())
	require.NoError(t, err)

	require.NoError(t, d.Activate(context.Background(), 0))
	assert.Equal(t, "0", readValue(t, root))
}

func TestGPIOCloseLeavesPinOff(t *testing.T) {
	root := fakeSysfs(t, 18)
	d, err := newGPIODriver(18, root, logging.NewNop())
	require.NoError(t, err)

	require.NoError(t, d.Activate(context.Background(), 1.0))
	require.NoError(t, d.Close())
	assert.Equal(t, "0", readValue(t, root))
}

func TestGPIOMissingSysfs(t *testing.T) {
	_, err := newGPIODriver(18, filepath.Join(t.TempDir(), "nope"), logging.NewNop())
	assert.Error(t, err)
}
