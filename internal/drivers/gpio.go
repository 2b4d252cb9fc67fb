package drivers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"sensebridge/internal/logging"
)

const gpioRoot = "/sys/class/gpio"

// GPIODriver drives a single BCM pin through the sysfs interface. Intensity
// above zero turns the pin on; these are on/off actuators (vibration motor,
// LED), so brightness grading is left to the pattern's duty cycle.
type GPIODriver struct {
	pin    int
	root   string
	logger *logging.Logger
}

// NewGPIODriver exports the pin and configures it as an output.
func NewGPIODriver(pin int, logger *logging.Logger) (*GPIODriver, error) {
	return newGPIODriver(pin, gpioRoot, logger)
}

func newGPIODriver(pin int, root string, logger *logging.Logger) (*GPIODriver, error) {
	d := &GPIODriver{pin: pin, root: root, logger: logger}

	pinDir := filepath.Join(root, fmt.Sprintf("gpio%d", pin))
	if _, err := os.Stat(pinDir); os.IsNotExist(err) {
		if err := os.WriteFile(filepath.Join(root, "export"), []byte(strconv.Itoa(pin)), 0644); err != nil {
			return nil, fmt.Errorf("export gpio %d: %w", pin, err)
		}
	}
	if err := os.WriteFile(filepath.Join(pinDir, "direction"), []byte("out"), 0644); err != nil {
		return nil, fmt.Errorf("set gpio %d direction: %w", pin, err)
	}
	return d, nil
}

func (d *GPIODriver) write(value string) error {
	path := filepath.Join(d.root, fmt.Sprintf("gpio%d", d.pin), "value")
	if err := os.WriteFile(path, []byte(value), 0644); err != nil {
		return fmt.Errorf("write gpio %d: %w", d.pin, err)
	}
	return nil
}

func (d *GPIODriver) Activate(ctx context.Context, intensity float64) error {
	if intensity <= 0 {
		return d.write("0")
	}
	return d.write("1")
}

func (d *GPIODriver) Deactivate(ctx context.Context) error {
	return d.write("0")
}

// Close releases the pin, leaving it deactivated.
func (d *GPIODriver) Close() error {
	if err := d.write("0"); err != nil {
		d.logger.Warnf("GPIO %d cleanup write failed: %v", d.pin, err)
	}
	return os.WriteFile(filepath.Join(d.root, "unexport"), []byte(strconv.Itoa(d.pin)), 0644)
}
