package drivers

import (
	"context"

	"sensebridge/internal/logging"
)

// Driver is the channel actuator contract. Implementations must tolerate
// repeated Deactivate calls; the sequencer issues a safety deactivate on
// every shutdown path. Calls carry a short-timeout context; a timeout is a
// recoverable per-call failure, never a pipeline stall.
type Driver interface {
	Activate(ctx context.Context, intensity float64) error
	Deactivate(ctx context.Context) error
}

// NullDriver satisfies Driver without hardware. Selected by configuration
// when no GPIO or wearable is attached, and used for simulation runs.
type NullDriver struct {
	name   string
	logger *logging.Logger
}

// NewNullDriver builds a simulation driver labelled with a channel name.
func NewNullDriver(name string, logger *logging.Logger) *NullDriver {
	return &NullDriver{name: name, logger: logger}
}

func (d *NullDriver) Activate(ctx context.Context, intensity float64) error {
	d.logger.Debugf("[sim] %s on (intensity %.2f)", d.name, intensity)
	return nil
}

func (d *NullDriver) Deactivate(ctx context.Context) error {
	d.logger.Debugf("[sim] %s off", d.name)
	return nil
}
