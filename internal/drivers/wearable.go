package drivers

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"sensebridge/internal/logging"
)

// wearableCommand is the JSON line protocol spoken by the wearable relay.
type wearableCommand struct {
	Cmd    string                 `json:"cmd"`
	Params map[string]interface{} `json:"params"`
}

// WearableDriver relays vibration commands to a body-worn device over a
// stream socket (an RFCOMM bridge or TCP relay, both look like a net.Conn).
// The connection is dialed lazily and dropped on write failure so the next
// command retries a fresh dial.
type WearableDriver struct {
	addr    string
	dial    func(ctx context.Context, addr string) (net.Conn, error)
	timeout time.Duration
	logger  *logging.Logger

	mu   sync.Mutex
	conn net.Conn
}

// NewWearableDriver builds a driver for the relay at addr ("host:port").
func NewWearableDriver(addr string, timeout time.Duration, logger *logging.Logger) *WearableDriver {
	return &WearableDriver{
		addr:    addr,
		timeout: timeout,
		logger:  logger,
		dial: func(ctx context.Context, addr string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "tcp", addr)
		},
	}
}

func (d *WearableDriver) send(ctx context.Context, cmd wearableCommand) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil {
		conn, err := d.dial(ctx, d.addr)
		if err != nil {
			return fmt.Errorf("dial wearable %s: %w", d.addr, err)
		}
		d.logger.Infof("Connected to wearable at %s", d.addr)
		d.conn = conn
	}

	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal wearable command: %w", err)
	}
	payload = append(payload, '\n')

	if deadline, ok := ctx.Deadline(); ok {
		_ = d.conn.SetWriteDeadline(deadline)
	} else {
		_ = d.conn.SetWriteDeadline(time.Now().Add(d.timeout))
	}

	if _, err := d.conn.Write(payload); err != nil {
		// drop the connection; the next command redials
		_ = d.conn.Close()
		d.conn = nil
		return fmt.Errorf("write wearable command: %w", err)
	}
	return nil
}

func (d *WearableDriver) Activate(ctx context.Context, intensity float64) error {
	return d.send(ctx, wearableCommand{
		Cmd:    "vibrate",
		Params: map[string]interface{}{"intensity": intensity},
	})
}

func (d *WearableDriver) Deactivate(ctx context.Context) error {
	return d.send(ctx, wearableCommand{
		Cmd:    "stop",
		Params: map[string]interface{}{},
	})
}

// Close drops the relay connection if one is open.
func (d *WearableDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}
