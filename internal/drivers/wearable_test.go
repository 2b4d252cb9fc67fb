package drivers

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sensebridge/internal/logging"
)

// pipeDial hands the driver one end of a pipe and collects JSON lines from
// the other.
func pipeDial(t *testing.T) (func(context.Context, string) (net.Conn, error), <-chan wearableCommand) {
	t.Helper()
	commands := make(chan wearableCommand, 16)

	dial := func(ctx context.Context, addr string) (net.Conn, error) {
		client, server := net.Pipe()
		go func() {
			scanner := bufio.NewScanner(server)
			for scanner.Scan() {
				var cmd wearableCommand
				if err := json.Unmarshal(scanner.Bytes(), &cmd); err != nil {
					continue
				}
				commands <- cmd
			}
		}()
		return client, nil
	}
	return dial, commands
}

func newPipeDriver(t *testing.T) (*WearableDriver, <-chan wearableCommand) {
	t.Helper()
	d := NewWearableDriver("wearable:1", time.Second, logging.NewNop())
	dial, commands := pipeDial(t)
	d.dial = dial
	return d, commands
}

func recvCommand(t *testing.T, ch <-chan wearableCommand) wearableCommand {
	t.Helper()
	select {
	case cmd := <-ch:
		return cmd
	case <-time.After(time.Second):
		t.Fatal("no command received")
		return wearableCommand{}
	}
}

func TestWearableActivateSendsVibrate(t *testing.T) {
	d, commands := newPipeDriver(t)
	defer d.Close()

	require.NoError(t, d.Activate(context.Background(), 0.8))

	cmd := recvCommand(t, commands)
	assert.Equal(t, "vibrate", cmd.Cmd)
	assert.InDelta(t, 0.8, cmd.Params["intensity"].(float64), 1e-9)
}

func TestWearableDeactivateSendsStop(t *testing.T) {
	d, commands := newPipeDriver(t)
	defer d.Close()

	require.NoError(t, d.Deactivate(context.Background()))
	assert.Equal(t, "stop", recvCommand(t, commands).Cmd)
}

func TestWearableRedialsAfterWriteFailure(t *testing.T) {
	d := NewWearableDriver("wearable:1", time.Second, logging.NewNop())

	dials := 0
	goodDial, commands := pipeDial(t)
	d.dial = func(ctx context.Context, addr string) (net.Conn, error) {
		dials++
		if dials == 1 {
			// first connection dies immediately
			client, server := net.Pipe()
			_ = server.Close()
			return client, nil
		}
		return goodDial(ctx, addr)
	}
	defer d.Close()

	// first write hits the dead connection and drops it
	require.Error(t, d.Activate(context.Background(), 1.0))

	// next call redials and succeeds
	require.NoError(t, d.Activate(context.Background(), 1.0))
	assert.Equal(t, "vibrate", recvCommand(t, commands).Cmd)
	assert.Equal(t, 2, dials)
}

func TestWearableDialFailureIsRecoverable(t *testing.T) {
	d := NewWearableDriver("wearable:1", time.Second, logging.NewNop())
	d.dial = func(ctx context.Context, addr string) (net.Conn, error) {
		return nil, context.DeadlineExceeded
	}
	defer d.Close()

	assert.Error(t, d.Activate(context.Background(), 1.0))
	assert.Error(t, d.Deactivate(context.Background()))
}
