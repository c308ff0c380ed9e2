package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type nopConn struct{}

func (nopConn) Write(context.Context, any) error { return nil }
func (nopConn) Close(error) error               { return nil }

func TestSession_EndsDisconnected(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &Session{
		id:     "test",
		conn:   nopConn{},
		cfg:    Config{}.withDefaults(),
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	assert.Equal(t, StateConnecting, s.State())

	// A nil source would panic if the loop fetched after cancellation.
	assert.NoError(t, s.Run(ctx))
	assert.Equal(t, StateDisconnected, s.State())
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateConnecting:   "connecting",
		StateConnected:    "connected",
		StateFetch:        "fetch",
		StateAdjust:       "adjust",
		StateSend:         "send",
		StateWait:         "wait",
		StateDisconnected: "disconnected",
		State(42):         "state(42)",
	}
	for state, want := range tests {
		assert.Equal(t, want, state.String())
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{Interval: time.Second}.withDefaults()
	assert.Equal(t, time.Second, cfg.Interval)
	assert.Equal(t, DefaultErrorBackoff, cfg.ErrorBackoff)
	assert.Equal(t, DefaultWriteTimeout, cfg.WriteTimeout)
}

func TestSleep(t *testing.T) {
	assert.True(t, sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleep(ctx, time.Hour))
}
