// Package realtime streams adjusted air-quality updates to connected clients
// on a fixed cadence.
package realtime

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/greenguard/greenguard/internal/conditions"
)

const (
	// DefaultInterval is the pause between successful updates.
	DefaultInterval = 15 * time.Second

	// DefaultErrorBackoff is the pause after a failed fetch.
	DefaultErrorBackoff = 10 * time.Second

	// DefaultWriteTimeout bounds a single frame write.
	DefaultWriteTimeout = 10 * time.Second
)

// State is a session's position in its lifecycle.
type State int32

// Session states. A session loops Fetch, Adjust, Send, Wait until it reaches
// Disconnected, which is terminal.
const (
	StateConnecting State = iota
	StateConnected
	StateFetch
	StateAdjust
	StateSend
	StateWait
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFetch:
		return "fetch"
	case StateAdjust:
		return "adjust"
	case StateSend:
		return "send"
	case StateWait:
		return "wait"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Conn is the transport a session writes frames to.
type Conn interface {
	// Write sends one JSON frame.
	Write(ctx context.Context, v any) error

	// Close releases the transport. A nil cause closes gracefully; otherwise
	// the transport is considered broken and is dropped immediately.
	Close(cause error) error
}

// Source supplies readings and adjusts them.
type Source interface {
	Readings(ctx context.Context, lat, lon float64) (*conditions.Readings, error)
	Adjust(r *conditions.Readings) *conditions.Current
}

// AlertFlags reports whether alerts should be omitted from updates.
type AlertFlags interface {
	IsRealtimeAlertsDisabled(ctx context.Context) bool
}

// Config controls session cadence.
type Config struct {
	Interval     time.Duration
	ErrorBackoff time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns the standard cadence.
func DefaultConfig() Config {
	return Config{
		Interval:     DefaultInterval,
		ErrorBackoff: DefaultErrorBackoff,
		WriteTimeout: DefaultWriteTimeout,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = d.ErrorBackoff
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	return c
}

// Session is one client's streaming loop.
type Session struct {
	id     string
	lat    float64
	lon    float64
	conn   Conn
	source Source
	flags  AlertFlags
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time

	state   atomic.Int32
	updates atomic.Int64
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Updates returns how many realtime updates have been sent.
func (s *Session) Updates() int64 {
	return s.updates.Load()
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Run drives the session until ctx is done or a write fails. It returns nil
// when the session ended because ctx was canceled.
func (s *Session) Run(ctx context.Context) error {
	defer s.setState(StateDisconnected)

	if err := s.write(ctx, newConnectionEstablished(s.now())); err != nil {
		return s.sendFailed(ctx, err)
	}
	s.setState(StateConnected)

	for ctx.Err() == nil {
		s.setState(StateFetch)
		readings, err := s.source.Readings(ctx, s.lat, s.lon)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn().Err(err).Msg("realtime fetch failed, backing off")

			s.setState(StateSend)
			if err := s.write(ctx, newErrorFrame(err, s.now())); err != nil {
				return s.sendFailed(ctx, err)
			}

			s.setState(StateWait)
			if !sleep(ctx, s.cfg.ErrorBackoff) {
				return nil
			}
			continue
		}

		s.setState(StateAdjust)
		current := s.source.Adjust(readings)
		alerts := s.flags == nil || !s.flags.IsRealtimeAlertsDisabled(ctx)
		update := newUpdate(s.lat, s.lon, readings, current, alerts)

		s.setState(StateSend)
		if err := s.write(ctx, update); err != nil {
			return s.sendFailed(ctx, err)
		}
		s.updates.Add(1)

		s.setState(StateWait)
		if !sleep(ctx, s.cfg.Interval) {
			return nil
		}
	}
	return nil
}

func (s *Session) write(ctx context.Context, v any) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()
	return s.conn.Write(ctx, v)
}

// sendFailed maps a write error to the session result. Writes interrupted by
// the session's own cancellation are not failures.
func (s *Session) sendFailed(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("sending frame: %w", err)
}

// sleep waits for d or until ctx is done, reporting whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
