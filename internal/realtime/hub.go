package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/greenguard/greenguard/internal/realtime"

// ErrHubClosed is returned by Serve after Shutdown.
var ErrHubClosed = errors.New("realtime hub is shut down")

// HubConfig holds configuration for the session hub.
type HubConfig struct {
	Source Source
	Flags  AlertFlags // optional
	Config Config
	Logger zerolog.Logger

	// Now overrides the clock used for frame timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Hub owns every active session so they can be counted and stopped together.
type Hub struct {
	source Source
	flags  AlertFlags
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time
	active metric.Int64UpDownCounter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	sessions map[string]*Session
}

// NewHub creates a hub.
func NewHub(cfg HubConfig) *Hub {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	active, err := otel.Meter(meterName).Int64UpDownCounter(
		"realtime.sessions.active",
		metric.WithDescription("Number of open realtime monitoring sessions"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		cfg.Logger.Warn().Err(err).Msg("failed to create realtime session gauge")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		source:   cfg.Source,
		flags:    cfg.Flags,
		cfg:      cfg.Config.withDefaults(),
		logger:   cfg.Logger,
		now:      now,
		active:   active,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
}

// Count returns the number of active sessions.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Serve runs a session for conn until ctx is done, the hub shuts down or a
// write fails. conn is closed before Serve returns.
func (h *Hub) Serve(ctx context.Context, conn Conn, lat, lon float64) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(h.ctx, cancel)
	defer stop()

	s := &Session{
		id:     uuid.NewString(),
		lat:    lat,
		lon:    lon,
		conn:   conn,
		source: h.source,
		flags:  h.flags,
		cfg:    h.cfg,
		now:    h.now,
	}
	s.logger = h.logger.With().
		Str("session_id", s.id).
		Float64("lat", lat).
		Float64("lon", lon).
		Logger()

	if !h.add(s) {
		_ = conn.Close(nil)
		return ErrHubClosed
	}
	defer h.remove(s)

	s.logger.Info().Msg("realtime session connected")

	err := s.Run(ctx)
	closeErr := conn.Close(err)

	event := s.logger.Info()
	if err != nil {
		event = s.logger.Warn().Err(err)
	}
	event.Int64("updates", s.Updates()).Msg("realtime session disconnected")

	if err != nil {
		return err
	}
	if closeErr != nil {
		s.logger.Debug().Err(closeErr).Msg("closing realtime transport")
	}
	return nil
}

// Shutdown stops every session and waits for them to finish or for ctx to
// be done. New sessions are refused afterwards.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) add(s *Session) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.sessions[s.id] = s
	h.wg.Add(1)
	h.mu.Unlock()

	if h.active != nil {
		h.active.Add(context.Background(), 1)
	}
	return true
}

func (h *Hub) remove(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s.id)
	h.mu.Unlock()

	if h.active != nil {
		h.active.Add(context.Background(), -1)
	}
	h.wg.Done()
}
