package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/greenguard/greenguard/internal/api/middleware"
	"github.com/greenguard/greenguard/internal/realtime"
)

// StreamServer runs a realtime session over an accepted connection.
type StreamServer interface {
	Serve(ctx context.Context, conn realtime.Conn, lat, lon float64) error
}

// RealtimeHandler upgrades requests to realtime monitoring streams.
type RealtimeHandler struct {
	hub     StreamServer
	origins []string
	logger  zerolog.Logger
}

// NewRealtimeHandler creates a new RealtimeHandler. allowedOrigins are the
// CORS origins; they are reduced to host patterns for the origin check.
func NewRealtimeHandler(hub StreamServer, allowedOrigins []string, logger zerolog.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		hub:     hub,
		origins: OriginPatterns(allowedOrigins),
		logger:  logger,
	}
}

// Monitor handles GET /ws/realtime-monitoring - streams AQI and weather
// updates until the client disconnects.
func (h *RealtimeHandler) Monitor(w http.ResponseWriter, r *http.Request) {
	loc, errs := parseLocation(r.URL.Query(), &location{lat: DefaultLatitude, lon: DefaultLongitude})
	if len(errs) > 0 {
		writeValidation(w, r, errs)
		return
	}

	// The stream outlives the server's read and write timeouts.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	logger := h.logger.With().Str("request_id", middleware.GetRequestID(r.Context())).Logger()

	conn, ctx, err := realtime.Accept(w, r, realtime.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		// Accept has already written the failure response.
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	if err := h.hub.Serve(ctx, conn, loc.lat, loc.lon); err != nil {
		if errors.Is(err, realtime.ErrHubClosed) {
			logger.Debug().Msg("rejected stream during shutdown")
			return
		}
		logger.Debug().Err(err).Msg("realtime stream ended with error")
	}
}

// OriginPatterns converts allowed origins such as "https://example.com" into
// the host patterns expected by the websocket origin check.
func OriginPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, origin := range origins {
		if origin == "*" {
			patterns = append(patterns, origin)
			continue
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			patterns = append(patterns, origin)
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns
}
