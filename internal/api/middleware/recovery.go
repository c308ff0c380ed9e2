package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/greenguard/greenguard/internal/api/models"
)

// Recovery turns a handler panic into a 500 Problem response.
//
// A panic after the handler started its response, or after a websocket
// upgrade took over the connection, is logged but nothing more is written:
// the client already holds a partial body or a raw socket. http.ErrAbortHandler
// is re-raised so net/http aborts the connection quietly.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := newResponseWriter(w)

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				requestID := GetRequestID(r.Context())
				log.Error().
					Str("request_id", requestID).
					Str("method", r.Method).
					Str("route", routePattern(r)).
					Bool("upgraded", wrapped.hijacked).
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("handler panicked")

				if wrapped.committed() {
					return
				}
				models.NewInternalError(requestID, "an unexpected error occurred").
					WithInstance(r.URL.Path).
					Write(wrapped)
			}()

			next.ServeHTTP(wrapped, r)
		})
	}
}
