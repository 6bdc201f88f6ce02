package etag

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"
)

// DefaultMinimumSize is the body size below which no ETag is computed.
const DefaultMinimumSize = 80

type Config struct {
	// Bodies smaller than this are sent without an ETag.
	// DefaultMinimumSize is used if zero or negative.
	MinimumSize int
	// Buffer the body until the last chunk instead of relying on Content-Length.
	// Use it if handlers stream their responses.
	Streaming bool
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// Optional metrics. Nothing is recorded if nil.
	Metrics *Metrics
}

// Middleware adds ETag headers to GET responses and answers
// conditional requests with 304 Not Modified.
// It holds no per-request state and is safe for concurrent use.
type Middleware struct {
	minimumSize int
	streaming   bool
	log         zerolog.Logger
	metrics     *Metrics
}

// New creates the middleware from config.
func New(config Config) *Middleware {
	// use console logger if not specified in config
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}

	minimumSize := config.MinimumSize
	if minimumSize <= 0 {
		minimumSize = DefaultMinimumSize
	}

	return &Middleware{
		minimumSize: minimumSize,
		streaming:   config.Streaming,
		log:         logger.With().Bool("streaming", config.Streaming).Logger(),
		metrics:     config.Metrics,
	}
}

// Responder returns a new responder for the response to r.
// Events passed to it are forwarded to send, possibly delayed and modified.
func (m *Middleware) Responder(r *http.Request, send SendFunc) Responder {
	base := responder{
		send:        send,
		minimumSize: m.minimumSize,
		ifNoneMatch: r.Header.Get("If-None-Match"),
		log: m.log.With().
			Str("method", r.Method).
			Str("url", r.URL.String()).
			Logger(),
		metrics: m.metrics,
		delay:   true,
	}
	if m.streaming {
		return &streamingResponder{responder: base}
	}
	return &sizedResponder{responder: base}
}

// Filter wraps send for the response to r.
// Requests other than GET get send back unchanged.
func (m *Middleware) Filter(r *http.Request, send SendFunc) SendFunc {
	if r.Method != http.MethodGet {
		return send
	}
	return m.Responder(r, send).Send
}

// Handler returns next wrapped by the middleware.
// It can be used directly as chi middleware.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}
		ew := newEventWriter(w, func(send SendFunc) SendFunc {
			return m.Filter(r, send)
		})
		next.ServeHTTP(ew, r)
		if err := ew.finish(); err != nil {
			if errors.Is(err, ErrNotAttached) {
				m.log.Error().Err(err).Msg("Aborting response")
				panic(http.ErrAbortHandler)
			}
			m.log.Error().Err(err).Str("url", r.URL.String()).Msg("Could not write response to client")
		}
	})
}
