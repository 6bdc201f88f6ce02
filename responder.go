package etag

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
)

// Responder mediates the events of a single response.
// It is not safe for concurrent use; events must be sent in order.
type Responder interface {
	Send(Event) error
}

// responder holds the per-response state shared by both variants.
type responder struct {
	send        SendFunc
	minimumSize int
	ifNoneMatch string
	log         zerolog.Logger
	metrics     *Metrics
	// delay is true while the start is withheld
	delay bool
	start *Start
}

func (r *responder) forward(e Event) error {
	if r.send == nil {
		return ErrNotAttached
	}
	return r.send(e)
}

// release forwards the withheld start followed by b.
func (r *responder) release(b *Body) error {
	r.delay = false
	if err := r.forward(r.start); err != nil {
		return err
	}
	return r.forward(b)
}

// passthrough stops delaying and forwards s right away.
func (r *responder) passthrough(s *Start, reason string) error {
	r.log.Trace().Int("status", s.Status).Msgf("Not fingerprinting: %s", reason)
	r.delay = false
	return r.forward(s)
}

// match sets the ETag header on the withheld start and, if the client
// already has body, turns the response into 304 Not Modified.
func (r *responder) match(body []byte, b *Body) {
	tag := Fingerprint(body)
	r.metrics.observeSize(len(body))
	r.start.Header.Set("ETag", tag)
	if r.ifNoneMatch == "" || stripWeak(r.ifNoneMatch) != tag {
		r.log.Trace().Str("etag", tag).Int("size", len(body)).Msg("ETag set")
		r.metrics.record(ResultMiss)
		return
	}
	// the body is about to become empty
	r.start.Header.Del("Content-Length")
	r.start.Status = http.StatusNotModified
	b.Chunk = []byte{}
	r.log.Trace().Str("etag", tag).Msg("If-None-Match matched, sending 304")
	r.metrics.record(ResultHit)
}

// sizedResponder relies on the declared Content-Length and expects the
// whole body in a single chunk.
type sizedResponder struct {
	responder
}

// Send implements Responder.
func (r *sizedResponder) Send(e Event) error {
	switch e := e.(type) {
	case *Start:
		return r.onStart(e)
	case *Body:
		return r.onBody(e)
	}
	return fmt.Errorf("%w: %T", ErrUnknownEvent, e)
}

func (r *sizedResponder) onStart(s *Start) error {
	if s.Status != http.StatusOK {
		r.metrics.record(ResultPassthrough)
		return r.passthrough(s, "status not 200")
	}
	contentLength := s.Header.Get("Content-Length")
	if contentLength == "" {
		// streaming response without a known size
		r.metrics.record(ResultPassthrough)
		return r.passthrough(s, "no Content-Length")
	}
	size, err := strconv.Atoi(contentLength)
	if err != nil {
		r.log.Warn().Err(err).Str("contentLength", contentLength).Msg("Invalid Content-Length")
		r.metrics.record(ResultPassthrough)
		return r.passthrough(s, "invalid Content-Length")
	}
	if size < r.minimumSize {
		r.metrics.record(ResultSmall)
		return r.passthrough(s, "below minimum size")
	}
	r.log.Trace().Int("size", size).Msg("Withholding response start")
	r.start = s
	return nil
}

func (r *sizedResponder) onBody(b *Body) error {
	if !r.delay {
		return r.forward(b)
	}
	if r.start == nil {
		return ErrNoStart
	}
	if b.More {
		// more chunks than the declared size suggests; give up on this response
		r.log.Trace().Msg("Sized response arrived in chunks, not fingerprinting")
		r.metrics.record(ResultEscaped)
		return r.release(b)
	}
	if len(b.Chunk) >= r.minimumSize {
		r.match(b.Chunk, b)
	} else {
		r.metrics.record(ResultSmall)
	}
	return r.release(b)
}
