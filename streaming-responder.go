package etag

import (
	"bytes"
	"fmt"
	"net/http"
)

// streamingResponder buffers the body until the last chunk arrives,
// since the size is never known upfront.
type streamingResponder struct {
	responder
	buf *bytes.Buffer
}

// Send implements Responder.
func (r *streamingResponder) Send(e Event) error {
	switch e := e.(type) {
	case *Start:
		return r.onStart(e)
	case *Body:
		return r.onBody(e)
	}
	return fmt.Errorf("%w: %T", ErrUnknownEvent, e)
}

func (r *streamingResponder) onStart(s *Start) error {
	if s.Status != http.StatusOK {
		r.metrics.record(ResultPassthrough)
		return r.passthrough(s, "status not 200")
	}
	r.log.Trace().Msg("Withholding response start")
	r.start = s
	return nil
}

func (r *streamingResponder) onBody(b *Body) error {
	if !r.delay {
		return r.forward(b)
	}
	if r.start == nil {
		return ErrNoStart
	}

	if r.buf != nil {
		if len(b.Chunk) > 0 {
			r.buf.Write(b.Chunk)
		}
	} else if b.More {
		r.buf = bytes.NewBuffer(make([]byte, 0, 2*len(b.Chunk)))
		r.buf.Write(b.Chunk)
		return nil
	}
	if b.More {
		// wait for the next chunk
		return nil
	}

	if r.buf != nil {
		b.Chunk = r.buf.Bytes()
		r.buf = nil
	}
	if len(b.Chunk) < r.minimumSize {
		r.log.Trace().Int("size", len(b.Chunk)).Msg("Not fingerprinting: below minimum size")
		r.metrics.record(ResultSmall)
	} else {
		r.match(b.Chunk, b)
	}
	return r.release(b)
}
