package etag

import (
	"net/http"
)

// eventWriter is a wrapper around http.ResponseWriter that turns the
// handler's output into events.
// The last written chunk is held back until it is known whether more follow,
// so a body written with a single Write becomes a single final chunk.
type eventWriter struct {
	rw           http.ResponseWriter
	send         SendFunc
	header       http.Header
	wroteHeaders bool
	// started is set once the start event reached rw
	started      bool
	pending      []byte
	hasPending   bool
	err          error
}

// newEventWriter returns a writer whose events pass through filter before
// they are written to w.
func newEventWriter(w http.ResponseWriter, filter func(SendFunc) SendFunc) *eventWriter {
	ew := &eventWriter{
		rw:     w,
		header: http.Header{},
	}
	ew.send = filter(ew.sendDownstream)
	return ew
}

func (w *eventWriter) sendDownstream(e Event) error {
	if _, ok := e.(*Start); ok {
		w.started = true
	}
	return ResponseSender(w.rw)(e)
}

// Implementation of http.ResponseWriter
func (w *eventWriter) Header() http.Header {
	return w.header
}

// Implementation of http.ResponseWriter
func (w *eventWriter) WriteHeader(statusCode int) {
	if w.wroteHeaders {
		return
	}
	// informational responses do not start the final response
	if statusCode >= 100 && statusCode < 200 && statusCode != http.StatusSwitchingProtocols {
		copyHeader(w.rw.Header(), w.header)
		w.rw.WriteHeader(statusCode)
		return
	}
	w.wroteHeaders = true
	w.err = w.send(&Start{Status: statusCode, Header: w.header})
}

// Implementation of http.ResponseWriter
func (w *eventWriter) Write(b []byte) (int, error) {
	if !w.wroteHeaders {
		w.WriteHeader(http.StatusOK)
	}
	if w.err != nil {
		return 0, w.err
	}
	if err := w.sendPending(); err != nil {
		return 0, err
	}
	// b may be reused by the caller after we return
	w.pending = append([]byte(nil), b...)
	w.hasPending = true
	return len(b), nil
}

// Flush sends the held back chunk and flushes the underlying writer.
// Nothing is flushed while the response start is withheld.
func (w *eventWriter) Flush() {
	if !w.wroteHeaders {
		w.WriteHeader(http.StatusOK)
	}
	if w.err != nil {
		return
	}
	if err := w.sendPending(); err != nil {
		return
	}
	if f, ok := w.rw.(http.Flusher); ok && w.started {
		f.Flush()
	}
}

// Unwrap returns the underlying writer, for http.ResponseController.
func (w *eventWriter) Unwrap() http.ResponseWriter {
	return w.rw
}

func (w *eventWriter) sendPending() error {
	if !w.hasPending {
		return nil
	}
	w.hasPending = false
	w.err = w.send(&Body{Chunk: w.pending, More: true})
	w.pending = nil
	return w.err
}

// finish sends the final chunk. It must be called once the handler returned.
func (w *eventWriter) finish() error {
	if !w.wroteHeaders {
		w.WriteHeader(http.StatusOK)
	}
	if w.err != nil {
		return w.err
	}
	w.hasPending = false
	w.err = w.send(&Body{Chunk: w.pending, More: false})
	w.pending = nil
	return w.err
}

// ResponseSender returns a SendFunc writing events to w.
func ResponseSender(w http.ResponseWriter) SendFunc {
	return func(e Event) error {
		switch e := e.(type) {
		case *Start:
			copyHeader(w.Header(), e.Header)
			w.WriteHeader(e.Status)
		case *Body:
			if len(e.Chunk) > 0 {
				_, err := w.Write(e.Chunk)
				return err
			}
		}
		return nil
	}
}

// copyHeader replaces the values in dst with those in src, key by key.
func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		dst[k] = append([]string(nil), vv...)
	}
}
