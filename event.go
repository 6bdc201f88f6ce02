package etag

import (
	"errors"
	"net/http"
)

var (
	// ErrNotAttached is returned when an event is forwarded before the downstream
	// channel has been attached. It signals a usage error, not a runtime condition.
	ErrNotAttached = errors.New("etag: send func not attached")
	// ErrNoStart is returned when a body event arrives before the response start.
	ErrNoStart = errors.New("etag: body event before response start")
	// ErrUnknownEvent is returned for event types other than *Start and *Body.
	ErrUnknownEvent = errors.New("etag: unknown event")
)

// Event is a single step of an outgoing response: exactly one *Start
// followed by one or more *Body, the last of which has More set to false.
type Event interface {
	event()
}

// Start begins a response.
// A responder may hold on to it and mutate it until it is forwarded.
type Start struct {
	Status int
	Header http.Header
}

// Body carries one chunk of the response body.
type Body struct {
	Chunk []byte
	// More is true if further chunks follow.
	More bool
}

func (*Start) event() {}
func (*Body) event()  {}

// SendFunc delivers an event downstream.
type SendFunc func(Event) error
