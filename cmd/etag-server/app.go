package main

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/always-cache/etag"
	"github.com/always-cache/etag/content"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const (
	nameKey     = "name"
	defaultName = "world"
)

// app is the demo application behind the ETag middleware.
type app struct {
	store content.Store
	log   zerolog.Logger
}

// newRouter mounts the demo routes behind mw.
// metrics is served outside of the ETag middleware if not nil.
func newRouter(a *app, mw *etag.Middleware, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	r.Group(func(r chi.Router) {
		r.Use(mw.Handler)
		r.Get("/hello", a.hello)
		r.Get("/streaming-hello", a.streamingHello)
		r.Post("/rename", a.rename)
		r.Get("/error", a.errorHello)
	})
	return r
}

func (a *app) name(w http.ResponseWriter) (string, bool) {
	name, ok, err := a.store.Get(nameKey)
	if err != nil {
		a.log.Error().Err(err).Msg("Could not read name")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return "", false
	}
	if !ok {
		name = defaultName
	}
	return name, true
}

func (a *app) hello(w http.ResponseWriter, r *http.Request) {
	name, ok := a.name(w)
	if !ok {
		return
	}
	body := fmt.Sprintf("Hello, %s!", name)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Write([]byte(body))
}

// streamingHello writes the greeting in flushed parts, without a Content-Length.
func (a *app) streamingHello(w http.ResponseWriter, r *http.Request) {
	name, ok := a.name(w)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	rc := http.NewResponseController(w)
	for _, part := range []string{"Hello, ", name, "!"} {
		if _, err := w.Write([]byte(part)); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			a.log.Trace().Err(err).Msg("Could not flush")
		}
	}
}

func (a *app) rename(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("new_name")
	if name == "" {
		http.Error(w, "new_name is required", http.StatusBadRequest)
		return
	}
	if err := a.store.Put(nameKey, name); err != nil {
		a.log.Error().Err(err).Msg("Could not store name")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	a.log.Debug().Str("name", name).Msg("Renamed")
	w.WriteHeader(http.StatusOK)
}

func (a *app) errorHello(w http.ResponseWriter, r *http.Request) {
	name, ok := a.name(w)
	if !ok {
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
	fmt.Fprintf(w, "Hello, %s!", name)
}
