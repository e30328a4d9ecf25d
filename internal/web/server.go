// Package web serves the bathroom-fan status page, its JSON form and the
// Prometheus metrics over plain HTTP.
package web

import (
	"context"
	"net/http"

	"github.com/sweeney/bathroom-fan/internal/status"
)

// Server exposes the fan status tracker over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
}

// New builds a Server on addr. Routes:
//
//	/, /index.html  status page
//	/index.json     status snapshot as JSON
//	/metrics        metrics, when a handler is given
func New(addr string, tracker *status.Tracker, metrics http.Handler) *Server {
	s := &Server{tracker: tracker}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleStatusPage)
	mux.HandleFunc("/index.html", s.handleStatusPage)
	mux.HandleFunc("/index.json", s.handleStatusJSON)
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}

	s.httpServer = &http.Server{Addr: addr, Handler: mux}
	return s
}

// ListenAndServe blocks until the server fails or is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleStatusPage renders the fan state, its inputs and the daemon settings.
// The mux sends every unmatched path here, so anything else is a 404.
func (s *Server) handleStatusPage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, s.tracker.Snapshot())
}

func (s *Server) handleStatusJSON(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(s.tracker.Snapshot()))
}
