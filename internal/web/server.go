// Package web provides an HTTP status server for the ir-sensor daemon.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/sweeney/ir-sensor/internal/channel"
	"github.com/sweeney/ir-sensor/internal/status"
)

// Resetter zeroes a channel's count and reports what it was.
type Resetter interface {
	TakeCount(index int) (uint32, error)
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	resetter   Resetter
}

// ResetResponse is returned by POST /reset.
type ResetResponse struct {
	Channel  int    `json:"channel"`
	Previous uint32 `json:"previous"`
}

// New creates a Server that reads state from the given tracker. A nil
// resetter disables the reset endpoint.
func New(addr string, tracker *status.Tracker, resetter Resetter) *Server {
	s := &Server{tracker: tracker, resetter: resetter}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/reset", s.handleReset)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.resetter == nil {
		http.NotFound(w, r)
		return
	}

	idx, err := strconv.Atoi(r.FormValue("channel"))
	if err != nil {
		http.Error(w, "channel must be an integer", http.StatusBadRequest)
		return
	}

	prev, err := s.resetter.TakeCount(idx)
	if errors.Is(err, channel.ErrIndexOutOfRange) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ResetResponse{Channel: idx, Previous: prev})
}
