// Package web provides an HTTP status server for the mixer-panel daemon.
//
// Besides the status page it exposes the two shift-register frames:
//
//	/leds, /buttons            MSB-first bit string, one line of text
//	/leds.json, /buttons.json  {"width":16,"bits":"...","set":[10,1]}
//
// Frame views answer 503 until the panel has completed its first cycle.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"github.com/sweeney/mixer-panel/internal/bitframe"
	"github.com/sweeney/mixer-panel/internal/status"
)

// Server serves the panel view over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
}

// FrameJSON is the JSON form of a frame view. Set lists lit or pressed bit
// positions, highest first.
type FrameJSON struct {
	Width int    `json:"width"`
	Bits  string `json:"bits"`
	Set   []int  `json:"set"`
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker) *Server {
	s := &Server{tracker: tracker}

	leds := func(snap status.Snapshot) bitframe.Frame { return snap.Panel.LEDs }
	buttons := func(snap status.Snapshot) bitframe.Frame { return snap.Panel.Buttons }

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/leds", s.frameText(leds))
	mux.HandleFunc("/leds.json", s.frameJSON(leds))
	mux.HandleFunc("/buttons", s.frameText(buttons))
	mux.HandleFunc("/buttons.json", s.frameJSON(buttons))

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

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

// frame returns the selected frame, or false after writing an error reply.
func (s *Server) frame(w http.ResponseWriter, r *http.Request, pick func(status.Snapshot) bitframe.Frame) (bitframe.Frame, bool) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return bitframe.Frame{}, false
	}
	snap := s.tracker.Snapshot()
	if !snap.Ready {
		http.Error(w, "no frame yet", http.StatusServiceUnavailable)
		return bitframe.Frame{}, false
	}
	return pick(snap), true
}

func (s *Server) frameText(pick func(status.Snapshot) bitframe.Frame) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, ok := s.frame(w, r, pick)
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, f.String())
	}
}

func (s *Server) frameJSON(pick func(status.Snapshot) bitframe.Frame) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, ok := s.frame(w, r, pick)
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(frameJSON(f))
	}
}

func frameJSON(f bitframe.Frame) FrameJSON {
	out := FrameJSON{Width: f.Width(), Bits: f.String(), Set: []int{}}
	for i := f.Width() - 1; i >= 0; i-- {
		if f.Test(i) {
			out.Set = append(out.Set, i)
		}
	}
	return out
}
