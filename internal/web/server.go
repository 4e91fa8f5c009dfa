// Package web serves the extraction-session HTTP interface: a status page,
// its JSON form, and the log tree for download and deletion.
package web

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"net"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/sweeney/dutycycle-logger/internal/datalog"
	"github.com/sweeney/dutycycle-logger/internal/status"
)

// Server serves the status page and log files over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	logRoot    string
}

// New creates a Server that reads state from tracker and serves files
// below logRoot.
func New(addr string, tracker *status.Tracker, logRoot string) *Server {
	s := &Server{tracker: tracker, logRoot: logRoot}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/logs/", s.handleLogs)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the request router. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
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
	if err := renderHTML(w, snap); err != nil {
		log.Printf("web: render index: %v", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		http.StripPrefix("/logs/", http.FileServer(http.Dir(s.logRoot))).ServeHTTP(w, r)
	case http.MethodDelete:
		s.deleteLog(w, r)
	default:
		w.Header().Set("Allow", "GET, HEAD, DELETE")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) deleteLog(w http.ResponseWriter, r *http.Request) {
	path, ok := resolveLogPath(s.logRoot, strings.TrimPrefix(r.URL.Path, "/logs/"))
	if !ok {
		http.Error(w, "bad log path", http.StatusBadRequest)
		return
	}
	if err := datalog.Delete(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		log.Printf("web: delete %s: %v", path, err)
		http.Error(w, "delete failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// resolveLogPath maps a URL-relative path to a .csv file inside root.
// Anything that escapes root or names a non-log file is rejected.
func resolveLogPath(root, rel string) (string, bool) {
	if rel == "" || strings.HasPrefix(rel, "/") || filepath.Ext(rel) != ".csv" {
		return "", false
	}
	for _, part := range strings.Split(rel, "/") {
		if part == ".." {
			return "", false
		}
	}
	return filepath.Join(root, filepath.FromSlash(rel)), true
}
