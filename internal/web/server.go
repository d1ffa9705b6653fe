// Package web serves the dashboard page, pushes views to browsers over a
// websocket and forwards operator commands to the controller.
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"energydash/internal/backend"
	"energydash/internal/dashboard"
	"energydash/internal/flow"

	"github.com/NYTimes/gziphandler"
	"go.uber.org/zap"
)

// Commander is the part of the controller driven by the page
type Commander interface {
	SetMode(ctx context.Context, mode string) error
	SetOption(ctx context.Context, index int) error
	ResetError(ctx context.Context) error
	SetChargeSlider(watts float64)
	SetFeedSlider(watts float64)
	RequestCommand(cmd string) error
}

// ViewSource provides the static layout and the latest view
type ViewSource interface {
	Layout() flow.Layout
	Latest() (dashboard.View, bool)
}

// Server provides the dashboard HTTP endpoints
type Server struct {
	commander Commander
	views     ViewSource
	hub       *Hub
	logger    *zap.Logger
	page      []byte
	server    *http.Server
	handler   http.Handler
}

// NewServer creates the dashboard server. metrics may be nil to leave
// /metrics unregistered.
func NewServer(commander Commander, views ViewSource, hub *Hub, page PageOptions, metrics http.Handler, logger *zap.Logger, port int) *Server {
	s := &Server{
		commander: commander,
		views:     views,
		hub:       hub,
		logger:    logger,
		page:      []byte(RenderPage(views.Layout(), page)),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/view", s.handleGetView)
	mux.HandleFunc("/api/set", s.handleSet)
	mux.HandleFunc("/api/manual", s.handleManual)
	mux.HandleFunc("/health", s.handleHealth)
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}

	// the websocket needs the raw connection, everything else is compressed
	root := http.NewServeMux()
	root.HandleFunc("/ws", hub.ServeWS)
	root.Handle("/", gziphandler.GzipHandler(mux))
	s.handler = root

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      root,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the complete route tree
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		s.handleSitemap(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(s.page)
}

// handleGetView returns the latest view as JSON
func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	view, ok := s.views.Latest()
	if !ok {
		http.Error(w, "No state received yet", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

// setRequest accepts the option as number or numeric string, the way a
// select element submits it
type setRequest struct {
	Option     json.RawMessage `json:"option"`
	Mode       *string         `json:"mode"`
	ResetError *bool           `json:"reset_error"`
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req setRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	var err error
	switch {
	case len(req.Option) > 0:
		var index int
		index, err = parseOption(req.Option)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		err = s.commander.SetOption(ctx, index)
	case req.Mode != nil:
		err = s.commander.SetMode(ctx, *req.Mode)
	case req.ResetError != nil && *req.ResetError:
		err = s.commander.ResetError(ctx)
	default:
		http.Error(w, "Expected one of option, mode or reset_error", http.StatusBadRequest)
		return
	}

	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, backend.ErrInvalidMode) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	view, ok := s.views.Latest()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func parseOption(raw json.RawMessage) (int, error) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return 0, fmt.Errorf("option must be an integer")
	}
	n, err := strconv.Atoi(strings.TrimSpace(str))
	if err != nil {
		return 0, fmt.Errorf("option must be an integer")
	}
	return n, nil
}

// manualRequest carries exactly one of the slider values or a command
type manualRequest struct {
	Charge *float64 `json:"charge"`
	Feed   *float64 `json:"feed"`
	Cmd    string   `json:"cmd"`
}

func (s *Server) handleManual(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req manualRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch {
	case req.Charge != nil:
		s.commander.SetChargeSlider(*req.Charge)
	case req.Feed != nil:
		s.commander.SetFeedSlider(*req.Feed)
	case req.Cmd != "":
		if err := s.commander.RequestCommand(req.Cmd); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	default:
		http.Error(w, "Expected one of charge, feed or cmd", http.StatusBadRequest)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleHealth returns a simple health check response
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	_, ok := s.views.Latest()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
		"state":   ok,
	})
}

func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// Endpoint represents an HTTP endpoint with its documentation
type Endpoint struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

var endpoints = []Endpoint{
	{Path: "/", Method: "GET", Description: "Dashboard page"},
	{Path: "/ws", Method: "GET", Description: "Websocket stream of views and reload requests"},
	{Path: "/api/view", Method: "GET", Description: "Latest view as JSON"},
	{Path: "/api/set", Method: "POST", Description: "Forward {option}, {mode} or {reset_error: true} to the backend"},
	{Path: "/api/manual", Method: "POST", Description: "Set {charge}, {feed} or queue {cmd: wakeup|sleep} for manual mode"},
	{Path: "/metrics", Method: "GET", Description: "Prometheus metrics"},
	{Path: "/health", Method: "GET", Description: "Health check endpoint"},
}

// handleSitemap answers unknown paths with a list of the endpoints
func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	preferHTML := strings.Contains(r.Header.Get("Accept"), "text/html")

	if preferHTML {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "<!DOCTYPE html>\n<html><head><title>Energy Dashboard</title></head><body>\n<h1>Not found</h1>\n<ul>\n")
		for _, ep := range endpoints {
			fmt.Fprintf(w, "<li><code>%s <a href=\"%s\">%s</a></code> %s</li>\n", ep.Method, ep.Path, ep.Path, ep.Description)
		}
		fmt.Fprint(w, "</ul>\n</body></html>\n")
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "Energy Dashboard\n================\n\nAvailable endpoints:\n\n")
		for _, ep := range endpoints {
			fmt.Fprintf(w, "  %-6s %-12s %s\n", ep.Method, ep.Path, ep.Description)
		}
	}

	s.logger.Debug("Sitemap request served",
		zap.String("path", r.URL.Path),
		zap.String("remote_addr", r.RemoteAddr),
		zap.Bool("html_format", preferHTML))
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.server.Addr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop() error {
	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	return nil
}
