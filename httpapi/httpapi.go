// Package httpapi is the thin net/http mapping from the REST surface
// (spec §6) onto Session/Manager operations (SPEC_FULL §2 "HTTP
// surface"). Routing is a hand-rolled prefix dispatch over
// http.ServeMux, matching the teacher's own ais package (the teacher
// hand-rolls routing rather than pulling in a router library); bodies
// are decoded/encoded with json-iterator, matching the teacher's ais
// wire codec.
/*
 * Copyright (c) 2026, RibbonsAlmark. All rights reserved.
 */
package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RibbonsAlmark/Relay/config"
	"github.com/RibbonsAlmark/Relay/docstore"
	"github.com/RibbonsAlmark/Relay/manager"
	"github.com/RibbonsAlmark/Relay/rating"
	"github.com/RibbonsAlmark/Relay/relog"
	"github.com/RibbonsAlmark/Relay/rerr"
	"github.com/RibbonsAlmark/Relay/rmetrics"
	"github.com/RibbonsAlmark/Relay/session"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Server wires the manager, the document store, and the rating
// service behind net/http handlers.
type Server struct {
	cfg     *config.Config
	mgr     *manager.Manager
	store   docstore.DocumentSource
	raters  *rating.Service
	mux     *http.ServeMux
}

func NewServer(cfg *config.Config, mgr *manager.Manager, store docstore.DocumentSource) *Server {
	s := &Server{
		cfg:    cfg,
		mgr:    mgr,
		store:  store,
		raters: rating.NewService(store),
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) routes() {
	s.mux.HandleFunc("/create_source", s.handleCreateSource)
	s.mux.HandleFunc("/play_data/", s.handlePlayData)
	s.mux.HandleFunc("/load_range/", s.handleLoadRange)
	s.mux.HandleFunc("/heartbeat/", s.handleHeartbeat)
	s.mux.HandleFunc("/refresh_ui/", s.handleRefreshUI)
	s.mux.HandleFunc("/enable_streaming_mode/", s.handleEnableStreamingMode)
	s.mux.HandleFunc("/enable_alignment_mode/", s.handleEnableAlignmentMode)
	s.mux.HandleFunc("/list_sessions", s.handleListSessions)
	s.mux.HandleFunc("/get_info/", s.handleGetInfo)
	s.mux.HandleFunc("/list_all", s.handleListAll)

	// Supplemented quick-rate HTML endpoints (SPEC_FULL §8), the
	// targets UIPanelProcessor's Markdown links point at.
	s.mux.HandleFunc("/rate/", s.handleQuickRate)
	s.mux.HandleFunc("/rate_collection/", s.handleQuickRateCollection)
	s.mux.HandleFunc("/rate_source/", s.handleQuickRateSource)
	s.mux.HandleFunc("/rate_range/", s.handleQuickRateRange)

	s.mux.Handle("/metrics", promhttp.HandlerFor(rmetrics.Registry, promhttp.HandlerOpts{}))
}

func appID(dataset, collection string) string { return dataset + "." + collection }

func connectURL(cfg *config.Config, port int) string {
	return fmt.Sprintf("rerun+http://%s:%d/proxy", cfg.BackendIP, port)
}

// pathTail strips prefix and trims a trailing slash, then splits the
// remainder on "/" — the ais-style manual path-segment parsing this
// teacher uses instead of a router library's named captures.
func pathTail(r *http.Request, prefix string) []string {
	tail := strings.TrimPrefix(r.URL.Path, prefix)
	tail = strings.Trim(tail, "/")
	if tail == "" {
		return nil
	}
	return strings.Split(tail, "/")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := jsonAPI.NewEncoder(w).Encode(v); err != nil {
		relog.Warningf("httpapi: response encode failed: %v", err)
	}
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	dec := jsonAPI.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return rerr.NewInvalidInput("malformed request body: %v", err)
	}
	return nil
}

// writeError maps an rerr kind to the status table in SPEC_FULL §7.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case rerr.IsNotFound(err):
		status = http.StatusNotFound
	case rerr.IsOverloaded(err):
		status = http.StatusServiceUnavailable
	case rerr.IsInvalidInput(err):
		status = http.StatusBadRequest
	case rerr.IsExternalFault(err), rerr.IsFatal(err):
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]string{"status": "error", "error": err.Error()})
}

func parseIndex(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, rerr.NewInvalidInput("not a valid frame index: %q", s)
	}
	return n, nil
}

func parseFloat(s string) (float64, error) {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, rerr.NewInvalidInput("not a valid numeric timestamp bound: %q", s)
	}
	return n, nil
}

func sessionByUUID(mgr *manager.Manager, uuid string) (*session.Session, error) {
	sess, ok := mgr.Get(uuid)
	if !ok {
		return nil, rerr.NewNotFound("session " + uuid)
	}
	return sess, nil
}

func uptime(sess *session.Session) time.Duration { return time.Since(sess.CreatedAt) }
