package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/RibbonsAlmark/Relay/relog"
	"github.com/RibbonsAlmark/Relay/rerr"
)

type createSourceRequest struct {
	Dataset       string `json:"dataset"`
	Collection    string `json:"collection"`
	AlignmentMode bool   `json:"alignment_mode"`
	StreamingMode bool   `json:"streaming_mode"`
}

// handleCreateSource implements POST /create_source (spec §6). The
// response's max_frame_idx is a one-time snapshot of the collection's
// document count at creation time (DESIGN.md Open Question
// resolution), distinct from the session's live max_frame_idx
// watermark which starts at zero until frames are pushed.
func (s *Server) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, rerr.NewInvalidInput("method %s not allowed", r.Method))
		return
	}
	var req createSourceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Dataset == "" || req.Collection == "" {
		writeError(w, rerr.NewInvalidInput("dataset and collection are required"))
		return
	}

	ctx := r.Context()
	sess, err := s.mgr.CreateSession(ctx, req.Dataset, req.Collection)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.AlignmentMode {
		sess.EnableAlignmentMode()
	}
	if req.StreamingMode {
		sess.EnableStreamingMode()
	}

	count, err := s.store.Count(ctx, req.Dataset, req.Collection)
	if err != nil {
		relog.Warningf("httpapi: create_source count failed for %s/%s: %v", req.Dataset, req.Collection, err)
		count = 0
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "created",
		"app_id":         appID(req.Dataset, req.Collection),
		"recording_uuid": sess.UUID,
		"port":           sess.Port,
		"connect_url":    connectURL(s.cfg, sess.Port),
		"max_frame_idx":  count,
	})
}

// handlePlayData implements POST /play_data/{uuid}.
func (s *Server) handlePlayData(w http.ResponseWriter, r *http.Request) {
	parts := pathTail(r, "/play_data/")
	if len(parts) != 1 {
		writeError(w, rerr.NewNotFound("session"))
		return
	}
	uuid := parts[0]
	if err := s.mgr.StartPlayback(uuid); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "playback_started",
		"recording_uuid": uuid,
	})
}

type loadRangeRequest struct {
	StartIndex int64 `json:"start_index"`
	EndIndex   int64 `json:"end_index"`
}

// handleLoadRange implements POST /load_range/{uuid}. load_range runs
// in the background (it may need to fetch from the store); the
// request returns as soon as it has been kicked off, matching the
// "loading" status the spec's response shape implies.
func (s *Server) handleLoadRange(w http.ResponseWriter, r *http.Request) {
	parts := pathTail(r, "/load_range/")
	if len(parts) != 1 {
		writeError(w, rerr.NewNotFound("session"))
		return
	}
	uuid := parts[0]
	sess, err := sessionByUUID(s.mgr, uuid)
	if err != nil {
		writeError(w, err)
		return
	}

	var req loadRangeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	go func() {
		if err := sess.LoadRange(context.Background(), req.StartIndex, req.EndIndex); err != nil {
			relog.Warningf("httpapi: load_range(%d,%d) on %s failed: %v", req.StartIndex, req.EndIndex, uuid, err)
		}
	}()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "loading",
		"range":          [2]int64{req.StartIndex, req.EndIndex},
		"recording_uuid": uuid,
	})
}

// handleHeartbeat implements POST /heartbeat/{uuid}.
func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	parts := pathTail(r, "/heartbeat/")
	if len(parts) != 1 {
		writeError(w, rerr.NewNotFound("session"))
		return
	}
	uuid := parts[0]
	if !s.mgr.KeepAlive(uuid) {
		writeError(w, rerr.NewNotFound("session "+uuid))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "alive",
		"recording_uuid": uuid,
		"server_time":    time.Now().UTC().Format(time.RFC3339Nano),
	})
}

type refreshUIRequest struct {
	RecordingUUID string     `json:"recording_uuid"`
	LoadedRanges  [][2]int64 `json:"loaded_ranges"`
}

// handleRefreshUI implements POST /refresh_ui/{uuid}: a UI-only
// recompute pipeline restricted to the ui_panel and meta processors
// (spec §4.4 "_execute_recompute_pipeline").
func (s *Server) handleRefreshUI(w http.ResponseWriter, r *http.Request) {
	parts := pathTail(r, "/refresh_ui/")
	if len(parts) != 1 {
		writeError(w, rerr.NewNotFound("session"))
		return
	}
	uuid := parts[0]
	sess, err := sessionByUUID(s.mgr, uuid)
	if err != nil {
		writeError(w, err)
		return
	}

	var req refreshUIRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	targets := map[string]bool{"ui_panel": true, "meta": true}
	sess.RefreshUI(r.Context(), targets, req.LoadedRanges)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ui_refresh_triggered",
		"recording_uuid": uuid,
		"ranges":         req.LoadedRanges,
		"timestamp":      time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleEnableStreamingMode(w http.ResponseWriter, r *http.Request) {
	parts := pathTail(r, "/enable_streaming_mode/")
	if len(parts) != 1 {
		writeError(w, rerr.NewNotFound("session"))
		return
	}
	sess, err := sessionByUUID(s.mgr, parts[0])
	if err != nil {
		writeError(w, err)
		return
	}
	sess.EnableStreamingMode()
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "streaming_mode": true})
}

func (s *Server) handleEnableAlignmentMode(w http.ResponseWriter, r *http.Request) {
	parts := pathTail(r, "/enable_alignment_mode/")
	if len(parts) != 1 {
		writeError(w, rerr.NewNotFound("session"))
		return
	}
	sess, err := sessionByUUID(s.mgr, parts[0])
	if err != nil {
		writeError(w, err)
		return
	}
	sess.EnableAlignmentMode()
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "alignment_mode": true})
}

// handleListSessions implements GET /list_sessions.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]any)
	for uuid, sess := range s.mgr.List() {
		out[uuid] = map[string]any{
			"app_id":     appID(sess.Dataset, sess.Collection),
			"port":       sess.Port,
			"is_playing": sess.IsPlaying(),
			"uptime":     uptime(sess).String(),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetInfo implements GET /get_info/{uuid}.
func (s *Server) handleGetInfo(w http.ResponseWriter, r *http.Request) {
	parts := pathTail(r, "/get_info/")
	if len(parts) != 1 {
		writeError(w, rerr.NewNotFound("session"))
		return
	}
	sess, err := sessionByUUID(s.mgr, parts[0])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"recording_uuid": sess.UUID,
		"app_id":         appID(sess.Dataset, sess.Collection),
		"dataset":        sess.Dataset,
		"collection":     sess.Collection,
		"max_frame_idx":  sess.MaxFrameIdx(),
	})
}

// handleListAll implements the supplemented GET /list_all (SPEC_FULL
// §8), backed by DocumentSource.ListDatabases/ListCollections.
func (s *Server) handleListAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dbs, err := s.store.ListDatabases(ctx)
	if err != nil {
		writeError(w, rerr.NewExternalFault("list_all.ListDatabases", err))
		return
	}
	data := make(map[string][]string, len(dbs))
	count := 0
	for _, db := range dbs {
		cols, err := s.store.ListCollections(ctx, db)
		if err != nil {
			writeError(w, rerr.NewExternalFault("list_all.ListCollections", err))
			return
		}
		data[db] = cols
		count += len(cols)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"data":   data,
		"count":  count,
	})
}
