package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/RibbonsAlmark/Relay/config"
	"github.com/RibbonsAlmark/Relay/docstore/memstore"
	"github.com/RibbonsAlmark/Relay/manager"
	"github.com/RibbonsAlmark/Relay/vizstream"
)

type fakeSampler struct{ cpu, mem float64 }

func (f *fakeSampler) CPUPercent() float64 { return f.cpu }
func (f *fakeSampler) MemPercent() float64 { return f.mem }

type noopStream struct{}

func (noopStream) SetTimeSequence(int64)                                   {}
func (noopStream) Log(string, vizstream.Component) error                  { return nil }
func (noopStream) LogColumns(string, []int64, []vizstream.Component) error { return nil }
func (noopStream) SetTimeRange(int64, int64)                              {}
func (noopStream) Serve(int, int64) error                                 { return nil }
func (noopStream) Disconnect()                                            {}

func testServer(t *testing.T, seedDocs int) (*Server, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	if seedDocs > 0 {
		docs := make([]map[string]any, seedDocs)
		for i := range docs {
			docs[i] = map[string]any{"info": map[string]any{"source": "camA", "timestamp": float64(i)}}
		}
		store.Seed("db_prod", "c0", docs)
	}
	cfg := &config.Config{
		BackendIP:                   "127.0.0.1",
		PortRangeStart:              22000,
		PortRangeEnd:                22100,
		MaxCPUPercent:               85,
		MaxMemoryPercent:            90,
		SessionTimeoutSecs:          300,
		MemoryPressureTimeoutSecs:   30,
		WorkerThreadMultiplier:      1,
		BackpressureQueueMultiplier: 4,
		SenderThreadCount:           1,
		BatchBufferSizeLimit:        1 << 20,
		BatchBufferTimeout:          time.Millisecond,
		SlidingWindowCacheSize:      10,
	}
	mgr := manager.New(cfg, store, &fakeSampler{cpu: 10, mem: 10}, func() vizstream.Stream { return noopStream{} })
	return NewServer(cfg, mgr, store), store
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		r = httptest.NewRequest(method, path, bytes.NewReader(b))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	s.ServeHTTP(w, r)
	return w
}

// TestCreateAndCount covers spec.md S1: create a session over a
// 100-document collection and confirm the response shape.
func TestCreateAndCount(t *testing.T) {
	s, _ := testServer(t, 100)

	w := doJSON(t, s, http.MethodPost, "/create_source", map[string]string{
		"dataset": "db_prod", "collection": "c0",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["status"] != "created" {
		t.Fatalf("status field = %v", resp["status"])
	}
	uuid, _ := resp["recording_uuid"].(string)
	if uuid == "" {
		t.Fatalf("missing recording_uuid in %v", resp)
	}
	port, _ := resp["port"].(float64)
	if port < 22000 || port > 22100 {
		t.Fatalf("port %v out of configured range", resp["port"])
	}
	if got, _ := resp["max_frame_idx"].(float64); got != 100 {
		t.Fatalf("max_frame_idx = %v, want 100", resp["max_frame_idx"])
	}

	list := doJSON(t, s, http.MethodGet, "/list_sessions", nil)
	var sessions map[string]map[string]any
	if err := json.Unmarshal(list.Body.Bytes(), &sessions); err != nil {
		t.Fatalf("unmarshal list_sessions: %v", err)
	}
	entry, ok := sessions[uuid]
	if !ok {
		t.Fatalf("list_sessions missing %s: %v", uuid, sessions)
	}
	if entry["is_playing"] != false {
		t.Fatalf("is_playing = %v, want false", entry["is_playing"])
	}
}

// TestHeartbeatUnknownSession covers the 404 path (spec §7 "A session
// that loses its heartbeat... return 404").
func TestHeartbeatUnknownSession(t *testing.T) {
	s, _ := testServer(t, 0)
	w := doJSON(t, s, http.MethodPost, "/heartbeat/does-not-exist", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

// TestPlayUnknownSession covers the 404 path for /play_data.
func TestPlayUnknownSession(t *testing.T) {
	s, _ := testServer(t, 0)
	w := doJSON(t, s, http.MethodPost, "/play_data/does-not-exist", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

// TestAdmissionRefusalMaps503 covers spec S6 at the HTTP layer:
// admission refusal maps to 503, and no session is registered.
func TestAdmissionRefusalMaps503(t *testing.T) {
	store := memstore.New()
	cfg := &config.Config{
		PortRangeStart: 22200, PortRangeEnd: 22210,
		MaxCPUPercent: 50, MaxMemoryPercent: 90,
		WorkerThreadMultiplier: 1, BackpressureQueueMultiplier: 4,
		SenderThreadCount: 1, BatchBufferSizeLimit: 1 << 20,
		BatchBufferTimeout: time.Millisecond, SlidingWindowCacheSize: 10,
	}
	mgr := manager.New(cfg, store, &fakeSampler{cpu: 99, mem: 10}, func() vizstream.Stream { return noopStream{} })
	s := NewServer(cfg, mgr, store)

	w := doJSON(t, s, http.MethodPost, "/create_source", map[string]string{"dataset": "d", "collection": "c"})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if len(mgr.List()) != 0 {
		t.Fatalf("a session was registered despite admission refusal")
	}
}

// TestFullCreatePlayHeartbeatFlow exercises create -> heartbeat ->
// get_info -> enable modes end to end through the HTTP surface.
func TestFullCreatePlayHeartbeatFlow(t *testing.T) {
	s, _ := testServer(t, 5)

	created := doJSON(t, s, http.MethodPost, "/create_source", map[string]string{
		"dataset": "db_prod", "collection": "c0",
	})
	var resp map[string]any
	json.Unmarshal(created.Body.Bytes(), &resp)
	uuid := resp["recording_uuid"].(string)

	hb := doJSON(t, s, http.MethodPost, "/heartbeat/"+uuid, nil)
	if hb.Code != http.StatusOK {
		t.Fatalf("heartbeat status = %d", hb.Code)
	}

	info := doJSON(t, s, http.MethodGet, "/get_info/"+uuid, nil)
	var infoResp map[string]any
	json.Unmarshal(info.Body.Bytes(), &infoResp)
	if infoResp["dataset"] != "db_prod" || infoResp["collection"] != "c0" {
		t.Fatalf("get_info = %v", infoResp)
	}

	align := doJSON(t, s, http.MethodPost, "/enable_alignment_mode/"+uuid, nil)
	var alignResp map[string]any
	json.Unmarshal(align.Body.Bytes(), &alignResp)
	if alignResp["alignment_mode"] != true {
		t.Fatalf("enable_alignment_mode = %v", alignResp)
	}

	play := doJSON(t, s, http.MethodPost, "/play_data/"+uuid, nil)
	if play.Code != http.StatusOK {
		t.Fatalf("play_data status = %d", play.Code)
	}

	// give the async play loop a moment to start, then clean up.
	time.Sleep(20 * time.Millisecond)
	mgrVal, _ := s.mgr.Get(uuid)
	if mgrVal != nil {
		mgrVal.Cleanup("test")
	}
}

// TestListAll covers the supplemented /list_all endpoint.
func TestListAll(t *testing.T) {
	s, _ := testServer(t, 1)
	w := doJSON(t, s, http.MethodGet, "/list_all", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	data, _ := resp["data"].(map[string]any)
	if _, ok := data["db_prod"]; !ok {
		t.Fatalf("list_all missing db_prod: %v", resp)
	}
}
