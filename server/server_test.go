package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"pixelclimber/statsdb"
	"pixelclimber/tuning"
)

func testServer(t *testing.T, opts ManagerOptions) (*RoomManager, *httptest.Server) {
	t.Helper()
	cfg := tuning.Defaults()
	cfg.Seed = 42
	cfg.Server.TickRateHz = 100
	m := NewRoomManager(cfg, opts)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", m.HandleWS)
	mux.HandleFunc("/admin/config", m.HandleAdminConfig)
	mux.HandleFunc("/admin/runs", m.HandleRuns)
	mux.HandleFunc("/metrics", m.HandleMetrics)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		m.Close()
	})
	return m, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + query
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

type stateHeader struct {
	Type    string        `json:"type"`
	Room    string        `json:"room"`
	Tick    uint64        `json:"tick"`
	Players []PlayerState `json:"players"`
	Anchor  struct {
		Y float64 `json:"y"`
	} `json:"anchor"`
	Platforms []json.RawMessage `json:"platforms"`
}

// readState 跳过落石消息，直到满足 ok 的状态消息
func readState(t *testing.T, ws *websocket.Conn, ok func(stateHeader) bool) stateHeader {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		_ = ws.SetReadDeadline(deadline)
		_, b, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var st stateHeader
		if err := json.Unmarshal(b, &st); err != nil {
			t.Fatalf("unmarshal %s: %v", b, err)
		}
		if st.Type == "state" && ok(st) {
			return st
		}
	}
}

func TestWSRequiresPlayer(t *testing.T) {
	_, srv := testServer(t, ManagerOptions{})
	resp, err := http.Get(srv.URL + "/ws")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestWSStreamsWorld(t *testing.T) {
	m, srv := testServer(t, ManagerOptions{})
	ws := dial(t, srv, "room=climb&player=alice")

	first := readState(t, ws, func(stateHeader) bool { return true })
	if first.Room != "climb" || len(first.Players) != 1 || first.Players[0].ID != "alice" {
		t.Fatalf("first state = %+v", first)
	}
	if len(first.Platforms) == 0 {
		t.Fatalf("first state has no platforms")
	}

	room, ok := m.Room("climb")
	if !ok {
		t.Fatalf("room not registered")
	}
	base := room.worldCfg.BaseY
	playerY := base - 3000
	msg := InputMessage{Type: "view", Seq: 1, CameraTop: playerY - 480, PlayerX: 360, PlayerY: playerY}
	if err := ws.WriteJSON(msg); err != nil {
		t.Fatalf("write view: %v", err)
	}
	st := readState(t, ws, func(s stateHeader) bool { return s.Tick > 0 })
	if st.Anchor.Y > playerY-480 {
		t.Fatalf("anchor %.1f not above camera %.1f", st.Anchor.Y, playerY-480)
	}
	if st.Players[0].Y != playerY || st.Players[0].HeightM != 300 {
		t.Fatalf("player state = %+v", st.Players[0])
	}

	resp, err := http.Get(srv.URL + "/metrics?room=climb")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	var metrics struct {
		Room    string         `json:"room"`
		Metrics map[string]any `json:"metrics"`
		Status  RoomStatus     `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&metrics); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if metrics.Room != "climb" || metrics.Status.Players != 1 || metrics.Status.Seed != 42 {
		t.Fatalf("metrics = %+v", metrics)
	}
	if metrics.Metrics["inputs_accepted"].(float64) < 1 {
		t.Fatalf("inputs_accepted = %v", metrics.Metrics["inputs_accepted"])
	}
}

func TestWSLeaveOnDisconnect(t *testing.T) {
	m, srv := testServer(t, ManagerOptions{})
	ws := dial(t, srv, "player=bob")
	readState(t, ws, func(stateHeader) bool { return true })
	_ = ws.Close()

	room, _ := m.Room("")
	deadline := time.Now().Add(3 * time.Second)
	for room.Status().Players != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("player not removed after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestMetricsUnknownRoom(t *testing.T) {
	_, srv := testServer(t, ManagerOptions{})
	resp, err := http.Get(srv.URL + "/metrics?room=nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func postConfig(t *testing.T, srv *httptest.Server, body string) (int, configView) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/admin/config?room=admin", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	var cv configView
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&cv); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp.StatusCode, cv
}

func TestAdminConfig(t *testing.T) {
	dir := t.TempDir()
	db, err := statsdb.Open("sqlite:"+filepath.Join(dir, "runs.db"), Log)
	if err != nil {
		t.Fatalf("open stats: %v", err)
	}
	defer db.Close()
	_, srv := testServer(t, ManagerOptions{Stats: db})

	resp, err := http.Get(srv.URL + "/admin/config?room=admin")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var cv configView
	_ = json.NewDecoder(resp.Body).Decode(&cv)
	resp.Body.Close()
	if cv.Seed != 42 || cv.GapMin != 112 || cv.GapMax != 174 || cv.Capacity != 44 {
		t.Fatalf("config = %+v", cv)
	}

	if code, _ := postConfig(t, srv, `{"maxInputsPerTick":0}`); code != http.StatusBadRequest {
		t.Fatalf("invalid maxInputsPerTick status = %d", code)
	}
	if code, _ := postConfig(t, srv, `not json`); code != http.StatusBadRequest {
		t.Fatalf("invalid json status = %d", code)
	}

	code, cv := postConfig(t, srv, `{"maxInputsPerTick":4,"seed":7}`)
	if code != http.StatusOK || cv.Seed != 7 || cv.MaxInputsPerTick != 4 {
		t.Fatalf("reseed: code=%d config=%+v", code, cv)
	}
	if code, cv = postConfig(t, srv, `{"reset":true}`); code != http.StatusOK || cv.Seed != 7 {
		t.Fatalf("reset: code=%d config=%+v", code, cv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	resp, err = http.Get(srv.URL + "/admin/runs?room=admin")
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	defer resp.Body.Close()
	var runs struct {
		Runs []statsdb.Run `json:"runs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&runs); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(runs.Runs) != 2 || runs.Runs[0].Reason != "reset" || runs.Runs[0].Seed != 7 ||
		runs.Runs[1].Reason != "reseed" || runs.Runs[1].Seed != 42 {
		t.Fatalf("runs = %+v", runs.Runs)
	}
}

func TestRunsDisabled(t *testing.T) {
	_, srv := testServer(t, ManagerOptions{})
	resp, err := http.Get(srv.URL + "/admin/runs")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestManagerClosed(t *testing.T) {
	m, _ := testServer(t, ManagerOptions{})
	if _, err := m.GetOrCreateRoom(""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if ids := m.RoomIDs(); len(ids) != 1 || ids[0] != "room-1" {
		t.Fatalf("room ids = %v", ids)
	}
	m.Close()
	if _, err := m.GetOrCreateRoom("late"); err == nil {
		t.Fatalf("create after close succeeded")
	}
}
