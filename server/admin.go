package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"pixelclimber/world"
)

const adminTimeout = 2 * time.Second

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type configView struct {
	Room             string       `json:"room"`
	Seed             int64        `json:"seed"`
	MaxInputsPerTick int          `json:"maxInputsPerTick"`
	MaxJumpHeight    float64      `json:"maxJumpHeight"`
	GapMin           int          `json:"gapMin"`
	GapMax           int          `json:"gapMax"`
	Capacity         int          `json:"capacity"`
	World            world.Config `json:"world"`
}

type configUpdate struct {
	MaxInputsPerTick *int   `json:"maxInputsPerTick,omitempty"`
	Seed             *int64 `json:"seed,omitempty"`
	Reset            bool   `json:"reset,omitempty"`
}

// HandleAdminConfig 房间配置的读取与更新
// GET /admin/config?room=room-1  返回当前配置与派生常量
// POST /admin/config?room=room-1 {"maxInputsPerTick":8,"seed":42,"reset":true}
// 换种子会重建世界；reset 在原随机流上重置
func (m *RoomManager) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	room, err := m.GetOrCreateRoom(r.URL.Query().Get("room"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), adminTimeout)
	defer cancel()

	read := func() configView {
		rc := room.world.Config()
		return configView{
			Room:             room.ID,
			Seed:             room.world.Seed(),
			MaxInputsPerTick: room.maxInputsPerTick,
			MaxJumpHeight:    rc.MaxJumpHeight,
			GapMin:           rc.GapMin,
			GapMax:           rc.GapMax,
			Capacity:         rc.Capacity,
			World:            rc.Config,
		}
	}

	switch r.Method {
	case http.MethodGet:
		var cur configView
		if err := room.Do(ctx, func() { cur = read() }); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, cur)
	case http.MethodPost:
		var body configUpdate
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if body.MaxInputsPerTick != nil && *body.MaxInputsPerTick < 1 {
			http.Error(w, "maxInputsPerTick must be >= 1", http.StatusBadRequest)
			return
		}
		var cur configView
		var applyErr error
		err := room.Do(ctx, func() {
			if body.MaxInputsPerTick != nil {
				room.maxInputsPerTick = *body.MaxInputsPerTick
			}
			switch {
			case body.Seed != nil:
				room.endRun("reseed")
				applyErr = room.newWorld(*body.Seed)
			case body.Reset:
				room.endRun("reset")
				room.world.Reset()
				room.beginRun()
			}
			cur = read()
		})
		if err == nil {
			err = applyErr
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, cur)
		Log.Infof("config updated: room=%s seed=%d maxInputsPerTick=%d reset=%v",
			room.ID, cur.Seed, cur.MaxInputsPerTick, body.Reset)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleMetrics 输出指定房间的运行指标
// GET /metrics?room=room-1
func (m *RoomManager) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	room, ok := m.Room(r.URL.Query().Get("room"))
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	status := room.Status()
	payload := map[string]any{
		"room":    room.ID,
		"tick":    status.Tick,
		"metrics": room.metrics.Snapshot(),
		"status":  status,
	}
	if room.trace != nil {
		payload["trace"] = room.trace.Stats()
	}
	if m.stats != nil {
		payload["statsdb"] = m.stats.Stats()
	}
	writeJSON(w, http.StatusOK, payload)
}

// HandleRuns 最近的运行摘要
// GET /admin/runs?room=room-1&limit=20
func (m *RoomManager) HandleRuns(w http.ResponseWriter, r *http.Request) {
	if m.stats == nil {
		http.Error(w, "stats disabled", http.StatusNotFound)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	ctx, cancel := context.WithTimeout(r.Context(), adminTimeout)
	defer cancel()
	runs, err := m.stats.Recent(ctx, r.URL.Query().Get("room"), limit)
	if err != nil {
		Log.Warnf("query runs: %v", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}
