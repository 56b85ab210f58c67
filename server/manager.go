package server

import (
	"errors"
	"sort"
	"sync"
	"time"

	"pixelclimber/statsdb"
	"pixelclimber/tuning"
)

var errManagerClosed = errors.New("room manager closed")

// RoomManager 管理多个房间的生命周期
type RoomManager struct {
	mu     sync.RWMutex
	rooms  map[string]*Room
	closed bool

	cfg      tuning.Tuning
	traceDir string
	stats    *statsdb.DB
}

// ManagerOptions 可选输出端：追踪目录与统计库
type ManagerOptions struct {
	TraceDir string
	Stats    *statsdb.DB
}

// NewRoomManager 按调参创建房间管理器
func NewRoomManager(cfg tuning.Tuning, opts ManagerOptions) *RoomManager {
	return &RoomManager{
		rooms:    make(map[string]*Room),
		cfg:      cfg,
		traceDir: opts.TraceDir,
		stats:    opts.Stats,
	}
}

// GetOrCreateRoom 获取或创建房间，并确保开始 Tick
func (m *RoomManager) GetOrCreateRoom(id string) (*Room, error) {
	if id == "" {
		id = m.cfg.Server.DefaultRoom
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errManagerClosed
	}
	r, ok := m.rooms[id]
	if !ok {
		seed := m.cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		var err error
		r, err = NewRoom(id, RoomOptions{
			Server:   m.cfg.Server,
			World:    m.cfg.World,
			Seed:     seed,
			TraceDir: m.traceDir,
			Stats:    m.stats,
		})
		if err != nil {
			return nil, err
		}
		m.rooms[id] = r
		r.StartTicker(m.cfg.Server.TickRateHz)
		Log.Infof("room created: %s seed=%d", id, seed)
	}
	return r, nil
}

// Room 只查找不创建
func (m *RoomManager) Room(id string) (*Room, bool) {
	if id == "" {
		id = m.cfg.Server.DefaultRoom
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// RoomIDs 已创建房间的 ID，按字典序
func (m *RoomManager) RoomIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close 停止所有房间；之后不再创建新房间
func (m *RoomManager) Close() {
	m.mu.Lock()
	m.closed = true
	rooms := m.rooms
	m.rooms = make(map[string]*Room)
	m.mu.Unlock()

	for _, r := range rooms {
		r.Stop()
	}
}
