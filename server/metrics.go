package server

import "sync/atomic"

// RoomMetrics 房间级计数器；Tick 线程写入，HTTP 侧原子读取
type RoomMetrics struct {
	TickCount         int64
	InputsAccepted    int64
	RateLimited       int64 // 超出每帧输入上限
	OldSeqIgnored     int64 // 序列号不递增
	ChanFullDiscarded int64 // 输入通道满
	Broadcasts        int64
	DebrisSpawned     int64
	Joins             int64
	Leaves            int64
	Runs              int64 // 开局次数：首次、重置、换种子
	TotalTickNs       int64
	MaxTickNs         int64
}

func (m *RoomMetrics) IncAccepted()          { atomic.AddInt64(&m.InputsAccepted, 1) }
func (m *RoomMetrics) IncRateLimited()       { atomic.AddInt64(&m.RateLimited, 1) }
func (m *RoomMetrics) IncOldSeqIgnored()     { atomic.AddInt64(&m.OldSeqIgnored, 1) }
func (m *RoomMetrics) IncChanFullDiscarded() { atomic.AddInt64(&m.ChanFullDiscarded, 1) }
func (m *RoomMetrics) IncBroadcast()         { atomic.AddInt64(&m.Broadcasts, 1) }
func (m *RoomMetrics) IncDebris()            { atomic.AddInt64(&m.DebrisSpawned, 1) }
func (m *RoomMetrics) IncJoin()              { atomic.AddInt64(&m.Joins, 1) }
func (m *RoomMetrics) IncLeave()             { atomic.AddInt64(&m.Leaves, 1) }
func (m *RoomMetrics) IncRun()               { atomic.AddInt64(&m.Runs, 1) }

// AddTick 记录一帧耗时并更新最大值
func (m *RoomMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
	for {
		cur := atomic.LoadInt64(&m.MaxTickNs)
		if ns <= cur || atomic.CompareAndSwapInt64(&m.MaxTickNs, cur, ns) {
			return
		}
	}
}

// Snapshot /metrics 输出用的副本
func (m *RoomMetrics) Snapshot() map[string]any {
	ticks := atomic.LoadInt64(&m.TickCount)
	var avgMs float64
	if ticks > 0 {
		avgMs = float64(atomic.LoadInt64(&m.TotalTickNs)) / float64(ticks) / 1e6
	}
	return map[string]any{
		"tick_count":          ticks,
		"inputs_accepted":     atomic.LoadInt64(&m.InputsAccepted),
		"rate_limited":        atomic.LoadInt64(&m.RateLimited),
		"old_seq_ignored":     atomic.LoadInt64(&m.OldSeqIgnored),
		"chan_full_discarded": atomic.LoadInt64(&m.ChanFullDiscarded),
		"broadcasts":          atomic.LoadInt64(&m.Broadcasts),
		"debris_spawned":      atomic.LoadInt64(&m.DebrisSpawned),
		"joins":               atomic.LoadInt64(&m.Joins),
		"leaves":              atomic.LoadInt64(&m.Leaves),
		"runs_started":        atomic.LoadInt64(&m.Runs),
		"avg_tick_ms":         avgMs,
		"max_tick_ms":         float64(atomic.LoadInt64(&m.MaxTickNs)) / 1e6,
	}
}
