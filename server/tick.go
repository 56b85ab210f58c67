package server

import (
	"context"
	"errors"
	"time"
)

var errRoomStopped = errors.New("room stopped")

// StartTicker 启动房间的 Tick 循环（单线程推进世界）
func (r *Room) StartTicker(ticksPerSecond int) {
	if r.tickerStarted {
		return
	}
	r.tickerStarted = true
	interval := time.Second / time.Duration(ticksPerSecond)
	go func() {
		defer close(r.stopped)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		last := time.Now()
		for {
			select {
			case <-r.quit:
				r.shutdown()
				return
			case fn := <-r.ctrlChan:
				fn()
				r.publish()
			case now := <-ticker.C:
				// 核心循环：处理输入 → 更新世界 → 广播结果
				start := time.Now()
				r.BeginTick(now.Sub(last))
				last = now
				r.ProcessInputs()
				debris := r.UpdateWorld()
				r.BroadcastDelta(debris)
				r.publish()
				r.metrics.AddTick(time.Since(start).Nanoseconds())
			}
		}
	}()
}

// Do 在 Tick 线程中执行 fn 并等待其完成
func (r *Room) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case r.ctrlChan <- func() { fn(); close(done) }:
	case <-r.stopped:
		return errRoomStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop 停止 Tick 循环，写入本局摘要并关闭追踪
func (r *Room) Stop() {
	r.stopOnce.Do(func() {
		if !r.tickerStarted {
			r.shutdown()
			close(r.stopped)
			return
		}
		close(r.quit)
		<-r.stopped
	})
}

func (r *Room) shutdown() {
	for id := range r.Players {
		r.LeavePlayer(id)
	}
	r.endRun("close")
	if r.trace != nil {
		if err := r.trace.Close(); err != nil {
			r.log.Warnf("close trace: %v", err)
		}
	}
	r.log.Infof("room stopped after %d ticks", r.tickSeq)
}
