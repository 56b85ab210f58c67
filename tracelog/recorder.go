package tracelog

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"pixelclimber/world"
)

// Record 一条生成事件及其所属房间
type Record struct {
	Room string `json:"room"`
	At   string `json:"at"`
	world.Event
}

// Recorder 把世界事件异步写入追踪文件。队列满时丢弃，不阻塞 Tick
type Recorder struct {
	w    *Writer
	room string
	log  *zap.SugaredLogger

	ch   chan Record
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	written atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// NewRecorder 每个房间一个：<dir>/<room>/events-*.jsonl.zst
func NewRecorder(dir, room string, log *zap.SugaredLogger) *Recorder {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	r := &Recorder{
		w:    NewWriter(filepath.Join(dir, room), "events"),
		room: room,
		log:  log,
		ch:   make(chan Record, 4096),
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.loop()
	}()
	return r
}

// Observe 满足 world.Observer
func (r *Recorder) Observe(ev world.Event) {
	if r == nil || r.closed.Load() {
		return
	}
	rec := Record{Room: r.room, At: time.Now().UTC().Format(time.RFC3339Nano), Event: ev}
	select {
	case r.ch <- rec:
	default:
		r.dropped.Add(1)
	}
}

func (r *Recorder) loop() {
	flush := time.NewTicker(time.Second)
	defer flush.Stop()
	for {
		select {
		case rec, ok := <-r.ch:
			if !ok {
				return
			}
			if err := r.w.Write(rec); err != nil {
				// 只记录第一次失败，避免刷屏
				if r.failed.Add(1) == 1 {
					r.log.Errorf("trace write failed: room=%s err=%v", r.room, err)
				}
				continue
			}
			r.written.Add(1)
		case <-flush.C:
			if err := r.w.Flush(); err != nil {
				r.log.Warnf("trace flush failed: room=%s err=%v", r.room, err)
			}
		}
	}
}

// Close 写完队列中剩余事件后关闭文件；调用方须保证之后不再 Observe
func (r *Recorder) Close() error {
	var err error
	r.once.Do(func() {
		r.closed.Store(true)
		close(r.ch)
		r.wg.Wait()
		err = r.w.Close()
	})
	return err
}

// Stats 写入/丢弃/失败计数
func (r *Recorder) Stats() map[string]int64 {
	return map[string]int64{
		"written": r.written.Load(),
		"dropped": r.dropped.Load(),
		"failed":  r.failed.Load(),
	}
}
