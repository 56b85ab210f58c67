package world

import (
	"math"
	"math/rand"

	"go.uber.org/zap"
)

// Rand 共享随机源的最小接口（*rand.Rand 满足）
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// EventKind 生成事件类型
type EventKind string

const (
	EventSpawn      EventKind = "spawn"
	EventRecycle    EventKind = "recycle"
	EventReset      EventKind = "reset"
	EventCheckpoint EventKind = "checkpoint"
)

// Event 生成事件，供追踪日志与统计使用
type Event struct {
	Kind       EventKind `json:"kind"`
	Tick       uint64    `json:"tick"`
	Seq        uint64    `json:"seq"`
	PlatformID int       `json:"platformId"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Width      float64   `json:"width,omitempty"`
	Size       SizeClass `json:"size"`
	Material   Material  `json:"material"`
	Gap        int       `json:"gap,omitempty"`
	Reach      float64   `json:"reach,omitempty"`
	Strategy   Strategy  `json:"strategy"`
	Forced     bool      `json:"forced,omitempty"`
	Height     float64   `json:"height"`
	Band       string    `json:"band,omitempty"`
	Seed       int64     `json:"seed,omitempty"`
}

// Observer 接收生成事件；在 Tick 线程内同步调用，不得阻塞
type Observer func(Event)

// Stats 本局生成统计
type Stats struct {
	Spawned            uint64  `json:"spawned"`
	Recycled           uint64  `json:"recycled"`
	ForcedRecycles     uint64  `json:"forcedRecycles"`
	Strict             uint64  `json:"strict"`
	Emergency          uint64  `json:"emergency"`
	Fallback           uint64  `json:"fallback"`
	EntitiesSpawned    uint64  `json:"entitiesSpawned"`
	EntitiesSuppressed uint64  `json:"entitiesSuppressed"`
	EntitiesCulled     uint64  `json:"entitiesCulled"`
	Consumed           uint64  `json:"consumed"`
	Checkpoints        uint64  `json:"checkpoints"`
	MaxHeight          float64 `json:"maxHeight"`
}

// Option World 构造选项
type Option func(*World)

// WithLogger 注入 zap 日志（默认 Nop）
func WithLogger(l *zap.SugaredLogger) Option {
	return func(w *World) {
		if l != nil {
			w.log = l
		}
	}
}

// WithObserver 注入事件观察者
func WithObserver(fn Observer) Option {
	return func(w *World) { w.observe = fn }
}

// World 生成器状态的唯一所有者：锚点、平台池、实体表、随机源。
// 单线程使用，不加锁。
type World struct {
	cfg    Resolved
	curve  Curve
	solver *Solver
	rng    *rand.Rand
	seed   int64

	log     *zap.SugaredLogger
	observe Observer

	// slots 固定容量的平台池，slots[:n] 在用；order 为放置顺序（自下而上）
	slots   []Platform
	n       int
	order   []int
	scratch []int

	anchor      Anchor
	anchorWidth float64
	seq         uint64

	entities        []SatelliteEntity
	nextEntityID    uint64
	checkpointID    uint64
	lastCheckpointM int

	debris debrisState

	view    View
	tick    uint64
	version uint64
	stats   Stats
}

// New 校验配置并按初始布局播种；随机源只在此处设定种子一次
func New(cfg Config, seed int64, opts ...Option) (*World, error) {
	r, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}
	w := &World{
		cfg:          r,
		curve:        NewCurve(r.Difficulty),
		rng:          rand.New(rand.NewSource(seed)),
		seed:         seed,
		log:          zap.NewNop().Sugar(),
		slots:        make([]Platform, r.Capacity),
		order:        make([]int, 0, r.Capacity),
		nextEntityID: 1,
	}
	w.solver = NewSolver(&w.cfg)
	for _, opt := range opts {
		opt(w)
	}
	w.Reset()
	return w, nil
}

// Reset 清空全部状态并重新播种起始平台
func (w *World) Reset() {
	w.n = 0
	w.order = w.order[:0]
	w.entities = w.entities[:0]
	w.checkpointID = 0
	w.lastCheckpointM = 0
	w.debris = debrisState{}
	w.stats = Stats{}
	w.version++

	w.seedStarters()
	w.emit(Event{Kind: EventReset, Tick: w.tick, X: w.anchor.X, Y: w.anchor.Y, Width: w.anchorWidth, Strategy: StrategyStarter, Seed: w.seed})
	for i := 0; i < w.cfg.Platforms.InitialSpawn; i++ {
		w.spawn()
	}
	w.log.Infof("world reset: seed=%d starters=%d capacity=%d gap=[%d,%d] anchor=(%.1f,%.1f)",
		w.seed, w.cfg.Platforms.StarterCount, len(w.slots), w.cfg.GapMin, w.cfg.GapMax, w.anchor.X, w.anchor.Y)
}

// seedStarters 一段平坦宽松的起始平台，在可玩宽度内等距铺开、高低交替
func (w *World) seedStarters() {
	pc := w.cfg.Platforms
	width := pc.StarterWidth
	b := w.solver.footprintBounds(width)
	size := nearestSize(pc.Widths, width)
	top := -1
	for i := 0; i < pc.StarterCount; i++ {
		x := b.mid()
		if pc.StarterCount > 1 {
			x = b.lo + float64(i)*b.width()/float64(pc.StarterCount-1)
		}
		y := w.cfg.BaseY - float64(i%2)*pc.StarterStep
		slot := w.n
		w.n++
		w.slots[slot] = Platform{
			ID:       slot,
			Seq:      w.seq,
			X:        x,
			Y:        y,
			Width:    width,
			Height:   pc.Height,
			Size:     size,
			Material: MaterialDirt,
			State:    Resident,
			Strategy: StrategyStarter,
			props:    w.cfg.materials[MaterialDirt],
			override: w.cfg.traction,
		}
		w.seq++
		w.order = append(w.order, slot)
		if top < 0 || y < w.slots[top].Y {
			top = slot
		}
	}
	w.anchor = Anchor{X: w.slots[top].X, Y: w.slots[top].Y}
	w.anchorWidth = w.slots[top].Width
}

func nearestSize(widths [3]float64, w float64) SizeClass {
	best := SizeSmall
	for s := SizeClass(0); s < numSizes; s++ {
		if math.Abs(widths[s]-w) < math.Abs(widths[best]-w) {
			best = s
		}
	}
	return best
}

// placeInto 依次执行 难度曲线 -> 放置求解 -> 附属实体，覆写 slot 并将其置为新锚点
func (w *World) placeInto(slot int, kind EventKind, forced bool) {
	prev := w.anchor
	prevWidth := w.anchorWidth

	gap := w.cfg.SampleGap(w.rng)
	reach := w.cfg.Reach(gap)
	y := prev.Y - float64(gap)
	height := w.cfg.BaseY - y
	prof := w.curve.At(height)
	size := SizeClass(PickWeighted(w.rng, prof.SizeWeights[:]))
	mat := Material(PickWeighted(w.rng, prof.MaterialWeights[:]))
	width := w.cfg.PlatformWidth(size, mat, prof.SizeScale)

	pl := w.solver.Place(w.rng, PlaceRequest{AnchorX: prev.X, Reach: reach, Width: width, PrevWidth: prevWidth})

	p := &w.slots[slot]
	*p = Platform{
		ID:       slot,
		Seq:      w.seq,
		X:        pl.X,
		Y:        y,
		Width:    width,
		Height:   w.cfg.Platforms.Height,
		Size:     size,
		Material: mat,
		State:    Resident,
		Gap:      gap,
		Reach:    reach,
		Strategy: pl.Strategy,
		props:    w.cfg.materials[mat],
		override: w.cfg.traction,
	}
	w.seq++
	w.order = append(w.order, slot)
	w.anchor = Anchor{X: pl.X, Y: y}
	w.anchorWidth = width
	w.version++

	switch pl.Strategy {
	case StrategyStrict:
		w.stats.Strict++
	case StrategyEmergency:
		w.stats.Emergency++
		w.log.Debugf("placement emergency: seq=%d gap=%d reach=%.1f width=%.1f prev=%.1f minSep=%.1f",
			p.Seq, gap, reach, width, prevWidth, pl.MinSep)
	case StrategyFallback:
		w.stats.Fallback++
		w.log.Warnf("placement fallback: seq=%d anchorX=%.1f x=%.1f gap=%d reach=%.1f width=%.1f prev=%.1f minSep=%.1f",
			p.Seq, prev.X, pl.X, gap, reach, width, prevWidth, pl.MinSep)
	}
	if height > w.stats.MaxHeight {
		w.stats.MaxHeight = height
	}

	w.coPlace(prev, w.anchor, gap, reach, prof, p)

	w.emit(Event{
		Kind:       kind,
		Tick:       w.tick,
		Seq:        p.Seq,
		PlatformID: slot,
		X:          p.X,
		Y:          p.Y,
		Width:      width,
		Size:       size,
		Material:   mat,
		Gap:        gap,
		Reach:      reach,
		Strategy:   pl.Strategy,
		Forced:     forced,
		Height:     height,
		Band:       prof.Band.String(),
	})
}

func (w *World) emit(ev Event) {
	if w.observe != nil {
		w.observe(ev)
	}
}

// HeightMeters 世界坐标 y 对应的攀升高度（米，10 单位 = 1 米）
func (w *World) HeightMeters(y float64) int {
	m := int(math.Floor((w.cfg.BaseY - y) / 10))
	if m < 0 {
		return 0
	}
	return m
}

// Platforms 在用平台的副本，按放置顺序自下而上
func (w *World) Platforms() []Platform {
	out := make([]Platform, 0, len(w.order))
	for _, slot := range w.order {
		out = append(out, w.slots[slot])
	}
	return out
}

// Platform 按 ID 读取平台
func (w *World) Platform(id int) (Platform, bool) {
	if id < 0 || id >= w.n {
		return Platform{}, false
	}
	return w.slots[id], true
}

// Entities 在场附属实体的副本
func (w *World) Entities() []SatelliteEntity {
	out := make([]SatelliteEntity, len(w.entities))
	copy(out, w.entities)
	return out
}

// Snapshot 渲染/碰撞模块读取用的完整副本
func (w *World) Snapshot() Snapshot {
	s := Snapshot{
		Tick:      w.tick,
		Version:   w.version,
		Anchor:    w.anchor,
		Platforms: w.Platforms(),
		Entities:  w.Entities(),
	}
	if cp, ok := w.CurrentCheckpoint(); ok {
		s.Checkpoint = &cp
	}
	return s
}

func (w *World) Anchor() Anchor     { return w.anchor }
func (w *World) Stats() Stats       { return w.stats }
func (w *World) Config() Resolved   { return w.cfg }
func (w *World) Curve() Curve       { return w.curve }
func (w *World) Seed() int64        { return w.seed }
func (w *World) Version() uint64    { return w.version }
func (w *World) TickCount() uint64  { return w.tick }
func (w *World) LastView() View     { return w.view }
func (w *World) LiveBound() int     { return len(w.slots) }
func (w *World) LivePlatforms() int { return len(w.order) }
