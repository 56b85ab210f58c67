package server

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"pixelclimber/statsdb"
	"pixelclimber/tracelog"
	"pixelclimber/tuning"
	"pixelclimber/world"
)

// Room 房间世界：一个生成器实例，单线程 Tick 推进；玩家只投递输入
type Room struct {
	ID string

	Players   map[PlayerID]*Player
	inputChan chan Input
	leaveChan chan leaveReq
	ctrlChan  chan func()

	world     *world.World
	worldCfg  world.Config
	trace     *tracelog.Recorder
	stats     *statsdb.DB
	log       *zap.SugaredLogger
	sendQueue int

	// 每 Tick 输入上限，超出部分丢弃
	maxInputsPerTick int
	inputsThisTick   int
	tickSeq          uint64
	lastVersion      uint64

	// 局开始时间与房间时钟（毫秒），驱动落石节奏
	runStart  time.Time
	runTicks  uint64
	clockMs   float64
	debrisTTL []float64

	metrics *RoomMetrics

	// 供 HTTP 读取的只读副本
	pubMu sync.RWMutex
	pub   RoomStatus

	tickerStarted bool
	stopOnce      sync.Once
	quit          chan struct{}
	stopped       chan struct{}
}

// RoomStatus Tick 结束时发布的状态
type RoomStatus struct {
	Seed          int64       `json:"seed"`
	Tick          uint64      `json:"tick"`
	Players       int         `json:"players"`
	LivePlatforms int         `json:"livePlatforms"`
	LiveBound     int         `json:"liveBound"`
	Entities      int         `json:"entities"`
	Debris        int         `json:"debris"`
	MaxInputs     int         `json:"maxInputsPerTick"`
	World         world.Stats `json:"world"`
}

// RoomOptions 创建房间所需的配置与输出端
type RoomOptions struct {
	Server   tuning.Server
	World    world.Config
	Seed     int64
	TraceDir string
	Stats    *statsdb.DB
}

// NewRoom 创建房间并生成初始世界
func NewRoom(id string, opts RoomOptions) (*Room, error) {
	r := &Room{
		ID:               id,
		Players:          make(map[PlayerID]*Player),
		inputChan:        make(chan Input, opts.Server.InputQueue), // 足够缓冲，避免网络读阻塞影响 Tick
		leaveChan:        make(chan leaveReq, 64),
		ctrlChan:         make(chan func()),
		worldCfg:         opts.World,
		stats:            opts.Stats,
		log:              Log.With("room", id),
		sendQueue:        opts.Server.SendQueue,
		maxInputsPerTick: opts.Server.MaxInputsPerTick,
		metrics:          &RoomMetrics{},
		quit:             make(chan struct{}),
		stopped:          make(chan struct{}),
	}
	if opts.TraceDir != "" {
		r.trace = tracelog.NewRecorder(opts.TraceDir, id, r.log)
	}
	if err := r.newWorld(opts.Seed); err != nil {
		if r.trace != nil {
			_ = r.trace.Close()
		}
		return nil, err
	}
	r.publish()
	return r, nil
}

// newWorld 按种子重建生成器（Reset 不换种子，换种子走这里）
func (r *Room) newWorld(seed int64) error {
	opts := []world.Option{world.WithLogger(r.log)}
	if r.trace != nil {
		opts = append(opts, world.WithObserver(r.trace.Observe))
	}
	w, err := world.New(r.worldCfg, seed, opts...)
	if err != nil {
		return fmt.Errorf("room %s: %w", r.ID, err)
	}
	r.world = w
	r.beginRun()
	return nil
}

func (r *Room) beginRun() {
	r.metrics.IncRun()
	r.runStart = time.Now()
	r.runTicks = 0
	r.debrisTTL = r.debrisTTL[:0]
	r.lastVersion = 0
	for _, p := range r.Players {
		p.HasView = false
		p.Health = maxHealth
		p.Score = 0
		p.Boots = 0
	}
}

// endRun 把本局摘要写入统计库
func (r *Room) endRun(reason string) {
	if r.stats == nil || r.world == nil {
		return
	}
	st := r.world.Stats()
	r.stats.Record(statsdb.Run{
		Room:        r.ID,
		Seed:        r.world.Seed(),
		StartedAt:   r.runStart,
		EndedAt:     time.Now(),
		Ticks:       r.runTicks,
		Spawned:     st.Spawned,
		Recycled:    st.Recycled,
		Forced:      st.ForcedRecycles,
		Strict:      st.Strict,
		Emergency:   st.Emergency,
		Fallback:    st.Fallback,
		Entities:    st.EntitiesSpawned,
		Consumed:    st.Consumed,
		Checkpoints: st.Checkpoints,
		MaxHeightM:  int(st.MaxHeight / 10),
		Reason:      reason,
	})
}

// JoinPlayer 将玩家加入房间；下一次广播发送完整状态。同名玩家顶替旧连接
func (r *Room) JoinPlayer(id PlayerID, conn *ClientConn) *Player {
	if old, ok := r.Players[id]; ok && old.Conn != nil {
		old.Conn.Close()
	}
	p := &Player{ID: id, Health: maxHealth, Conn: conn}
	r.Players[id] = p
	r.lastVersion = 0
	r.metrics.IncJoin()
	r.log.Infof("player joined: %s", id)
	return p
}

// LeavePlayer 将玩家移出房间
func (r *Room) LeavePlayer(id PlayerID) {
	if p, ok := r.Players[id]; ok {
		if p.Conn != nil {
			p.Conn.Close()
		}
		delete(r.Players, id)
		r.metrics.IncLeave()
		r.log.Infof("player left: %s", id)
	}
}

// OnInput 入站输入（不立即改变世界），仅记录意图，等下一次 Tick 处理
func (r *Room) OnInput(in Input) {
	// 不阻塞：通道满时丢弃，保证 Tick 准时
	select {
	case r.inputChan <- in:
	default:
		r.metrics.IncChanFullDiscarded()
	}
}

type leaveReq struct {
	pid  PlayerID
	conn *ClientConn
}

// RequestLeave 请求在 Tick 线程中移除玩家，避免并发改动房间状态。
// conn 不再是该玩家当前连接时忽略
func (r *Room) RequestLeave(pid PlayerID, conn *ClientConn) {
	select {
	case r.leaveChan <- leaveReq{pid: pid, conn: conn}:
	case <-r.stopped:
	}
}

// BeginTick 帧开始：推进帧号，重置帧内计数
func (r *Room) BeginTick(dt time.Duration) {
	r.tickSeq++
	r.runTicks++
	r.inputsThisTick = 0
	r.clockMs += float64(dt) / float64(time.Millisecond)
}

// ProcessInputs 处理当前帧的所有输入意图（非阻塞 drain）
func (r *Room) ProcessInputs() {
	for {
		select {
		case lr := <-r.leaveChan:
			if p, ok := r.Players[lr.pid]; ok && p.Conn == lr.conn {
				r.LeavePlayer(lr.pid)
			}
		case in := <-r.inputChan:
			r.applyInput(in)
		default:
			return
		}
	}
}

func (r *Room) applyInput(in Input) {
	p, ok := r.Players[in.PlayerID]
	if !ok {
		return
	}
	if r.inputsThisTick >= r.maxInputsPerTick {
		r.metrics.IncRateLimited()
		return
	}
	if in.Seq != 0 {
		if in.Seq <= p.LastSeq {
			r.metrics.IncOldSeqIgnored()
			return
		}
		p.LastSeq = in.Seq
	}
	r.inputsThisTick++
	r.metrics.IncAccepted()

	switch in.Kind {
	case InputView:
		p.View = in.View
		p.HasView = true
	case InputReset:
		r.endRun("reset")
		r.world.Reset()
		r.beginRun()
		r.log.Infof("world reset by %s", p.ID)
	case InputConsume:
		if e, ok := r.world.Consume(in.EntityID); ok {
			p.collect(e)
		}
	case InputTraction:
		if p.Boots > 0 && r.world.ApplyTraction(in.PlatformID) {
			p.Boots--
		}
	case InputCheckpoint:
		r.world.ActivateCheckpoint(in.EntityID)
	}
}

// leader 取爬得最高的玩家视角驱动生成
func (r *Room) leader() (world.View, bool) {
	var best world.View
	found := false
	for _, p := range r.Players {
		if !p.HasView {
			continue
		}
		if !found || p.View.PlayerY < best.PlayerY {
			best = p.View
			found = true
		}
	}
	return best, found
}

// UpdateWorld 推进生成器并按节奏发射落石
func (r *Room) UpdateWorld() []world.DebrisSpawn {
	v, ok := r.leader()
	if !ok {
		return nil
	}
	r.world.Tick(v)

	kept := r.debrisTTL[:0]
	for _, until := range r.debrisTTL {
		if until > r.clockMs {
			kept = append(kept, until)
		}
	}
	r.debrisTTL = kept

	d, spawned := r.world.Debris(r.clockMs, v.CameraTop, len(r.debrisTTL))
	if !spawned {
		return nil
	}
	r.debrisTTL = append(r.debrisTTL, r.clockMs+d.LifespanMs)
	r.metrics.IncDebris()
	return []world.DebrisSpawn{d}
}

type stateMessage struct {
	Type    string        `json:"type"`
	Room    string        `json:"room"`
	Players []PlayerState `json:"players"`
	world.Snapshot
}

type debrisMessage struct {
	Type string `json:"type"`
	world.DebrisSpawn
}

// BroadcastDelta 世界版本变化时广播完整快照；落石逐条发送
func (r *Room) BroadcastDelta(debris []world.DebrisSpawn) {
	if len(r.Players) == 0 {
		return
	}
	if v := r.world.Version(); v != r.lastVersion {
		r.lastVersion = v
		msg := stateMessage{Type: "state", Room: r.ID, Snapshot: r.world.Snapshot()}
		for _, p := range r.Players {
			msg.Players = append(msg.Players, p.state(r.world))
		}
		b, err := json.Marshal(msg)
		if err != nil {
			r.log.Errorf("marshal state: %v", err)
			return
		}
		r.broadcast(b)
	}
	for _, d := range debris {
		b, _ := json.Marshal(debrisMessage{Type: "debris", DebrisSpawn: d})
		r.broadcast(b)
	}
}

func (r *Room) broadcast(b []byte) {
	for _, p := range r.Players {
		if p.Conn != nil {
			p.Conn.Enqueue(b)
		}
	}
	r.metrics.IncBroadcast()
}

// publish 发布只读状态副本
func (r *Room) publish() {
	s := RoomStatus{
		Seed:          r.world.Seed(),
		Tick:          r.tickSeq,
		Players:       len(r.Players),
		LivePlatforms: r.world.LivePlatforms(),
		LiveBound:     r.world.LiveBound(),
		Entities:      len(r.world.Entities()),
		Debris:        len(r.debrisTTL),
		MaxInputs:     r.maxInputsPerTick,
		World:         r.world.Stats(),
	}
	r.pubMu.Lock()
	r.pub = s
	r.pubMu.Unlock()
}

// Status 最近一次 Tick 结束时的状态
func (r *Room) Status() RoomStatus {
	r.pubMu.RLock()
	defer r.pubMu.RUnlock()
	return r.pub
}
