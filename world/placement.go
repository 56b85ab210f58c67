package world

import (
	"fmt"
	"math"
)

// Strategy 放置结果所用的策略
type Strategy int

const (
	// StrategyStrict 在安全可达区间内、满足最小间距
	StrategyStrict Strategy = iota
	// StrategyEmergency 扩大可达区间后满足最小间距（不超过物理极限）
	StrategyEmergency
	// StrategyFallback 约束不可满足，取最接近的降级位置
	StrategyFallback
	// StrategyStarter 起始平台，不经过求解器
	StrategyStarter
)

func (s Strategy) String() string {
	switch s {
	case StrategyStrict:
		return "strict"
	case StrategyEmergency:
		return "emergency"
	case StrategyFallback:
		return "fallback"
	case StrategyStarter:
		return "starter"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

func (s Strategy) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Strategy) UnmarshalText(b []byte) (err error) {
	*s, err = parseEnum(b, StrategyStarter+1, "strategy")
	return err
}

// Side 候选区间位于上一平台的哪一侧
type Side int

const (
	SideLeft Side = iota
	SideRight
	SideNone
)

func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	default:
		return "none"
	}
}

// PlaceRequest 一次放置的输入
type PlaceRequest struct {
	AnchorX   float64
	Reach     float64
	Width     float64
	PrevWidth float64
}

// Placement 放置结果，X 恒为有限值
type Placement struct {
	X        float64
	Strategy Strategy
	Side     Side
	MinSep   float64
}

type interval struct{ lo, hi float64 }

func (iv interval) empty() bool            { return iv.hi < iv.lo }
func (iv interval) width() float64         { return iv.hi - iv.lo }
func (iv interval) mid() float64           { return (iv.lo + iv.hi) / 2 }
func (iv interval) clamp(x float64) float64 { return math.Max(iv.lo, math.Min(iv.hi, x)) }

// distance 点到区间的距离，区间内为 0
func (iv interval) distance(x float64) float64 {
	switch {
	case x < iv.lo:
		return iv.lo - x
	case x > iv.hi:
		return x - iv.hi
	}
	return 0
}

// Solver 放置求解器：同时满足可达、不重叠、不出界；不可行时降级，从不失败
type Solver struct {
	cfg       PlacementConfig
	boundsMin float64
	boundsMax float64
}

// NewSolver 由解析后的配置构造
func NewSolver(r *Resolved) *Solver {
	return &Solver{cfg: r.Placement, boundsMin: r.BoundsMin, boundsMax: r.BoundsMax}
}

// MinSeparation 中心距下限：半宽之和（扣除允许的重叠）加动态缓冲，缓冲随占地增大而收缩
func (s *Solver) MinSeparation(width, prevWidth float64) float64 {
	sum := width + prevWidth
	buffer := s.cfg.BufferBase - sum*s.cfg.BufferShrink
	buffer = math.Max(s.cfg.BufferMin, math.Min(s.cfg.BufferMax, buffer))
	return sum/2 - s.cfg.MaxOverlap*math.Min(width, prevWidth) + buffer
}

// footprintBounds 新平台中心可取的横向范围
func (s *Solver) footprintBounds(width float64) interval {
	return interval{lo: s.boundsMin + width/2, hi: s.boundsMax - width/2}
}

// reachable 可达区间与墙内范围的交集
func (s *Solver) reachable(req PlaceRequest, k float64) interval {
	b := s.footprintBounds(req.Width)
	return interval{
		lo: math.Max(b.lo, req.AnchorX-req.Reach*k),
		hi: math.Min(b.hi, req.AnchorX+req.Reach*k),
	}
}

type zone struct {
	iv   interval
	side Side
}

// zones 从可达区间中扣除上一平台的排斥区，得到 0~2 个候选子区间
func (s *Solver) zones(iv interval, anchorX, minSep float64) ([2]zone, int) {
	var out [2]zone
	n := 0
	if iv.empty() {
		return out, 0
	}
	left := interval{lo: iv.lo, hi: math.Min(iv.hi, anchorX-minSep)}
	if !left.empty() && left.width() >= s.cfg.MinZoneWidth {
		out[n] = zone{iv: left, side: SideLeft}
		n++
	}
	right := interval{lo: math.Max(iv.lo, anchorX+minSep), hi: iv.hi}
	if !right.empty() && right.width() >= s.cfg.MinZoneWidth {
		out[n] = zone{iv: right, side: SideRight}
		n++
	}
	return out, n
}

// pick 两侧都可行时均匀随机选一侧，再在子区间内均匀取点
func pick(rng Rand, zs [2]zone, n int) (float64, Side) {
	z := zs[0]
	if n > 1 {
		z = zs[rng.Intn(n)]
	}
	return z.iv.lo + rng.Float64()*z.iv.width(), z.side
}

// Place 计算新平台中心 X
func (s *Solver) Place(rng Rand, req PlaceRequest) Placement {
	minSep := s.MinSeparation(req.Width, req.PrevWidth)
	k := s.cfg.SafetyShrink

	iv := s.reachable(req, k)
	if zs, n := s.zones(iv, req.AnchorX, minSep); n > 0 {
		x, side := pick(rng, zs, n)
		return Placement{X: x, Strategy: StrategyStrict, Side: side, MinSep: minSep}
	}

	// 紧急扩展：放宽安全收缩，但不超过物理可达
	if ek := math.Min(1, k*(1+s.cfg.EmergencyExpand)); ek > k {
		iv = s.reachable(req, ek)
		if zs, n := s.zones(iv, req.AnchorX, minSep); n > 0 {
			x, side := pick(rng, zs, n)
			return Placement{X: x, Strategy: StrategyEmergency, Side: side, MinSep: minSep}
		}
	}

	return Placement{X: s.fallback(iv, req, minSep), Strategy: StrategyFallback, Side: SideNone, MinSep: minSep}
}

// fallback 取离区间最近的 anchor±minSep 并夹入区间；区间为空时取中点并夹入墙内
func (s *Solver) fallback(iv interval, req PlaceRequest, minSep float64) float64 {
	if iv.empty() {
		return s.footprintBounds(req.Width).clamp(iv.mid())
	}
	left, right := req.AnchorX-minSep, req.AnchorX+minSep
	best := left
	if iv.distance(right) < iv.distance(left) {
		best = right
	}
	return iv.clamp(best)
}
