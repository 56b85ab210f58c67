package world

import "math"

// minReach 退化间隙下的最小水平可达距离
const minReach = 36

// runUpSteps 助跑比例采样步数（r = 0, 0.1, ..., 1.0）
const runUpSteps = 10

// MaxJumpHeight 原地起跳的最大上升高度 v²/(2g)
func MaxJumpHeight(p MovementProfile) float64 {
	return p.TakeoffSpeed * p.TakeoffSpeed / (2 * p.Gravity)
}

// GapRange 有效垂直间隙区间 [floor(lo·H), floor(hi·H)]
func GapRange(p MovementProfile, loFrac, hiFrac float64) (lo, hi int) {
	h := MaxJumpHeight(p)
	return int(math.Floor(loFrac * h)), int(math.Floor(hiFrac * h))
}

// MaxHorizontalReach 给定间隙下的最大水平位移。
// 助跑越多水平速度越大，但起跳竖直速度按 RunUpReduction 折损；
// 逐档采样取最大值，结果不低于 minReach。
func MaxHorizontalReach(p MovementProfile, gap float64) float64 {
	need := 2 * p.Gravity * gap
	best := 0.0
	for i := 0; i <= runUpSteps; i++ {
		r := float64(i) / runUpSteps
		vy := p.TakeoffSpeed * (1 - p.RunUpReduction*r)
		vy2 := vy * vy
		if vy2 < need {
			continue
		}
		t := (vy + math.Sqrt(vy2-need)) / p.Gravity
		vx := math.Min(p.MaxSpeedX, r*(p.MoveSpeed+p.SideImpulseMax))
		if dx := vx * t; dx > best {
			best = dx
		}
	}
	return math.Max(best, minReach)
}

// SampleGap 在 [GapMin, GapMax] 上均匀抽取整数间隙
func (r *Resolved) SampleGap(rng Rand) int {
	return r.GapMin + rng.Intn(r.GapMax-r.GapMin+1)
}

// Reach 当前配置下某间隙的可达预算
func (r *Resolved) Reach(gap int) float64 {
	return MaxHorizontalReach(r.Movement, float64(gap))
}
