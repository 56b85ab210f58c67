package world

// DebrisSpawn 一块落石的初始状态，由物理模块负责后续模拟与碰撞
type DebrisSpawn struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	VX         float64 `json:"vx"`
	VY         float64 `json:"vy"`
	Spin       float64 `json:"spin"`
	Angle      float64 `json:"angle"`
	Scale      float64 `json:"scale"`
	Damage     int     `json:"damage"`
	LifespanMs float64 `json:"lifespanMs"`
}

type debrisState struct {
	armed  bool
	nextAt float64
}

// Debris 按节奏在相机上方生成落石。live 为物理模块当前在场的落石数。
// 危险物密度越高间隔越短。同一帧最多生成一块
func (w *World) Debris(nowMs, cameraTop float64, live int) (DebrisSpawn, bool) {
	dc := w.cfg.Debris
	if dc.SpawnMs <= 0 || dc.Max <= 0 {
		return DebrisSpawn{}, false
	}
	if !w.debris.armed {
		w.debris = debrisState{armed: true, nextAt: nowMs + dc.SpawnMs}
		return DebrisSpawn{}, false
	}
	if nowMs < w.debris.nextAt || live >= dc.Max {
		return DebrisSpawn{}, false
	}

	prof := w.curve.At(w.cfg.BaseY - cameraTop)
	d := DebrisSpawn{
		X:          uniform(w.rng, w.cfg.BoundsMin, w.cfg.BoundsMax),
		Y:          cameraTop - uniform(w.rng, 80, 180),
		Scale:      uniform(w.rng, 0.7, 1.2) * dc.Scale,
		Angle:      uniform(w.rng, 0, 360),
		VX:         uniform(w.rng, -dc.VXMax, dc.VXMax),
		VY:         uniform(w.rng, dc.VYMin, dc.VYMax),
		Spin:       uniform(w.rng, -dc.SpinMax, dc.SpinMax),
		Damage:     dc.Damage,
		LifespanMs: dc.Lifespan,
	}
	w.debris.nextAt = nowMs + uniform(w.rng, 0.9, 1.4)*dc.SpawnMs/(1+prof.HazardDensity)
	return d, true
}
