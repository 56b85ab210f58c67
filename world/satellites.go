package world

import (
	"fmt"
	"math"
)

// Zone 附属实体候选区域（带标签的固定变体，经共享随机源按下标选择）
type Zone int

const (
	// ZoneOffPath 偏离直线跳跃路径一段可达距离的比例
	ZoneOffPath Zone = iota
	// ZoneDestinationSide 偏向下一块平台所在的一侧
	ZoneDestinationSide
	// ZoneBetween 两个锚点之间，小幅抖动
	ZoneBetween
	// ZoneEdgeNear 起跳平台边缘附近
	ZoneEdgeNear
	// ZoneFarSide 与下一块平台相反的一侧
	ZoneFarSide
	// ZoneOnPlatform 直接放在平台上（存档点）
	ZoneOnPlatform
)

func (z Zone) String() string {
	switch z {
	case ZoneOffPath:
		return "off_path"
	case ZoneDestinationSide:
		return "destination_side"
	case ZoneBetween:
		return "between"
	case ZoneEdgeNear:
		return "edge_near"
	case ZoneFarSide:
		return "far_side"
	case ZoneOnPlatform:
		return "on_platform"
	default:
		return fmt.Sprintf("zone(%d)", int(z))
	}
}

func (z Zone) MarshalText() ([]byte, error) { return []byte(z.String()), nil }

func (z *Zone) UnmarshalText(b []byte) (err error) {
	*z, err = parseEnum(b, ZoneOnPlatform+1, "zone")
	return err
}

// zoneSpec 横向偏移取可达距离的比例区间，纵向取间隙的比例区间
type zoneSpec struct {
	zone       Zone
	lateralLo  float64
	lateralHi  float64
	verticalLo float64
	verticalHi float64
}

// 各类别的候选区域表。金币放在有风险但可达的位置，补给放在安全位置，危险物避开跳跃路径
var zoneTable = [KindCheckpoint][]zoneSpec{
	KindCoin: {
		{ZoneOffPath, 0.25, 0.45, 0.4, 0.7},
		{ZoneDestinationSide, 0.15, 0.3, 0.6, 0.8},
		{ZoneBetween, -0.1, 0.1, 0.3, 0.6},
	},
	KindHealthPack: {
		{ZoneEdgeNear, 0.1, 0.2, 0.3, 0.5},
		{ZoneBetween, -0.07, 0.07, 0.2, 0.4},
		{ZoneDestinationSide, 0.07, 0.17, 0.8, 0.9},
	},
	KindTraction: {
		{ZoneEdgeNear, 0.1, 0.2, 0.3, 0.5},
		{ZoneBetween, -0.07, 0.07, 0.2, 0.4},
		{ZoneDestinationSide, 0.07, 0.17, 0.8, 0.9},
	},
	KindHazard: {
		{ZoneOffPath, 0.3, 0.5, 0.4, 0.7},
		{ZoneFarSide, 0.2, 0.4, 0.3, 0.6},
	},
}

func uniform(rng Rand, lo, hi float64) float64 { return lo + rng.Float64()*(hi-lo) }

// coPlace 为新平台掷骰生成附属实体：各类别独立判定，按密度概率生成
func (w *World) coPlace(prev, next Anchor, gap int, reach float64, prof Profile, p *Platform) {
	densities := [KindCheckpoint]float64{
		KindCoin:       prof.CollectibleDensity,
		KindHealthPack: prof.HealthDensity,
		KindTraction:   prof.TractionDensity,
		KindHazard:     prof.HazardDensity,
	}
	for k := KindCoin; k < KindCheckpoint; k++ {
		if w.rng.Float64() >= densities[k] {
			continue
		}
		table := zoneTable[k]
		spec := table[w.rng.Intn(len(table))]
		x, y := w.zonePosition(spec, prev, next, float64(gap), reach)
		if w.tooClose(k, y) {
			w.stats.EntitiesSuppressed++
			continue
		}
		w.addEntity(k, x, y, spec.zone, w.payload(k, 0))
	}
	w.maybeCheckpoint(p)
}

// zonePosition 计算候选区域内的坐标，并夹入横向边界与“不高于 prev.Y - gap·ceiling”
func (w *World) zonePosition(spec zoneSpec, prev, next Anchor, gap, reach float64) (float64, float64) {
	dir := -1.0
	if next.X > prev.X {
		dir = 1
	}
	midX := (prev.X + next.X) / 2
	lateral := uniform(w.rng, spec.lateralLo, spec.lateralHi) * reach

	var x float64
	switch spec.zone {
	case ZoneOffPath:
		x = midX + randomSign(w.rng)*lateral
	case ZoneDestinationSide:
		x = prev.X + dir*lateral
	case ZoneBetween:
		x = midX + lateral
	case ZoneEdgeNear:
		x = prev.X + randomSign(w.rng)*lateral
	case ZoneFarSide:
		x = prev.X - dir*lateral
	default:
		x = next.X
	}
	y := prev.Y - gap*uniform(w.rng, spec.verticalLo, spec.verticalHi)

	ec := w.cfg.Entities
	x = math.Max(w.cfg.BoundsMin+ec.EdgePad, math.Min(w.cfg.BoundsMax-ec.EdgePad, x))
	y = math.Max(y, prev.Y-gap*ec.CeilingFrac)
	return x, y
}

func randomSign(rng Rand) float64 {
	if rng.Intn(2) == 0 {
		return -1
	}
	return 1
}

// tooClose 同类实体的最小垂直间距，避免扎堆
func (w *World) tooClose(k EntityKind, y float64) bool {
	minSep := w.cfg.Entities.MinSeparation[k]
	for i := range w.entities {
		e := &w.entities[i]
		if e.Kind == k && math.Abs(e.Y-y) < minSep {
			return true
		}
	}
	return false
}

func (w *World) payload(k EntityKind, heightM int) Payload {
	ec := w.cfg.Entities
	switch k {
	case KindCoin:
		return Payload{Score: ec.CoinScore}
	case KindHealthPack:
		return Payload{Heal: ec.HealAmount}
	case KindTraction:
		return Payload{Traction: ec.TractionCharges}
	case KindHazard:
		return Payload{Damage: ec.HazardDamage}
	case KindCheckpoint:
		return Payload{HeightMeters: heightM}
	}
	return Payload{}
}

func (w *World) addEntity(k EntityKind, x, y float64, z Zone, pl Payload) SatelliteEntity {
	e := SatelliteEntity{ID: w.nextEntityID, Kind: k, X: x, Y: y, Zone: z, Payload: pl}
	w.nextEntityID++
	w.entities = append(w.entities, e)
	w.stats.EntitiesSpawned++
	return e
}

// maybeCheckpoint 平台高度跨过下一个里程碑时，在平台顶面放置存档点
func (w *World) maybeCheckpoint(p *Platform) {
	interval := w.cfg.Entities.CheckpointInterval
	if interval <= 0 {
		return
	}
	m := w.HeightMeters(p.Y)
	milestone := m / interval * interval
	if milestone == 0 || milestone <= w.lastCheckpointM {
		return
	}
	w.lastCheckpointM = milestone
	e := w.addEntity(KindCheckpoint, p.X, p.Y-p.Height/2, ZoneOnPlatform, w.payload(KindCheckpoint, milestone))
	w.stats.Checkpoints++
	w.emit(Event{Kind: EventCheckpoint, Tick: w.tick, Seq: p.Seq, PlatformID: p.ID, X: e.X, Y: e.Y, Height: w.cfg.BaseY - p.Y})
	w.log.Debugf("checkpoint placed: %dm at (%.1f,%.1f)", milestone, e.X, e.Y)
}

// cullEntities 移除落在回收线以下的实体；当前激活的存档点保留
func (w *World) cullEntities(line float64) {
	kept := w.entities[:0]
	removed := 0
	for _, e := range w.entities {
		if e.Y > line && !(e.Kind == KindCheckpoint && e.ID == w.checkpointID) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	w.entities = kept
	if removed > 0 {
		w.stats.EntitiesCulled += uint64(removed)
		w.version++
	}
}

func (w *World) findEntity(id uint64) int {
	for i := range w.entities {
		if w.entities[i].ID == id {
			return i
		}
	}
	return -1
}

// Consume 玩家拾取/触碰实体后的回调：移除并返回该实体。存档点请用 ActivateCheckpoint
func (w *World) Consume(id uint64) (SatelliteEntity, bool) {
	i := w.findEntity(id)
	if i < 0 || w.entities[i].Kind == KindCheckpoint {
		return SatelliteEntity{}, false
	}
	e := w.entities[i]
	w.entities = append(w.entities[:i], w.entities[i+1:]...)
	w.stats.Consumed++
	w.version++
	return e, true
}

// ActivateCheckpoint 激活存档点，成为当前复活点
func (w *World) ActivateCheckpoint(id uint64) bool {
	i := w.findEntity(id)
	if i < 0 || w.entities[i].Kind != KindCheckpoint || w.entities[i].Active {
		return false
	}
	w.entities[i].Active = true
	w.checkpointID = id
	w.version++
	w.log.Infof("checkpoint activated: %dm", w.entities[i].Payload.HeightMeters)
	return true
}

// CurrentCheckpoint 当前激活的存档点
func (w *World) CurrentCheckpoint() (SatelliteEntity, bool) {
	if w.checkpointID == 0 {
		return SatelliteEntity{}, false
	}
	if i := w.findEntity(w.checkpointID); i >= 0 {
		return w.entities[i], true
	}
	return SatelliteEntity{}, false
}

// ApplyTraction 防滑道具生效：冰面平台改为泥土属性并标记 Modified，不改变位置。
// 回收时标记清除
func (w *World) ApplyTraction(platformID int) bool {
	if platformID < 0 || platformID >= w.n {
		return false
	}
	p := &w.slots[platformID]
	if p.Modified || p.Material != MaterialIce {
		return false
	}
	p.Modified = true
	w.version++
	return true
}
