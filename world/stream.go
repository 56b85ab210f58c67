package world

// Tick 每帧调用一次：向上补足相机上方的内容，并原地回收落在玩家下方过远的平台
func (w *World) Tick(v View) {
	w.tick++
	w.view = v

	// 每次生成锚点至少上移 GapMin，循环必然终止；上限防止相机跳变时单帧卡死
	spawned := 0
	for w.anchor.Y > v.CameraTop-w.cfg.SpawnAhead {
		if spawned >= len(w.slots) {
			w.log.Warnf("spawn cap reached: tick=%d cameraTop=%.1f anchorY=%.1f", w.tick, v.CameraTop, w.anchor.Y)
			break
		}
		w.spawn()
		spawned++
	}

	line := v.PlayerY + w.cfg.DespawnBehind
	w.recycleBelow(line)
	w.cullEntities(line)
}

// spawn 取一个空槽生成新平台；池满时强制回收最底部的平台
func (w *World) spawn() {
	if w.n < len(w.slots) {
		slot := w.n
		w.n++
		w.stats.Spawned++
		w.placeInto(slot, EventSpawn, false)
		return
	}
	slot := w.order[0]
	w.order = append(w.order[:0], w.order[1:]...)
	w.slots[slot].State = Recyclable
	w.stats.Recycled++
	w.stats.ForcedRecycles++
	w.log.Warnf("platform pool full: forcing recycle of slot=%d y=%.1f capacity=%d", slot, w.slots[slot].Y, len(w.slots))
	w.placeInto(slot, EventRecycle, true)
}

// recycleBelow 回收 y > line 的平台：按当前锚点重新求位置，复用同一槽位
func (w *World) recycleBelow(line float64) {
	stale := w.scratch[:0]
	kept := w.order[:0]
	for _, slot := range w.order {
		if w.slots[slot].Y > line {
			stale = append(stale, slot)
			continue
		}
		kept = append(kept, slot)
	}
	w.order = kept
	for _, slot := range stale {
		w.slots[slot].State = Recyclable
		w.stats.Recycled++
		w.placeInto(slot, EventRecycle, false)
	}
	w.scratch = stale[:0]
}
