package world

import (
	"math"
	"testing"
)

func TestZonePositionClamped(t *testing.T) {
	w := testWorld(t, 2)
	r := w.Config()
	ec := r.Entities
	prev := Anchor{X: 100, Y: 0}
	next := Anchor{X: 300, Y: -150}
	for k := KindCoin; k < KindCheckpoint; k++ {
		for _, spec := range zoneTable[k] {
			for i := 0; i < 200; i++ {
				x, y := w.zonePosition(spec, prev, next, 150, 400)
				if x < r.BoundsMin+ec.EdgePad || x > r.BoundsMax-ec.EdgePad {
					t.Fatalf("%v/%v: x=%v outside padded bounds", k, spec.zone, x)
				}
				if y >= prev.Y || y < prev.Y-150*ec.CeilingFrac-1e-9 {
					t.Fatalf("%v/%v: y=%v outside (%v,%v]", k, spec.zone, y, prev.Y-150*ec.CeilingFrac, prev.Y)
				}
			}
		}
	}
}

func TestEntitiesSpacedAndBounded(t *testing.T) {
	w := testWorld(t, 31)
	r := w.Config()
	ec := r.Entities
	seenKinds := map[EntityKind]bool{}
	climb(w, 4000, 8, func(v View) {
		es := w.Entities()
		for i, e := range es {
			seenKinds[e.Kind] = true
			if e.Kind == KindCheckpoint {
				continue
			}
			if e.X < r.BoundsMin+ec.EdgePad-1e-9 || e.X > r.BoundsMax-ec.EdgePad+1e-9 {
				t.Fatalf("entity %d x=%v outside padded bounds", e.ID, e.X)
			}
			if e.Y > v.PlayerY+r.DespawnBehind {
				t.Fatalf("entity %d at y=%v survived culling", e.ID, e.Y)
			}
			for _, o := range es[i+1:] {
				if o.Kind == e.Kind && math.Abs(o.Y-e.Y) < ec.MinSeparation[e.Kind] {
					t.Fatalf("%v entities %d/%d only %v apart", e.Kind, e.ID, o.ID, math.Abs(o.Y-e.Y))
				}
			}
		}
	})
	for k := KindCoin; k < numKinds; k++ {
		if !seenKinds[k] {
			t.Errorf("no %v entity generated over the climb", k)
		}
	}
	st := w.Stats()
	if st.EntitiesSpawned == 0 || st.EntitiesCulled == 0 {
		t.Fatalf("entity stats = %+v", st)
	}
}

func TestEntityPayloads(t *testing.T) {
	w := testWorld(t, 6)
	ec := w.Config().Entities
	climb(w, 800, 8, nil)
	for _, e := range w.Entities() {
		var ok bool
		switch e.Kind {
		case KindCoin:
			ok = e.Payload == Payload{Score: ec.CoinScore}
		case KindHealthPack:
			ok = e.Payload == Payload{Heal: ec.HealAmount}
		case KindTraction:
			ok = e.Payload == Payload{Traction: ec.TractionCharges}
		case KindHazard:
			ok = e.Payload == Payload{Damage: ec.HazardDamage}
		case KindCheckpoint:
			ok = e.Payload.HeightMeters > 0 && e.Payload.HeightMeters%ec.CheckpointInterval == 0
		}
		if !ok {
			t.Fatalf("entity %d (%v) payload %+v", e.ID, e.Kind, e.Payload)
		}
	}
}

func TestConsume(t *testing.T) {
	w := testWorld(t, 8)
	var coin SatelliteEntity
	found := false
	for _, e := range w.Entities() {
		if e.Kind == KindCoin {
			coin, found = e, true
			break
		}
	}
	if !found {
		t.Fatalf("no coin among %d initial entities", len(w.Entities()))
	}
	v := w.Version()
	got, ok := w.Consume(coin.ID)
	if !ok || got.ID != coin.ID || got.Payload.Score != w.Config().Entities.CoinScore {
		t.Fatalf("Consume = %+v, %v", got, ok)
	}
	if w.Version() == v {
		t.Fatalf("version unchanged after consume")
	}
	for _, e := range w.Entities() {
		if e.ID == coin.ID {
			t.Fatalf("consumed coin still present")
		}
	}
	if _, ok := w.Consume(coin.ID); ok {
		t.Fatalf("coin consumed twice")
	}
	if w.Stats().Consumed != 1 {
		t.Fatalf("consumed stat = %d", w.Stats().Consumed)
	}
}

func TestCheckpointLifecycle(t *testing.T) {
	w := testWorld(t, 10)
	interval := w.Config().Entities.CheckpointInterval
	climb(w, 200, 8, nil)

	var cp SatelliteEntity
	for _, e := range w.Entities() {
		if e.Kind == KindCheckpoint {
			cp = e
			break
		}
	}
	if cp.ID == 0 {
		t.Fatalf("no checkpoint placed")
	}
	if cp.Payload.HeightMeters != interval || cp.Zone != ZoneOnPlatform {
		t.Fatalf("first checkpoint = %+v", cp)
	}
	if _, ok := w.Consume(cp.ID); ok {
		t.Fatalf("checkpoint consumed as a pickup")
	}
	if !w.ActivateCheckpoint(cp.ID) {
		t.Fatalf("ActivateCheckpoint failed")
	}
	if w.ActivateCheckpoint(cp.ID) {
		t.Fatalf("checkpoint activated twice")
	}
	cur, ok := w.CurrentCheckpoint()
	if !ok || cur.ID != cp.ID || !cur.Active {
		t.Fatalf("CurrentCheckpoint = %+v, %v", cur, ok)
	}

	climb(w, 2000, 8, nil)
	if cur, ok := w.CurrentCheckpoint(); !ok || cur.ID != cp.ID {
		t.Fatalf("active checkpoint culled")
	}
	if s := w.Snapshot(); s.Checkpoint == nil || s.Checkpoint.ID != cp.ID {
		t.Fatalf("snapshot checkpoint = %+v", s.Checkpoint)
	}
	if st := w.Stats(); st.Checkpoints < 2 {
		t.Fatalf("checkpoints placed = %d", st.Checkpoints)
	}
}

func TestZeroDensitiesSpawnNothing(t *testing.T) {
	c := DefaultConfig()
	d := &c.Difficulty
	d.EarlyHazard, d.MidHazard = 0, 0
	d.EarlyCollectible, d.LateCollectible = 0, 0
	d.HealthDensity, d.TractionBase, d.TractionPerIce = 0, 0, 0
	c.Entities.CheckpointInterval = 0
	w, err := New(c, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	climb(w, 3000, 8, nil)
	if n := len(w.Entities()); n != 0 {
		t.Fatalf("%d entities with zero densities", n)
	}
	if w.Stats().EntitiesSpawned != 0 {
		t.Fatalf("entities spawned = %d", w.Stats().EntitiesSpawned)
	}
}
