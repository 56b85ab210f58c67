package tracelog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"pixelclimber/world"
)

func readRecords(t *testing.T, path string) []Record {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer dec.Close()

	var out []Record
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var r Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("decode %q: %v", sc.Text(), err)
		}
		out = append(out, r)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func TestWriterRotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "events")
	now := time.Date(2024, 5, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	if err := w.Write(Record{Room: "a", Event: world.Event{Kind: world.EventSpawn, Seq: 1}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Write(Record{Room: "a", Event: world.Event{Kind: world.EventSpawn, Seq: 2}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := w.Write(Record{Room: "a", Event: world.Event{Kind: world.EventRecycle, Seq: 3}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "events-*.jsonl.zst"))
	sort.Strings(files)
	if len(files) != 2 {
		t.Fatalf("files = %v, want 2", files)
	}
	if filepath.Base(files[0]) != "events-2024-05-01-10.jsonl.zst" {
		t.Fatalf("first file = %s", filepath.Base(files[0]))
	}
	first, second := readRecords(t, files[0]), readRecords(t, files[1])
	if len(first) != 2 || len(second) != 1 {
		t.Fatalf("records per file = %d/%d", len(first), len(second))
	}
	if second[0].Kind != world.EventRecycle || second[0].Seq != 3 {
		t.Fatalf("rotated record = %+v", second[0])
	}
}

func TestRecorderCapturesWorldEvents(t *testing.T) {
	dir := t.TempDir()
	rec := NewRecorder(dir, "room-1", nil)
	w, err := world.New(world.DefaultConfig(), 9, world.WithObserver(rec.Observe))
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	for i := 0; i < 300; i++ {
		y := 650 - float64(i)*10
		w.Tick(world.View{CameraTop: y - 480, PlayerY: y})
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	rec.Observe(world.Event{Kind: world.EventSpawn})

	files, _ := filepath.Glob(filepath.Join(dir, "room-1", "events-*.jsonl.zst"))
	var all []Record
	for _, f := range files {
		all = append(all, readRecords(t, f)...)
	}
	st := rec.Stats()
	if int64(len(all)) != st["written"] || st["dropped"] != 0 {
		t.Fatalf("read %d records, stats %v", len(all), st)
	}
	if len(all) == 0 || all[0].Kind != world.EventReset || all[0].Room != "room-1" {
		t.Fatalf("first record = %+v", all)
	}
	placed := 0
	for _, r := range all {
		if r.Kind == world.EventSpawn || r.Kind == world.EventRecycle {
			placed++
			if r.Gap == 0 || r.Reach == 0 {
				t.Fatalf("placement record missing gap/reach: %+v", r)
			}
		}
	}
	ws := w.Stats()
	if uint64(placed) != ws.Spawned+ws.Recycled {
		t.Fatalf("placements traced = %d, world reports %d", placed, ws.Spawned+ws.Recycled)
	}
}
