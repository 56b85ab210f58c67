package statsdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestParseSpec(t *testing.T) {
	cases := []struct {
		spec, driver, dsn string
	}{
		{"sqlite:data/stats.db", DriverSQLite, "data/stats.db"},
		{"postgres:host=db user=climber", DriverPostgres, "host=db user=climber"},
		{"pg:host=db", DriverPostgres, "host=db"},
		{"postgres://u:p@db/climb?sslmode=disable", DriverPostgres, "postgres://u:p@db/climb?sslmode=disable"},
		{"runs.db", DriverSQLite, "runs.db"},
	}
	for _, tc := range cases {
		d, dsn, err := ParseSpec(tc.spec)
		if err != nil || d != tc.driver || dsn != tc.dsn {
			t.Errorf("ParseSpec(%q) = %q, %q, %v", tc.spec, d, dsn, err)
		}
	}
	if _, _, err := ParseSpec(""); err == nil {
		t.Fatalf("empty spec accepted")
	}
}

func TestRebind(t *testing.T) {
	q := "SELECT a FROM runs WHERE room = ? LIMIT ?"
	if got := rebind(DriverPostgres, q); got != "SELECT a FROM runs WHERE room = $1 LIMIT $2" {
		t.Fatalf("postgres rebind = %q", got)
	}
	if got := rebind(DriverSQLite, q); got != q {
		t.Fatalf("sqlite rebind = %q", got)
	}
}

func TestQueueDropStats(t *testing.T) {
	s := &DB{ch: make(chan req, 1)}
	s.Record(Run{Room: "a"})
	s.Record(Run{Room: "b"})

	st := s.Stats()
	if st.Dropped != 1 || st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	db, err := Open("sqlite:"+filepath.Join(t.TempDir(), "nested", "stats.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	db.Record(Run{Room: "a", Seed: 1, StartedAt: start, EndedAt: start.Add(time.Minute), Ticks: 1200, Spawned: 44, Recycled: 90, Strict: 134, MaxHeightM: 512, Reason: "reset"})
	db.Record(Run{Room: "b", Seed: 2, StartedAt: start, EndedAt: start.Add(2 * time.Minute), Reason: "close"})
	db.Record(Run{Room: "a", Seed: 3, StartedAt: start, EndedAt: start.Add(3 * time.Minute), Fallback: 1, Reason: "close"})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	runs, err := db.Recent(ctx, "a", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 2 || runs[0].Seed != 3 || runs[1].Seed != 1 {
		t.Fatalf("runs for a = %+v", runs)
	}
	first := runs[1]
	if first.Ticks != 1200 || first.Spawned != 44 || first.Recycled != 90 || first.Strict != 134 || first.MaxHeightM != 512 {
		t.Fatalf("counters not preserved: %+v", first)
	}
	if !first.EndedAt.Equal(start.Add(time.Minute)) || first.Reason != "reset" {
		t.Fatalf("time/reason not preserved: %+v", first)
	}

	all, err := db.Recent(ctx, "", 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("all runs = %d, %v", len(all), err)
	}
	if st := db.Stats(); st.Written != 3 || st.Failed != 0 {
		t.Fatalf("stats = %+v", st)
	}

	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	db.Record(Run{Room: "late"})
	if st := db.Stats(); st.Dropped != 0 {
		t.Fatalf("record after close counted as drop: %+v", st)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := OpenDriver("mysql", "x", nil); err == nil {
		t.Fatalf("unknown driver accepted")
	}
}
