package tuning

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pixelclimber/world"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestShippedTuningMatchesDefaults(t *testing.T) {
	got, err := Load(filepath.Join("..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != Defaults() {
		t.Fatalf("configs/tuning.yaml drifted from Defaults():\n got %+v\nwant %+v", got, Defaults())
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	p := writeFile(t, "t.yaml", `
seed: 42
server:
  tick_rate_hz: 30
world:
  movement:
    gravity: 1100
  platforms:
    widths: [70, 110, 150]
`)
	got, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Seed != 42 || got.Server.TickRateHz != 30 {
		t.Fatalf("seed/tick = %d/%d", got.Seed, got.Server.TickRateHz)
	}
	if got.World.Movement.Gravity != 1100 || got.World.Platforms.Widths != [3]float64{70, 110, 150} {
		t.Fatalf("world overrides not applied: %+v", got.World)
	}
	def := Defaults()
	if got.World.Movement.TakeoffSpeed != def.World.Movement.TakeoffSpeed || got.Server.SendQueue != def.Server.SendQueue {
		t.Fatalf("defaults lost for omitted keys")
	}
}

func TestLoadTOML(t *testing.T) {
	p := writeFile(t, "t.toml", `
seed = 7

[log]
level = "info"

[world]
spawn_ahead = 1500.0

[world.difficulty]
late_materials = [0.2, 0.3, 0.5]
`)
	got, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Seed != 7 || got.Log.Level != "info" || got.World.SpawnAhead != 1500 {
		t.Fatalf("toml values not applied: %+v", got)
	}
	if got.World.Difficulty.LateMaterials != [3]float64{0.2, 0.3, 0.5} {
		t.Fatalf("late materials = %v", got.World.Difficulty.LateMaterials)
	}
}

func TestEmptyFileIsDefaults(t *testing.T) {
	got, err := Load(writeFile(t, "empty.yaml", ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != Defaults() {
		t.Fatalf("empty file did not yield defaults")
	}
}

func TestSchemaRejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":       "world:\n  gravity: 10\n",
		"wrong type":        "world:\n  movement:\n    gravity: heavy\n",
		"non-positive":      "world:\n  movement:\n    takeoff_speed: 0\n",
		"short weights":     "world:\n  difficulty:\n    early_materials: [1, 0]\n",
		"bad log level":     "log:\n  level: verbose\n",
		"probability range": "world:\n  difficulty:\n    mid_hazard: 1.5\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, "bad.yaml", body))
			if err == nil || !strings.Contains(err.Error(), "schema") {
				t.Fatalf("err = %v, want schema error", err)
			}
		})
	}
}

func TestWorldValidationWrapped(t *testing.T) {
	// schema 允许，生成器拒绝：spawn_ahead 不超过最大间隙
	_, err := Load(writeFile(t, "t.yaml", "world:\n  spawn_ahead: 100\n"))
	if !errors.Is(err, world.ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestFormatOf(t *testing.T) {
	for path, want := range map[string]Format{"a.yaml": FormatYAML, "b.YML": FormatYAML, "c.toml": FormatTOML} {
		if got, err := FormatOf(path); err != nil || got != want {
			t.Errorf("FormatOf(%s) = %v, %v", path, got, err)
		}
	}
	if _, err := Load("tuning.json"); err == nil {
		t.Fatalf("json tuning accepted")
	}
}
