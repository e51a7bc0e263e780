package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const minimalYAML = `
match_duration_s: 90
strategy_file: plan.yaml
table:
  size_x: 3000
  size_y: 2000
  margin: 100
  dynamic_zones:
    - id: wall
      shape: polygon
      points: [{x: 0, y: 900}, {x: 3000, y: 900}, {x: 3000, y: 1100}, {x: 0, y: 1100}]
detection:
  sensors:
    - {name: front, side: front, x: 100, y: 0, threshold_mm: 200}
`

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLoadConfig_Valid(t *testing.T) {
	path := writeTemp(t, "matchbot.yaml", minimalYAML)
	cfg, err := Load(path, "../../schemas/matchbot.cue")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.MatchDuration().Seconds() != 90 {
		t.Errorf("match duration = %v", cfg.MatchDuration())
	}
	if cfg.Table.Resolution != 10 || cfg.Orchestrator.BlockedRetries != 2 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.StrategyFile != filepath.Join(filepath.Dir(path), "plan.yaml") {
		t.Errorf("strategy file not resolved: %s", cfg.StrategyFile)
	}
	if len(cfg.Table.DynamicZones) != 1 || cfg.Table.DynamicZones[0].Active {
		t.Errorf("unexpected dynamic zones: %+v", cfg.Table.DynamicZones)
	}
}

func TestLoadConfig_SchemaRejects(t *testing.T) {
	path := writeTemp(t, "bad.yaml", `
table:
  size_x: 3000
  size_y: 2000
  forbidden_zones:
    - shape: triangle
`)
	if _, err := Load(path, "../../schemas/matchbot.cue"); err == nil {
		t.Fatalf("expected schema validation error")
	}
}

func TestParse_SemanticErrors(t *testing.T) {
	cases := map[string]string{
		"duplicate zone": `
table:
  size_x: 100
  size_y: 100
  dynamic_zones:
    - {id: a, shape: circle, center: {x: 1, y: 1}, radius: 5}
    - {id: a, shape: circle, center: {x: 1, y: 1}, radius: 5}
`,
		"short polygon": `
table:
  size_x: 100
  size_y: 100
  forbidden_zones:
    - {shape: polygon, points: [{x: 0, y: 0}, {x: 1, y: 1}]}
`,
		"no table": `match_duration_s: 10`,
		"bad sensor side": `
table: {size_x: 100, size_y: 100}
detection:
  sensors: [{name: s, side: left, x: 0, y: 0, threshold_mm: 10}]
`,
		"remote without addr": `
table: {size_x: 100, size_y: 100}
remote: {active: true}
`,
	}
	for name, body := range cases {
		if _, err := Parse([]byte(body)); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}
}

func TestShippedConfigValidates(t *testing.T) {
	if err := ValidateWithCue("../../config/matchbot.yaml", "../../schemas/matchbot.cue"); err != nil {
		t.Fatalf("shipped config rejected: %v", err)
	}
}
