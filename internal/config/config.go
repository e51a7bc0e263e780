// YAML config loader with CUE validation integration
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"matchbot/internal/geom"
)

// ErrInvalidConfig wraps every semantic configuration error.
var ErrInvalidConfig = errors.New("invalid config")

// Color selects one of the two mirrored sides of the table.
type Color string

const (
	ColorA     Color = "color0"
	ColorOther Color = "colorOther"
)

// Point is a table coordinate in millimeters.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Zone describes a forbidden, dynamic or detection-ignore region.
type Zone struct {
	ID             string  `yaml:"id"`
	Shape          string  `yaml:"shape"`
	Points         []Point `yaml:"points"`
	Center         Point   `yaml:"center"`
	Radius         float64 `yaml:"radius"`
	ColorExclusion Color   `yaml:"color_exclusion"`
	Active         bool    `yaml:"active"`
}

// Geometry converts the zone description to a shape.
func (z Zone) Geometry() (geom.Shape, error) {
	switch z.Shape {
	case "polygon":
		if len(z.Points) < 3 {
			return nil, fmt.Errorf("%w: zone %q: polygon needs at least 3 points", ErrInvalidConfig, z.ID)
		}
		pg := geom.Polygon{}
		for _, p := range z.Points {
			pg.Points = append(pg.Points, geom.Position{X: p.X, Y: p.Y}.Vec())
		}
		return pg, nil
	case "circle":
		if z.Radius <= 0 {
			return nil, fmt.Errorf("%w: zone %q: circle radius must be positive", ErrInvalidConfig, z.ID)
		}
		return geom.Circle{Center: geom.Position{X: z.Center.X, Y: z.Center.Y}.Vec(), Radius: z.Radius}, nil
	default:
		return nil, fmt.Errorf("%w: zone %q: unknown shape %q", ErrInvalidConfig, z.ID, z.Shape)
	}
}

// Table is the playing field and its obstacles.
type Table struct {
	SizeX                float64 `yaml:"size_x"`
	SizeY                float64 `yaml:"size_y"`
	Margin               float64 `yaml:"margin"`
	Resolution           float64 `yaml:"resolution"`
	ForbiddenZones       []Zone  `yaml:"forbidden_zones"`
	DynamicZones         []Zone  `yaml:"dynamic_zones"`
	DetectionIgnoreZones []Zone  `yaml:"detection_ignore_zones"`
}

// Pathfinding tunes the path search.
type Pathfinding struct {
	Heuristic   string  `yaml:"heuristic"`
	TurnPenalty float64 `yaml:"turn_penalty"`
}

// Motion tunes trajectory execution.
type Motion struct {
	ChainSettleMS         int     `yaml:"chain_settle_ms"`
	TrajectoryClearanceMM float64 `yaml:"trajectory_clearance_mm"`
}

// ChainSettle is the delay between two chained waypoint commands.
func (m Motion) ChainSettle() time.Duration {
	return time.Duration(m.ChainSettleMS) * time.Millisecond
}

// Sensor describes one short range sensor mount.
type Sensor struct {
	Name        string  `yaml:"name"`
	Side        string  `yaml:"side"`
	X           float64 `yaml:"x"`
	Y           float64 `yaml:"y"`
	Theta       float64 `yaml:"theta"`
	ThresholdMM float64 `yaml:"threshold_mm"`
}

// Detection configures the proximity monitor.
type Detection struct {
	InsetMM        float64  `yaml:"inset_mm"`
	ScannerRangeMM float64  `yaml:"scanner_range_mm"`
	Sensors        []Sensor `yaml:"sensors"`
}

// Orchestrator tunes the decision loop.
type Orchestrator struct {
	YieldUS        int `yaml:"yield_us"`
	SearchPollMS   int `yaml:"search_poll_ms"`
	BlockedGraceMS int `yaml:"blocked_grace_ms"`
	BlockedRetries int `yaml:"blocked_retries"`
	PathRetryMS    int `yaml:"path_retry_ms"`
	TelemetryMS    int `yaml:"telemetry_ms"`
}

func (o Orchestrator) Yield() time.Duration { return time.Duration(o.YieldUS) * time.Microsecond }
func (o Orchestrator) SearchPoll() time.Duration {
	return time.Duration(o.SearchPollMS) * time.Millisecond
}
func (o Orchestrator) BlockedGrace() time.Duration {
	return time.Duration(o.BlockedGraceMS) * time.Millisecond
}
func (o Orchestrator) PathRetry() time.Duration {
	return time.Duration(o.PathRetryMS) * time.Millisecond
}
func (o Orchestrator) TelemetryInterval() time.Duration {
	return time.Duration(o.TelemetryMS) * time.Millisecond
}

// Remote configures the link to the partner robot.
type Remote struct {
	Active bool   `yaml:"active"`
	Addr   string `yaml:"addr"`
}

// Opponent configures the simulated opponent robot.
type Opponent struct {
	Enabled   bool    `yaml:"enabled"`
	SpeedMMS  float64 `yaml:"speed_mm_s"`
	Radius    float64 `yaml:"radius"`
	Waypoints []Point `yaml:"waypoints"`
	Seed      int64   `yaml:"seed"`
}

// Sim configures the simulated collaborators used by `matchbot run`.
type Sim struct {
	TickMS           int               `yaml:"tick_ms"`
	SpeedMMS         float64           `yaml:"speed_mm_s"`
	TurnRateDegS     float64           `yaml:"turn_rate_deg_s"`
	Start            Point             `yaml:"start"`
	StartTheta       float64           `yaml:"start_theta"`
	ActionDurationMS int               `yaml:"action_duration_ms"`
	ActionFlags      map[string]string `yaml:"action_flags"`
	InsertDelayMS    int               `yaml:"insert_delay_ms"`
	PullDelayMS      int               `yaml:"pull_delay_ms"`
	Opponent         Opponent          `yaml:"opponent"`
}

// Tick is the simulated hardware refresh period.
func (s Sim) Tick() time.Duration { return time.Duration(s.TickMS) * time.Millisecond }

// Config is the root configuration of a match.
type Config struct {
	MatchDurationS int          `yaml:"match_duration_s"`
	StrategyFile   string       `yaml:"strategy_file"`
	Table          Table        `yaml:"table"`
	Pathfinding    Pathfinding  `yaml:"pathfinding"`
	Motion         Motion       `yaml:"motion"`
	Detection      Detection    `yaml:"detection"`
	Orchestrator   Orchestrator `yaml:"orchestrator"`
	Remote         Remote       `yaml:"remote"`
	Sim            Sim          `yaml:"sim"`
}

// MatchDuration returns the match length.
func (c *Config) MatchDuration() time.Duration {
	return time.Duration(c.MatchDurationS) * time.Second
}

// Load loads YAML config and validates it against a CUE schema.
// An empty schema path skips the schema step.
func Load(configPath, cueSchemaPath string) (*Config, error) {
	if cueSchemaPath != "" {
		if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if cfg.StrategyFile != "" && !filepath.IsAbs(cfg.StrategyFile) {
		cfg.StrategyFile = filepath.Join(filepath.Dir(configPath), cfg.StrategyFile)
	}

	slog.Debug("loaded configuration", "path", configPath, "dynamic_zones", len(cfg.Table.DynamicZones),
		"forbidden_zones", len(cfg.Table.ForbiddenZones), "match_duration_s", cfg.MatchDurationS)

	return cfg, nil
}

// Parse decodes a YAML document, fills defaults and runs the semantic checks.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset tunables.
func (c *Config) ApplyDefaults() {
	if c.MatchDurationS == 0 {
		c.MatchDurationS = 100
	}
	if c.Table.Resolution == 0 {
		c.Table.Resolution = 10
	}
	if c.Pathfinding.Heuristic == "" {
		c.Pathfinding.Heuristic = "euclidean"
	}
	if c.Motion.ChainSettleMS == 0 {
		c.Motion.ChainSettleMS = 10
	}
	if c.Motion.TrajectoryClearanceMM == 0 {
		c.Motion.TrajectoryClearanceMM = 150
	}
	if c.Detection.InsetMM == 0 {
		c.Detection.InsetMM = 50
	}
	if c.Detection.ScannerRangeMM == 0 {
		c.Detection.ScannerRangeMM = 1500
	}
	o := &c.Orchestrator
	if o.YieldUS == 0 {
		o.YieldUS = 500
	}
	if o.SearchPollMS == 0 {
		o.SearchPollMS = 10
	}
	if o.BlockedGraceMS == 0 {
		o.BlockedGraceMS = 500
	}
	if o.BlockedRetries == 0 {
		o.BlockedRetries = 2
	}
	if o.PathRetryMS == 0 {
		o.PathRetryMS = 500
	}
	if o.TelemetryMS == 0 {
		o.TelemetryMS = 200
	}
	s := &c.Sim
	if s.TickMS == 0 {
		s.TickMS = 20
	}
	if s.SpeedMMS == 0 {
		s.SpeedMMS = 500
	}
	if s.TurnRateDegS == 0 {
		s.TurnRateDegS = 180
	}
	if s.ActionDurationMS == 0 {
		s.ActionDurationMS = 300
	}
	if s.Opponent.SpeedMMS == 0 {
		s.Opponent.SpeedMMS = 300
	}
	if s.Opponent.Radius == 0 {
		s.Opponent.Radius = 150
	}
}

// Check validates values the schema cannot express.
func (c *Config) Check() error {
	t := c.Table
	if t.SizeX <= 0 || t.SizeY <= 0 {
		return fmt.Errorf("%w: table size must be positive", ErrInvalidConfig)
	}
	if t.Resolution <= 0 || t.Resolution > t.SizeX || t.Resolution > t.SizeY {
		return fmt.Errorf("%w: resolution %v out of range", ErrInvalidConfig, t.Resolution)
	}
	if t.Margin < 0 {
		return fmt.Errorf("%w: margin must not be negative", ErrInvalidConfig)
	}
	for _, z := range t.ForbiddenZones {
		if _, err := z.Geometry(); err != nil {
			return err
		}
		if z.ColorExclusion != "" && z.ColorExclusion != ColorA && z.ColorExclusion != ColorOther {
			return fmt.Errorf("%w: zone %q: unknown color %q", ErrInvalidConfig, z.ID, z.ColorExclusion)
		}
	}
	seen := make(map[string]bool)
	for _, z := range t.DynamicZones {
		if z.ID == "" {
			return fmt.Errorf("%w: dynamic zone without id", ErrInvalidConfig)
		}
		if seen[z.ID] {
			return fmt.Errorf("%w: duplicate dynamic zone %q", ErrInvalidConfig, z.ID)
		}
		seen[z.ID] = true
		if _, err := z.Geometry(); err != nil {
			return err
		}
	}
	for _, z := range t.DetectionIgnoreZones {
		if _, err := z.Geometry(); err != nil {
			return err
		}
	}
	switch c.Pathfinding.Heuristic {
	case "euclidean", "octile":
	default:
		return fmt.Errorf("%w: unknown heuristic %q", ErrInvalidConfig, c.Pathfinding.Heuristic)
	}
	for _, s := range c.Detection.Sensors {
		if s.Side != "front" && s.Side != "back" {
			return fmt.Errorf("%w: sensor %q: side must be front or back", ErrInvalidConfig, s.Name)
		}
		if s.ThresholdMM <= 0 {
			return fmt.Errorf("%w: sensor %q: threshold must be positive", ErrInvalidConfig, s.Name)
		}
	}
	if c.Remote.Active && c.Remote.Addr == "" {
		return fmt.Errorf("%w: remote link active without address", ErrInvalidConfig)
	}
	return nil
}
