package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"matchbot/internal/config"
	"matchbot/internal/geom"
	"matchbot/internal/logging"
	"matchbot/internal/pathfind"
)

var (
	pathFrom  string
	pathTo    string
	pathColor string
	pathZones []string
)

type pathOutput struct {
	Color     config.Color    `json:"color"`
	Waypoints []geom.Position `json:"waypoints"`
	LengthMM  float64         `json:"length_mm"`
}

var pathCmd = &cobra.Command{
	Use:   "path",
	Short: "Compute one path on the configured table",
	Long:  "path runs the A* search between two points and prints the simplified waypoints as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := parsePoint(pathFrom)
		if err != nil {
			return fmt.Errorf("--from: %w", err)
		}
		goal, err := parsePoint(pathTo)
		if err != nil {
			return fmt.Errorf("--to: %w", err)
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		pf, err := pathfind.New(cfg.Table, cfg.Pathfinding, config.Color(pathColor), logging.FromContext(cmd.Context()))
		if err != nil {
			return err
		}
		for _, z := range pathZones {
			id, active, err := parseZoneToggle(z)
			if err != nil {
				return err
			}
			if !knownZone(pf, id) {
				return fmt.Errorf("--zone: unknown zone %q", id)
			}
			pf.ToggleZone(id, active)
		}

		path, err := pf.FindPath(cmd.Context(), start, goal)
		if err != nil {
			return fmt.Errorf("%s -> %s: %w", start, goal, err)
		}
		out := pathOutput{Color: config.Color(pathColor), Waypoints: path}
		for i := 1; i < len(path); i++ {
			out.LengthMM += path[i-1].Distance(path[i])
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	pathCmd.Flags().StringVar(&pathFrom, "from", "", "Start point as x,y in millimeters")
	pathCmd.Flags().StringVar(&pathTo, "to", "", "Goal point as x,y in millimeters")
	pathCmd.Flags().StringVar(&pathColor, "color", string(config.ColorA), "Color whose exclusion zones apply")
	pathCmd.Flags().StringSliceVar(&pathZones, "zone", nil, "Dynamic zone override id=true|false (repeatable)")
	pathCmd.MarkFlagRequired("from")
	pathCmd.MarkFlagRequired("to")
}

func parsePoint(s string) (geom.Position, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return geom.Position{}, fmt.Errorf("expected x,y, got %q", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return geom.Position{}, err
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return geom.Position{}, err
	}
	return geom.Position{X: x, Y: y}, nil
}

func parseZoneToggle(s string) (string, bool, error) {
	id, v, ok := strings.Cut(s, "=")
	if !ok || id == "" {
		return "", false, fmt.Errorf("--zone: expected id=true|false, got %q", s)
	}
	active, err := strconv.ParseBool(v)
	if err != nil {
		return "", false, fmt.Errorf("--zone %s: %w", id, err)
	}
	return id, active, nil
}

func knownZone(pf *pathfind.Pathfinder, id string) bool {
	for _, z := range pf.Zones() {
		if z.ID == id {
			return true
		}
	}
	return false
}
