// Package proximity decides emergency stops from short range sensors and
// filters long range scanner points.
package proximity

import (
	"log/slog"

	"matchbot/internal/config"
	"matchbot/internal/field"
	"matchbot/internal/geom"
	"matchbot/internal/logging"
	"matchbot/internal/motion"
)

// Side is the robot face a sensor looks out of.
type Side string

const (
	Front Side = "front"
	Back  Side = "back"
)

// Sensor is one short range distance sensor.
type Sensor interface {
	Name() string
	// DistanceMillimeters returns the latest reading; ok is false when no
	// valid reading is available.
	DistanceMillimeters() (mm float64, ok bool)
	// Mount is the sensor pose in the robot frame.
	Mount() geom.Position
	Threshold() float64
	Side() Side
}

// PoseSource exposes the robot state the monitor reads.
type PoseSource interface {
	CurrentPose() geom.Position
	CommandedDirection() motion.Direction
}

// Scanner is the long range obstacle detector.
type Scanner interface {
	// DetectedObstaclePoints returns obstacle points in the table frame.
	DetectedObstaclePoints() []geom.Position
}

// Detection describes the reading that triggered an emergency.
type Detection struct {
	Sensor   string
	Distance float64
	Point    geom.Position
}

// Monitor evaluates sensors. All its methods are pure reads.
type Monitor struct {
	sensors []Sensor
	pose    PoseSource
	scanner Scanner
	ignore  *field.Grid
	sizeX   float64
	sizeY   float64
	inset   float64
	log     *slog.Logger
}

// NewMonitor rasterizes the ignore zones of table.
func NewMonitor(table config.Table, det config.Detection, sensors []Sensor, pose PoseSource, scanner Scanner, log *slog.Logger) (*Monitor, error) {
	var shapes []geom.Shape
	for _, z := range table.DetectionIgnoreZones {
		s, err := z.Geometry()
		if err != nil {
			return nil, err
		}
		shapes = append(shapes, s)
	}
	res := table.Resolution
	if res <= 0 {
		res = 10
	}
	return &Monitor{
		sensors: sensors,
		pose:    pose,
		scanner: scanner,
		ignore:  field.Rasterize(shapes, table.SizeX, table.SizeY, res),
		sizeX:   table.SizeX,
		sizeY:   table.SizeY,
		inset:   det.InsetMM,
		log:     logging.Component(log, "proximity"),
	}, nil
}

// EmergencyFront reports an obstacle in front of the robot. Unless
// ignoreDirection is set the robot must also be driving forward.
func (m *Monitor) EmergencyFront(ignoreDirection bool) bool {
	_, hit := m.Check(Front, ignoreDirection)
	return hit
}

// EmergencyBack is EmergencyFront for the rear sensors.
func (m *Monitor) EmergencyBack(ignoreDirection bool) bool {
	_, hit := m.Check(Back, ignoreDirection)
	return hit
}

// Check returns the first sensor reading on side at or below its
// threshold that projects inside the table and outside the ignore grid.
func (m *Monitor) Check(side Side, ignoreDirection bool) (Detection, bool) {
	if !ignoreDirection {
		want := motion.Forward
		if side == Back {
			want = motion.Backward
		}
		if m.pose.CommandedDirection() != want {
			return Detection{}, false
		}
	}
	pose := m.pose.CurrentPose()
	for _, s := range m.sensors {
		if s.Side() != side {
			continue
		}
		d, ok := s.DistanceMillimeters()
		if !ok || d > s.Threshold() {
			continue
		}
		p := geom.ToTableFrame(pose, s.Mount(), d)
		if !m.inTable(p) || m.ignore.BlockedAt(p.Vec()) {
			continue
		}
		return Detection{Sensor: s.Name(), Distance: d, Point: p}, true
	}
	return Detection{}, false
}

func (m *Monitor) inTable(p geom.Position) bool {
	return p.X > m.inset && p.X < m.sizeX-m.inset && p.Y > m.inset && p.Y < m.sizeY-m.inset
}

// ObstaclePoints returns the scanner points lying on the playing field.
func (m *Monitor) ObstaclePoints() []geom.Position {
	if m.scanner == nil {
		return nil
	}
	var out []geom.Position
	for _, p := range m.scanner.DetectedObstaclePoints() {
		if m.inTable(p) {
			out = append(out, p)
		}
	}
	return out
}
