package proximity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchbot/internal/config"
	"matchbot/internal/geom"
	"matchbot/internal/motion"
)

type fakeSensor struct {
	name      string
	side      Side
	mount     geom.Position
	threshold float64
	reading   float64
	ok        bool
}

func (s *fakeSensor) Name() string                         { return s.name }
func (s *fakeSensor) DistanceMillimeters() (float64, bool) { return s.reading, s.ok }
func (s *fakeSensor) Mount() geom.Position                 { return s.mount }
func (s *fakeSensor) Threshold() float64                   { return s.threshold }
func (s *fakeSensor) Side() Side                           { return s.side }

type fakePose struct {
	pose geom.Position
	dir  motion.Direction
}

func (p *fakePose) CurrentPose() geom.Position           { return p.pose }
func (p *fakePose) CommandedDirection() motion.Direction { return p.dir }

type fakeScanner []geom.Position

func (s fakeScanner) DetectedObstaclePoints() []geom.Position { return s }

func setup(t *testing.T) (*Monitor, *fakeSensor, *fakeSensor, *fakePose) {
	t.Helper()
	table := config.Table{
		SizeX: 3000, SizeY: 2000, Resolution: 10,
		DetectionIgnoreZones: []config.Zone{{
			Shape:  "polygon",
			Points: []config.Point{{X: 2000, Y: 0}, {X: 2500, Y: 0}, {X: 2500, Y: 2000}, {X: 2000, Y: 2000}},
		}},
	}
	front := &fakeSensor{name: "front", side: Front, mount: geom.Position{X: 100}, threshold: 200, ok: true, reading: 1000}
	back := &fakeSensor{name: "back", side: Back, mount: geom.Position{X: -100, Theta: math.Pi}, threshold: 150, ok: true, reading: 1000}
	pose := &fakePose{pose: geom.Position{X: 1000, Y: 1000}, dir: motion.Forward}
	m, err := NewMonitor(table, config.Detection{InsetMM: 50}, []Sensor{front, back}, pose,
		fakeScanner{{X: 10, Y: 10}, {X: 1500, Y: 1500}}, nil)
	require.NoError(t, err)
	return m, front, back, pose
}

func TestThresholdInclusive(t *testing.T) {
	m, front, _, _ := setup(t)
	front.reading = 200
	assert.True(t, m.EmergencyFront(false))
	front.reading = 200.5
	assert.False(t, m.EmergencyFront(false))
}

func TestDirectionGating(t *testing.T) {
	m, front, back, pose := setup(t)
	front.reading = 100
	back.reading = 100
	pose.dir = motion.Backward
	assert.False(t, m.EmergencyFront(false))
	assert.True(t, m.EmergencyFront(true))
	assert.True(t, m.EmergencyBack(false))
	d, hit := m.Check(Back, false)
	require.True(t, hit)
	assert.InDelta(t, 800, d.Point.X, 1e-9)
	pose.dir = motion.None
	assert.False(t, m.EmergencyBack(false))
}

func TestProjectionOutsideTableOrIgnored(t *testing.T) {
	m, front, _, pose := setup(t)
	front.reading = 150

	pose.pose = geom.Position{X: 2700, Y: 1000, Theta: math.Pi / 2}
	assert.True(t, m.EmergencyFront(false), "projected to (2700, 1250)")

	pose.pose = geom.Position{X: 2700, Y: 1700, Theta: math.Pi / 2}
	assert.False(t, m.EmergencyFront(false), "projected to y=1950, inside the inset")

	pose.pose = geom.Position{X: 2200, Y: 1000}
	assert.False(t, m.EmergencyFront(false), "ignore zone")
}

func TestMissingReading(t *testing.T) {
	m, front, _, _ := setup(t)
	front.reading, front.ok = 0, false
	assert.False(t, m.EmergencyFront(true))
}

func TestObstaclePointsFiltered(t *testing.T) {
	m, _, _, _ := setup(t)
	assert.Equal(t, []geom.Position{{X: 1500, Y: 1500}}, m.ObstaclePoints())
}
