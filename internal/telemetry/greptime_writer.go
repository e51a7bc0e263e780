package telemetry

import (
	"context"
	"log/slog"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"matchbot/internal/logging"
)

// Default GreptimeDB table names.
const (
	PoseTable  = "robot_pose"
	EventTable = "match_events"
)

type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter writes match records to GreptimeDB via the ingester client.
type GreptimeDBWriter struct {
	client     greptimeClient
	poseTable  string
	eventTable string
	timeout    time.Duration
	log        *slog.Logger
}

// NewGreptimeDBWriter connects to a GreptimeDB gRPC endpoint.
func NewGreptimeDBWriter(host string, port int, database string, log *slog.Logger) (*GreptimeDBWriter, error) {
	cfg := greptime.NewConfig(host).WithPort(port).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &GreptimeDBWriter{
		client:     client,
		poseTable:  PoseTable,
		eventTable: EventTable,
		timeout:    2 * time.Second,
		log:        logging.Component(log, "greptime"),
	}, nil
}

// WritePose inserts a single pose row.
func (w *GreptimeDBWriter) WritePose(row PoseRow) error {
	return w.WritePoses([]PoseRow{row})
}

// WritePoses inserts multiple pose rows.
func (w *GreptimeDBWriter) WritePoses(rows []PoseRow) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := table.New(w.poseTable)
	if err != nil {
		return err
	}
	tbl.AddTagColumn("match_id", types.STRING)
	tbl.AddTagColumn("color", types.STRING)
	tbl.AddFieldColumn("x", types.FLOAT64)
	tbl.AddFieldColumn("y", types.FLOAT64)
	tbl.AddFieldColumn("theta", types.FLOAT64)
	tbl.AddFieldColumn("status", types.STRING)
	tbl.AddFieldColumn("direction", types.STRING)
	tbl.AddFieldColumn("queue", types.INT64)
	tbl.AddFieldColumn("score", types.INT64)
	tbl.AddFieldColumn("state", types.STRING)
	tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)
	for _, r := range rows {
		if err := tbl.AddRow(r.MatchID, r.Color, r.X, r.Y, r.Theta, r.Status, r.Direction,
			int64(r.Queue), int64(r.Score), r.State, r.Timestamp); err != nil {
			return err
		}
	}
	return w.write(tbl, len(rows))
}

// WriteEvent inserts a single event row.
func (w *GreptimeDBWriter) WriteEvent(row EventRow) error {
	tbl, err := table.New(w.eventTable)
	if err != nil {
		return err
	}
	tbl.AddTagColumn("match_id", types.STRING)
	tbl.AddTagColumn("kind", types.STRING)
	tbl.AddFieldColumn("elapsed_ms", types.INT64)
	tbl.AddFieldColumn("objective", types.INT64)
	tbl.AddFieldColumn("step", types.STRING)
	tbl.AddFieldColumn("detail", types.STRING)
	tbl.AddFieldColumn("score", types.INT64)
	tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)
	if err := tbl.AddRow(row.MatchID, string(row.Kind), row.ElapsedMS, int64(row.Objective),
		row.Step, row.Detail, int64(row.Score), row.Timestamp); err != nil {
		return err
	}
	return w.write(tbl, 1)
}

func (w *GreptimeDBWriter) write(tbl *table.Table, n int) error {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if _, err := w.client.Write(ctx, tbl); err != nil {
		w.log.Error("write failed", "err", err)
		return err
	}
	w.log.Debug("rows written", "rows", n)
	return nil
}
