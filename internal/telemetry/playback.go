package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// ReplayLog replays a JSONL match log from r to writer. A speed >0
// accelerates playback. If speed <= 0, no artificial delay is inserted.
func ReplayLog(r io.Reader, writer Writer, speed float64) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	var prev time.Time
	for line := 1; sc.Scan(); line++ {
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		var head struct {
			Type      string    `json:"type"`
			Timestamp time.Time `json:"ts"`
		}
		if err := json.Unmarshal(b, &head); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if !prev.IsZero() && speed > 0 {
			diff := head.Timestamp.Sub(prev)
			if speed != 1 {
				diff = time.Duration(float64(diff) / speed)
			}
			if diff > 0 {
				time.Sleep(diff)
			}
		}
		prev = head.Timestamp

		var err error
		switch head.Type {
		case TypePose:
			var row PoseRow
			if err = json.Unmarshal(b, &row); err == nil {
				err = writer.WritePose(row)
			}
		case TypeEvent:
			var row EventRow
			if err = json.Unmarshal(b, &row); err == nil {
				err = writer.WriteEvent(row)
			}
		default:
			err = fmt.Errorf("unknown record type %q", head.Type)
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	return sc.Err()
}

// ReplayLogFile opens a file and replays its records.
func ReplayLogFile(path string, writer Writer, speed float64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ReplayLog(f, writer, speed)
}
