package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// JSONStdoutWriter prints records as JSON lines.
type JSONStdoutWriter struct {
	mu  sync.Mutex
	out io.Writer
	// EventsOnly suppresses pose rows.
	EventsOnly bool
}

// NewJSONStdoutWriter creates a JSONStdoutWriter writing to os.Stdout.
func NewJSONStdoutWriter() *JSONStdoutWriter {
	return &JSONStdoutWriter{out: os.Stdout}
}

// WritePose outputs a pose row in JSON format.
func (w *JSONStdoutWriter) WritePose(row PoseRow) error {
	if w.EventsOnly {
		return nil
	}
	row.Type = TypePose
	return w.print(row)
}

// WriteEvent outputs an event row in JSON format.
func (w *JSONStdoutWriter) WriteEvent(row EventRow) error {
	row.Type = TypeEvent
	return w.print(row)
}

func (w *JSONStdoutWriter) print(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = fmt.Fprintln(w.out, string(data))
	return err
}
