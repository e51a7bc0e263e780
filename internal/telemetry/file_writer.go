package telemetry

import (
	"encoding/json"
	"os"
	"sync"
)

// FileWriter appends pose and event records to one JSONL match log.
type FileWriter struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewFileWriter creates or truncates path.
func NewFileWriter(path string) (*FileWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &FileWriter{file: f, enc: json.NewEncoder(f)}, nil
}

// WritePose logs a single pose row.
func (f *FileWriter) WritePose(row PoseRow) error {
	row.Type = TypePose
	return f.encode(row)
}

// WritePoses logs multiple pose rows.
func (f *FileWriter) WritePoses(rows []PoseRow) error {
	for _, r := range rows {
		if err := f.WritePose(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteEvent logs a single event row.
func (f *FileWriter) WriteEvent(row EventRow) error {
	row.Type = TypeEvent
	return f.encode(row)
}

func (f *FileWriter) encode(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enc.Encode(v)
}

// Close closes the underlying file.
func (f *FileWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.file.Close()
}
