package telemetry

// Writer receives match records.
type Writer interface {
	WritePose(row PoseRow) error
	WriteEvent(row EventRow) error
}

type batchPoseWriter interface {
	WritePoses(rows []PoseRow) error
}

// MultiWriter fans records out to multiple writers.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a new MultiWriter.
func NewMultiWriter(ws ...Writer) *MultiWriter {
	return &MultiWriter{writers: ws}
}

// WritePose sends a pose row to all writers.
func (mw *MultiWriter) WritePose(row PoseRow) error {
	for _, w := range mw.writers {
		if err := w.WritePose(row); err != nil {
			return err
		}
	}
	return nil
}

// WritePoses sends multiple pose rows to all writers, using batch if supported.
func (mw *MultiWriter) WritePoses(rows []PoseRow) error {
	for _, w := range mw.writers {
		if bw, ok := w.(batchPoseWriter); ok {
			if err := bw.WritePoses(rows); err != nil {
				return err
			}
			continue
		}
		for _, r := range rows {
			if err := w.WritePose(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteEvent sends an event row to all writers.
func (mw *MultiWriter) WriteEvent(row EventRow) error {
	for _, w := range mw.writers {
		if err := w.WriteEvent(row); err != nil {
			return err
		}
	}
	return nil
}

// Discard drops every record.
type Discard struct{}

func (Discard) WritePose(PoseRow) error   { return nil }
func (Discard) WriteEvent(EventRow) error { return nil }
