// Package report serializes aggregation results and writes them to the
// configured sinks.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/GripQA/client-tools/internal/measurement"
)

// Marshal renders the measurement sequence as the canonical JSON array,
// preserving computation order.
func Marshal(measurements []measurement.Measurement) ([]byte, error) {
	if measurements == nil {
		measurements = []measurement.Measurement{}
	}
	return json.Marshal(measurements)
}

// Unmarshal parses a serialized report back into measurement records.
func Unmarshal(doc []byte) ([]measurement.Measurement, error) {
	var out []measurement.Measurement
	if err := json.Unmarshal(doc, &out); err != nil {
		return nil, fmt.Errorf("report: parse document: %w", err)
	}
	return out, nil
}

// Sink receives one serialized report document.
type Sink interface {
	Write(ctx context.Context, runID string, doc []byte) error
}

// WriterSink writes the document to an io.Writer, stdout by default.
type WriterSink struct {
	W io.Writer
}

func (s WriterSink) Write(_ context.Context, _ string, doc []byte) error {
	w := s.W
	if w == nil {
		w = os.Stdout
	}
	if _, err := w.Write(append(doc, '\n')); err != nil {
		return fmt.Errorf("report: write document: %w", err)
	}
	return nil
}

// FileSink writes a dated file named basename + timestamp + ".json".
type FileSink struct {
	Basename string
	// now is replaceable for tests
	now func() time.Time
}

// NewFileSink creates a sink writing dated files rooted at basename.
func NewFileSink(basename string) *FileSink {
	return &FileSink{Basename: basename, now: time.Now}
}

func (s *FileSink) Write(_ context.Context, _ string, doc []byte) error {
	if s.now == nil {
		s.now = time.Now
	}
	name := s.Basename + s.now().Format("20060102150405") + ".json"
	if err := os.WriteFile(name, doc, 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", name, err)
	}
	return nil
}
