package infra

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/quietloop/driftd/internal/domain"
)

// JSONLSink implements domain.TelemetrySink by appending one JSON
// object per line to a local file. Used by simulate and for local
// inspection; the run path sends telemetry over the wire instead.
type JSONLSink struct {
	path string
	mu   sync.Mutex
}

// NewJSONLSink creates a sink appending to path. Does not truncate an
// existing file.
func NewJSONLSink(path string) *JSONLSink {
	return &JSONLSink{path: path}
}

// Send appends the event as a single JSON line.
func (s *JSONLSink) Send(ctx context.Context, ev domain.TelemetryEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

var _ domain.TelemetrySink = (*JSONLSink)(nil)

// NopSink discards all telemetry.
type NopSink struct{}

func (NopSink) Send(context.Context, domain.TelemetryEvent) error { return nil }

var _ domain.TelemetrySink = NopSink{}
