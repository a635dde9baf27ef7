// Package record holds incoming telemetry in an append-only in-memory
// buffer. The buffer outlives individual streaming sessions: samples
// persist across stream start/stop until the operator clears them.
package record

import (
	"sync"

	"github.com/smartteach/masterlink/pkg/frame"
)

// Status is the recording toggle state.
type Status string

const (
	Stopped   Status = "stopped"
	Recording Status = "recording"
)

// Buffer is an append-only telemetry sample store. The receive loop is the
// only appender; the control surface clears and snapshots. A single mutex
// makes each append, clear, and snapshot atomic, so an export never
// observes a torn record.
type Buffer struct {
	mu        sync.Mutex
	recording bool
	samples   []frame.TelemetryFrame
}

// New returns an empty, stopped buffer.
func New() *Buffer {
	return &Buffer{}
}

// StartRecording enables appends. Idempotent.
func (b *Buffer) StartRecording() {
	b.mu.Lock()
	b.recording = true
	b.mu.Unlock()
}

// StopRecording disables appends. Idempotent. Samples are retained.
func (b *Buffer) StopRecording() {
	b.mu.Lock()
	b.recording = false
	b.mu.Unlock()
}

// Status returns the current recording toggle state.
func (b *Buffer) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.recording {
		return Recording
	}
	return Stopped
}

// Append stores a copy of the frame in arrival order. No-op while stopped.
// Append never drops a sample: if the process cannot grow the buffer the
// runtime aborts, which is the intended outcome — silent encoder data loss
// is never acceptable.
func (b *Buffer) Append(f frame.TelemetryFrame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.recording {
		return
	}
	b.samples = append(b.samples, f.Clone())
}

// Clear empties the buffer. Permitted in either status and atomic with
// respect to in-flight appends.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.samples = nil
	b.mu.Unlock()
}

// Len returns the current sample count.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Snapshot returns a point-in-time deep copy of the samples. Appends
// arriving after the snapshot do not affect it.
func (b *Buffer) Snapshot() []frame.TelemetryFrame {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]frame.TelemetryFrame, len(b.samples))
	for i, f := range b.samples {
		out[i] = f.Clone()
	}
	return out
}
