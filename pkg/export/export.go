// Package export writes recorded telemetry to CSV files. Exports snapshot
// the buffer at call time, so an in-progress recording is never disturbed
// and samples arriving during the write stay in the live buffer.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/smartteach/masterlink/pkg/frame"
	"github.com/smartteach/masterlink/pkg/record"
)

// Reason classifies an export failure.
type Reason string

const (
	IOFailure   Reason = "io_failure"
	InvalidPath Reason = "invalid_path"
)

// ExportError reports a failed export. The recording buffer is untouched
// on failure.
type ExportError struct {
	Reason Reason
	Path   string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export to %s (%s): %v", e.Path, e.Reason, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// Record describes a completed export.
type Record struct {
	ID        uuid.UUID
	Path      string
	Samples   int
	WrittenAt time.Time
}

// Service flushes a recording buffer to disk on demand.
type Service struct {
	buf    *record.Buffer
	logger *slog.Logger
}

// NewService returns an export service reading from buf.
func NewService(buf *record.Buffer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{buf: buf, logger: logger.With("component", "export")}
}

// DefaultPath returns a timestamped CSV filename inside dir, following the
// device's stream_YYYYMMDD_HHMMSS.csv convention.
func DefaultPath(dir string, now time.Time) string {
	return filepath.Join(dir, "stream_"+now.Format("20060102_150405")+".csv")
}

// ExportTo writes a point-in-time snapshot of the buffer to path as CSV,
// one row per telemetry frame. A path ending in .gz is gzip-compressed.
// Never clears or otherwise mutates the buffer.
func (s *Service) ExportTo(path string) (Record, error) {
	if strings.TrimSpace(path) == "" {
		return Record{}, &ExportError{Reason: InvalidPath, Path: path, Err: fmt.Errorf("empty path")}
	}
	if strings.HasSuffix(path, string(os.PathSeparator)) {
		return Record{}, &ExportError{Reason: InvalidPath, Path: path, Err: fmt.Errorf("path is a directory")}
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return Record{}, &ExportError{Reason: InvalidPath, Path: path, Err: fmt.Errorf("path is a directory")}
	}

	samples := s.buf.Snapshot()

	f, err := os.Create(path)
	if err != nil {
		reason := IOFailure
		if _, statErr := os.Stat(filepath.Dir(path)); os.IsNotExist(statErr) {
			reason = InvalidPath
		}
		return Record{}, &ExportError{Reason: reason, Path: path, Err: err}
	}

	var out io.Writer = f
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(f)
		out = gz
	}

	if err := writeCSV(out, samples); err != nil {
		f.Close()
		os.Remove(path)
		return Record{}, &ExportError{Reason: IOFailure, Path: path, Err: err}
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			f.Close()
			os.Remove(path)
			return Record{}, &ExportError{Reason: IOFailure, Path: path, Err: err}
		}
	}
	if err := f.Close(); err != nil {
		return Record{}, &ExportError{Reason: IOFailure, Path: path, Err: err}
	}

	rec := Record{
		ID:        uuid.New(),
		Path:      path,
		Samples:   len(samples),
		WrittenAt: time.Now(),
	}
	s.logger.Info("export complete", "path", path, "samples", rec.Samples)
	return rec, nil
}

func writeCSV(out io.Writer, samples []frame.TelemetryFrame) error {
	w := csv.NewWriter(out)

	joints := 0
	for _, f := range samples {
		if len(f.Joints) > joints {
			joints = len(f.Joints)
		}
	}

	header := []string{"timestamp", "arm"}
	for i := 1; i <= joints; i++ {
		header = append(header, "joint_"+strconv.Itoa(i))
	}
	header = append(header, "mode", "torque_scale")
	if err := w.Write(header); err != nil {
		return err
	}

	row := make([]string, 0, len(header))
	for _, f := range samples {
		row = row[:0]
		row = append(row, f.Time().Format(time.RFC3339Nano), string(f.Arm))
		for i := 0; i < joints; i++ {
			if i < len(f.Joints) {
				row = append(row, strconv.FormatFloat(f.Joints[i], 'f', -1, 64))
			} else {
				row = append(row, "")
			}
		}
		row = append(row, string(f.Mode), strconv.FormatFloat(f.TorqueScale, 'f', -1, 64))
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
