// Package errlog buffers failure records for a run and writes them to a
// daily log file exactly once.
package errlog

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rickgao/twquote/internal/model"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Log is an append-only failure buffer. Safe for concurrent use.
type Log struct {
	runID  string
	logger *slog.Logger

	mu      sync.Mutex
	records []model.FailureRecord
	written int // records[:written] are on disk
}

// New creates an empty Log. runID is written in the header of each flush.
func New(runID string, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{runID: runID, logger: logger}
}

// Append records a failure. Zero timestamps are set to now.
func (l *Log) Append(rec model.FailureRecord) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	l.mu.Lock()
	l.records = append(l.records, rec)
	l.mu.Unlock()

	l.logger.Debug("failure recorded",
		"symbol", rec.Symbol,
		"stage", rec.Stage,
		"kind", rec.Kind,
		"attempt", rec.Attempt,
	)
}

// Records returns a copy of every record in chronological order.
func (l *Log) Records() []model.FailureRecord {
	l.mu.Lock()
	out := make([]model.FailureRecord, len(l.records))
	copy(out, l.records)
	l.mu.Unlock()

	sortChronological(out)
	return out
}

// Len returns the number of records appended so far.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Pending returns the number of records not yet written to disk.
func (l *Log) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records) - l.written
}

// FlushToFile appends every unwritten record to path, creating the file if
// needed. Records stay buffered until the write and fsync succeed, so a
// failed flush can be retried. With nothing pending no file is touched.
func (l *Log) FlushToFile(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	pending := make([]model.FailureRecord, len(l.records)-l.written)
	copy(pending, l.records[l.written:])
	if len(pending) == 0 {
		return nil
	}
	sortChronological(pending)

	var b strings.Builder
	if l.runID != "" {
		fmt.Fprintf(&b, "# run=%s records=%d\n", l.runID, len(pending))
	}
	for _, rec := range pending {
		b.WriteString(FormatRecord(rec))
		b.WriteByte('\n')
	}

	if err := appendSync(path, b.String()); err != nil {
		return fmt.Errorf("flush error log: %w", err)
	}

	l.written = len(l.records)
	l.logger.Info("error log flushed",
		"path", path,
		"records", len(pending),
	)
	return nil
}

func appendSync(path, data string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// FileName returns the log file name for the Taipei calendar day of t.
func FileName(t time.Time) string {
	return "error_log_" + t.In(model.Taipei).Format("20060102") + ".log"
}

// Level returns WARN for retryable kinds and ERROR for everything else.
func Level(rec model.FailureRecord) string {
	switch rec.Kind {
	case "transient", "rate_limited":
		return "WARN"
	default:
		return "ERROR"
	}
}

// FormatRecord renders rec as one log line:
//
//	ts | LEVEL | symbol | stage | kind | attempt=N | message
func FormatRecord(rec model.FailureRecord) string {
	symbol := rec.Symbol
	if symbol == "" {
		symbol = "-"
	}
	msg := strings.Join(strings.Fields(rec.Message), " ")
	return fmt.Sprintf("%s | %s | %s | %s | %s | attempt=%d | %s",
		rec.Timestamp.In(model.Taipei).Format(timestampLayout),
		Level(rec),
		symbol,
		rec.Stage,
		rec.Kind,
		rec.Attempt,
		msg,
	)
}

func sortChronological(recs []model.FailureRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Timestamp.Before(recs[j].Timestamp)
	})
}
