package writer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/rickgao/twquote/internal/model"
	"github.com/rickgao/twquote/internal/run"
)

type artifact struct {
	path  string
	write func(io.Writer) error
}

// Writer flushes a run.State to the output directory.
type Writer struct {
	cfg    WriterConfig
	logger *slog.Logger

	mu      sync.Mutex
	metrics WriterMetrics
}

// New creates a new Writer.
func New(cfg WriterConfig, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		cfg:    cfg,
		logger: logger,
	}
}

// Flush writes state to dir with the default configuration.
func Flush(state *run.State, dir string) ([]string, error) {
	cfg := DefaultWriterConfig()
	cfg.Dir = dir
	return New(cfg, nil).Flush(state)
}

// Stats returns current metrics.
func (w *Writer) Stats() WriterMetrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.metrics
}

// Flush writes every artifact for state and returns the paths written.
// Each failed artifact is also recorded in the state's error log. All
// returned errors match ErrWrite.
func (w *Writer) Flush(state *run.State) ([]string, error) {
	start := time.Now()
	dir := w.cfg.Dir

	if err := os.MkdirAll(dir, 0o755); err != nil {
		werr := &WriteError{Path: dir, Err: err}
		w.recordFailure(state, werr)
		return nil, werr
	}

	quotesName, dailyName, bookName := FileNames(state.Started, state.Symbols)
	quotes := state.Quotes()
	bars := state.Bars()

	artifacts := []artifact{{
		path:  filepath.Join(dir, quotesName),
		write: func(out io.Writer) error { return writeCSV(out, quoteHeader, quotes, quoteCells) },
	}}
	if len(bars) > 0 {
		artifacts = append(artifacts, artifact{
			path:  filepath.Join(dir, dailyName),
			write: func(out io.Writer) error { return writeCSV(out, barHeader, bars, barCells) },
		})
	}
	if w.cfg.Workbook {
		artifacts = append(artifacts, artifact{
			path:  filepath.Join(dir, bookName),
			write: func(out io.Writer) error { return writeWorkbook(out, quotes, state.LatestQuotes(), bars) },
		})
	}

	// Artifacts are independent files; one failing does not stop the others.
	results := make([]error, len(artifacts))
	var g errgroup.Group
	for i, a := range artifacts {
		g.Go(func() error {
			results[i] = writeAtomic(a.path, a.write)
			return nil
		})
	}
	g.Wait()

	var (
		written []string
		errs    []error
	)
	for i, a := range artifacts {
		if results[i] != nil {
			werr := &WriteError{Path: a.path, Err: results[i]}
			w.recordFailure(state, werr)
			errs = append(errs, werr)
			continue
		}
		written = append(written, a.path)
	}

	w.mu.Lock()
	w.metrics.Files += int64(len(written))
	w.metrics.QuoteRows += int64(len(quotes))
	w.metrics.BarRows += int64(len(bars))
	w.mu.Unlock()

	w.logger.Info("output flushed",
		"dir", dir,
		"files", len(written),
		"quotes", len(quotes),
		"bars", len(bars),
		"errors", len(errs),
		"duration", time.Since(start),
	)
	return written, errors.Join(errs...)
}

func (w *Writer) recordFailure(state *run.State, err *WriteError) {
	w.mu.Lock()
	w.metrics.Errors++
	w.mu.Unlock()

	w.logger.Error("failed to write artifact", "path", err.Path, "err", err.Err)
	state.RecordFailure(model.FailureRecord{
		Timestamp: time.Now(),
		Stage:     model.StageWrite,
		Kind:      "write",
		Message:   err.Error(),
		Attempt:   1,
	})
}

// writeCSV writes a BOM-prefixed CSV table.
func writeCSV[T any](out io.Writer, header []string, rows []T, cells func(T) []cell) error {
	bom := transform.NewWriter(out, unicode.UTF8BOM.NewEncoder())
	cw := csv.NewWriter(bom)

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range rows {
		if err := cw.Write(csvRecord(cells(r))); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return bom.Close()
}
