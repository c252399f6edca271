package writer

import (
	"errors"
	"fmt"
)

// ErrWrite matches every error returned by Flush.
var ErrWrite = errors.New("write failed")

// WriteError reports a failure to create or write an artifact.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() []error {
	return []error{ErrWrite, e.Err}
}

// WriterConfig holds writer configuration.
type WriterConfig struct {
	// Dir is the output directory. Created if absent.
	Dir string

	// Workbook enables the xlsx artifact next to the CSV files.
	Workbook bool
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		Dir:      "output",
		Workbook: true,
	}
}

// WriterMetrics counts what the writer produced.
type WriterMetrics struct {
	Files     int64
	QuoteRows int64
	BarRows   int64
	Errors    int64
}
