// Package csvstream writes lazily produced records to a CSV sink with bounded
// memory, flushing as it goes.
package csvstream

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"

	"go.uber.org/multierr"
)

const DefaultFlushEvery = 500

var (
	// ErrCanceled wraps the context error when the caller went away mid-export.
	ErrCanceled = errors.New("csv export canceled")
	// ErrNoHeaders is returned when Export is called without a header row.
	ErrNoHeaders = errors.New("csv export requires a header row")
)

// Exporter streams records into a writer. It is safe for concurrent use; each
// Export call owns its own csv.Writer.
type Exporter struct {
	flushEvery int
}

func New(flushEvery int) *Exporter {
	if flushEvery <= 0 {
		flushEvery = DefaultFlushEvery
	}
	return &Exporter{flushEvery: flushEvery}
}

// Export writes headers followed by every record pulled from rows. It returns
// the number of data rows written. The sink is closed on every exit path when
// it implements io.Closer. Rows already flushed are not retracted on failure.
func (e *Exporter) Export(ctx context.Context, sink io.Writer, headers []string, rows iter.Seq2[[]string, error]) (written int, err error) {
	if closer, ok := sink.(io.Closer); ok {
		defer multierr.AppendInvoke(&err, multierr.Close(closer))
	}
	if len(headers) == 0 {
		return 0, ErrNoHeaders
	}

	w := csv.NewWriter(sink)
	if err := w.Write(headers); err != nil {
		return 0, fmt.Errorf("writing csv header: %w", err)
	}
	if err := flush(w, sink); err != nil {
		return 0, fmt.Errorf("flushing csv header: %w", err)
	}

	for record, rowErr := range rows {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return written, fmt.Errorf("%w after %d rows: %w", ErrCanceled, written, ctxErr)
		}
		if rowErr != nil {
			return written, fmt.Errorf("reading row %d: %w", written+1, rowErr)
		}
		if err := w.Write(record); err != nil {
			return written, fmt.Errorf("writing row %d: %w", written+1, err)
		}
		written++
		if written%e.flushEvery == 0 {
			if err := flush(w, sink); err != nil {
				return written, fmt.Errorf("flushing at row %d: %w", written, err)
			}
		}
	}

	if err := flush(w, sink); err != nil {
		return written, fmt.Errorf("flushing csv: %w", err)
	}
	return written, nil
}

// flush drains the csv buffer and pushes it to the client when the sink
// supports it.
func flush(w *csv.Writer, sink io.Writer) error {
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	switch f := sink.(type) {
	case interface{ FlushError() error }:
		return f.FlushError()
	case http.Flusher:
		f.Flush()
	}
	return nil
}
