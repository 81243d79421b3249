// Package export turns chat.db rows into the JSON message export: it
// resolves the date window, joins messages to their handles, filters, and
// writes the result.
package export

import (
	"context"
	"log/slog"
	"time"

	"github.com/wesm/imsgexport/internal/chatdb"
)

// Source is the read side of a Messages database. *chatdb.DB implements it.
type Source interface {
	EachHandle(ctx context.Context, fn func(h chatdb.Handle, err error) error) error
	EachMessage(ctx context.Context, fn func(m *chatdb.Message) error) error
	GenerateText(m *chatdb.Message) (string, error)
}

var _ Source = (*chatdb.DB)(nil)

// Request describes one export run.
type Request struct {
	OutputPath string
	Range      Range
	OnlyFromMe bool
}

// Summary holds statistics from a completed export.
type Summary struct {
	Duration         time.Duration
	HandlesLoaded    int
	HandlesSkipped   int
	MessagesScanned  int64
	MessagesDropped  int64 // text could not be decoded
	MessagesExported int64
	OutputPath       string
}

// Exporter runs exports against a Source.
type Exporter struct {
	src    Source
	logger *slog.Logger
}

// NewExporter creates an Exporter. A nil logger discards log output.
func NewExporter(src Source, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Exporter{src: src, logger: logger}
}

// Run builds the handle map, collects matching messages, and writes them to
// req.OutputPath. All returned errors are *Error.
func (e *Exporter) Run(ctx context.Context, req Request) (*Summary, error) {
	startTime := time.Now()
	summary := &Summary{OutputPath: req.OutputPath}

	handles, skipped, err := BuildHandleMap(ctx, e.src, e.logger)
	summary.HandlesSkipped = skipped
	if err != nil {
		return nil, NewTableError("read handles", err)
	}
	summary.HandlesLoaded = len(handles)

	records, err := e.Collect(ctx, handles, NewFilter(req.Range, req.OnlyFromMe), summary)
	if err != nil {
		return nil, NewTableError("read messages", err)
	}

	if err := WriteJSON(req.OutputPath, records); err != nil {
		return nil, err
	}

	summary.Duration = time.Since(startTime)
	return summary, nil
}

// Collect streams every message in source order and returns the records
// that pass filter. Messages whose text cannot be decoded are dropped.
// summary may be nil.
func (e *Exporter) Collect(ctx context.Context, handles HandleMap, filter Filter, summary *Summary) ([]Record, error) {
	if summary == nil {
		summary = &Summary{}
	}
	records := []Record{}
	err := e.src.EachMessage(ctx, func(m *chatdb.Message) error {
		summary.MessagesScanned++

		text, err := e.src.GenerateText(m)
		if err != nil {
			summary.MessagesDropped++
			e.logger.Debug("dropping message without decodable text", "rowid", m.RowID, "err", err)
			return nil
		}

		if !filter.Includes(m) {
			return nil
		}
		records = append(records, Project(m, text, handles))
		summary.MessagesExported++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
