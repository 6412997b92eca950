package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"csv_stream_backend/models"
	"csv_stream_backend/pkg/errs"
	"csv_stream_backend/pkg/logging"
	"csv_stream_backend/platform/storage"
)

var OutputHeader = []string{"Department Name", "Total Number of Sales"}

type ProcessorState string

const (
	StateCollectingHeader ProcessorState = "collecting-header"
	StateAggregating      ProcessorState = "aggregating"
	StateFinalized        ProcessorState = "finalized"
)

type ProcessorOption func(*StreamProcessor)

func WithStorage(b storage.Backend) ProcessorOption {
	return func(p *StreamProcessor) { p.storage = b }
}

func WithMaxLineBytes(n int) ProcessorOption {
	return func(p *StreamProcessor) { p.maxLineBytes = n }
}

// StreamProcessor aggregates one CSV stream chunk by chunk. It is owned by a
// single session and is not safe for concurrent use.
type StreamProcessor struct {
	assembler      *LineAssembler
	aggregator     *RowAggregator
	storage        storage.Backend
	maxLineBytes   int
	processedBytes uint64
	finalized      bool
	final          models.ProcessingStats
}

func NewStreamProcessor(opts ...ProcessorOption) *StreamProcessor {
	p := &StreamProcessor{aggregator: NewRowAggregator()}
	for _, opt := range opts {
		opt(p)
	}
	p.assembler = NewLineAssembler(p.maxLineBytes)
	return p
}

func (p *StreamProcessor) State() ProcessorState {
	switch {
	case p.finalized:
		return StateFinalized
	case p.aggregator.HeaderSeen():
		return StateAggregating
	default:
		return StateCollectingHeader
	}
}

// ProcessChunk feeds raw bytes through the assembler and classifies every
// completed line. Bad rows are counted, not returned; an error means the
// stream cannot continue.
func (p *StreamProcessor) ProcessChunk(data []byte) (err error) {
	if p.finalized {
		return errs.ErrAlreadyFinalized
	}
	defer func() {
		if r := recover(); r != nil {
			err = errs.New(errs.CodeChunkProcessing, "StreamProcessor.ProcessChunk", fmt.Sprintf("chunk processing failed: %v", r))
		}
	}()

	p.processedBytes += uint64(len(data))
	lines, ferr := p.assembler.Feed(data)
	for _, line := range lines {
		p.aggregator.Ingest(line)
	}
	if ferr != nil {
		logging.Logger.Error("fail ProcessChunk", "error", ferr)
		return errs.Wrap(ferr, errs.CodeChunkProcessing, "StreamProcessor.ProcessChunk", "chunk processing failed")
	}
	return nil
}

// Finalize flushes the held partial line, writes the sorted result and
// returns the final stats. With useExternal the bytes go to the storage
// backend under dest; otherwise dest is a local file path. Only the first
// call does any work.
func (p *StreamProcessor) Finalize(ctx context.Context, dest string, useExternal bool) (models.ProcessingStats, error) {
	if p.finalized {
		return p.final, errs.ErrAlreadyFinalized
	}
	p.finalized = true

	lines, tail, err := p.assembler.Flush()
	if err != nil {
		return p.Stats(), errs.Wrap(err, errs.CodeFinalize, "StreamProcessor.Finalize", "flush partial line")
	}
	for _, line := range lines {
		p.aggregator.Ingest(line)
	}
	// an unterminated first line is an unconsumed header, not a row
	if tail != "" && p.aggregator.HeaderSeen() {
		logging.Logger.Debug("processing final buffered row")
		p.aggregator.Ingest(tail)
	}
	p.final = p.Stats()

	content, err := p.render()
	if err != nil {
		return p.final, errs.Wrap(err, errs.CodeFinalize, "StreamProcessor.Finalize", "serialize results")
	}

	if useExternal {
		if p.storage == nil {
			return p.final, errs.Wrap(errs.ErrStorageNotConfigured, errs.CodeFinalize, "StreamProcessor.Finalize", "save results")
		}
		locator, err := p.storage.Save(ctx, dest, content)
		if err != nil {
			return p.final, errs.Wrap(err, errs.CodeFinalize, "StreamProcessor.Finalize", "save results")
		}
		logging.Logger.Info("results saved via storage backend", "backend", p.storage.Kind(), "locator", locator)
		return p.final, nil
	}

	if err := writeLocalFile(dest, content); err != nil {
		return p.final, errs.Wrapf(err, errs.CodeFinalize, "StreamProcessor.Finalize", "failed to write output file at %s", dest)
	}
	logging.Logger.Info("results written", "path", dest)
	return p.final, nil
}

// StorageURL resolves an accessible reference for a stored result.
func (p *StreamProcessor) StorageURL(ctx context.Context, logicalPath string) (string, error) {
	if p.storage == nil {
		return "", errs.ErrStorageNotConfigured
	}
	return p.storage.URLFor(ctx, logicalPath)
}

// Stats is a snapshot of the running counters.
func (p *StreamProcessor) Stats() models.ProcessingStats {
	return models.ProcessingStats{
		RowsProcessed:  p.aggregator.RowsProcessed(),
		MalformedRows:  p.aggregator.MalformedRows(),
		ProcessedBytes: p.processedBytes,
		UniqueKeys:     p.aggregator.UniqueKeys(),
		TotalMeasure:   p.aggregator.TotalMeasure(),
	}
}

func (p *StreamProcessor) Aggregates() map[string]int64 {
	return p.aggregator.Totals()
}

func (p *StreamProcessor) render() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(OutputHeader); err != nil {
		return nil, err
	}
	for _, kt := range p.aggregator.Sorted() {
		if err := w.Write([]string{kt.Key, strconv.FormatInt(kt.Total, 10)}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeLocalFile(path string, content []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, content, 0o644)
}
