package services

import (
	"context"
	"math"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"csv_stream_backend/models"
	"csv_stream_backend/pkg/errs"
	"csv_stream_backend/pkg/logging"
	"csv_stream_backend/platform/storage"
)

const (
	DefaultUpdateInterval = time.Second

	AggregatingMessage = "Aggregating sales data..."
	FinalizingMessage  = "Finalizing aggregation..."
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock reads the wall clock with its monotonic reading.
var RealClock Clock = realClock{}

type SessionConfig struct {
	UpdateInterval time.Duration
	ResultsDir     string
	MaxLineBytes   int
	// Storage is nil when results are written straight to ResultsDir.
	Storage storage.Backend
	Clock   Clock
}

// StatusUpdate is an interim progress report.
type StatusUpdate struct {
	RowsProcessed       uint64
	MalformedRows       uint64
	ProcessedPercentage float64
	Message             string
}

// ProcessingSession is the per-call state of one upload: timing, declared
// size, output name and progress cadence. It is used by a single goroutine.
type ProcessingSession struct {
	cfg            SessionConfig
	clock          Clock
	processor      *StreamProcessor
	startTime      time.Time
	lastProgress   time.Time
	declaredSize   uint64
	chunksSeen     uint64
	outputFileName string
	finished       bool
}

func NewProcessingSession(cfg SessionConfig) *ProcessingSession {
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = DefaultUpdateInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock
	}
	opts := []ProcessorOption{WithMaxLineBytes(cfg.MaxLineBytes)}
	if cfg.Storage != nil {
		opts = append(opts, WithStorage(cfg.Storage))
	}
	now := cfg.Clock.Now()
	return &ProcessingSession{
		cfg:            cfg,
		clock:          cfg.Clock,
		processor:      NewStreamProcessor(opts...),
		startTime:      now,
		lastProgress:   now,
		outputFileName: uuid.New().String() + ".csv",
	}
}

func (s *ProcessingSession) OutputFileName() string { return s.outputFileName }

func (s *ProcessingSession) Processor() *StreamProcessor { return s.processor }

func (s *ProcessingSession) ChunksSeen() uint64 { return s.chunksSeen }

// Accept processes one inbound chunk. The declared size is only taken from
// the first chunk. A non-nil update is returned when the progress interval
// has elapsed since the last one.
func (s *ProcessingSession) Accept(data []byte, declaredSize *uint64) (*StatusUpdate, error) {
	if s.finished {
		return nil, errs.ErrAlreadyFinalized
	}
	if s.chunksSeen == 0 && declaredSize != nil {
		s.declaredSize = *declaredSize
		logging.Logger.Info("received file size", "bytes", s.declaredSize)
	}
	s.chunksSeen++

	if err := s.processor.ProcessChunk(data); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if now.Sub(s.lastProgress) < s.cfg.UpdateInterval {
		return nil, nil
	}
	s.lastProgress = now
	u := s.status(AggregatingMessage)
	return &u, nil
}

// Percentage is processed/declared bytes, clamped to [0, 100] and rounded to
// two decimals. It is 0 while the size is unknown.
func (s *ProcessingSession) Percentage() float64 {
	if s.declaredSize == 0 {
		return 0
	}
	pct := float64(s.processor.Stats().ProcessedBytes) / float64(s.declaredSize) * 100
	if pct > 100 {
		pct = 100
	}
	return math.Round(pct*100) / 100
}

func (s *ProcessingSession) Elapsed() time.Duration {
	return s.clock.Now().Sub(s.startTime)
}

// FinalizingUpdate is sent once the inbound stream is exhausted.
func (s *ProcessingSession) FinalizingUpdate() StatusUpdate {
	u := s.status(FinalizingMessage)
	u.ProcessedPercentage = 100
	return u
}

// Finish finalizes the processor and builds the single terminal summary.
func (s *ProcessingSession) Finish(ctx context.Context) (*models.Summary, error) {
	if s.finished {
		return nil, errs.ErrAlreadyFinalized
	}
	s.finished = true

	useExternal := s.cfg.Storage != nil
	dest := s.outputFileName
	if !useExternal {
		dest = filepath.Join(s.cfg.ResultsDir, s.outputFileName)
	}
	stats, err := s.processor.Finalize(ctx, dest, useExternal)
	if err != nil {
		return nil, err
	}

	summary := &models.Summary{
		RowsProcessed:         stats.RowsProcessed,
		MalformedRows:         stats.MalformedRows,
		ProcessedPercentage:   100,
		TotalSales:            stats.TotalMeasure,
		UniqueDepartments:     stats.UniqueKeys,
		ProcessingTimeSeconds: math.Round(s.Elapsed().Seconds()*100) / 100,
		ResultFileName:        s.outputFileName,
	}
	if useExternal {
		url, err := s.processor.StorageURL(ctx, s.outputFileName)
		if err != nil {
			logging.Logger.Warn("fail resolving result url", "file", s.outputFileName, "error", err)
		} else {
			summary.StorageResultFileURL = url
			logging.Logger.Info("result file accessible", "url", url)
		}
	}
	return summary, nil
}

func (s *ProcessingSession) status(msg string) StatusUpdate {
	stats := s.processor.Stats()
	return StatusUpdate{
		RowsProcessed:       stats.RowsProcessed,
		MalformedRows:       stats.MalformedRows,
		ProcessedPercentage: s.Percentage(),
		Message:             msg,
	}
}
