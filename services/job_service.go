package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"google.golang.org/grpc/status"

	"csv_stream_backend/models"
	"csv_stream_backend/pkg/errs"
	"csv_stream_backend/pkg/logging"
	"csv_stream_backend/platform/events"
	pb "csv_stream_backend/platform/proto/processing"
	"csv_stream_backend/repository"
)

const (
	DefaultChunkSize = 1024 * 1024
	defaultMaxJobs   = 5
)

// StreamOpener opens one ProcessCsv call against the processor.
type StreamOpener interface {
	OpenProcessCsv(ctx context.Context) (pb.CsvProcessor_ProcessCsvClient, error)
}

type JobServiceConfig struct {
	ChunkSize int
	MaxJobs   int64
	// Timeout bounds a whole job, queueing excluded. Zero means no limit.
	Timeout time.Duration
}

// JobService runs uploads through the processor in the background and keeps
// the job registry and event stream current.
type JobService struct {
	repo      repository.JobRepository
	publisher events.Publisher
	opener    StreamOpener
	sem       *semaphore.Weighted
	cfg       JobServiceConfig
	wg        sync.WaitGroup
}

func NewJobService(repo repository.JobRepository, publisher events.Publisher, opener StreamOpener, cfg JobServiceConfig) *JobService {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.MaxJobs <= 0 {
		cfg.MaxJobs = defaultMaxJobs
	}
	return &JobService{
		repo:      repo,
		publisher: publisher,
		opener:    opener,
		sem:       semaphore.NewWeighted(cfg.MaxJobs),
		cfg:       cfg,
	}
}

// CreateJob registers a new upload in the "uploading" state.
func (s *JobService) CreateJob(ctx context.Context, fileName string, declaredSize uint64) (*models.Job, error) {
	job := &models.Job{
		JobID:            uuid.New().String(),
		Status:           models.StatusUploading,
		OriginalFileName: fileName,
		FileSizeBytes:    declaredSize,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		logging.Logger.Error("fail CreateJob", "error", err)
		return nil, err
	}
	return job, nil
}

func (s *JobService) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	return s.repo.Get(ctx, jobID)
}

func (s *JobService) FindByResultFile(ctx context.Context, fileName string) (*models.Job, error) {
	return s.repo.FindByResultFile(ctx, fileName)
}

// Submit processes src in the background. src is closed when the job ends.
// At most MaxJobs jobs talk to the processor at once; the rest wait.
func (s *JobService) Submit(job *models.Job, src io.ReadCloser) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer src.Close()

		if err := s.sem.Acquire(context.Background(), 1); err != nil {
			s.fail(context.Background(), job, err)
			return
		}
		defer s.sem.Release(1)

		ctx := context.Background()
		if s.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
			defer cancel()
		}
		if err := s.Run(ctx, job, src); err != nil {
			s.fail(ctx, job, err)
		}
	}()
}

// Wait blocks until every submitted job has finished.
func (s *JobService) Wait() {
	s.wg.Wait()
}

// Run streams src to the processor and applies every update to job. It
// returns errs.ErrStreamClosedUnexpectedly when the call ends cleanly without
// a summary.
func (s *JobService) Run(ctx context.Context, job *models.Job, src io.Reader) error {
	logging.Logger.Info("job started", "job_id", job.JobID, "file", job.OriginalFileName)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stream, err := s.opener.OpenProcessCsv(ctx)
	if err != nil {
		return err
	}

	var g errgroup.Group
	g.Go(func() error {
		err := s.sendChunks(stream, src, job.FileSizeBytes)
		if err != nil {
			// abort the call so a partial upload is never finalized
			cancel()
		}
		return err
	})

	summary, recvErr := s.receive(ctx, job, stream)
	if recvErr != nil {
		cancel()
	}
	if sendErr := g.Wait(); sendErr != nil {
		return sendErr
	}
	if recvErr != nil {
		return recvErr
	}
	if summary == nil {
		return errs.ErrStreamClosedUnexpectedly
	}
	return nil
}

func (s *JobService) sendChunks(stream pb.CsvProcessor_ProcessCsvClient, src io.Reader, declaredSize uint64) error {
	buf := make([]byte, s.cfg.ChunkSize)
	first := true
	for {
		n, err := io.ReadFull(src, buf)
		if n > 0 {
			chunk := &pb.CsvChunk{Data: buf[:n]}
			if first {
				size := declaredSize
				chunk.FileSizeBytes = &size
				first = false
			}
			if sendErr := stream.Send(chunk); sendErr != nil {
				// io.EOF means the server ended the call; Recv has the status.
				if errors.Is(sendErr, io.EOF) {
					return nil
				}
				return sendErr
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read upload: %w", err)
		}
	}
	return stream.CloseSend()
}

func (s *JobService) receive(ctx context.Context, job *models.Job, stream pb.CsvProcessor_ProcessCsvClient) (*models.Summary, error) {
	for {
		update, err := stream.Recv()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		if st := update.GetStatus(); st != nil {
			job.Status = models.StatusProcessing
			job.RowsProcessed = st.RowsProcessed
			job.MalformedRows = st.MalformedRows
			job.ProcessedPercentage = st.ProcessedPercentage
			job.Message = st.Message
			s.save(ctx, job)
			logging.Logger.Debug("job progress", "job_id", job.JobID, "rows", st.RowsProcessed)
			continue
		}
		if sum := update.GetSummary(); sum != nil {
			summary := &models.Summary{
				RowsProcessed:         sum.RowsProcessed,
				MalformedRows:         sum.MalformedRows,
				ProcessedPercentage:   sum.ProcessedPercentage,
				TotalSales:            sum.TotalSales,
				UniqueDepartments:     sum.UniqueDepartments,
				ProcessingTimeSeconds: sum.ProcessingTimeSeconds,
				ResultFileName:        sum.ResultFileName,
			}
			if sum.StorageResultFileURL != nil {
				summary.StorageResultFileURL = *sum.StorageResultFileURL
			}
			job.ApplySummary(summary)
			s.save(ctx, job)
			logging.Logger.Info("job complete", "job_id", job.JobID, "file", summary.ResultFileName)
			// the summary is terminal; drain until the server closes
			for {
				if _, err := stream.Recv(); err != nil {
					return summary, nil
				}
			}
		}
	}
}

func (s *JobService) fail(ctx context.Context, job *models.Job, err error) {
	job.Status = models.StatusFailed
	if st, ok := status.FromError(err); ok {
		job.Error = "gRPC Error: " + st.Message()
	} else {
		job.Error = err.Error()
	}
	logging.Logger.Error("job failed", "job_id", job.JobID, "error", err)
	s.save(context.WithoutCancel(ctx), job)
}

func (s *JobService) save(ctx context.Context, job *models.Job) {
	if err := s.repo.Update(ctx, job); err != nil {
		logging.Logger.Error("fail updating job", "job_id", job.JobID, "error", err)
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishJobEvent(ctx, models.NewJobEvent(job)); err != nil {
		logging.Logger.Warn("fail publishing job event", "job_id", job.JobID, "error", err)
	}
}
