package services

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"csv_stream_backend/models"
	"csv_stream_backend/pkg/errs"
	"csv_stream_backend/platform/cache"
	"csv_stream_backend/platform/events"
	pb "csv_stream_backend/platform/proto/processing"
	"csv_stream_backend/repository"
)

type serverMode int

const (
	modeSummary serverMode = iota
	modeNoSummary
	modeInternal
)

// sessionServer drives a ProcessingSession the way the processor does.
type sessionServer struct {
	pb.UnimplementedCsvProcessorServer
	mode       serverMode
	resultsDir string
	sizes      chan uint64
}

func (s *sessionServer) ProcessCsv(stream pb.CsvProcessor_ProcessCsvServer) error {
	session := NewProcessingSession(SessionConfig{ResultsDir: s.resultsDir, UpdateInterval: time.Nanosecond})
	first := true
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if first {
			size, _ := chunk.GetFileSizeBytes()
			s.sizes <- size
			first = false
		}
		if s.mode == modeInternal {
			return status.Error(codes.Internal, "Processing error: boom")
		}
		u, err := session.Accept(chunk.Data, chunk.FileSizeBytes)
		if err != nil {
			return err
		}
		if u != nil {
			_ = stream.Send(&pb.ProgressUpdate{Status: &pb.StatusUpdate{
				RowsProcessed:       u.RowsProcessed,
				MalformedRows:       u.MalformedRows,
				ProcessedPercentage: u.ProcessedPercentage,
				Message:             u.Message,
			}})
		}
	}
	if s.mode == modeNoSummary {
		return nil
	}
	sum, err := session.Finish(stream.Context())
	if err != nil {
		return err
	}
	return stream.Send(&pb.ProgressUpdate{Summary: &pb.Summary{
		RowsProcessed:         sum.RowsProcessed,
		MalformedRows:         sum.MalformedRows,
		ProcessedPercentage:   sum.ProcessedPercentage,
		TotalSales:            sum.TotalSales,
		UniqueDepartments:     sum.UniqueDepartments,
		ProcessingTimeSeconds: sum.ProcessingTimeSeconds,
		ResultFileName:        sum.ResultFileName,
	}})
}

type clientOpener struct {
	client pb.CsvProcessorClient
}

func (o clientOpener) OpenProcessCsv(ctx context.Context) (pb.CsvProcessor_ProcessCsvClient, error) {
	return o.client.ProcessCsv(ctx)
}

type jobHarness struct {
	svc    *JobService
	repo   repository.JobRepository
	broker *events.LocalBroker
	server *sessionServer
}

func newJobHarness(t *testing.T, mode serverMode, chunkSize int) *jobHarness {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := &sessionServer{mode: mode, resultsDir: t.TempDir(), sizes: make(chan uint64, 16)}
	gs := grpc.NewServer()
	pb.RegisterCsvProcessorServer(gs, srv)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	repo := repository.NewJobRepository(cache.NewCacheService(cache.InitL1Cache(time.Minute), nil), nil, time.Minute)
	broker := events.NewLocalBroker()
	svc := NewJobService(repo, broker, clientOpener{pb.NewCsvProcessorClient(conn)}, JobServiceConfig{
		ChunkSize: chunkSize,
		MaxJobs:   2,
		Timeout:   10 * time.Second,
	})
	return &jobHarness{svc: svc, repo: repo, broker: broker, server: srv}
}

func TestJobService_CompletesJob(t *testing.T) {
	h := newJobHarness(t, modeSummary, 16)
	ctx := context.Background()

	job, err := h.svc.CreateJob(ctx, "sales.csv", uint64(len(sampleCSV)))
	require.NoError(t, err)
	assert.Equal(t, models.StatusUploading, job.Status)

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	evts, err := h.broker.SubscribeJobEvents(subCtx, job.JobID)
	require.NoError(t, err)

	h.svc.Submit(job, io.NopCloser(strings.NewReader(sampleCSV)))
	h.svc.Wait()

	assert.Equal(t, uint64(len(sampleCSV)), <-h.server.sizes)

	got, err := h.svc.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusComplete, got.Status)
	assert.Equal(t, uint64(3), got.RowsProcessed)
	assert.Equal(t, int64(450), got.TotalSales)
	assert.Equal(t, uint64(2), got.UniqueDepartments)
	assert.Equal(t, "/download/"+got.ResultFileName, got.ResultFileURL)
	assert.Empty(t, got.Error)

	var last *models.JobEvent
	sawProgress := false
	for len(evts) > 0 {
		last = <-evts
		if last.Type == models.EventJobProcessing {
			sawProgress = true
		}
	}
	require.NotNil(t, last)
	assert.True(t, sawProgress)
	assert.Equal(t, models.EventJobCompleted, last.Type)
	require.NotNil(t, last.Summary)
	assert.Equal(t, got.ResultFileName, last.Summary.ResultFileName)
}

func TestJobService_MissingSummaryFailsJob(t *testing.T) {
	h := newJobHarness(t, modeNoSummary, 0)
	ctx := context.Background()

	job, err := h.svc.CreateJob(ctx, "sales.csv", 0)
	require.NoError(t, err)
	err = h.svc.Run(ctx, job, strings.NewReader(sampleCSV))
	assert.ErrorIs(t, err, errs.ErrStreamClosedUnexpectedly)

	h.svc.Submit(job, io.NopCloser(strings.NewReader(sampleCSV)))
	h.svc.Wait()
	got, err := h.svc.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Contains(t, got.Error, "stream closed unexpectedly")
}

func TestJobService_ServerErrorFailsJob(t *testing.T) {
	h := newJobHarness(t, modeInternal, 0)
	ctx := context.Background()

	job, err := h.svc.CreateJob(ctx, "sales.csv", 10)
	require.NoError(t, err)
	h.svc.Submit(job, io.NopCloser(strings.NewReader(sampleCSV)))
	h.svc.Wait()

	got, err := h.svc.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, "gRPC Error: Processing error: boom", got.Error)
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestJobService_ReadErrorAbortsCall(t *testing.T) {
	h := newJobHarness(t, modeSummary, 0)
	ctx := context.Background()

	job, err := h.svc.CreateJob(ctx, "sales.csv", 0)
	require.NoError(t, err)
	err = h.svc.Run(ctx, job, io.MultiReader(strings.NewReader("h,h,h\n"), brokenReader{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
	assert.NotEqual(t, models.StatusComplete, job.Status)
}

func TestJobService_ManyJobsShareLimit(t *testing.T) {
	h := newJobHarness(t, modeSummary, 32)
	ctx := context.Background()

	var jobs []*models.Job
	for i := 0; i < 6; i++ {
		job, err := h.svc.CreateJob(ctx, "sales.csv", 0)
		require.NoError(t, err)
		jobs = append(jobs, job)
		h.svc.Submit(job, io.NopCloser(strings.NewReader(sampleCSV)))
	}
	h.svc.Wait()

	for _, j := range jobs {
		got, err := h.svc.GetJob(ctx, j.JobID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusComplete, got.Status, j.JobID)
	}
}
