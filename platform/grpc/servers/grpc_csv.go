package servers

import (
	"errors"
	"io"
	"net"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"csv_stream_backend/config"
	"csv_stream_backend/pkg/errs"
	"csv_stream_backend/pkg/logging"
	pb "csv_stream_backend/platform/proto/processing"
	"csv_stream_backend/platform/storage"
	"csv_stream_backend/services"
)

const maxMsgSize = 100 * 1024 * 1024

type Option func(*CsvService)

// WithClock overrides the session clock.
func WithClock(c services.Clock) Option {
	return func(s *CsvService) { s.clock = c }
}

// CsvService serves the ProcessCsv streaming RPC. Each call gets its own
// ProcessingSession; only the storage backend is shared between calls.
type CsvService struct {
	pb.UnimplementedCsvProcessorServer
	port       string
	maxWorkers int
	cfg        *config.Config
	storage    storage.Backend
	clock      services.Clock
	tracer     trace.Tracer
	server     *grpc.Server
	listener   net.Listener
}

func NewCsvService(cfg *config.Config, backend storage.Backend, opts ...Option) *CsvService {
	s := &CsvService{
		port:       cfg.GrpcPort,
		maxWorkers: cfg.GrpcMaxWorkers,
		cfg:        cfg,
		storage:    backend,
		clock:      services.RealClock,
		tracer:     otel.Tracer("csv_stream_backend/processor"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CsvService) Start() error {
	lis, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		logging.Logger.Error("fail NewCsvService", "error", err)
		return err
	}
	s.Serve(lis)
	logging.Logger.Info("start grpc server", "port", s.port, "max_workers", s.maxWorkers)
	return nil
}

// Serve registers the service and serves lis in the background.
func (s *CsvService) Serve(lis net.Listener) {
	s.listener = lis
	s.server = grpc.NewServer(
		grpc.MaxConcurrentStreams(uint32(s.maxWorkers)),
		grpc.MaxRecvMsgSize(maxMsgSize),
		grpc.MaxSendMsgSize(maxMsgSize),
	)
	pb.RegisterCsvProcessorServer(s.server, s)
	go func() {
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logging.Logger.Error("fail grpc server", "error", err)
		}
	}()
}

func (s *CsvService) Stop() error {
	if s.server != nil {
		s.server.GracefulStop()
	}
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
	}
	return nil
}

func (s *CsvService) newSession() *services.ProcessingSession {
	return services.NewProcessingSession(services.SessionConfig{
		UpdateInterval: s.cfg.UpdateInterval,
		ResultsDir:     s.cfg.ResultsDir,
		MaxLineBytes:   s.cfg.MaxLineBytes,
		Storage:        s.storage,
		Clock:          s.clock,
	})
}

func (s *CsvService) ProcessCsv(stream pb.CsvProcessor_ProcessCsvServer) error {
	ctx, span := s.tracer.Start(stream.Context(), "ProcessCsv")
	defer span.End()

	session := s.newSession()
	logging.Logger.Info("processing session started", "result_file", session.OutputFileName())

	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil || status.Code(err) == codes.Canceled {
				logging.Logger.Info("client cancelled stream",
					"result_file", session.OutputFileName(),
					"chunks", session.ChunksSeen(),
				)
				span.SetStatus(otelcodes.Error, "cancelled")
				return status.Error(codes.Canceled, "stream cancelled by client")
			}
			logging.Logger.Error("fail ProcessCsv recv", "error", err)
			span.RecordError(err)
			return err
		}

		update, err := session.Accept(chunk.Data, chunk.FileSizeBytes)
		if err != nil {
			return s.fail(span, err)
		}
		if update != nil {
			if err := stream.Send(toStatusMessage(*update)); err != nil {
				return err
			}
		}
	}

	if err := stream.Send(toStatusMessage(session.FinalizingUpdate())); err != nil {
		return err
	}
	summary, err := session.Finish(ctx)
	if err != nil {
		return s.fail(span, err)
	}

	span.SetAttributes(
		attribute.Int64("csv.rows_processed", int64(summary.RowsProcessed)),
		attribute.Int64("csv.malformed_rows", int64(summary.MalformedRows)),
		attribute.Int64("csv.unique_keys", int64(summary.UniqueDepartments)),
		attribute.Int64("csv.bytes", int64(session.Processor().Stats().ProcessedBytes)),
	)
	logging.Logger.Info("processing session complete",
		"result_file", summary.ResultFileName,
		"rows_processed", summary.RowsProcessed,
		"malformed_rows", summary.MalformedRows,
		"seconds", summary.ProcessingTimeSeconds,
	)

	msg := &pb.Summary{
		RowsProcessed:         summary.RowsProcessed,
		MalformedRows:         summary.MalformedRows,
		ProcessedPercentage:   summary.ProcessedPercentage,
		TotalSales:            summary.TotalSales,
		UniqueDepartments:     summary.UniqueDepartments,
		ProcessingTimeSeconds: summary.ProcessingTimeSeconds,
		ResultFileName:        summary.ResultFileName,
	}
	if summary.StorageResultFileURL != "" {
		url := summary.StorageResultFileURL
		msg.StorageResultFileURL = &url
	}
	return stream.Send(&pb.ProgressUpdate{Summary: msg})
}

// fail maps a processing fault to an INTERNAL status; no summary follows.
func (s *CsvService) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
	logging.Logger.Error("fail ProcessCsv", "code", string(errs.CodeOf(err)), "error", err)
	switch errs.CodeOf(err) {
	case errs.CodeChunkProcessing, errs.CodeFinalize:
		return status.Errorf(codes.Internal, "Processing error: %v", err)
	default:
		return status.Errorf(codes.Internal, "Internal server error: %v", err)
	}
}

func toStatusMessage(u services.StatusUpdate) *pb.ProgressUpdate {
	return &pb.ProgressUpdate{Status: &pb.StatusUpdate{
		RowsProcessed:       u.RowsProcessed,
		MalformedRows:       u.MalformedRows,
		ProcessedPercentage: u.ProcessedPercentage,
		Message:             u.Message,
	}}
}
