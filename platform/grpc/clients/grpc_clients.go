package clients

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"csv_stream_backend/config"
	"csv_stream_backend/pkg/logging"
	pb "csv_stream_backend/platform/proto/processing"
)

const maxMsgSize = 100 * 1024 * 1024

type GrpcClients struct {
	// connections
	processorConn *grpc.ClientConn

	// servers
	ProcessorClient pb.CsvProcessorClient

	callOpts []grpc.CallOption
}

// NewGrpcClients connects to the processing server at cfg.GrpcServerAddr.
// Extra dial options are appended after the defaults.
func NewGrpcClients(cfg *config.Config, extra ...grpc.DialOption) (*GrpcClients, error) {
	conn, err := createGrpcConnection(cfg.GrpcServerAddr, extra...)
	if err != nil {
		logging.Logger.Error("fail createGrpcConnection", "address", cfg.GrpcServerAddr, "error", err)
		return nil, err
	}

	clients := &GrpcClients{
		processorConn:   conn,
		ProcessorClient: pb.NewCsvProcessorClient(conn),
	}
	if cfg.GrpcCompression == pb.CompressorName {
		clients.callOpts = append(clients.callOpts, grpc.UseCompressor(pb.CompressorName))
	}
	return clients, nil
}

// OpenProcessCsv starts one ProcessCsv stream with the configured call options.
func (c *GrpcClients) OpenProcessCsv(ctx context.Context) (pb.CsvProcessor_ProcessCsvClient, error) {
	return c.ProcessorClient.ProcessCsv(ctx, c.callOpts...)
}

func createGrpcConnection(address string, extra ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),

		// Keep-Alive
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             3 * time.Second,
			PermitWithoutStream: true,
		}),

		// default settings
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(maxMsgSize),
			grpc.MaxCallSendMsgSize(maxMsgSize),
		),
	}
	opts = append(opts, extra...)

	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", address, err)
	}
	return conn, nil
}

func (c *GrpcClients) Close() error {
	if c == nil || c.processorConn == nil {
		return nil
	}
	if err := c.processorConn.Close(); err != nil {
		return fmt.Errorf("failed to close processor connection: %w", err)
	}
	logging.Logger.Info("processor connection closed")
	return nil
}
