package bootstrap

import (
	"fmt"

	"csv_stream_backend/config"
	"csv_stream_backend/platform/grpc/servers"
)

type GrpcServices struct {
	CsvService *servers.CsvService
}

func NewGrpcServices(cfg *config.Config, infra *Infrastructure) (*GrpcServices, error) {
	s := &GrpcServices{
		CsvService: servers.NewCsvService(cfg, infra.Storage),
	}
	if err := s.CsvService.Start(); err != nil {
		return nil, fmt.Errorf("failed to start csv processor: %w", err)
	}
	return s, nil
}

func (s *GrpcServices) Shutdown() error {
	if s.CsvService != nil {
		return s.CsvService.Stop()
	}
	return nil
}
