package processing

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	ServiceName                      = "processing.CsvProcessor"
	CsvProcessor_ProcessCsv_FullName = "/processing.CsvProcessor/ProcessCsv"
)

type CsvProcessorClient interface {
	ProcessCsv(ctx context.Context, opts ...grpc.CallOption) (CsvProcessor_ProcessCsvClient, error)
}

type csvProcessorClient struct {
	cc grpc.ClientConnInterface
}

func NewCsvProcessorClient(cc grpc.ClientConnInterface) CsvProcessorClient {
	return &csvProcessorClient{cc}
}

func (c *csvProcessorClient) ProcessCsv(ctx context.Context, opts ...grpc.CallOption) (CsvProcessor_ProcessCsvClient, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &CsvProcessor_ServiceDesc.Streams[0], CsvProcessor_ProcessCsv_FullName, opts...)
	if err != nil {
		return nil, err
	}
	return &csvProcessorProcessCsvClient{stream}, nil
}

type CsvProcessor_ProcessCsvClient interface {
	Send(*CsvChunk) error
	Recv() (*ProgressUpdate, error)
	grpc.ClientStream
}

type csvProcessorProcessCsvClient struct {
	grpc.ClientStream
}

func (x *csvProcessorProcessCsvClient) Send(m *CsvChunk) error {
	return x.ClientStream.SendMsg(m)
}

func (x *csvProcessorProcessCsvClient) Recv() (*ProgressUpdate, error) {
	m := new(ProgressUpdate)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// CsvProcessorServer is implemented by the processing service. Embed
// UnimplementedCsvProcessorServer for forward compatibility.
type CsvProcessorServer interface {
	ProcessCsv(CsvProcessor_ProcessCsvServer) error
	mustEmbedUnimplementedCsvProcessorServer()
}

type UnimplementedCsvProcessorServer struct{}

func (UnimplementedCsvProcessorServer) ProcessCsv(CsvProcessor_ProcessCsvServer) error {
	return status.Errorf(codes.Unimplemented, "method ProcessCsv not implemented")
}
func (UnimplementedCsvProcessorServer) mustEmbedUnimplementedCsvProcessorServer() {}

func RegisterCsvProcessorServer(s grpc.ServiceRegistrar, srv CsvProcessorServer) {
	s.RegisterService(&CsvProcessor_ServiceDesc, srv)
}

func _CsvProcessor_ProcessCsv_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(CsvProcessorServer).ProcessCsv(&csvProcessorProcessCsvServer{stream})
}

type CsvProcessor_ProcessCsvServer interface {
	Send(*ProgressUpdate) error
	Recv() (*CsvChunk, error)
	grpc.ServerStream
}

type csvProcessorProcessCsvServer struct {
	grpc.ServerStream
}

func (x *csvProcessorProcessCsvServer) Send(m *ProgressUpdate) error {
	return x.ServerStream.SendMsg(m)
}

func (x *csvProcessorProcessCsvServer) Recv() (*CsvChunk, error) {
	m := new(CsvChunk)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

var CsvProcessor_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CsvProcessorServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "ProcessCsv",
			Handler:       _CsvProcessor_ProcessCsv_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "processing",
}
