package processing

import (
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"google.golang.org/grpc/encoding"
)

// CompressorName is the grpc-encoding value for zstd framed messages.
const CompressorName = "zstd"

func init() {
	encoding.RegisterCompressor(newZstdCompressor())
}

type zstdCompressor struct {
	encoders sync.Pool
}

func newZstdCompressor() *zstdCompressor {
	c := &zstdCompressor{}
	c.encoders.New = func() any {
		enc, err := zstd.NewWriter(nil,
			zstd.WithEncoderConcurrency(1),
			zstd.WithEncoderLevel(zstd.SpeedFastest),
		)
		if err != nil {
			return nil
		}
		return enc
	}
	return c
}

func (c *zstdCompressor) Name() string { return CompressorName }

func (c *zstdCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	enc, ok := c.encoders.Get().(*zstd.Encoder)
	if !ok || enc == nil {
		var err error
		enc, err = zstd.NewWriter(w, zstd.WithEncoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		return enc, nil
	}
	enc.Reset(w)
	return &pooledEncoder{Encoder: enc, pool: &c.encoders}, nil
}

func (c *zstdCompressor) Decompress(r io.Reader) (io.Reader, error) {
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return &closingDecoder{rc: dec.IOReadCloser()}, nil
}

type pooledEncoder struct {
	*zstd.Encoder
	pool *sync.Pool
}

func (e *pooledEncoder) Close() error {
	err := e.Encoder.Close()
	e.pool.Put(e.Encoder)
	return err
}

// closingDecoder releases the decoder once the frame has been read.
type closingDecoder struct {
	rc     io.ReadCloser
	closed bool
}

func (d *closingDecoder) Read(p []byte) (int, error) {
	if d.closed {
		return 0, io.EOF
	}
	n, err := d.rc.Read(p)
	if err != nil {
		d.rc.Close()
		d.closed = true
	}
	return n, err
}
