package processing

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype ("application/grpc+cbor").
const CodecName = "cbor"

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("processing: CBOR encoder initialization failed: " + err.Error())
	}
	// message size is bounded by the gRPC max receive size
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("processing: CBOR decoder initialization failed: " + err.Error())
	}
	encoding.RegisterCodec(Codec{})
}

// Codec implements grpc/encoding.Codec over CBOR.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cbor marshal %T: %w", v, err)
	}
	return data, nil
}

func (Codec) Unmarshal(data []byte, v any) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return fmt.Errorf("cbor unmarshal %T: %w", v, err)
	}
	return nil
}

func (Codec) Name() string { return CodecName }
