package errs

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Format(t *testing.T) {
	err := Wrap(io.ErrUnexpectedEOF, CodeFinalize, "Finalize", "write output")
	assert.Equal(t, "Finalize: write output: unexpected EOF", err.Error())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	plain := New(CodeProtocol, "", "no summary")
	assert.Equal(t, "no summary", plain.Error())
}

func TestWrap_Nil(t *testing.T) {
	assert.Nil(t, Wrap(nil, CodeStorage, "Save", "x"))
}

func TestCodeOf(t *testing.T) {
	inner := Wrap(errors.New("disk full"), CodeStorage, "Save", "write file")
	outer := fmt.Errorf("job 42: %w", inner)

	assert.Equal(t, CodeStorage, CodeOf(outer))
	assert.True(t, IsCode(outer, CodeStorage))
	assert.Equal(t, CodeUnknown, CodeOf(errors.New("plain")))
}

func TestIs_Sentinels(t *testing.T) {
	wrapped := fmt.Errorf("finalize: %w", ErrAlreadyFinalized)
	assert.ErrorIs(t, wrapped, ErrAlreadyFinalized)
	assert.NotErrorIs(t, wrapped, ErrStreamClosedUnexpectedly)

	other := New(CodeFinalize, "Finalize", "serialize")
	assert.NotErrorIs(t, other, ErrAlreadyFinalized)
	assert.ErrorIs(t, other, New(CodeFinalize, "", ""))
}
