package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csv_stream_backend/models"
	"csv_stream_backend/pkg/errs"
)

const sampleCSV = "Department Name,Date,Number of Sales\n" +
	"Electronics,2023-08-01,100\n" +
	"Clothing,2023-08-01,200\n" +
	"Electronics,2023-08-02,150\n"

func feedAll(t *testing.T, p *StreamProcessor, chunks ...string) {
	t.Helper()
	for _, c := range chunks {
		require.NoError(t, p.ProcessChunk([]byte(c)))
	}
}

func finalizeLocal(t *testing.T, p *StreamProcessor) (models.ProcessingStats, string) {
	t.Helper()
	dest := filepath.Join(t.TempDir(), "out", "result.csv")
	stats, err := p.Finalize(context.Background(), dest, false)
	require.NoError(t, err)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	return stats, string(data)
}

func TestStreamProcessor_BasicAggregation(t *testing.T) {
	p := NewStreamProcessor()
	feedAll(t, p, sampleCSV)

	stats, out := finalizeLocal(t, p)
	assert.Equal(t, map[string]int64{"Clothing": 200, "Electronics": 250}, p.Aggregates())
	assert.Equal(t, uint64(3), stats.RowsProcessed)
	assert.Equal(t, uint64(0), stats.MalformedRows)
	assert.Equal(t, uint64(2), stats.UniqueKeys)
	assert.Equal(t, int64(450), stats.TotalMeasure)
	assert.Equal(t, uint64(len(sampleCSV)), stats.ProcessedBytes)
	assert.Equal(t, "Department Name,Total Number of Sales\nClothing,200\nElectronics,250\n", out)
}

func TestStreamProcessor_PartialRowsAcrossChunks(t *testing.T) {
	p := NewStreamProcessor()
	feedAll(t, p,
		"Department Name,Date,Number of Sales\nElectronics,2023-08-01,100\nClot",
		"hing,2023-08-01,200\n",
		"Electronics,2023-08-02,150",
	)
	assert.Equal(t, map[string]int64{"Electronics": 100, "Clothing": 200}, p.Aggregates())
	assert.Equal(t, StateAggregating, p.State())

	stats, _ := finalizeLocal(t, p)
	assert.Equal(t, map[string]int64{"Electronics": 250, "Clothing": 200}, p.Aggregates())
	assert.Equal(t, uint64(3), stats.RowsProcessed)
	assert.Equal(t, StateFinalized, p.State())
}

func TestStreamProcessor_MalformedRowsCounted(t *testing.T) {
	p := NewStreamProcessor()
	feedAll(t, p, "Department Name,Date,Number of Sales\n"+
		"A,2023-08-01,10\n"+
		"A,2023-08-01\n"+
		"B,2023-08-01,20\n"+
		",2023-08-01,5\n"+
		"B,2023-08-01,abc\n"+
		"C,2023-08-01,0\n"+
		"C,2023-08-01,-5\n")

	stats, out := finalizeLocal(t, p)
	assert.Equal(t, uint64(3), stats.RowsProcessed)
	assert.Equal(t, uint64(4), stats.MalformedRows)
	assert.Equal(t, "Department Name,Total Number of Sales\nA,10\nB,20\nC,0\n", out)
}

func TestStreamProcessor_HeaderOnly(t *testing.T) {
	for _, input := range []string{
		"Department Name,Date,Number of Sales\n",
		"Department Name,Date,Number of Sales",
		"",
	} {
		p := NewStreamProcessor()
		feedAll(t, p, input)
		stats, out := finalizeLocal(t, p)
		assert.Equal(t, uint64(0), stats.RowsProcessed)
		assert.Equal(t, uint64(0), stats.MalformedRows)
		assert.Equal(t, int64(0), stats.TotalMeasure)
		assert.Equal(t, uint64(0), stats.UniqueKeys)
		assert.Equal(t, "Department Name,Total Number of Sales\n", out)
	}
}

func TestStreamProcessor_ChunkBoundaryInvariance(t *testing.T) {
	input := "Department Name,Date,Number of Sales\r\n" +
		"Électronique,2023-08-01,100\r\n" +
		"服装,2023-08-01,200\n" +
		"bad row\n" +
		"\"Home, Garden\",2023-08-02,7\n" +
		"Électronique,2023-08-02,-3\n" +
		"服装,2023-08-03,1"

	ref := NewStreamProcessor()
	feedAll(t, ref, input)
	refStats, refOut := finalizeLocal(t, ref)
	require.Equal(t, uint64(4), refStats.RowsProcessed)
	require.Equal(t, uint64(2), refStats.MalformedRows)

	raw := []byte(input)
	for i := 0; i <= len(raw); i++ {
		p := NewStreamProcessor()
		require.NoError(t, p.ProcessChunk(raw[:i]))
		require.NoError(t, p.ProcessChunk(raw[i:]))
		stats, out := finalizeLocal(t, p)
		assert.Equal(t, refStats, stats, "split at %d", i)
		assert.Equal(t, refOut, out, "split at %d", i)
	}

	// one byte at a time
	p := NewStreamProcessor()
	for _, b := range raw {
		require.NoError(t, p.ProcessChunk([]byte{b}))
	}
	stats, out := finalizeLocal(t, p)
	assert.Equal(t, refStats, stats)
	assert.Equal(t, refOut, out)
}

func TestStreamProcessor_CarriageReturnLineEndings(t *testing.T) {
	input := "Department Name,Date,Number of Sales\r" +
		"Electronics,2023-08-01,100\r" +
		"Clothing,2023-08-01,200\r" +
		"bad row\r" +
		"Electronics,2023-08-02,150\r"
	want := "Department Name,Total Number of Sales\nClothing,200\nElectronics,250\n"

	raw := []byte(input)
	for i := 0; i <= len(raw); i++ {
		p := NewStreamProcessor()
		require.NoError(t, p.ProcessChunk(raw[:i]))
		require.NoError(t, p.ProcessChunk(raw[i:]))
		stats, out := finalizeLocal(t, p)
		assert.Equal(t, uint64(3), stats.RowsProcessed, "split at %d", i)
		assert.Equal(t, uint64(1), stats.MalformedRows, "split at %d", i)
		assert.Equal(t, want, out, "split at %d", i)
	}
}

func TestStreamProcessor_OutputSortedRegardlessOfInputOrder(t *testing.T) {
	p := NewStreamProcessor()
	feedAll(t, p, "h1,h2,h3\nzeta,d,1\nalpha,d,2\nMike,d,3\nalpha,d,4\n")
	_, out := finalizeLocal(t, p)
	assert.Equal(t, "Department Name,Total Number of Sales\nMike,3\nalpha,6\nzeta,1\n", out)
}

func TestStreamProcessor_UnicodeKeysVerbatim(t *testing.T) {
	p := NewStreamProcessor()
	feedAll(t, p, "h1,h2,h3\nÉlectronique,d,5\n家电,d,6\nÉlectronique,d,1\n")
	_, out := finalizeLocal(t, p)
	assert.Equal(t, "Department Name,Total Number of Sales\nÉlectronique,6\n家电,6\n", out)
}

func TestStreamProcessor_FinalizeIsOneShot(t *testing.T) {
	p := NewStreamProcessor()
	feedAll(t, p, sampleCSV+"Toys,2023-08-03,9")

	first, _ := finalizeLocal(t, p)
	assert.Equal(t, uint64(4), first.RowsProcessed)

	again, err := p.Finalize(context.Background(), filepath.Join(t.TempDir(), "x.csv"), false)
	assert.ErrorIs(t, err, errs.ErrAlreadyFinalized)
	assert.Equal(t, first, again)

	assert.ErrorIs(t, p.ProcessChunk([]byte("more\n")), errs.ErrAlreadyFinalized)
}

func TestStreamProcessor_ExternalStorage(t *testing.T) {
	backend := newMemBackend()
	p := NewStreamProcessor(WithStorage(backend))
	feedAll(t, p, sampleCSV)

	_, err := p.Finalize(context.Background(), "abc.csv", true)
	require.NoError(t, err)
	assert.Equal(t, "Department Name,Total Number of Sales\nClothing,200\nElectronics,250\n", backend.get("abc.csv"))

	url, err := p.StorageURL(context.Background(), "abc.csv")
	require.NoError(t, err)
	assert.Equal(t, "mem://abc.csv", url)
}

func TestStreamProcessor_StorageFailureIsFinalizeFault(t *testing.T) {
	backend := newMemBackend()
	backend.saveErr = errDiskFull
	p := NewStreamProcessor(WithStorage(backend))
	feedAll(t, p, sampleCSV)

	_, err := p.Finalize(context.Background(), "abc.csv", true)
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.CodeFinalize))
	assert.ErrorIs(t, err, errDiskFull)
}

func TestStreamProcessor_ExternalWithoutBackend(t *testing.T) {
	p := NewStreamProcessor()
	_, err := p.Finalize(context.Background(), "abc.csv", true)
	assert.ErrorIs(t, err, errs.ErrStorageNotConfigured)
}

func TestStreamProcessor_OverlongLineIsChunkFault(t *testing.T) {
	p := NewStreamProcessor(WithMaxLineBytes(16))
	err := p.ProcessChunk([]byte("header\n" + strings.Repeat("x", 32)))
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.CodeChunkProcessing))
}

func TestStreamProcessor_ConservationAcrossChunks(t *testing.T) {
	p := NewStreamProcessor()
	lines := []string{"h,h,h\n"}
	for i := 0; i < 200; i++ {
		switch i % 4 {
		case 0:
			lines = append(lines, "A,d,1\n")
		case 1:
			lines = append(lines, "B,d,x\n")
		case 2:
			lines = append(lines, "C,d\n")
		default:
			lines = append(lines, "D,d,2\n")
		}
	}
	all := strings.Join(lines, "")
	for start := 0; start < len(all); start += 37 {
		end := min(start+37, len(all))
		require.NoError(t, p.ProcessChunk([]byte(all[start:end])))
	}
	stats, _ := finalizeLocal(t, p)
	assert.Equal(t, uint64(200), stats.DataLines())
	assert.Equal(t, uint64(100), stats.RowsProcessed)
	assert.Equal(t, int64(150), stats.TotalMeasure)
}
