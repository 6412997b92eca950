package processing

import (
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	protoMessage = regexp.MustCompile(`(?s)message (\w+) \{(.*?)\n\}`)
	protoField   = regexp.MustCompile(`(?m)^\s*(?:optional\s+)?\w+\s+(\w+)\s*=\s*(\d+);`)
)

// cborKeys maps the lowercased Go field name to its integer key.
func cborKeys(t *testing.T, v any) map[string]int {
	t.Helper()
	keys := make(map[string]int)
	typ := reflect.TypeOf(v)
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := strings.Split(f.Tag.Get("cbor"), ",")
		require.Contains(t, tag, "keyasint", f.Name)
		n, err := strconv.Atoi(tag[0])
		require.NoError(t, err, f.Name)
		keys[strings.ToLower(f.Name)] = n
	}
	return keys
}

func TestSchema_MatchesCBORKeys(t *testing.T) {
	data, err := os.ReadFile("processing.proto")
	require.NoError(t, err)

	types := map[string]any{
		"CsvChunk":       CsvChunk{},
		"StatusUpdate":   StatusUpdate{},
		"Summary":        Summary{},
		"ProgressUpdate": ProgressUpdate{},
	}
	seen := 0
	for _, m := range protoMessage.FindAllStringSubmatch(string(data), -1) {
		v, ok := types[m[1]]
		require.True(t, ok, "no Go type for message %s", m[1])
		seen++

		fromProto := make(map[string]int)
		for _, f := range protoField.FindAllStringSubmatch(m[2], -1) {
			n, err := strconv.Atoi(f[2])
			require.NoError(t, err)
			fromProto[strings.ReplaceAll(f[1], "_", "")] = n
		}
		assert.Equal(t, fromProto, cborKeys(t, v), m[1])
	}
	assert.Equal(t, len(types), seen)
}

func TestSchema_ServiceMethod(t *testing.T) {
	data, err := os.ReadFile("processing.proto")
	require.NoError(t, err)
	assert.Contains(t, string(data), "package processing;")
	assert.Contains(t, string(data), "rpc ProcessCsv(stream CsvChunk) returns (stream ProgressUpdate);")
	assert.Equal(t, "/processing.CsvProcessor/ProcessCsv", CsvProcessor_ProcessCsv_FullName)
}
