package services

import (
	"encoding/csv"
	"errors"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"csv_stream_backend/pkg/logging"
)

const ExpectedColumns = 3

type Classification int

const (
	// ClassBlank is an empty line seen before the header; it is not counted.
	ClassBlank Classification = iota
	ClassHeader
	ClassAccepted
	ClassMalformed
)

func (c Classification) String() string {
	switch c {
	case ClassBlank:
		return "blank"
	case ClassHeader:
		return "header"
	case ClassAccepted:
		return "accepted"
	case ClassMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

type RejectReason string

const (
	ReasonNone       RejectReason = ""
	ReasonParse      RejectReason = "csv_parse"
	ReasonFieldCount RejectReason = "field_count"
	ReasonEmptyKey   RejectReason = "empty_key"
	ReasonNotNumeric RejectReason = "not_numeric"
	ReasonNegative   RejectReason = "negative_measure"
	ReasonOverflow   RejectReason = "overflow"
)

type RowResult struct {
	Class   Classification
	Reason  RejectReason
	Key     string
	Measure int64
}

type KeyTotal struct {
	Key   string
	Total int64
}

// RowAggregator folds "key,ignored,measure" rows into per-key sums.
// Bad rows are classified and counted; Ingest never fails.
type RowAggregator struct {
	headerSeen    bool
	totals        map[string]int64
	rowsProcessed uint64
	malformedRows uint64
	totalMeasure  int64
}

func NewRowAggregator() *RowAggregator {
	return &RowAggregator{totals: make(map[string]int64)}
}

func (a *RowAggregator) HeaderSeen() bool {
	return a.headerSeen
}

func (a *RowAggregator) Ingest(line string) RowResult {
	text := strings.TrimRight(line, "\r\n")

	if !a.headerSeen {
		if strings.TrimSpace(text) == "" {
			return RowResult{Class: ClassBlank}
		}
		a.acceptHeader(text)
		return RowResult{Class: ClassHeader}
	}

	key, measure, reason := parseRow(text)
	if reason == ReasonNone && measure > math.MaxInt64-a.totalMeasure {
		reason = ReasonOverflow
	}
	if reason != ReasonNone {
		a.malformedRows++
		logging.Logger.Debug("malformed row", "reason", string(reason), "row", text)
		return RowResult{Class: ClassMalformed, Reason: reason, Key: key}
	}

	a.totals[key] += measure
	a.totalMeasure += measure
	a.rowsProcessed++
	return RowResult{Class: ClassAccepted, Key: key, Measure: measure}
}

func (a *RowAggregator) acceptHeader(text string) {
	a.headerSeen = true
	fields, err := readFields(text)
	if err != nil {
		logging.Logger.Warn("failed to parse header", "header", text, "error", err)
		return
	}
	logging.Logger.Info("csv header found", "header", text)
	if len(fields) != ExpectedColumns {
		logging.Logger.Warn("unexpected header format",
			"expected_columns", ExpectedColumns,
			"got_columns", len(fields),
		)
	}
}

func parseRow(text string) (string, int64, RejectReason) {
	fields, err := readFields(text)
	if err != nil {
		return "", 0, ReasonParse
	}
	if len(fields) != ExpectedColumns {
		return "", 0, ReasonFieldCount
	}

	key := strings.TrimSpace(fields[0])
	if key == "" {
		return "", 0, ReasonEmptyKey
	}

	raw := strings.TrimSpace(fields[2])
	measure, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return key, 0, ReasonOverflow
		}
		return key, 0, ReasonNotNumeric
	}
	if measure < 0 {
		return key, 0, ReasonNegative
	}
	return key, measure, ReasonNone
}

// readFields parses one record with lenient quoting; a blank line yields no fields.
func readFields(text string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	fields, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	return fields, err
}

func (a *RowAggregator) RowsProcessed() uint64 { return a.rowsProcessed }
func (a *RowAggregator) MalformedRows() uint64 { return a.malformedRows }
func (a *RowAggregator) TotalMeasure() int64   { return a.totalMeasure }
func (a *RowAggregator) UniqueKeys() uint64    { return uint64(len(a.totals)) }

// Totals returns a copy of the per-key sums.
func (a *RowAggregator) Totals() map[string]int64 {
	out := make(map[string]int64, len(a.totals))
	for k, v := range a.totals {
		out[k] = v
	}
	return out
}

// Sorted returns the per-key sums in ascending byte-wise key order.
func (a *RowAggregator) Sorted() []KeyTotal {
	out := make([]KeyTotal, 0, len(a.totals))
	for k, v := range a.totals {
		out = append(out, KeyTotal{Key: k, Total: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
