package models

// ProcessingStats counters only grow during a session.
type ProcessingStats struct {
	RowsProcessed  uint64 `json:"rows_processed"`
	MalformedRows  uint64 `json:"malformed_rows"`
	ProcessedBytes uint64 `json:"processed_bytes"`
	UniqueKeys     uint64 `json:"unique_keys"`
	TotalMeasure   int64  `json:"total_measure"`
}

// DataLines is the number of complete non-header lines classified so far.
func (s ProcessingStats) DataLines() uint64 {
	return s.RowsProcessed + s.MalformedRows
}

// Summary is the terminal result of one processing session.
type Summary struct {
	RowsProcessed         uint64  `json:"rows_processed"`
	MalformedRows         uint64  `json:"malformed_rows"`
	ProcessedPercentage   float64 `json:"processed_percentage"`
	TotalSales            int64   `json:"total_sales"`
	UniqueDepartments     uint64  `json:"unique_departments"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
	ResultFileName        string  `json:"result_file_name"`
	StorageResultFileURL  string  `json:"storage_result_file_url,omitempty"`
}
