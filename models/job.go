package models

import "time"

type JobStatus string

const (
	StatusUploading  JobStatus = "uploading"
	StatusProcessing JobStatus = "processing"
	StatusComplete   JobStatus = "complete"
	StatusFailed     JobStatus = "failed"
)

func (s JobStatus) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// Job is the live view of one upload, served by the status endpoint.
type Job struct {
	JobID                 string    `json:"job_id"`
	Status                JobStatus `json:"status"`
	OriginalFileName      string    `json:"original_file_name,omitempty"`
	FileSizeBytes         uint64    `json:"file_size_bytes"`
	RowsProcessed         uint64    `json:"rows_processed"`
	MalformedRows         uint64    `json:"malformed_rows"`
	ProcessedPercentage   float64   `json:"processed_percentage"`
	Message               string    `json:"message,omitempty"`
	TotalSales            int64     `json:"total_sales"`
	UniqueDepartments     uint64    `json:"unique_departments"`
	ProcessingTimeSeconds float64   `json:"processing_time_seconds"`
	ResultFileName        string    `json:"result_file_name,omitempty"`
	ResultFileURL         string    `json:"result_file_url,omitempty"`
	StorageResultFileURL  string    `json:"storage_result_file_url,omitempty"`
	Error                 string    `json:"error,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// ApplySummary copies a terminal summary into the job and marks it complete.
func (j *Job) ApplySummary(s *Summary) {
	j.Status = StatusComplete
	j.RowsProcessed = s.RowsProcessed
	j.MalformedRows = s.MalformedRows
	j.ProcessedPercentage = s.ProcessedPercentage
	j.TotalSales = s.TotalSales
	j.UniqueDepartments = s.UniqueDepartments
	j.ProcessingTimeSeconds = s.ProcessingTimeSeconds
	j.ResultFileName = s.ResultFileName
	j.ResultFileURL = "/download/" + s.ResultFileName
	j.StorageResultFileURL = s.StorageResultFileURL
	j.Message = ""
}

// JobRecord is the archived row of a finished job.
type JobRecord struct {
	JobID                 string `gorm:"primaryKey"`
	Status                string `gorm:"index"`
	OriginalFileName      string
	FileSizeBytes         uint64
	RowsProcessed         uint64
	MalformedRows         uint64
	ProcessedPercentage   float64
	TotalSales            int64
	UniqueDepartments     uint64
	ProcessingTimeSeconds float64
	ResultFileName        string
	StorageResultFileURL  string
	Error                 string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (JobRecord) TableName() string {
	return "processing_jobs"
}

func NewJobRecord(j *Job) *JobRecord {
	return &JobRecord{
		JobID:                 j.JobID,
		Status:                string(j.Status),
		OriginalFileName:      j.OriginalFileName,
		FileSizeBytes:         j.FileSizeBytes,
		RowsProcessed:         j.RowsProcessed,
		MalformedRows:         j.MalformedRows,
		ProcessedPercentage:   j.ProcessedPercentage,
		TotalSales:            j.TotalSales,
		UniqueDepartments:     j.UniqueDepartments,
		ProcessingTimeSeconds: j.ProcessingTimeSeconds,
		ResultFileName:        j.ResultFileName,
		StorageResultFileURL:  j.StorageResultFileURL,
		Error:                 j.Error,
		CreatedAt:             j.CreatedAt,
		UpdatedAt:             j.UpdatedAt,
	}
}

func (r *JobRecord) ToJob() *Job {
	j := &Job{
		JobID:                 r.JobID,
		Status:                JobStatus(r.Status),
		OriginalFileName:      r.OriginalFileName,
		FileSizeBytes:         r.FileSizeBytes,
		RowsProcessed:         r.RowsProcessed,
		MalformedRows:         r.MalformedRows,
		ProcessedPercentage:   r.ProcessedPercentage,
		TotalSales:            r.TotalSales,
		UniqueDepartments:     r.UniqueDepartments,
		ProcessingTimeSeconds: r.ProcessingTimeSeconds,
		ResultFileName:        r.ResultFileName,
		StorageResultFileURL:  r.StorageResultFileURL,
		Error:                 r.Error,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
	if r.ResultFileName != "" {
		j.ResultFileURL = "/download/" + r.ResultFileName
	}
	return j
}
