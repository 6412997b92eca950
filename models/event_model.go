package models

import "time"

type JobEventType string

const (
	EventJobProcessing JobEventType = "processing"
	EventJobCompleted  JobEventType = "completed"
	EventJobFailed     JobEventType = "failed"
)

type ProgressInfo struct {
	RowsProcessed uint64  `json:"rows_processed"`
	MalformedRows uint64  `json:"malformed_rows"`
	Percentage    float64 `json:"percentage"`
}

type JobEvent struct {
	Type      JobEventType  `json:"type"`
	JobID     string        `json:"job_id"`
	Status    JobStatus     `json:"status"`
	Message   string        `json:"message"`
	Progress  *ProgressInfo `json:"progress,omitempty"`
	Summary   *Summary      `json:"summary,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewJobEvent derives the event describing the job's current state.
func NewJobEvent(j *Job) *JobEvent {
	e := &JobEvent{
		Type:    EventJobProcessing,
		JobID:   j.JobID,
		Status:  j.Status,
		Message: j.Message,
		Progress: &ProgressInfo{
			RowsProcessed: j.RowsProcessed,
			MalformedRows: j.MalformedRows,
			Percentage:    j.ProcessedPercentage,
		},
	}
	switch j.Status {
	case StatusComplete:
		e.Type = EventJobCompleted
		e.Message = "completed"
		e.Summary = &Summary{
			RowsProcessed:         j.RowsProcessed,
			MalformedRows:         j.MalformedRows,
			ProcessedPercentage:   j.ProcessedPercentage,
			TotalSales:            j.TotalSales,
			UniqueDepartments:     j.UniqueDepartments,
			ProcessingTimeSeconds: j.ProcessingTimeSeconds,
			ResultFileName:        j.ResultFileName,
			StorageResultFileURL:  j.StorageResultFileURL,
		}
	case StatusFailed:
		e.Type = EventJobFailed
		e.Message = j.Error
	}
	return e
}
