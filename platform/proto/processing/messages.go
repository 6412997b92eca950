// Package processing holds the wire messages and service descriptor of the
// CSV processor. Messages are CBOR encoded with integer keys acting as
// field numbers, so fields may be added without breaking older peers.
package processing

// CsvChunk is one client-to-server message. FileSizeBytes is only
// meaningful on the first chunk of a stream.
type CsvChunk struct {
	Data          []byte  `cbor:"1,keyasint"`
	FileSizeBytes *uint64 `cbor:"2,keyasint,omitempty"`
}

func (c *CsvChunk) GetFileSizeBytes() (uint64, bool) {
	if c == nil || c.FileSizeBytes == nil {
		return 0, false
	}
	return *c.FileSizeBytes, true
}

type StatusUpdate struct {
	RowsProcessed       uint64  `cbor:"1,keyasint"`
	MalformedRows       uint64  `cbor:"2,keyasint"`
	ProcessedPercentage float64 `cbor:"3,keyasint"`
	Message             string  `cbor:"4,keyasint"`
}

type Summary struct {
	RowsProcessed         uint64  `cbor:"1,keyasint"`
	MalformedRows         uint64  `cbor:"2,keyasint"`
	ProcessedPercentage   float64 `cbor:"3,keyasint"`
	TotalSales            int64   `cbor:"4,keyasint"`
	UniqueDepartments     uint64  `cbor:"5,keyasint"`
	ProcessingTimeSeconds float64 `cbor:"6,keyasint"`
	ResultFileName        string  `cbor:"7,keyasint"`
	StorageResultFileURL  *string `cbor:"8,keyasint,omitempty"`
}

// ProgressUpdate carries exactly one of Status or Summary.
type ProgressUpdate struct {
	Status  *StatusUpdate `cbor:"1,keyasint,omitempty"`
	Summary *Summary      `cbor:"2,keyasint,omitempty"`
}

func (u *ProgressUpdate) GetStatus() *StatusUpdate {
	if u == nil {
		return nil
	}
	return u.Status
}

func (u *ProgressUpdate) GetSummary() *Summary {
	if u == nil {
		return nil
	}
	return u.Summary
}
