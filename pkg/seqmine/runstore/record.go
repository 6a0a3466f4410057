package runstore

import (
	"encoding/json"
	"time"
)

// Version is the current record format version.
// Increment when making breaking changes to the report layout.
const Version = 1

// Record is the persisted envelope around a run report.
type Record struct {
	Version   int             `json:"version"`
	RunID     string          `json:"run_id"`
	Timestamp time.Time       `json:"timestamp"`
	Report    json.RawMessage `json:"report"`
}

// NewRecord wraps an already serialized report.
func NewRecord(runID string, report []byte) *Record {
	return &Record{
		Version:   Version,
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Report:    report,
	}
}

// Marshal serializes a record to JSON.
func (r *Record) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// Unmarshal deserializes a record from JSON.
func Unmarshal(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
