package events

import (
	"encoding/json"
	"time"
)

// Type identifies an event on the bus. Type names are part of the wire
// format consumed by external subscribers and must stay stable.
type Type string

// Stable event types published by the pipeline.
const (
	RunStart      Type = "RUN_START"
	RunDone       Type = "RUN_DONE"
	DiscoverStart Type = "DISCOVER_START"
	DiscoverDone  Type = "DISCOVER_DONE"
	ValidateStart Type = "VALIDATE_START"
	ValidateDone  Type = "VALIDATE_DONE"
	FetchStart    Type = "FETCH_START"
	FetchProgress Type = "FETCH_PROGRESS"
	FetchDone     Type = "FETCH_DONE"
	DedupDone     Type = "DEDUP_DONE"
	OutputWritten Type = "OUTPUT_WRITTEN"
	ErrorOccurred Type = "ERROR_OCCURRED"
	InvalidHost   Type = "INVALID_HOST_SKIPPED"
	TestCompleted Type = "TEST_COMPLETED"
)

// Event is a single bus message. Data carries event-specific fields;
// Source names the publishing component.
type Event struct {
	Type      Type           `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"-"`
	Source    string         `json:"source,omitempty"`
}

// wireEvent is the external JSON representation: {type, data, ts} with
// ts as epoch seconds.
type wireEvent struct {
	Type   Type           `json:"type"`
	Data   map[string]any `json:"data"`
	TS     float64        `json:"ts"`
	Source string         `json:"source,omitempty"`
}

// MarshalJSON implements the external wire format.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEvent{
		Type:   e.Type,
		Data:   e.Data,
		TS:     float64(e.Timestamp.UnixNano()) / float64(time.Second),
		Source: e.Source,
	})
}

// UnmarshalJSON parses the external wire format.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.Type = w.Type
	e.Data = w.Data
	e.Source = w.Source
	e.Timestamp = time.Unix(0, int64(w.TS*float64(time.Second)))
	return nil
}
