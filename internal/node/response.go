package node

import "time"

// Response is the standard envelope for every node operation. Unset fields
// are omitted from its JSON form; an empty but set map is kept.
type Response struct {
	Success         bool           `json:"success"`
	Data            map[string]any `json:"data,omitzero"`
	Error           string         `json:"error,omitempty"`
	Metadata        map[string]any `json:"metadata,omitzero"`
	ExecutionTimeMs *float64       `json:"execution_time_ms,omitempty"`
	Cost            *float64       `json:"cost,omitempty"`
}

func durationMillis(d time.Duration) *float64 {
	ms := float64(d) / float64(time.Millisecond)
	return &ms
}
