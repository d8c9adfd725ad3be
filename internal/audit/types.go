package audit

import "time"

// Event is one recorded store operation.
type Event struct {
	ID        string
	Store     string
	Kind      string
	Hint      string
	Weight    float64
	OK        bool
	Error     string
	CreatedAt time.Time
}

// Stats aggregates the event log.
type Stats struct {
	Total   int64
	Misses  int64
	ByKind  map[string]int64
	ByStore map[string]int64
}
