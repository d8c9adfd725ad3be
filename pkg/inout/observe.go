package inout

// EventKind classifies store activity reported to an Observer.
type EventKind string

const (
	EventRegisterProvider  EventKind = "register_provider"
	EventRegisterProcessor EventKind = "register_processor"
	EventDispose           EventKind = "dispose"
	EventProvide           EventKind = "provide"
	EventProcess           EventKind = "process"
	EventClear             EventKind = "clear"
)

// Event describes a single store operation. OK is false when a lookup
// found nothing or an invocation failed.
type Event struct {
	Store  string
	Kind   EventKind
	Hint   string
	Weight float64
	OK     bool
	Err    string
}

// Observer receives store events. It must not call back into the store
// synchronously with registration methods.
type Observer func(Event)

// SetObserver installs the observer for this store, replacing any previous
// one. A nil observer disables reporting.
func (s *Store) SetObserver(fn Observer) {
	s.obsMu.Lock()
	s.observer = fn
	s.obsMu.Unlock()
}

func (s *Store) emit(ev Event) {
	s.obsMu.RLock()
	fn := s.observer
	s.obsMu.RUnlock()

	if fn != nil {
		fn(ev)
	}
}
