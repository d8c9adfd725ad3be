package inout

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/alverad/inout/internal/logger"
)

var plog = logger.ForComponent("inout")

// Processor is a function that can do something with a value of a
// registered type.
type Processor func(any) error

// ProcessFunc adapts a typed processor function. Values of the wrong
// dynamic type are rejected with an error rather than a panic.
func ProcessFunc[T any](fn func(T) error) Processor {
	return func(v any) error {
		t, ok := v.(T)
		if !ok {
			return fmt.Errorf("processor for %s got %T", HintOf[T](), v)
		}
		return fn(t)
	}
}

type processorReg struct {
	hint   Hint
	fn     Processor
	weight float64
	seq    uint64
}

// RegisterProcessor registers fn as a processor for hint. Processors have
// no optional split: a nil value is never handed to one, so an optional
// hint registers the same as its definite form.
func (s *Store) RegisterProcessor(hint Hint, fn Processor, opts ...RegisterOption) (Disposer, error) {
	if hint.IsZero() {
		return nil, ErrInvalidHint
	}
	if fn == nil {
		return nil, fmt.Errorf("processor for %s: %w", hint, ErrNilCallback)
	}

	o := registerOpts{}
	for _, opt := range opts {
		opt(&o)
	}

	hint = hint.definite()
	key := hint.Type()

	s.mu.Lock()
	var displaced []processorReg
	if o.clobber {
		displaced = s.processors[key]
		s.processors[key] = nil
	}

	reg := processorReg{hint: hint, fn: fn, weight: o.weight, seq: s.nextSeq()}
	s.processors[key] = insertProcessorReg(s.processors[key], reg)
	s.mu.Unlock()

	s.emit(Event{Store: s.name, Kind: EventRegisterProcessor, Hint: hint.String(), Weight: o.weight, OK: true})

	disposed := false
	return func() {
		s.mu.Lock()
		if disposed {
			s.mu.Unlock()
			return
		}
		disposed = true

		s.processors[key] = removeProcessorReg(s.processors[key], reg.seq)
		for _, d := range displaced {
			s.processors[key] = insertProcessorReg(s.processors[key], d)
		}
		if len(s.processors[key]) == 0 {
			delete(s.processors, key)
		}
		s.mu.Unlock()

		s.emit(Event{Store: s.name, Kind: EventDispose, Hint: hint.String(), OK: true})
	}, nil
}

func insertProcessorReg(regs []processorReg, r processorReg) []processorReg {
	regs = append(regs, r)
	sort.SliceStable(regs, func(i, j int) bool {
		if regs[i].weight != regs[j].weight {
			return regs[i].weight > regs[j].weight
		}
		return regs[i].seq < regs[j].seq
	})
	return regs
}

func removeProcessorReg(regs []processorReg, seq uint64) []processorReg {
	out := regs[:0]
	for _, r := range regs {
		if r.seq != seq {
			out = append(out, r)
		}
	}
	return out
}

// ProcessorsFor returns the candidate processors for a hint, best first.
// A processor registered for an interface accepts any value whose type
// implements it.
func (s *Store) ProcessorsFor(hint Hint) []Processor {
	if hint.IsZero() {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	want := hint.Type()
	regs := append([]processorReg(nil), s.processors[want]...)

	if len(regs) == 0 {
		for key, candidates := range s.processors {
			if key == want {
				continue
			}
			if satisfies(want, key) {
				regs = append(regs, candidates...)
			}
		}
		sort.SliceStable(regs, func(i, j int) bool {
			if regs[i].weight != regs[j].weight {
				return regs[i].weight > regs[j].weight
			}
			return regs[i].seq < regs[j].seq
		})
	}

	out := make([]Processor, len(regs))
	for i, r := range regs {
		out[i] = r.fn
	}
	return out
}

// ProcessOption configures a Process call.
type ProcessOption func(*processOpts)

type processOpts struct {
	hint      Hint
	firstOnly bool
	raise     bool
}

// ProcessWithHint overrides the hint derived from the value's dynamic type.
func ProcessWithHint(h Hint) ProcessOption {
	return func(o *processOpts) { o.hint = h }
}

// ProcessFirstOnly stops after the first matching processor has run.
func ProcessFirstOnly() ProcessOption {
	return func(o *processOpts) { o.firstOnly = true }
}

// ProcessRaise returns the first processor error instead of logging it.
func ProcessRaise() ProcessOption {
	return func(o *processOpts) { o.raise = true }
}

// Process routes a value through every matching processor in weight order.
// Nil values are skipped. With no matching processor the call is a no-op.
func (s *Store) Process(value any, opts ...ProcessOption) error {
	if value == nil {
		return nil
	}

	o := processOpts{}
	for _, opt := range opts {
		opt(&o)
	}

	hint := o.hint
	if hint.IsZero() {
		var ok bool
		hint, ok = hintForValue(value)
		if !ok {
			return nil
		}
	}

	matched := false
	for _, p := range s.ProcessorsFor(hint) {
		matched = true
		if err := p(value); err != nil {
			if o.raise {
				s.emit(Event{Store: s.name, Kind: EventProcess, Hint: hint.String(), OK: false, Err: err.Error()})
				return fmt.Errorf("processing %s: %w", hint, err)
			}
			plog.Warn("processor failed", "hint", hint.String(), "error", err)
		}
		if o.firstOnly {
			break
		}
	}

	s.emit(Event{Store: s.name, Kind: EventProcess, Hint: hint.String(), OK: matched})
	return nil
}

// isAssignableValue reports whether v can be passed where t is expected.
func isAssignableValue(v any, t reflect.Type) bool {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return false
	}
	return rv.Type().AssignableTo(t)
}
