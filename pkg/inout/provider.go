package inout

import (
	"fmt"
	"reflect"
	"sort"
)

// Provider is a function that can produce a value of a registered type.
// Returning a nil value (with a nil error) means the provider declined;
// lookup moves on to the next candidate.
type Provider func() (any, error)

// ProvideValue wraps a constant so it can be registered as a provider.
func ProvideValue[T any](v T) Provider {
	return func() (any, error) { return v, nil }
}

// ProvideFunc adapts a typed provider function.
func ProvideFunc[T any](fn func() (T, error)) Provider {
	return func() (any, error) {
		v, err := fn()
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

// Disposer removes a registration and restores whatever it displaced.
// Disposers are idempotent.
type Disposer func()

// RegisterOption configures provider and processor registration.
type RegisterOption func(*registerOpts)

type registerOpts struct {
	weight  float64
	clobber bool
}

// WithWeight orders registrations for the same hint; higher weights are
// consulted first. Ties resolve in registration order.
func WithWeight(w float64) RegisterOption {
	return func(o *registerOpts) { o.weight = w }
}

// WithClobber replaces any existing registrations for the exact hint. The
// returned Disposer restores them.
func WithClobber() RegisterOption {
	return func(o *registerOpts) { o.clobber = true }
}

type providerReg struct {
	hint   Hint
	fn     Provider
	weight float64
	seq    uint64
}

// RegisterProvider registers fn as a provider for hint. Optional hints go
// into a separate map so that a definite request never sees them.
func (s *Store) RegisterProvider(hint Hint, fn Provider, opts ...RegisterOption) (Disposer, error) {
	if hint.IsZero() {
		return nil, ErrInvalidHint
	}
	if fn == nil {
		return nil, fmt.Errorf("provider for %s: %w", hint, ErrNilCallback)
	}

	o := registerOpts{}
	for _, opt := range opts {
		opt(&o)
	}

	s.mu.Lock()
	m := s.providers
	if hint.IsOptional() {
		m = s.optProviders
	}
	key := hint.Type()

	var displaced []providerReg
	if o.clobber {
		displaced = m[key]
		m[key] = nil
	}

	reg := providerReg{hint: hint, fn: fn, weight: o.weight, seq: s.nextSeq()}
	m[key] = insertProviderReg(m[key], reg)
	s.mu.Unlock()

	s.emit(Event{Store: s.name, Kind: EventRegisterProvider, Hint: hint.String(), Weight: o.weight, OK: true})

	disposed := false
	return func() {
		s.mu.Lock()
		if disposed {
			s.mu.Unlock()
			return
		}
		disposed = true

		m := s.providers
		if hint.IsOptional() {
			m = s.optProviders
		}
		m[key] = removeProviderReg(m[key], reg.seq)
		for _, d := range displaced {
			m[key] = insertProviderReg(m[key], d)
		}
		if len(m[key]) == 0 {
			delete(m, key)
		}
		s.mu.Unlock()

		s.emit(Event{Store: s.name, Kind: EventDispose, Hint: hint.String(), OK: true})
	}, nil
}

func insertProviderReg(regs []providerReg, r providerReg) []providerReg {
	regs = append(regs, r)
	sort.SliceStable(regs, func(i, j int) bool {
		if regs[i].weight != regs[j].weight {
			return regs[i].weight > regs[j].weight
		}
		return regs[i].seq < regs[j].seq
	})
	return regs
}

func removeProviderReg(regs []providerReg, seq uint64) []providerReg {
	out := regs[:0]
	for _, r := range regs {
		if r.seq != seq {
			out = append(out, r)
		}
	}
	return out
}

// ProvidersFor returns the candidate providers for a hint, best first.
// Exact matches win over assignability matches, definite registrations
// over optional ones, and weight orders within each tier. Optional
// registrations are consulted only for optional requests.
func (s *Store) ProvidersFor(hint Hint) []Provider {
	if hint.IsZero() {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	want := hint.Type()
	var regs []providerReg

	regs = append(regs, s.providers[want]...)
	if hint.IsOptional() {
		regs = append(regs, s.optProviders[want]...)
	}

	if len(regs) == 0 {
		regs = collectAssignable(s.providers, want)
		if hint.IsOptional() {
			regs = append(regs, collectAssignable(s.optProviders, want)...)
		}
		sort.SliceStable(regs, func(i, j int) bool {
			if regs[i].weight != regs[j].weight {
				return regs[i].weight > regs[j].weight
			}
			return regs[i].seq < regs[j].seq
		})
	}

	out := make([]Provider, len(regs))
	for i, r := range regs {
		out[i] = r.fn
	}
	return out
}

func collectAssignable(m map[reflect.Type][]providerReg, want reflect.Type) []providerReg {
	var out []providerReg
	for key, regs := range m {
		if key == want {
			continue
		}
		if satisfies(want, key) {
			out = append(out, regs...)
		}
	}
	return out
}

// Provide returns the first non-nil value produced by a provider for the
// hint. Providers that error or decline are skipped. ErrNothingProvides is
// returned when no candidate produces a value.
func (s *Store) Provide(hint Hint) (any, error) {
	for _, p := range s.ProvidersFor(hint) {
		v, err := p()
		if err != nil || v == nil {
			continue
		}
		s.emit(Event{Store: s.name, Kind: EventProvide, Hint: hint.String(), OK: true})
		return v, nil
	}

	s.emit(Event{Store: s.name, Kind: EventProvide, Hint: hint.String(), OK: false})
	return nil, fmt.Errorf("%s: %w", hint, ErrNothingProvides)
}

// Provide is the typed convenience form of Store.Provide.
func Provide[T any](s *Store) (T, error) {
	var zero T

	v, err := s.Provide(HintOf[T]())
	if err != nil {
		return zero, err
	}

	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("provider for %s returned %T", HintOf[T](), v)
	}
	return t, nil
}
