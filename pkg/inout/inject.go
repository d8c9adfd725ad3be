package inout

import (
	"context"
	"fmt"
	"reflect"
)

// UnresolvedPolicy controls what happens when an injected call cannot
// resolve a required parameter.
type UnresolvedPolicy int

const (
	// PolicyRaise fails the call with ErrUnresolvable.
	PolicyRaise UnresolvedPolicy = iota
	// PolicyWarn logs a warning and passes the zero value.
	PolicyWarn
	// PolicyIgnore silently passes the zero value.
	PolicyIgnore
)

// InjectOption configures Inject.
type InjectOption func(*injectOpts)

type injectOpts struct {
	onUnresolved  UnresolvedPolicy
	processOutput bool
	processOpts   []ProcessOption
}

// OnUnresolved sets the policy for parameters no provider can satisfy.
func OnUnresolved(p UnresolvedPolicy) InjectOption {
	return func(o *injectOpts) { o.onUnresolved = p }
}

// WithProcessOutput routes each non-nil, non-error return value through
// Process after the call.
func WithProcessOutput(opts ...ProcessOption) InjectOption {
	return func(o *injectOpts) {
		o.processOutput = true
		o.processOpts = opts
	}
}

// Injected is a wrapped function whose missing arguments are filled from
// the store at call time. Supplied arguments bind positionally and are
// never overridden.
type Injected func(args ...any) ([]any, error)

var (
	errType = typeOf[error]()
	ctxType = typeOf[context.Context]()
)

// Inject wraps fn so that parameters not covered by the supplied arguments
// are resolved from the store's providers at call time. error and
// context.Context parameters are never injected; a context must be passed
// explicitly. If the wrapped function's last return value is an error it
// is split off and returned as the call error.
func (s *Store) Inject(fn any, opts ...InjectOption) (Injected, error) {
	fv := reflect.ValueOf(fn)
	if !fv.IsValid() || fv.Kind() != reflect.Func {
		return nil, fmt.Errorf("%T: %w", fn, ErrNotAFunc)
	}

	ft := fv.Type()
	if ft.IsVariadic() {
		return nil, fmt.Errorf("%s: variadic functions cannot be injected", ft)
	}

	o := injectOpts{}
	for _, opt := range opts {
		opt(&o)
	}

	return func(args ...any) ([]any, error) {
		if len(args) > ft.NumIn() {
			return nil, fmt.Errorf("%s: too many arguments (%d > %d)", ft, len(args), ft.NumIn())
		}

		in := make([]reflect.Value, ft.NumIn())
		for i := 0; i < ft.NumIn(); i++ {
			pt := ft.In(i)

			if i < len(args) && args[i] != nil {
				if !isAssignableValue(args[i], pt) {
					return nil, fmt.Errorf("%s: argument %d is %T, want %s", ft, i, args[i], pt)
				}
				in[i] = reflect.ValueOf(args[i])
				continue
			}

			v, err := s.resolveParam(pt, o.onUnresolved)
			if err != nil {
				return nil, err
			}
			in[i] = v
		}

		out := fv.Call(in)

		results := make([]any, 0, len(out))
		var callErr error
		for i, ov := range out {
			if ft.Out(i) == errType {
				if !ov.IsNil() {
					callErr = ov.Interface().(error)
				}
				continue
			}
			results = append(results, ov.Interface())
		}
		if callErr != nil {
			return results, callErr
		}

		if o.processOutput {
			for _, r := range results {
				if r == nil {
					continue
				}
				if err := s.Process(r, o.processOpts...); err != nil {
					return results, err
				}
			}
		}

		return results, nil
	}, nil
}

func (s *Store) resolveParam(pt reflect.Type, policy UnresolvedPolicy) (reflect.Value, error) {
	// Never fabricate a context or an error value.
	if pt == ctxType || pt == errType {
		return s.unresolved(pt, policy)
	}

	v, err := s.Provide(HintFor(pt))
	if err != nil {
		return s.unresolved(pt, policy)
	}
	if !isAssignableValue(v, pt) {
		return reflect.Value{}, fmt.Errorf("provider for %s returned %T", pt, v)
	}
	return reflect.ValueOf(v), nil
}

func (s *Store) unresolved(pt reflect.Type, policy UnresolvedPolicy) (reflect.Value, error) {
	switch policy {
	case PolicyWarn:
		plog.Warn("no provider for injected parameter", "type", pt.String())
		fallthrough
	case PolicyIgnore:
		return reflect.Zero(pt), nil
	default:
		return reflect.Value{}, fmt.Errorf("%s: %w", pt, ErrUnresolvable)
	}
}
