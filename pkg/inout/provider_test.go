package inout

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	name := fmt.Sprintf("t-%s", strings.ReplaceAll(t.Name(), "/", "-"))
	s, err := NewStore(name)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { DestroyStore(name) })
	return s
}

func TestProvideValue(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.RegisterProvider(HintOf[int](), ProvideValue(42)); err != nil {
		t.Fatalf("RegisterProvider failed: %v", err)
	}

	v, err := Provide[int](s)
	if err != nil {
		t.Fatalf("Provide failed: %v", err)
	}
	if v != 42 {
		t.Errorf("Provide = %d, want 42", v)
	}
}

func TestProvideFunc(t *testing.T) {
	s := newTestStore(t)

	calls := 0
	s.RegisterProvider(HintOf[string](), ProvideFunc(func() (string, error) {
		calls++
		return "hello", nil
	}))

	v, err := Provide[string](s)
	if err != nil {
		t.Fatalf("Provide failed: %v", err)
	}
	if v != "hello" {
		t.Errorf("Provide = %q, want %q", v, "hello")
	}
	if calls != 1 {
		t.Errorf("provider called %d times, want 1", calls)
	}
}

func TestProvideNothingRegistered(t *testing.T) {
	s := newTestStore(t)

	if _, err := Provide[int](s); !errors.Is(err, ErrNothingProvides) {
		t.Errorf("error = %v, want ErrNothingProvides", err)
	}
}

func TestProviderErrorsAndDeclinesAreSkipped(t *testing.T) {
	s := newTestStore(t)

	s.RegisterProvider(HintOf[int](), func() (any, error) {
		return nil, errors.New("boom")
	}, WithWeight(10))
	s.RegisterProvider(HintOf[int](), func() (any, error) {
		return nil, nil // declines
	}, WithWeight(5))
	s.RegisterProvider(HintOf[int](), ProvideValue(7))

	v, err := Provide[int](s)
	if err != nil {
		t.Fatalf("Provide failed: %v", err)
	}
	if v != 7 {
		t.Errorf("Provide = %d, want 7", v)
	}
}

func TestWeightOrdering(t *testing.T) {
	s := newTestStore(t)

	s.RegisterProvider(HintOf[int](), ProvideValue(1))
	s.RegisterProvider(HintOf[int](), ProvideValue(2), WithWeight(10))
	s.RegisterProvider(HintOf[int](), ProvideValue(3), WithWeight(5))

	v, _ := Provide[int](s)
	if v != 2 {
		t.Errorf("highest weight should win: got %d, want 2", v)
	}

	ps := s.ProvidersFor(HintOf[int]())
	if len(ps) != 3 {
		t.Fatalf("ProvidersFor length = %d, want 3", len(ps))
	}

	var order []int
	for _, p := range ps {
		v, _ := p()
		order = append(order, v.(int))
	}
	want := []int{2, 3, 1}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %d, want %d", i, order[i], want[i])
		}
	}
}

func TestOptionalProviders(t *testing.T) {
	s := newTestStore(t)

	// An optional registration never serves a definite request.
	s.RegisterProvider(OptionalOf[int](), ProvideValue(1))

	if _, err := Provide[int](s); !errors.Is(err, ErrNothingProvides) {
		t.Errorf("definite request should not see optional provider: %v", err)
	}

	v, err := s.Provide(OptionalOf[int]())
	if err != nil {
		t.Fatalf("optional request failed: %v", err)
	}
	if v.(int) != 1 {
		t.Errorf("optional Provide = %v, want 1", v)
	}

	// A definite registration serves optional requests, and is preferred.
	s.RegisterProvider(HintOf[int](), ProvideValue(2))

	v, err = s.Provide(OptionalOf[int]())
	if err != nil {
		t.Fatalf("optional request failed: %v", err)
	}
	if v.(int) != 2 {
		t.Errorf("definite provider should shadow optional one: got %v, want 2", v)
	}
}

func TestDisposerRemovesOnlyItsRegistration(t *testing.T) {
	s := newTestStore(t)

	dOpt, _ := s.RegisterProvider(OptionalOf[int](), ProvideValue(1))
	dDef, _ := s.RegisterProvider(HintOf[int](), ProvideValue(2))

	// Disposing the definite registration must not touch the optional one.
	dDef()
	if _, err := Provide[int](s); !errors.Is(err, ErrNothingProvides) {
		t.Errorf("definite provider should be gone: %v", err)
	}
	if v, err := s.Provide(OptionalOf[int]()); err != nil || v.(int) != 1 {
		t.Errorf("optional provider should survive: v=%v err=%v", v, err)
	}

	dOpt()
	if _, err := s.Provide(OptionalOf[int]()); !errors.Is(err, ErrNothingProvides) {
		t.Errorf("optional provider should be gone: %v", err)
	}

	// Disposers are idempotent.
	dDef()
	dOpt()
}

func TestClobberRestoresDisplaced(t *testing.T) {
	s := newTestStore(t)

	s.RegisterProvider(HintOf[int](), ProvideValue(1))

	d, err := s.RegisterProvider(HintOf[int](), ProvideValue(2), WithClobber())
	if err != nil {
		t.Fatalf("clobbering registration failed: %v", err)
	}

	if v, _ := Provide[int](s); v != 2 {
		t.Errorf("clobbered Provide = %d, want 2", v)
	}
	if got := len(s.ProvidersFor(HintOf[int]())); got != 1 {
		t.Errorf("clobber should replace, got %d providers", got)
	}

	d()

	if v, _ := Provide[int](s); v != 1 {
		t.Errorf("dispose should restore displaced provider: got %d, want 1", v)
	}
}

func TestInterfaceRegistrationServesImplementors(t *testing.T) {
	s := newTestStore(t)

	reader := strings.NewReader("data")
	s.RegisterProvider(HintOf[io.Reader](), ProvideValue[io.Reader](reader))

	// Asking for the concrete type hits the interface registration.
	v, err := s.Provide(HintFor(typeOf[*strings.Reader]()))
	if err != nil {
		t.Fatalf("Provide via interface key failed: %v", err)
	}
	if v != io.Reader(reader) {
		t.Errorf("unexpected value: %v", v)
	}

	// An exact registration takes precedence over an assignability match.
	other := strings.NewReader("exact")
	s.RegisterProvider(HintOf[*strings.Reader](), ProvideValue(other))

	v, err = Provide[*strings.Reader](s)
	if err != nil {
		t.Fatalf("Provide failed: %v", err)
	}
	if v != other {
		t.Error("exact match should shadow interface match")
	}
}

func TestRegisterProviderValidation(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.RegisterProvider(Hint{}, ProvideValue(1)); !errors.Is(err, ErrInvalidHint) {
		t.Errorf("zero hint error = %v, want ErrInvalidHint", err)
	}
	if _, err := s.RegisterProvider(HintOf[int](), nil); !errors.Is(err, ErrNilCallback) {
		t.Errorf("nil provider error = %v, want ErrNilCallback", err)
	}
}

func TestBulkRegister(t *testing.T) {
	s := newTestStore(t)

	var processed []int
	d, err := s.Register(
		[]ProviderEntry{
			{Hint: HintOf[int](), Provider: ProvideValue(1)},
			{Hint: HintOf[string](), Provider: ProvideValue("a")},
		},
		[]ProcessorEntry{
			{Hint: HintOf[int](), Processor: ProcessFunc(func(v int) error {
				processed = append(processed, v)
				return nil
			})},
		},
	)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if v, _ := Provide[int](s); v != 1 {
		t.Errorf("Provide[int] = %d, want 1", v)
	}
	if v, _ := Provide[string](s); v != "a" {
		t.Errorf("Provide[string] = %q, want %q", v, "a")
	}
	if err := s.Process(5); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(processed) != 1 || processed[0] != 5 {
		t.Errorf("processed = %v, want [5]", processed)
	}

	d()

	if s.CountProviders() != 0 || s.CountProcessors() != 0 {
		t.Error("bulk disposer should unwind everything")
	}
}
