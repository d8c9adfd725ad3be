package inout

import (
	"errors"
	"testing"
)

func TestCreateGetDestroy(t *testing.T) {
	if got := len(ListStores()); got != 1 {
		t.Fatalf("expected 1 store at start, got %d", got)
	}
	if GlobalStore().Name() != GlobalName {
		t.Errorf("global store name = %q, want %q", GlobalStore().Name(), GlobalName)
	}

	name := "test"

	s, err := NewStore(name)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	got, err := GetStore(name)
	if err != nil {
		t.Fatalf("GetStore failed: %v", err)
	}
	if got != s {
		t.Error("GetStore returned a different store instance")
	}
	if len(ListStores()) != 2 {
		t.Errorf("expected 2 stores, got %d", len(ListStores()))
	}

	if _, err := NewStore(name); !errors.Is(err, ErrStoreExists) {
		t.Errorf("duplicate NewStore error = %v, want ErrStoreExists", err)
	}

	if err := DestroyStore(name); err != nil {
		t.Fatalf("DestroyStore failed: %v", err)
	}
	if len(ListStores()) != 1 {
		t.Errorf("expected 1 store after destroy, got %d", len(ListStores()))
	}

	if _, err := GetStore(name); !errors.Is(err, ErrStoreNotFound) {
		t.Errorf("GetStore after destroy error = %v, want ErrStoreNotFound", err)
	}
	if err := DestroyStore(name); !errors.Is(err, ErrStoreNotFound) {
		t.Errorf("double DestroyStore error = %v, want ErrStoreNotFound", err)
	}
	if err := DestroyStore(GlobalName); !errors.Is(err, ErrGlobalStore) {
		t.Errorf("DestroyStore(global) error = %v, want ErrGlobalStore", err)
	}
	if _, err := NewStore(GlobalName); !errors.Is(err, ErrReservedName) {
		t.Errorf("NewStore(global) error = %v, want ErrReservedName", err)
	}
}

func TestGetStoreEmptyNameIsGlobal(t *testing.T) {
	s, err := GetStore("")
	if err != nil {
		t.Fatalf("GetStore(\"\") failed: %v", err)
	}
	if s != GlobalStore() {
		t.Error("GetStore(\"\") should return the global store")
	}
}

func TestStoreClear(t *testing.T) {
	s, err := NewStore("clear-test")
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer DestroyStore("clear-test")

	if _, err := s.RegisterProvider(HintOf[int](), ProvideValue(1)); err != nil {
		t.Fatalf("RegisterProvider failed: %v", err)
	}
	if _, err := s.RegisterProvider(OptionalOf[string](), ProvideValue("hi")); err != nil {
		t.Fatalf("RegisterProvider failed: %v", err)
	}
	if _, err := s.RegisterProcessor(HintOf[int](), func(any) error { return nil }); err != nil {
		t.Fatalf("RegisterProcessor failed: %v", err)
	}

	if s.CountProviders() != 2 {
		t.Errorf("CountProviders = %d, want 2", s.CountProviders())
	}
	if s.CountProcessors() != 1 {
		t.Errorf("CountProcessors = %d, want 1", s.CountProcessors())
	}

	s.Clear()

	if s.CountProviders() != 0 {
		t.Errorf("CountProviders after Clear = %d, want 0", s.CountProviders())
	}
	if s.CountProcessors() != 0 {
		t.Errorf("CountProcessors after Clear = %d, want 0", s.CountProcessors())
	}
}

func TestRegistrationInfo(t *testing.T) {
	s, err := NewStore("info-test")
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer DestroyStore("info-test")

	s.RegisterProvider(HintOf[int](), ProvideValue(1), WithWeight(5))
	s.RegisterProvider(OptionalOf[string](), ProvideValue("x"))
	s.RegisterProcessor(HintOf[int](), func(any) error { return nil })

	provs := s.ProviderInfo()
	if len(provs) != 2 {
		t.Fatalf("ProviderInfo length = %d, want 2", len(provs))
	}
	if provs[0].Hint != "int" || provs[0].Weight != 5 {
		t.Errorf("unexpected first provider info: %+v", provs[0])
	}
	if !provs[1].Optional {
		t.Errorf("second provider should be optional: %+v", provs[1])
	}

	procs := s.ProcessorInfo()
	if len(procs) != 1 || procs[0].Hint != "int" {
		t.Errorf("unexpected processor info: %+v", procs)
	}
}

func TestObserverReceivesEvents(t *testing.T) {
	s, err := NewStore("obs-test")
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer DestroyStore("obs-test")

	var events []Event
	s.SetObserver(func(ev Event) { events = append(events, ev) })

	d, _ := s.RegisterProvider(HintOf[int](), ProvideValue(3))
	s.Provide(HintOf[int]())
	s.Provide(HintOf[string]())
	d()

	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d: %+v", len(events), events)
	}
	if events[0].Kind != EventRegisterProvider || !events[0].OK {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	if events[1].Kind != EventProvide || !events[1].OK {
		t.Errorf("unexpected second event: %+v", events[1])
	}
	if events[2].Kind != EventProvide || events[2].OK {
		t.Errorf("miss should report OK=false: %+v", events[2])
	}
	if events[3].Kind != EventDispose {
		t.Errorf("unexpected fourth event: %+v", events[3])
	}
}
