// Package inout is a type-keyed registry for dependency provision and
// result processing. Providers are functions that can produce a value of a
// registered type, processors are functions that can do something with a
// value of a registered type, and stores hold both. A global store always
// exists; additional named stores can be created and destroyed at runtime.
package inout

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// GlobalName is the reserved name of the always-present global store.
const GlobalName = "global"

type Store struct {
	name string

	mu           sync.RWMutex
	providers    map[reflect.Type][]providerReg
	optProviders map[reflect.Type][]providerReg
	processors   map[reflect.Type][]processorReg
	seq          uint64

	obsMu    sync.RWMutex
	observer Observer
}

var (
	storesMu sync.RWMutex
	stores   = map[string]*Store{GlobalName: newStore(GlobalName)}
)

func newStore(name string) *Store {
	return &Store{
		name:         name,
		providers:    make(map[reflect.Type][]providerReg),
		optProviders: make(map[reflect.Type][]providerReg),
		processors:   make(map[reflect.Type][]processorReg),
	}
}

// GlobalStore returns the global store.
func GlobalStore() *Store {
	storesMu.RLock()
	defer storesMu.RUnlock()
	return stores[GlobalName]
}

// NewStore creates a named store. The global name is reserved and an
// existing name cannot be reused until destroyed.
func NewStore(name string) (*Store, error) {
	if name == "" {
		return nil, fmt.Errorf("store name cannot be empty")
	}
	if name == GlobalName {
		return nil, fmt.Errorf("%q: %w", name, ErrReservedName)
	}

	storesMu.Lock()
	defer storesMu.Unlock()

	if _, exists := stores[name]; exists {
		return nil, fmt.Errorf("store %q: %w", name, ErrStoreExists)
	}

	s := newStore(name)
	stores[name] = s
	return s, nil
}

// GetStore returns the store with the given name. An empty name returns
// the global store.
func GetStore(name string) (*Store, error) {
	if name == "" {
		name = GlobalName
	}

	storesMu.RLock()
	defer storesMu.RUnlock()

	s, ok := stores[name]
	if !ok {
		return nil, fmt.Errorf("store %q: %w", name, ErrStoreNotFound)
	}
	return s, nil
}

// DestroyStore removes a named store. The global store cannot be destroyed.
func DestroyStore(name string) error {
	if name == GlobalName {
		return ErrGlobalStore
	}

	storesMu.Lock()
	defer storesMu.Unlock()

	if _, ok := stores[name]; !ok {
		return fmt.Errorf("store %q: %w", name, ErrStoreNotFound)
	}
	delete(stores, name)
	return nil
}

// ListStores returns the names of all live stores, sorted, global first.
func ListStores() []string {
	storesMu.RLock()
	defer storesMu.RUnlock()

	names := make([]string, 0, len(stores))
	for name := range stores {
		if name == GlobalName {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return append([]string{GlobalName}, names...)
}

func (s *Store) Name() string { return s.name }

// Clear drops every provider and processor registration.
func (s *Store) Clear() {
	s.mu.Lock()
	s.providers = make(map[reflect.Type][]providerReg)
	s.optProviders = make(map[reflect.Type][]providerReg)
	s.processors = make(map[reflect.Type][]processorReg)
	s.mu.Unlock()

	s.emit(Event{Store: s.name, Kind: EventClear, OK: true})
}

// CountProviders returns the number of provider registrations, definite
// and optional combined.
func (s *Store) CountProviders() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, regs := range s.providers {
		n += len(regs)
	}
	for _, regs := range s.optProviders {
		n += len(regs)
	}
	return n
}

// CountProcessors returns the number of processor registrations.
func (s *Store) CountProcessors() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, regs := range s.processors {
		n += len(regs)
	}
	return n
}

// RegistrationInfo is a snapshot row describing one registration.
type RegistrationInfo struct {
	Hint     string  `json:"hint"`
	Optional bool    `json:"optional,omitempty"`
	Weight   float64 `json:"weight,omitempty"`
}

// ProviderInfo returns a snapshot of all provider registrations, ordered
// by hint then weight.
func (s *Store) ProviderInfo() []RegistrationInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []RegistrationInfo
	for _, regs := range s.providers {
		for _, r := range regs {
			out = append(out, RegistrationInfo{Hint: r.hint.Type().String(), Weight: r.weight})
		}
	}
	for _, regs := range s.optProviders {
		for _, r := range regs {
			out = append(out, RegistrationInfo{Hint: r.hint.Type().String(), Optional: true, Weight: r.weight})
		}
	}
	sortInfo(out)
	return out
}

// ProcessorInfo returns a snapshot of all processor registrations.
func (s *Store) ProcessorInfo() []RegistrationInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []RegistrationInfo
	for _, regs := range s.processors {
		for _, r := range regs {
			out = append(out, RegistrationInfo{Hint: r.hint.Type().String(), Weight: r.weight})
		}
	}
	sortInfo(out)
	return out
}

func sortInfo(infos []RegistrationInfo) {
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Hint != infos[j].Hint {
			return infos[i].Hint < infos[j].Hint
		}
		return infos[i].Weight > infos[j].Weight
	})
}

func (s *Store) nextSeq() uint64 {
	s.seq++
	return s.seq
}
