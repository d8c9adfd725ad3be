package inout

// ProviderEntry pairs a provider with its hint for bulk registration.
type ProviderEntry struct {
	Hint     Hint
	Provider Provider
	Weight   float64
}

// ProcessorEntry pairs a processor with its hint for bulk registration.
type ProcessorEntry struct {
	Hint      Hint
	Processor Processor
	Weight    float64
}

// Register registers a batch of providers and processors and returns a
// single Disposer that unwinds all of them. If any registration fails the
// ones already made are disposed and the error is returned.
func (s *Store) Register(providers []ProviderEntry, processors []ProcessorEntry) (Disposer, error) {
	disposers := make([]Disposer, 0, len(providers)+len(processors))

	undo := func() {
		for i := len(disposers) - 1; i >= 0; i-- {
			disposers[i]()
		}
	}

	for _, e := range providers {
		d, err := s.RegisterProvider(e.Hint, e.Provider, WithWeight(e.Weight))
		if err != nil {
			undo()
			return nil, err
		}
		disposers = append(disposers, d)
	}

	for _, e := range processors {
		d, err := s.RegisterProcessor(e.Hint, e.Processor, WithWeight(e.Weight))
		if err != nil {
			undo()
			return nil, err
		}
		disposers = append(disposers, d)
	}

	return CombineDisposers(disposers...), nil
}

// CombineDisposers merges disposers into one that runs them in reverse
// registration order.
func CombineDisposers(ds ...Disposer) Disposer {
	return func() {
		for i := len(ds) - 1; i >= 0; i-- {
			if ds[i] != nil {
				ds[i]()
			}
		}
	}
}
