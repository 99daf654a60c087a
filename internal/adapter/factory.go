package adapter

import (
	"log/slog"
	"sort"
	"sync"

	"querymesh/internal/domain"
)

// Constructor builds a fresh adapter instance.
type Constructor func(logger *slog.Logger) domain.Adapter

// Factory maps sink types to adapter constructors. Unlike a provider
// cache, adapters are never reused: every planning request gets its own
// instance so no connection state leaks across requests.
type Factory struct {
	mu           sync.RWMutex
	logger       *slog.Logger
	constructors map[string]Constructor
}

var _ domain.AdapterFactory = (*Factory)(nil)

// NewFactory creates a factory with the built-in adapter types
// registered.
func NewFactory(logger *slog.Logger) *Factory {
	f := &Factory{
		logger:       logger,
		constructors: make(map[string]Constructor),
	}
	f.registerDefaults()
	return f
}

func (f *Factory) registerDefaults() {
	f.constructors["sqlite"] = func(logger *slog.Logger) domain.Adapter {
		return NewSQLiteAdapter(logger)
	}
	f.constructors["bigquery"] = func(logger *slog.Logger) domain.Adapter {
		return NewBigQueryAdapter(logger)
	}
}

// RegisterConstructor adds (or replaces) an adapter constructor for a
// sink type, allowing additional backends to be wired in at startup.
func (f *Factory) RegisterConstructor(sinkType string, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[sinkType] = ctor
}

// New constructs a fresh adapter for the sink type. Unknown types are a
// ConfigurationError: the sink descriptor names a backend this build
// cannot serve.
func (f *Factory) New(sinkType string) (domain.Adapter, error) {
	f.mu.RLock()
	ctor, ok := f.constructors[sinkType]
	f.mu.RUnlock()

	if !ok {
		return nil, domain.ConfigurationError("no adapter registered for sink type %q", sinkType)
	}
	return ctor(f.logger), nil
}

// Types lists the registered sink types, sorted.
func (f *Factory) Types() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]string, 0, len(f.constructors))
	for t := range f.constructors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
