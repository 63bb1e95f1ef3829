package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ragweave/ragweave/types"
)

// Factory constructs a fresh strategy instance for one session.
// Instances hold per-session state and must not be shared.
type Factory func(deps Deps, cfg Config) Strategy

var (
	registry   = make(map[string]Factory)
	registryMu sync.RWMutex
)

// Register installs a strategy factory under name. Registering the same
// name twice panics; it indicates a wiring bug.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("strategy %q registered twice", name))
	}
	registry[name] = f
}

// New creates a strategy instance by name.
func New(name string, deps Deps, cfg Config) (Strategy, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, types.Fatal(types.ErrStrategyUnknown,
			fmt.Sprintf("unknown strategy %q, available: %v", name, Names()))
	}
	return f(deps, cfg.normalize()), nil
}

// Validate checks that name resolves to a registered strategy. Intended
// for startup-time configuration validation.
func Validate(name string) error {
	registryMu.RLock()
	_, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return types.Fatal(types.ErrStrategyUnknown,
			fmt.Sprintf("unknown strategy %q, available: %v", name, Names()))
	}
	return nil
}

// Names lists the registered strategy names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
