package drivers

import (
	"fmt"
	"slices"
	"sync"

	"github.com/Amund211/serverstats/internal/domain"
)

// Factory creates a driver from a binding's extra config
type Factory func(extraConfig string) (Driver, error)

type instanceKey struct {
	name        string
	extraConfig string
}

// Registry maps driver names to factories and keeps one instance per
// driver and config pairing
type Registry struct {
	mutex     sync.Mutex
	factories map[string]Factory
	instances map[instanceKey]Driver
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		instances: make(map[instanceKey]Driver),
	}
}

// NewDefaultRegistry has all built in drivers registered
func NewDefaultRegistry() *Registry {
	registry := NewRegistry()
	registry.MustRegister(FirePlayerStatsName, NewFirePlayerStats)
	registry.MustRegister(ZenithName, NewZenith)
	return registry
}

func (r *Registry) Register(name string, factory Factory) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("driver %s is already registered", name)
	}
	r.factories[name] = factory
	return nil
}

func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

func (r *Registry) Driver(name string, extraConfig string) (Driver, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	key := instanceKey{name: name, extraConfig: extraConfig}
	if driver, ok := r.instances[key]; ok {
		return driver, nil
	}

	driver, err := r.create(name, extraConfig)
	if err != nil {
		return nil, err
	}

	r.instances[key] = driver
	return driver, nil
}

// New creates a driver without keeping the instance, for configs that have
// not been stored yet
func (r *Registry) New(name string, extraConfig string) (Driver, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.create(name, extraConfig)
}

func (r *Registry) create(name string, extraConfig string) (Driver, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownDriver, name)
	}

	driver, err := factory(extraConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create driver %s: %w", name, err)
	}
	if driver.Name() != name {
		return nil, fmt.Errorf("driver registered as %s calls itself %s", name, driver.Name())
	}
	return driver, nil
}

// ForBinding creates the driver configured by binding
func (r *Registry) ForBinding(binding domain.ServerBinding) (Driver, error) {
	return r.Driver(binding.DriverName, binding.ExtraConfig)
}

func (r *Registry) Names() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ForMod lists the drivers that can be bound to servers running mod
func (r *Registry) ForMod(mod int) ([]string, error) {
	names := []string{}
	for _, name := range r.Names() {
		driver, err := r.Driver(name, "")
		if err != nil {
			return nil, err
		}
		if slices.Contains(driver.SupportedMods(), mod) {
			names = append(names, name)
		}
	}
	return names, nil
}

// Defaults returns every registered driver with its default config
func (r *Registry) Defaults() ([]Driver, error) {
	names := r.Names()
	result := make([]Driver, 0, len(names))
	for _, name := range names {
		driver, err := r.Driver(name, "")
		if err != nil {
			return nil, err
		}
		result = append(result, driver)
	}
	return result, nil
}
