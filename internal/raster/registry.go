package raster

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a driver for an error reporting policy
type Factory func(opts Options) Driver

var (
	driversMu sync.RWMutex
	drivers   = map[string]Factory{
		"tiff": func(opts Options) Driver { return NewTIFF(opts, true) },
	}
)

// Register makes a driver available by name. It panics when name is taken.
func Register(name string, factory Factory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, dup := drivers[name]; dup {
		panic("raster: Register called twice for driver " + name)
	}
	drivers[name] = factory
}

// NewDriver returns the named driver configured with opts
func NewDriver(name string, opts Options) (Driver, error) {
	driversMu.RLock()
	factory, ok := drivers[name]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown raster driver %q (available: %v)", name, Drivers())
	}
	return factory(opts), nil
}

// Drivers returns the sorted names of registered drivers
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
