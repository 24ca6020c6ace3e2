package store

import (
	"fmt"
	"sort"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// DriverFactory builds a gorm.Dialector from a DSN.
type DriverFactory func(dsn string) gorm.Dialector

var driverFactories = map[string]DriverFactory{
	"sqlite":   sqlite.Open,
	"postgres": postgres.Open,
}

// GetDialector returns a GORM dialector for the given driver name and DSN
func GetDialector(driver, dsn string) (gorm.Dialector, error) {
	factory, exists := driverFactories[driver]
	if !exists {
		return nil, fmt.Errorf("unsupported database driver: %s (supported: %v)", driver, Drivers())
	}
	return factory(dsn), nil
}

// RegisterDriver allows registering custom database drivers
func RegisterDriver(name string, factory DriverFactory) {
	driverFactories[name] = factory
}

// Drivers lists the registered driver names.
func Drivers() []string {
	names := make([]string, 0, len(driverFactories))
	for name := range driverFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
