package db

import (
	"fmt"
	"sync/atomic"
)

// Provider returns the current database instance.
type Provider interface {
	Current() Database
}

// Manager lets the pool be replaced at runtime (e.g. after a DSN rotation)
// without rebuilding the services that hold it.
type Manager struct {
	current atomic.Pointer[Database]
}

// NewManager creates a new Manager with the provided database instance.
func NewManager(database Database) *Manager {
	m := &Manager{}
	m.current.Store(&database)
	return m
}

// Current returns the active database instance.
func (m *Manager) Current() Database {
	if m == nil {
		return nil
	}
	p := m.current.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Swap replaces the current database instance and returns the previous one.
func (m *Manager) Swap(next Database) Database {
	prev := m.current.Swap(&next)
	if prev == nil {
		return nil
	}
	return *prev
}

// CurrentDatabase fetches the current database instance from provider.
func CurrentDatabase(provider Provider) (Database, error) {
	if provider == nil {
		return nil, fmt.Errorf("database provider is nil")
	}
	database := provider.Current()
	if database == nil {
		return nil, fmt.Errorf("database is nil")
	}
	return database, nil
}

// GetProviderQuerier returns tx when set, otherwise the provider's database.
func GetProviderQuerier(provider Provider, tx Transaction) (Querier, error) {
	if tx != nil {
		return tx, nil
	}
	return CurrentDatabase(provider)
}
