package content

import (
	"errors"
	"sync/atomic"
	"time"
)

// Manager publishes the Store built at start-up to request handlers, which
// may be constructed before loading finishes.
type Manager struct {
	active atomic.Pointer[Store]
}

func NewManager() *Manager { return &Manager{} }

// Set publishes s. A nil store is ignored.
func (m *Manager) Set(s *Store) {
	if s == nil {
		return
	}
	m.active.Store(s)
}

// Get retrieves the active store
func (m *Manager) Get() (*Store, bool) {
	s := m.active.Load()
	return s, s != nil
}

// ContentVersion returns the current content version for headers
// Implements httpmw.ContentInfo interface
func (m *Manager) ContentVersion() string {
	s := m.active.Load()
	if s == nil {
		return ""
	}
	return s.ContentVersion()
}

// ContentHash returns the current content hash for headers
// Implements httpmw.ContentInfo interface
func (m *Manager) ContentHash() string {
	s := m.active.Load()
	if s == nil {
		return ""
	}
	return s.ContentHash()
}

// Source returns the source of the current content, or SourceUnknown if not available
func (m *Manager) Source() Source {
	s := m.active.Load()
	if s == nil {
		return SourceUnknown
	}
	return s.meta.Source
}

// LoadedAt returns the time when the current store was built, or zero if not available
func (m *Manager) LoadedAt() time.Time {
	s := m.active.Load()
	if s == nil {
		return time.Time{}
	}
	return s.meta.LoadedAt
}

// ReadyErr returns an error if there is no active store
func (m *Manager) ReadyErr() error {
	if _, ok := m.Get(); !ok {
		return errors.New("content: no active store")
	}
	return nil
}
