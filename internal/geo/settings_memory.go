package geo

import (
	"context"
	"sync"
)

// MemorySettings holds the office configuration in process memory. Used in
// tests and as the fallback when no redis is configured.
type MemorySettings struct {
	mu     sync.RWMutex
	office Office
}

// NewMemorySettings constructs settings seeded with the default office.
func NewMemorySettings() *MemorySettings {
	return &MemorySettings{office: DefaultOffice()}
}

func (s *MemorySettings) Office(_ context.Context) (Office, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.office, nil
}

func (s *MemorySettings) SetOffice(_ context.Context, office Office) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.office = office
	return nil
}
