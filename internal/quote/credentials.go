package quote

import "sync"

// CredentialStore layers runtime credential overrides from the settings
// surface over the defaults loaded at startup. Reads vastly outnumber
// writes, so a read/write lock suffices.
type CredentialStore struct {
	mu        sync.RWMutex
	defaults  map[string]string
	overrides map[string]string
}

// NewCredentialStore creates a store seeded with per-provider default keys.
// Empty defaults are treated as absent.
func NewCredentialStore(defaults map[string]string) *CredentialStore {
	d := make(map[string]string, len(defaults))
	for provider, key := range defaults {
		if key != "" {
			d[provider] = key
		}
	}
	return &CredentialStore{defaults: d, overrides: make(map[string]string)}
}

// Get returns the effective API key for a provider; a user-entered override
// takes precedence over the bundled default.
func (s *CredentialStore) Get(provider string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if key, ok := s.overrides[provider]; ok {
		return key, true
	}
	key, ok := s.defaults[provider]
	return key, ok
}

// Set records a runtime override. An empty key removes the override,
// falling back to the default.
func (s *CredentialStore) Set(provider, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key == "" {
		delete(s.overrides, provider)
		return
	}
	s.overrides[provider] = key
}
