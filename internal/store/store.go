// Package store provides the in-memory cache behind the configuration registry.
//
// DESIGN: Two keyspaces with separate TTLs:
//   - Documents:   configuration JSON by name, short TTL (operators edit these)
//   - Identifiers: name -> registry id, long TTL (ids never change for a name
//     until the configuration is deleted)
//
// Writes invalidate both keyspaces for a name (registry.Cached does this on
// Save and Delete).
//
// Currently only MemoryStore is implemented. For multi-instance deployments,
// implement Store with Redis or similar.
package store

import (
	"sync"
	"time"
)

// Default TTL values
const (
	DefaultDocumentTTL   = 1 * time.Minute
	DefaultIdentifierTTL = 1 * time.Hour
	cleanupInterval      = 5 * time.Minute
)

// Store defines the interface for the registry cache.
type Store interface {
	// SetDocument caches a configuration document under its name.
	SetDocument(name string, doc []byte) error

	// GetDocument returns a cached document if present and fresh.
	GetDocument(name string) ([]byte, bool)

	// SetIdentifier caches the registry id for a name.
	SetIdentifier(name, id string) error

	// GetIdentifier returns a cached id if present and fresh.
	GetIdentifier(name string) (string, bool)

	// Invalidate drops everything cached for a name.
	Invalidate(name string) error

	// Purge drops every entry.
	Purge() error

	// Len reports the number of live entries across both keyspaces.
	Len() int

	// Close cleans up resources.
	Close() error
}

// MemoryStore is a simple in-memory implementation of Store.
type MemoryStore struct {
	documents     map[string]entry
	identifiers   map[string]entry
	mu            sync.RWMutex
	documentTTL   time.Duration
	identifierTTL time.Duration
	stopChan      chan struct{}
	stopped       bool
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryStore creates a store using one TTL for both keyspaces.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return NewMemoryStoreWithTTLs(ttl, ttl)
}

// NewMemoryStoreWithTTLs creates a store with separate document and identifier TTLs.
func NewMemoryStoreWithTTLs(documentTTL, identifierTTL time.Duration) *MemoryStore {
	if documentTTL <= 0 {
		documentTTL = DefaultDocumentTTL
	}
	if identifierTTL <= 0 {
		identifierTTL = DefaultIdentifierTTL
	}
	s := &MemoryStore{
		documents:     make(map[string]entry),
		identifiers:   make(map[string]entry),
		documentTTL:   documentTTL,
		identifierTTL: identifierTTL,
		stopChan:      make(chan struct{}),
	}

	// Start cleanup goroutine
	go s.cleanup()

	return s
}

// SetDocument stores a copy of doc with the document TTL.
func (s *MemoryStore) SetDocument(name string, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}

	s.documents[name] = entry{
		value:     append([]byte(nil), doc...),
		expiresAt: time.Now().Add(s.documentTTL),
	}
	return nil
}

// GetDocument retrieves a copy of a document if it exists and hasn't expired.
func (s *MemoryStore) GetDocument(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.documents[name]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return append([]byte(nil), e.value...), true
}

// SetIdentifier stores an id with the identifier TTL.
func (s *MemoryStore) SetIdentifier(name, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}

	s.identifiers[name] = entry{
		value:     []byte(id),
		expiresAt: time.Now().Add(s.identifierTTL),
	}
	return nil
}

// GetIdentifier retrieves an id if it exists and hasn't expired.
func (s *MemoryStore) GetIdentifier(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.identifiers[name]
	if !ok || time.Now().After(e.expiresAt) {
		return "", false
	}
	return string(e.value), true
}

// Invalidate removes both entries for name.
func (s *MemoryStore) Invalidate(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.documents, name)
	delete(s.identifiers, name)
	return nil
}

// Purge removes all entries.
func (s *MemoryStore) Purge() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}
	s.documents = make(map[string]entry)
	s.identifiers = make(map[string]entry)
	return nil
}

// Len counts unexpired entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	n := 0
	for _, e := range s.documents {
		if !now.After(e.expiresAt) {
			n++
		}
	}
	for _, e := range s.identifiers {
		if !now.After(e.expiresAt) {
			n++
		}
	}
	return n
}

// Close stops the cleanup goroutine and clears data.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.stopped {
		s.stopped = true
		close(s.stopChan)
		s.documents = nil
		s.identifiers = nil
	}
	return nil
}

// cleanup periodically removes expired entries.
func (s *MemoryStore) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.mu.Lock()
			if !s.stopped {
				now := time.Now()
				for key, e := range s.documents {
					if now.After(e.expiresAt) {
						delete(s.documents, key)
					}
				}
				for key, e := range s.identifiers {
					if now.After(e.expiresAt) {
						delete(s.identifiers, key)
					}
				}
			}
			s.mu.Unlock()
		}
	}
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
