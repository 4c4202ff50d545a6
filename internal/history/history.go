package history

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/i474232898/weatherbuddy/internal/store"
)

const (
	// StorageKey is the preference key holding the JSON-encoded list.
	StorageKey = "weatherSearchHistory"

	// MaxEntries caps the list length.
	MaxEntries = 5
)

// Manager keeps the recently searched city names, most recent first.
// No two entries are equal ignoring case, and there are never more than
// MaxEntries of them. Every change is written through to the store.
type Manager struct {
	mu      sync.Mutex
	store   store.Store
	entries []string
}

// Load reads the persisted list once. A value that cannot be decoded is
// logged, removed from the store and treated as an empty history.
func Load(s store.Store) *Manager {
	m := &Manager{store: s}

	raw, ok, err := s.Get(StorageKey)
	if err != nil {
		log.Printf("ERROR: failed to read search history: %v", err)
		return m
	}
	if !ok {
		return m
	}

	entries, err := decode(raw)
	if err != nil {
		log.Printf("ERROR: failed to parse search history: %v", err)
		if err := s.Remove(StorageKey); err != nil {
			log.Printf("ERROR: failed to remove corrupt search history: %v", err)
		}
		return m
	}

	m.entries = normalize(entries)
	return m
}

// List returns a copy of the current entries.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return clone(m.entries)
}

// Record moves city to the front of the list, keeping the casing given here,
// drops any other entry equal to it ignoring case, truncates to MaxEntries and
// persists the result. The new list is returned even when persisting fails.
func (m *Manager) Record(city string) ([]string, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return m.List(), nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(city)
	next := make([]string, 0, MaxEntries)
	next = append(next, city)
	for _, e := range m.entries {
		if len(next) == MaxEntries {
			break
		}
		if strings.ToLower(e) == key {
			continue
		}
		next = append(next, e)
	}
	m.entries = next

	encoded, err := json.Marshal(next)
	if err != nil {
		return clone(next), fmt.Errorf("encode search history: %w", err)
	}
	if err := m.store.Set(StorageKey, string(encoded)); err != nil {
		return clone(next), fmt.Errorf("persist search history: %w", err)
	}
	return clone(next), nil
}

// Clear empties the list and removes the persisted value.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = nil
	if err := m.store.Remove(StorageKey); err != nil {
		return fmt.Errorf("remove search history: %w", err)
	}
	return nil
}

func decode(raw string) ([]string, error) {
	var entries []string
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// normalize enforces the list invariants on data read back from storage,
// which may have been written by something else.
func normalize(entries []string) []string {
	seen := make(map[string]bool, len(entries))
	out := make([]string, 0, MaxEntries)
	for _, e := range entries {
		e = strings.TrimSpace(e)
		key := strings.ToLower(e)
		if e == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
		if len(out) == MaxEntries {
			break
		}
	}
	return out
}

func clone(entries []string) []string {
	out := make([]string, len(entries))
	copy(out, entries)
	return out
}
