package theme

import (
	"fmt"
	"log"

	"github.com/i474232898/weatherbuddy/internal/store"
)

// StorageKey is the preference key holding the theme name.
const StorageKey = "weatherTheme"

// Theme is the UI colour scheme.
type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

// Valid reports whether t is a known theme.
func (t Theme) Valid() bool {
	return t == Light || t == Dark
}

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t == Dark {
		return Light
	}
	return Dark
}

// Load returns the persisted theme, or Light when it is unset or invalid.
func Load(s store.Store) Theme {
	v, ok, err := s.Get(StorageKey)
	if err != nil {
		log.Printf("ERROR: failed to read theme: %v", err)
		return Light
	}
	if !ok {
		return Light
	}
	if t := Theme(v); t.Valid() {
		return t
	}
	log.Printf("INFO: ignoring unknown theme %q", v)
	return Light
}

// Save persists t.
func Save(s store.Store, t Theme) error {
	if !t.Valid() {
		return fmt.Errorf("invalid theme %q", t)
	}
	if err := s.Set(StorageKey, string(t)); err != nil {
		return fmt.Errorf("persist theme: %w", err)
	}
	return nil
}
