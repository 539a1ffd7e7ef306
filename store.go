package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/google/renameio/v2"
)

// ProgramStore owns the canonical program file. Writes replace the file
// atomically so a failed write leaves the previous program in place.
type ProgramStore struct {
	mu   sync.Mutex
	path string
}

// NewProgramStore creates a store for path
func NewProgramStore(path string) *ProgramStore {
	return &ProgramStore{path: path}
}

// Path returns the canonical file location
func (s *ProgramStore) Path() string {
	return s.path
}

// Load returns the current program
func (s *ProgramStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("failed to read program: %w", err)
	}
	return string(data), nil
}

// Save replaces the current program
func (s *ProgramStore) Save(program string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := renameio.WriteFile(s.path, []byte(program), 0o644); err != nil {
		return fmt.Errorf("failed to write program: %w", err)
	}
	return nil
}

// SeedFrom copies the program at path into the store
func (s *ProgramStore) SeedFrom(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed: %w", err)
	}
	return s.Save(string(data))
}
