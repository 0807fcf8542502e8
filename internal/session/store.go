package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const lastConnectedFile = "last_connected.json"

// LastConnected is the durable snapshot of the most recent successful
// connection, used to pre-fill the connect screen after a restart. It is
// overwritten on every successful connection and cleared only on a confirmed
// user-initiated disconnect.
type LastConnected struct {
	Version     int       `json:"version"`
	Address     string    `json:"address"`
	ChainID     uint64    `json:"chain_id"`
	ConnectorID string    `json:"connector_id"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const lastConnectedVersion = 1

// Store persists the LastConnected snapshot as a single JSON record in the
// data directory. Writes go through a temp file and rename so a crash never
// leaves a torn record; there is no migration, newer versions overwrite.
type Store struct {
	path string
}

func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &Store{path: filepath.Join(dataDir, lastConnectedFile)}, nil
}

// Load returns the persisted snapshot, or nil when none exists.
func (s *Store) Load() (*LastConnected, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read last-connected snapshot: %w", err)
	}

	var snapshot LastConnected
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse last-connected snapshot: %w", err)
	}

	return &snapshot, nil
}

// Save overwrites the snapshot.
func (s *Store) Save(snapshot *LastConnected) error {
	snapshot.Version = lastConnectedVersion
	snapshot.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal last-connected snapshot: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write last-connected snapshot: %w", err)
	}

	return os.Rename(tmp, s.path)
}

// Clear removes the snapshot. Clearing an absent snapshot is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear last-connected snapshot: %w", err)
	}
	return nil
}
