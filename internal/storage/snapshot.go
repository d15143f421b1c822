// Package storage persists a node's chain.Blockchain to a single JSON
// snapshot file between runs.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nac-codes/Block-Bard/internal/chain"
)

// SnapshotFileName is the fixed name of the snapshot file within a
// node's data directory.
const SnapshotFileName = "blockchain.json"

// ChainStorage reads and writes blockchain snapshots under DataDir.
type ChainStorage struct {
	DataDir string
}

// New returns a ChainStorage rooted at dataDir, creating the directory
// if it does not already exist.
func New(dataDir string) (*ChainStorage, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create data directory %s: %w", dataDir, err)
	}
	return &ChainStorage{DataDir: dataDir}, nil
}

func (s *ChainStorage) path() string {
	return filepath.Join(s.DataDir, SnapshotFileName)
}

// Load reads the snapshot file and returns its contents. If the file
// does not exist, it returns a fresh chain.New() rather than an error:
// a brand-new node has nothing to resume from.
func (s *ChainStorage) Load() (*chain.Blockchain, error) {
	data, err := os.ReadFile(s.path())
	if errors.Is(err, os.ErrNotExist) {
		return chain.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", s.path(), err)
	}

	var bc chain.Blockchain
	if err := json.Unmarshal(data, &bc); err != nil {
		return nil, fmt.Errorf("storage: parse %s: %w", s.path(), err)
	}
	return &bc, nil
}

// Save writes bc to the snapshot file as pretty-printed JSON. It writes
// to a temporary file in the same directory and renames it into place,
// so a crash mid-write never leaves a half-written snapshot behind.
func (s *ChainStorage) Save(bc *chain.Blockchain) error {
	data, err := json.MarshalIndent(bc, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode blockchain: %w", err)
	}

	tmp, err := os.CreateTemp(s.DataDir, SnapshotFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("storage: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("storage: close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("storage: rename into place: %w", err)
	}
	return nil
}
