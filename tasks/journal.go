/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package tasks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/PivotLLM/Foreman/global"
)

// journal appends terminal task snapshots to a JSON file for audit. It is
// write-only: task state stays in memory and the journal is never loaded
// back. The file lock allows an operator to read the file safely while the
// server is running.
type journal struct {
	mu   sync.Mutex
	path string
}

func newJournal(path string) *journal {
	return &journal{path: global.ExpandTilde(path)}
}

// record appends one terminal snapshot under a file lock.
func (j *journal) record(snap Snapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	dir := filepath.Dir(j.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create journal directory: %w", err)
	}

	lock := flock.New(j.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire journal lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	entries, err := j.load()
	if err != nil {
		return err
	}
	entries = append(entries, snap)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode journal: %w", err)
	}
	return global.AtomicWrite(j.path, data)
}

// load reads the existing journal entries. A missing file is an empty journal.
func (j *journal) load() ([]Snapshot, error) {
	data, err := os.ReadFile(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	var entries []Snapshot
	if err := json.Unmarshal(data, &entries); err != nil {
		// A corrupt journal must not block task completion; start fresh.
		return nil, nil
	}
	return entries, nil
}
