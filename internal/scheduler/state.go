package scheduler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AOIState is the per-region slice of the persisted ledger.
type AOIState struct {
	LastTileID       string   `json:"last_tile_id"`
	ProcessedTileIDs []string `json:"processed_tile_ids"`
}

// PipelineState is the on-disk format. It survives restarts so completed
// tiles are never reprocessed and the failure counter is not reset by a
// crash loop.
type PipelineState struct {
	AOIs                map[string]*AOIState `json:"aois"`
	RunCount            int                  `json:"run_count"`
	ConsecutiveFailures int                  `json:"consecutive_failures"`
	LastRunAt           time.Time            `json:"last_run_at"`
}

// Store owns the state file. All mutations go through the store's mutex, so
// concurrent AOI workers see a single-writer ledger.
type Store struct {
	path string

	mu    sync.Mutex
	state PipelineState
	seen  map[string]map[string]struct{} // aoi -> tile id set
}

// NewStore creates a store over the given path. Call Load before first use.
func NewStore(path string) *Store {
	return &Store{
		path: path,
		state: PipelineState{
			AOIs: make(map[string]*AOIState),
		},
		seen: make(map[string]map[string]struct{}),
	}
}

// Load reads the state file. A missing file is a fresh start, not an error.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read pipeline state: %w", err)
	}

	var state PipelineState
	if err := json.Unmarshal(raw, &state); err != nil {
		return fmt.Errorf("parse pipeline state %s: %w", s.path, err)
	}
	if state.AOIs == nil {
		state.AOIs = make(map[string]*AOIState)
	}
	s.state = state

	s.seen = make(map[string]map[string]struct{}, len(state.AOIs))
	for name, aoi := range state.AOIs {
		set := make(map[string]struct{}, len(aoi.ProcessedTileIDs))
		for _, id := range aoi.ProcessedTileIDs {
			set[id] = struct{}{}
		}
		s.seen[name] = set
	}
	return nil
}

// Save writes the state atomically: marshal to a temp file in the same
// directory, then rename over the target. A crash mid-write leaves the old
// file intact.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	raw, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal pipeline state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// IsProcessed reports whether a tile completed a full run for the AOI.
func (s *Store) IsProcessed(aoiName, tileID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[aoiName][tileID]
	return ok
}

// MarkProcessed records a completed tile and persists the ledger.
func (s *Store) MarkProcessed(aoiName, tileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[aoiName][tileID]; ok {
		return nil
	}

	aoi := s.state.AOIs[aoiName]
	if aoi == nil {
		aoi = &AOIState{}
		s.state.AOIs[aoiName] = aoi
	}
	aoi.LastTileID = tileID
	aoi.ProcessedTileIDs = append(aoi.ProcessedTileIDs, tileID)

	set := s.seen[aoiName]
	if set == nil {
		set = make(map[string]struct{})
		s.seen[aoiName] = set
	}
	set[tileID] = struct{}{}

	return s.saveLocked()
}

// RecordRun stamps a completed scheduled run and persists.
func (s *Store) RecordRun(at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.RunCount++
	s.state.LastRunAt = at.UTC()
	return s.saveLocked()
}

// RecordFailure bumps the consecutive-failure counter and persists.
func (s *Store) RecordFailure() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ConsecutiveFailures++
	return s.state.ConsecutiveFailures, s.saveLocked()
}

// ResetFailures clears the consecutive-failure counter after a success.
func (s *Store) ResetFailures() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.ConsecutiveFailures == 0 {
		return nil
	}
	s.state.ConsecutiveFailures = 0
	return s.saveLocked()
}

// ConsecutiveFailures returns the current failure streak.
func (s *Store) ConsecutiveFailures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ConsecutiveFailures
}

// RunCount returns the number of completed scheduled runs.
func (s *Store) RunCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.RunCount
}
