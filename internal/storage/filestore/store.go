// Package filestore persists pipeline state as JSON files in one directory.
package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/SkySoft-Norway/herimoss-sub001/internal/domain"
)

const (
	EventsFile     = "events.json"
	ArchiveFile    = "archive.json"
	SeenHashesFile = "seen_hashes.json"
	LastRunFile    = "last_run.json"

	DefaultMaxArchive = 1000
)

// Store reads and writes the state directory. Writes replace files
// atomically; loads never fail and fall back to empty values.
type Store struct {
	dir        string
	maxArchive int
	logger     *slog.Logger

	rename func(oldpath, newpath string) error
}

func New(dir string, maxArchive int, logger *slog.Logger) *Store {
	if maxArchive <= 0 {
		maxArchive = DefaultMaxArchive
	}
	return &Store{
		dir:        dir,
		maxArchive: maxArchive,
		logger:     logger.With("component", "filestore", "dir", dir),
		rename:     os.Rename,
	}
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) LoadEvents() []domain.Event {
	return s.loadEvents(EventsFile)
}

func (s *Store) SaveEvents(events []domain.Event) error {
	if events == nil {
		events = []domain.Event{}
	}
	return s.writeJSON(EventsFile, events)
}

func (s *Store) LoadArchive() []domain.Event {
	return s.loadEvents(ArchiveFile)
}

// SaveArchive writes events newest start first, keeping at most the
// configured number of entries.
func (s *Store) SaveArchive(events []domain.Event) error {
	sorted := slices.Clone(events)
	if sorted == nil {
		sorted = []domain.Event{}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.After(sorted[j].Start)
	})
	if len(sorted) > s.maxArchive {
		s.logger.Info("evicting oldest archive entries",
			"evicted", len(sorted)-s.maxArchive,
			"max_archive", s.maxArchive,
		)
		sorted = sorted[:s.maxArchive]
	}
	return s.writeJSON(ArchiveFile, sorted)
}

// LoadSeenHashes accepts both a JSON array of fingerprints and the older
// object form keyed by fingerprint.
func (s *Store) LoadSeenHashes() []string {
	data, ok := s.read(SeenHashesFile)
	if !ok {
		return []string{}
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		return dedupStrings(list)
	}

	var legacy map[string]json.RawMessage
	if err := json.Unmarshal(data, &legacy); err != nil {
		s.logger.Warn("corrupt state file, starting empty", "file", SeenHashesFile, "error", err)
		return []string{}
	}
	list = make([]string, 0, len(legacy))
	for h := range legacy {
		list = append(list, h)
	}
	return dedupStrings(list)
}

func (s *Store) SaveSeenHashes(hashes []string) error {
	return s.writeJSON(SeenHashesFile, dedupStrings(hashes))
}

// LoadRunStats returns the statistics of the previous run, or nil.
func (s *Store) LoadRunStats() *domain.RunStats {
	data, ok := s.read(LastRunFile)
	if !ok {
		return nil
	}
	var stats domain.RunStats
	if err := json.Unmarshal(data, &stats); err != nil {
		s.logger.Warn("corrupt state file, ignoring", "file", LastRunFile, "error", err)
		return nil
	}
	return &stats
}

func (s *Store) SaveRunStats(stats *domain.RunStats) error {
	if stats == nil {
		return errors.New("nil run stats")
	}
	return s.writeJSON(LastRunFile, stats)
}

func (s *Store) loadEvents(name string) []domain.Event {
	data, ok := s.read(name)
	if !ok {
		return []domain.Event{}
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("corrupt state file, starting empty", "file", name, "error", err)
		return []domain.Event{}
	}

	events := make([]domain.Event, 0, len(records))
	for i, rec := range records {
		var ev domain.Event
		if err := json.Unmarshal(rec, &ev); err != nil {
			s.logger.Warn("skipping unreadable record", "file", name, "index", i, "error", err)
			continue
		}
		if ev.ID == "" || ev.Start.IsZero() {
			s.logger.Warn("skipping invalid record", "file", name, "index", i, "id", ev.ID)
			continue
		}
		events = append(events, ev)
	}
	return events
}

// read returns the file content, or false when it is missing or unreadable.
func (s *Store) read(name string) ([]byte, bool) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.logger.Debug("state file missing", "file", name)
		return nil, false
	case err != nil:
		s.logger.Warn("failed to read state file", "file", name, "error", err)
		return nil, false
	}
	return data, true
}

func (s *Store) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	if err := s.writeAtomic(name, append(data, '\n')); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// writeAtomic writes to a temp file in the state directory and renames it
// over the target. The previous file is untouched on any failure.
func (s *Store) writeAtomic(name string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}

	return s.rename(tmpName, filepath.Join(s.dir, name))
}

func dedupStrings(in []string) []string {
	out := slices.Clone(in)
	if out == nil {
		out = []string{}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
