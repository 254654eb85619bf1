// Package lootmap persists the loot tunables and item catalog as a
// human-editable JSON document and merges it with the live item catalog at
// startup.
package lootmap

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/cory-johannsen/loot/internal/game/rules"
)

// ErrNoLootMap is returned by Load when the file does not exist.
var ErrNoLootMap = errors.New("lootmap: no loot map file")

// Store reads and writes one loot map file.
type Store struct {
	path           string
	validateSchema bool
	logger         *zap.Logger
}

// NewStore returns a Store for path.
//
// Precondition: path must be non-empty; logger must be non-nil.
func NewStore(path string, validateSchema bool, logger *zap.Logger) *Store {
	return &Store{path: path, validateSchema: validateSchema, logger: logger}
}

// Path returns the file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads and decodes the file, logging every recovered issue.
//
// Postcondition: Returns ErrNoLootMap when the file is absent and an error
// wrapping ErrCorruptLootMap when it is not a JSON object.
func (s *Store) Load(valid ResourceValidator) (*LootMap, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoLootMap
	}
	if err != nil {
		return nil, fmt.Errorf("lootmap: reading %s: %w", s.path, err)
	}

	if s.validateSchema {
		if err := ValidateSchema(data); err != nil {
			s.logger.Warn("loot map does not match schema", zap.String("path", s.path), zap.Error(err))
		}
	}

	lm, issues, err := Decode(data, valid)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, s.path)
	}
	for _, is := range issues {
		switch is.Kind {
		case IssueSection:
			s.logger.Error("loot map section unreadable", zap.String("section", is.Key), zap.String("reason", is.Message))
		case IssueEntry:
			s.logger.Warn("loot map entry skipped", zap.String("section", is.Key), zap.String("reason", is.Message))
		default:
			s.logger.Info("loot map tunable defaulted", zap.String("key", is.Key), zap.String("reason", is.Message))
		}
	}
	return lm, nil
}

// Save writes lm atomically, creating the parent directory if needed.
func (s *Store) Save(lm *LootMap) error {
	data, err := Encode(lm)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("lootmap: creating profile dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("lootmap: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("lootmap: replacing %s: %w", s.path, err)
	}
	return nil
}

// Bootstrap builds the runtime loot map:
//  1. load the file when present, otherwise start fresh;
//  2. add every live item the file does not know, with defaults from r;
//  3. write the merged map back;
//  4. reload it, then prune disabled entries.
//
// No failure is fatal; each degrades to the in-memory state so far.
//
// Precondition: r must be non-nil.
// Postcondition: every bucket holds only enabled items; disabled ids stay known.
func (s *Store) Bootstrap(live []rules.Candidate, r *rules.Rules, valid ResourceValidator) *LootMap {
	lm, err := s.Load(valid)
	switch {
	case errors.Is(err, ErrNoLootMap):
		s.logger.Info("no loot map found, bootstrapping", zap.String("path", s.path))
		lm = Fresh()
	case err != nil:
		s.logger.Warn("loot map unusable, bootstrapping", zap.String("path", s.path), zap.Error(err))
		lm = Fresh()
	default:
		s.logger.Info("loot map loaded", zap.String("path", s.path), zap.Int("items", lm.Catalog.Len()))
	}

	discovered := 0
	for _, c := range live {
		if lm.Catalog.IsKnownItem(c.ResourceID) {
			continue
		}
		if c.Type.Key() == "" {
			s.logger.Warn("live item has no single category", zap.String("resource_id", c.ResourceID), zap.Stringer("type", c.Type))
			continue
		}
		if err := lm.Catalog.Add(c.Type, r.Defaults(c)); err != nil {
			s.logger.Warn("live item rejected", zap.String("resource_id", c.ResourceID), zap.Error(err))
			continue
		}
		discovered++
	}
	s.logger.Info("live catalog merged", zap.Int("discovered", discovered), zap.Int("live", len(live)))

	if err := s.Save(lm); err != nil {
		s.logger.Error("failed to write loot map", zap.String("path", s.path), zap.Error(err))
	} else if reloaded, err := s.Load(valid); err != nil {
		s.logger.Error("failed to reload loot map", zap.String("path", s.path), zap.Error(err))
	} else {
		lm = reloaded
	}

	for _, c := range live {
		lm.Catalog.SetMode(c.ResourceID, c.Mode)
	}
	pruned := lm.Catalog.PruneDisabled()
	s.logger.Info("loot catalog ready",
		zap.Int("items", lm.Catalog.Len()),
		zap.Int("known", lm.Catalog.KnownCount()),
		zap.Int("disabled", pruned),
	)
	return lm
}
