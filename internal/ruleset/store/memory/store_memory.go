// Package memory provides the in-memory ruleset store used by tests and
// single-node deployments. Publication is copy-on-write: every read returns a
// deep copy, and lifecycle transitions happen under one lock so activation is
// an atomic swap from the perspective of concurrent readers.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"docgate/internal/ruleset/models"
	"docgate/pkg/platform/sentinel"
)

type key struct {
	branchID   string
	entityType models.EntityType
}

// InMemory implements store.Store with maps guarded by a RWMutex.
type InMemory struct {
	mu       sync.RWMutex
	byID     map[uuid.UUID]*models.RuleSet
	drafts   map[key]uuid.UUID
	active   map[key]uuid.UUID
	versions map[key]map[int]uuid.UUID
}

// NewInMemory creates an empty in-memory ruleset store.
func NewInMemory() *InMemory {
	return &InMemory{
		byID:     make(map[uuid.UUID]*models.RuleSet),
		drafts:   make(map[key]uuid.UUID),
		active:   make(map[key]uuid.UUID),
		versions: make(map[key]map[int]uuid.UUID),
	}
}

func (s *InMemory) CreateDraft(_ context.Context, rs *models.RuleSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{rs.BranchID, rs.EntityType}
	if _, exists := s.drafts[k]; exists {
		return sentinel.ErrConflict
	}

	s.byID[rs.ID] = rs.Clone()
	s.drafts[k] = rs.ID
	return nil
}

func (s *InMemory) UpdateDraft(_ context.Context, rs *models.RuleSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byID[rs.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	// Re-check against the stored state: the draft may have been activated
	// between the caller's read and this write.
	if err := stored.CanUpdate(); err != nil {
		return err
	}

	s.byID[rs.ID] = rs.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rs, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return rs.Clone(), nil
}

func (s *InMemory) FindActive(_ context.Context, branchID string, entityType models.EntityType) (*models.RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.active[key{branchID, entityType}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.byID[id].Clone(), nil
}

func (s *InMemory) FindLatestLocked(_ context.Context, branchID string, entityType models.EntityType) (*models.RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.RuleSet
	for _, id := range s.versions[key{branchID, entityType}] {
		rs := s.byID[id]
		if rs.Status != models.StatusLocked {
			continue
		}
		if latest == nil || rs.Version > latest.Version {
			latest = rs
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	return latest.Clone(), nil
}

func (s *InMemory) FindByVersion(_ context.Context, branchID string, entityType models.EntityType, version int) (*models.RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.versions[key{branchID, entityType}][version]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.byID[id].Clone(), nil
}

func (s *InMemory) Activate(_ context.Context, draftID uuid.UUID, now time.Time) (*models.RuleSet, *models.RuleSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft, ok := s.byID[draftID]
	if !ok {
		return nil, nil, sentinel.ErrNotFound
	}
	if err := draft.CanActivate(); err != nil {
		return nil, nil, err
	}

	k := key{draft.BranchID, draft.EntityType}

	var superseded *models.RuleSet
	version := 1
	if activeID, ok := s.active[k]; ok {
		superseded = s.byID[activeID]
		version = superseded.Version + 1
		superseded.ApplyLock(models.LockedBySuperseded, now)
	}

	draft.ApplyActivation(version, now)
	s.active[k] = draft.ID
	delete(s.drafts, k)
	if s.versions[k] == nil {
		s.versions[k] = make(map[int]uuid.UUID)
	}
	s.versions[k][version] = draft.ID

	if superseded != nil {
		return draft.Clone(), superseded.Clone(), nil
	}
	return draft.Clone(), nil, nil
}

func (s *InMemory) Lock(_ context.Context, id uuid.UUID, actorID string, now time.Time) (*models.RuleSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := rs.CanLock(); err != nil {
		return nil, err
	}

	rs.ApplyLock(actorID, now)
	delete(s.active, key{rs.BranchID, rs.EntityType})
	return rs.Clone(), nil
}
