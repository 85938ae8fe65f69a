package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/xaenox/hopeconnect/internal/models"
	"github.com/xaenox/hopeconnect/internal/storage"
	"go.uber.org/zap"
)

// RecordKey names the persisted profile record.
const RecordKey = "hopeconnect_user"

// Store owns the profile of one device. It is the only place the profile is
// mutated; every mutation is merged under a lock and written through to storage.
type Store struct {
	mu      sync.Mutex
	storage storage.Storage
	logger  *zap.Logger
	current models.UserProfile
}

// NewStore creates a store and loads the persisted profile.
func NewStore(ctx context.Context, s storage.Storage, logger *zap.Logger) *Store {
	st := &Store{
		storage: s,
		logger:  logger,
		current: models.DefaultProfile(),
	}
	st.Load(ctx)
	return st
}

// Load re-reads the persisted record. A missing or corrupt record yields the
// default profile.
func (s *Store) Load(ctx context.Context) models.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = s.read(ctx)
	return s.current
}

func (s *Store) read(ctx context.Context) models.UserProfile {
	raw, err := s.storage.Get(ctx, RecordKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("Failed to read profile, using defaults", zap.Error(err))
		}
		return models.DefaultProfile()
	}

	profile := models.DefaultProfile()
	if err := json.Unmarshal(raw, &profile); err != nil {
		s.logger.Warn("Corrupt profile record, using defaults", zap.Error(err))
		return models.DefaultProfile()
	}
	if !profile.CurrentStatus.Valid() {
		profile.CurrentStatus = models.StatusUnknown
	}
	return profile
}

// Current returns the in-memory profile.
func (s *Store) Current() models.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Update merges patch into the profile and persists the result. The merged
// value is kept in memory even when the write fails.
func (s *Store) Update(ctx context.Context, patch models.ProfilePatch) (models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if patch.CurrentStatus != nil && !patch.CurrentStatus.Valid() {
		return s.current, fmt.Errorf("invalid status %q", *patch.CurrentStatus)
	}

	s.current = patch.Apply(s.current)
	if err := s.persist(ctx); err != nil {
		return s.current, err
	}
	return s.current, nil
}

// SetStatus records a mood picked by the user.
func (s *Store) SetStatus(ctx context.Context, status models.EmotionalStatus) error {
	_, err := s.Update(ctx, models.ProfilePatch{CurrentStatus: &status})
	return err
}

// ApplyClassification writes a sentiment result back. Unknown never replaces
// the existing status. It reports whether the profile changed.
func (s *Store) ApplyClassification(ctx context.Context, status models.EmotionalStatus) bool {
	if status == models.StatusUnknown || !status.Valid() {
		return false
	}
	if err := s.SetStatus(ctx, status); err != nil {
		s.logger.Error("Failed to persist classified status",
			zap.Error(err),
			zap.String("status", string(status)))
	}
	return true
}

// Reset restores the default profile and erases the persisted record.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = models.DefaultProfile()
	if err := s.storage.Delete(ctx, RecordKey); err != nil {
		return fmt.Errorf("failed to erase profile: %w", err)
	}
	return nil
}

func (s *Store) persist(ctx context.Context) error {
	raw, err := json.Marshal(s.current)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	if err := s.storage.Put(ctx, RecordKey, raw); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}
