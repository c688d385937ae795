package core

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCheckpointTTL is the lifetime of a checkpoint record.
const DefaultCheckpointTTL = 24 * time.Hour

var checkpointIDPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// ValidateCheckpointID rejects ids that are not 32 lowercase hex
// characters.
func ValidateCheckpointID(checkpointID string) error {
	if !checkpointIDPattern.MatchString(checkpointID) {
		return NewValidationError("checkpoint_id is invalid")
	}
	return nil
}

// NewCheckpointID generates a fresh checkpoint id.
func NewCheckpointID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

type storedCheckpoint struct {
	expiresAt time.Time
	record    []byte
}

// MemoryCheckpointStore is a process-local checkpoint store with TTL
// and lazy garbage collection. Safe for concurrent use.
type MemoryCheckpointStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	clock func() time.Time
	items map[string]storedCheckpoint
}

// MemoryStoreOption configures a MemoryCheckpointStore
type MemoryStoreOption func(*MemoryCheckpointStore)

// WithMemoryStoreClock injects a clock, used by tests
func WithMemoryStoreClock(clock func() time.Time) MemoryStoreOption {
	return func(s *MemoryCheckpointStore) {
		s.clock = clock
	}
}

// NewMemoryCheckpointStore creates an in-memory store. ttl <= 0 selects
// DefaultCheckpointTTL.
func NewMemoryCheckpointStore(ttl time.Duration, opts ...MemoryStoreOption) *MemoryCheckpointStore {
	if ttl <= 0 {
		ttl = DefaultCheckpointTTL
	}
	s := &MemoryCheckpointStore{
		ttl:   ttl,
		clock: time.Now,
		items: make(map[string]storedCheckpoint),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save stores a copy of record and returns its checkpoint id. Expired
// records are purged on the way in.
func (s *MemoryCheckpointStore) Save(ctx context.Context, record []byte) (string, error) {
	now := s.clock()
	checkpointID := NewCheckpointID()
	copied := make([]byte, len(record))
	copy(copied, record)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked(now, "")
	s.items[checkpointID] = storedCheckpoint{expiresAt: now.Add(s.ttl), record: copied}
	return checkpointID, nil
}

// Load returns a copy of the stored record. Missing records and
// expired records are validation errors; an expired record is evicted.
func (s *MemoryCheckpointStore) Load(ctx context.Context, checkpointID string) ([]byte, error) {
	if err := ValidateCheckpointID(checkpointID); err != nil {
		return nil, err
	}
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.items[checkpointID]
	if !ok {
		s.purgeLocked(now, "")
		return nil, NewValidationError("checkpoint_id not found")
	}
	if !stored.expiresAt.After(now) {
		delete(s.items, checkpointID)
		return nil, NewValidationError("checkpoint_id expired")
	}
	s.purgeLocked(now, checkpointID)
	copied := make([]byte, len(stored.record))
	copy(copied, stored.record)
	return copied, nil
}

// Delete removes a record. Deleting a missing id is a validation error.
func (s *MemoryCheckpointStore) Delete(ctx context.Context, checkpointID string) error {
	if err := ValidateCheckpointID(checkpointID); err != nil {
		return err
	}
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked(now, "")
	if _, ok := s.items[checkpointID]; !ok {
		return NewValidationError("checkpoint_id not found")
	}
	delete(s.items, checkpointID)
	return nil
}

// purgeLocked removes expired records in two phases: collect, then
// delete. skipID is spared so a record being read is not swept away
// mid-load.
func (s *MemoryCheckpointStore) purgeLocked(now time.Time, skipID string) {
	var expired []string
	for id, stored := range s.items {
		if id == skipID {
			continue
		}
		if !stored.expiresAt.After(now) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(s.items, id)
	}
}
