package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileCheckpointStore persists checkpoint records as JSON files under
// a base directory, one file per checkpoint. Records are written
// atomically (temp file + fsync + rename); corrupt or mis-shaped files
// are treated as missing and removed. Expired records are garbage
// collected lazily. Safe for concurrent use within one process.
type FileCheckpointStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   func() time.Time
	baseDir string
	logger  Logger
}

// fileRecord is the on-disk schema.
type fileRecord struct {
	ExpiresAt float64         `json:"expires_at"`
	State     json.RawMessage `json:"state"`
}

// FileStoreOption configures a FileCheckpointStore
type FileStoreOption func(*FileCheckpointStore)

// WithFileStoreClock injects a clock, used by tests
func WithFileStoreClock(clock func() time.Time) FileStoreOption {
	return func(s *FileCheckpointStore) {
		s.clock = clock
	}
}

// WithFileStoreLogger sets the logger for store warnings
func WithFileStoreLogger(logger Logger) FileStoreOption {
	return func(s *FileCheckpointStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewFileCheckpointStore creates a filesystem-backed store rooted at
// baseDir, creating the directory when needed. ttl <= 0 selects
// DefaultCheckpointTTL.
func NewFileCheckpointStore(baseDir string, ttl time.Duration, opts ...FileStoreOption) (*FileCheckpointStore, error) {
	if ttl <= 0 {
		ttl = DefaultCheckpointTTL
	}
	resolved, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolving checkpoint directory: %w", err)
	}
	if err := os.MkdirAll(resolved, 0o755); err != nil {
		return nil, fmt.Errorf("creating checkpoint directory: %w", err)
	}
	s := &FileCheckpointStore{
		ttl:     ttl,
		clock:   time.Now,
		baseDir: resolved,
		logger:  &NoOpLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Save writes the record atomically and returns its checkpoint id.
func (s *FileCheckpointStore) Save(ctx context.Context, record []byte) (string, error) {
	now := s.clock()
	checkpointID := NewCheckpointID()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked(now, "")

	path, err := s.pathFor(checkpointID)
	if err != nil {
		return "", err
	}
	stored := fileRecord{
		ExpiresAt: float64(now.Add(s.ttl).UnixNano()) / float64(time.Second),
		State:     json.RawMessage(record),
	}
	if err := s.writeAtomic(path, stored); err != nil {
		return "", err
	}
	return checkpointID, nil
}

// Load reads a record; missing, corrupt, and expired files are
// validation errors, and expired files are removed.
func (s *FileCheckpointStore) Load(ctx context.Context, checkpointID string) ([]byte, error) {
	if err := ValidateCheckpointID(checkpointID); err != nil {
		return nil, err
	}
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.pathFor(checkpointID)
	if err != nil {
		return nil, err
	}
	stored := s.read(path)
	if stored == nil {
		s.purgeLocked(now, "")
		return nil, NewValidationError("checkpoint_id not found")
	}
	if !s.expiry(stored).After(now) {
		s.remove(path)
		return nil, NewValidationError("checkpoint_id expired")
	}
	s.purgeLocked(now, checkpointID)
	copied := make([]byte, len(stored.State))
	copy(copied, stored.State)
	return copied, nil
}

// Delete removes a record file. Deleting a missing id is a validation
// error.
func (s *FileCheckpointStore) Delete(ctx context.Context, checkpointID string) error {
	if err := ValidateCheckpointID(checkpointID); err != nil {
		return err
	}
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked(now, "")

	path, err := s.pathFor(checkpointID)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return NewValidationError("checkpoint_id not found")
	}
	s.remove(path)
	return nil
}

// pathFor confines the record path to the base directory.
func (s *FileCheckpointStore) pathFor(checkpointID string) (string, error) {
	if err := ValidateCheckpointID(checkpointID); err != nil {
		return "", err
	}
	resolved := filepath.Join(s.baseDir, checkpointID+".json")
	if filepath.Dir(resolved) != s.baseDir {
		return "", NewValidationError("checkpoint_id is invalid")
	}
	return resolved, nil
}

func (s *FileCheckpointStore) writeAtomic(path string, stored fileRecord) error {
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encoding checkpoint record: %w", err)
	}
	tmpPath := strings.TrimSuffix(path, ".json") + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("writing checkpoint record: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing checkpoint record: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing checkpoint record: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing checkpoint record: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// read returns nil for missing files. Corrupt and mis-shaped files are
// removed with a warning and reported as missing.
func (s *FileCheckpointStore) read(path string) *fileRecord {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var stored fileRecord
	if err := json.Unmarshal(data, &stored); err != nil || stored.State == nil {
		s.logger.Warn("corrupt checkpoint removed", map[string]interface{}{
			"operation": "checkpoint_corrupt",
			"path":      path,
		})
		s.remove(path)
		return nil
	}
	return &stored
}

func (s *FileCheckpointStore) expiry(stored *fileRecord) time.Time {
	return time.Unix(0, int64(stored.ExpiresAt*float64(time.Second)))
}

func (s *FileCheckpointStore) purgeLocked(now time.Time, skipID string) {
	matches, err := filepath.Glob(filepath.Join(s.baseDir, "*.json"))
	if err != nil {
		return
	}
	var expired []string
	for _, path := range matches {
		checkpointID := strings.TrimSuffix(filepath.Base(path), ".json")
		if skipID != "" && checkpointID == skipID {
			continue
		}
		stored := s.read(path)
		if stored == nil {
			continue
		}
		if !s.expiry(stored).After(now) {
			expired = append(expired, path)
		}
	}
	for _, path := range expired {
		s.remove(path)
	}
}

func (s *FileCheckpointStore) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("checkpoint removal failed", map[string]interface{}{
			"operation": "checkpoint_remove_failed",
			"path":      path,
			"error":     err.Error(),
		})
	}
}
