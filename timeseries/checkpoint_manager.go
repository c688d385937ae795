package timeseries

import (
	"context"
	"errors"
	"reflect"

	"github.com/itsneelabh/bojstat/core"
)

// CheckpointManager is the typed checkpoint gateway used by the
// orchestrator. Save methods serialize typed states into tagged
// records; load methods decode and then enforce two fingerprint
// checks: the saved normalized query must equal the caller's, and the
// saved config snapshot must equal the manager's current one.
type CheckpointManager struct {
	store    core.CheckpointStore
	snapshot core.ConfigSnapshot
	logger   core.Logger
}

// NewCheckpointManager creates a manager over a store. A nil store
// disables checkpointing.
func NewCheckpointManager(store core.CheckpointStore, snapshot core.ConfigSnapshot, logger core.Logger) *CheckpointManager {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &CheckpointManager{store: store, snapshot: snapshot, logger: logger}
}

// Enabled reports whether a store is attached.
func (m *CheckpointManager) Enabled() bool {
	return m != nil && m.store != nil
}

// Snapshot returns the manager's config fingerprint.
func (m *CheckpointManager) Snapshot() core.ConfigSnapshot {
	return m.snapshot
}

// SaveDataCode persists a data-code state.
func (m *CheckpointManager) SaveDataCode(ctx context.Context, state *DataCodeCheckpointState) (string, error) {
	return m.save(ctx, state)
}

// SaveDataLayerDirect persists a direct-path layer state.
func (m *CheckpointManager) SaveDataLayerDirect(ctx context.Context, state *DataLayerDirectCheckpointState) (string, error) {
	return m.save(ctx, state)
}

// SaveDataLayerAutoPartition persists an auto-partition layer state.
func (m *CheckpointManager) SaveDataLayerAutoPartition(ctx context.Context, state *DataLayerAutoPartitionCheckpointState) (string, error) {
	return m.save(ctx, state)
}

type encodableState interface {
	EncodeRecord() ([]byte, error)
}

func (m *CheckpointManager) save(ctx context.Context, state encodableState) (string, error) {
	if !m.Enabled() {
		return "", core.NewValidationError("checkpoint is disabled")
	}
	record, err := state.EncodeRecord()
	if err != nil {
		return "", err
	}
	return m.store.Save(ctx, record)
}

// LoadDataCode loads and fingerprint-checks a data-code state against
// the caller's normalized query.
func (m *CheckpointManager) LoadDataCode(ctx context.Context, checkpointID string, normalized DataCodeQuery) (*DataCodeCheckpointState, error) {
	record, err := m.loadRecord(ctx, checkpointID)
	if err != nil {
		return nil, err
	}
	state, err := DecodeDataCodeRecord(record)
	if err != nil {
		return nil, err
	}
	if !reflect.DeepEqual(state.Query, normalized) {
		return nil, core.NewValidationError("checkpoint query mismatch")
	}
	if state.ConfigSnapshot != m.snapshot {
		return nil, core.NewValidationError("checkpoint config mismatch")
	}
	return state, nil
}

// LoadDataLayer loads and fingerprint-checks either layer state
// variant; the caller dispatches on the returned type.
func (m *CheckpointManager) LoadDataLayer(ctx context.Context, checkpointID string, normalized DataLayerQuery) (DataLayerCheckpointState, error) {
	record, err := m.loadRecord(ctx, checkpointID)
	if err != nil {
		return nil, err
	}
	state, err := DecodeDataLayerRecord(record)
	if err != nil {
		return nil, err
	}
	if !reflect.DeepEqual(state.stateQuery(), normalized) {
		return nil, core.NewValidationError("checkpoint query mismatch")
	}
	if state.stateSnapshot() != m.snapshot {
		return nil, core.NewValidationError("checkpoint config mismatch")
	}
	return state, nil
}

// Cleanup deletes a checkpoint after a successful resume. Validation
// failures (already gone, malformed) are swallowed so cleanup stays
// idempotent from the caller's point of view.
func (m *CheckpointManager) Cleanup(ctx context.Context, checkpointID string) {
	if !m.Enabled() {
		return
	}
	if err := m.store.Delete(ctx, checkpointID); err != nil {
		if errors.Is(err, core.ErrValidation) {
			m.logger.DebugWithContext(ctx, "checkpoint cleanup skipped", map[string]interface{}{
				"operation":     "checkpoint_cleanup_skipped",
				"checkpoint_id": checkpointID,
			})
			return
		}
		m.logger.WarnWithContext(ctx, "checkpoint cleanup failed", map[string]interface{}{
			"operation":     "checkpoint_cleanup_failed",
			"checkpoint_id": checkpointID,
			"error":         err.Error(),
		})
	}
}

func (m *CheckpointManager) loadRecord(ctx context.Context, checkpointID string) ([]byte, error) {
	if !m.Enabled() {
		return nil, core.NewValidationError("checkpoint is disabled")
	}
	return m.store.Load(ctx, checkpointID)
}
