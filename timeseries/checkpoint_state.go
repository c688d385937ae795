package timeseries

import (
	"encoding/json"

	"github.com/itsneelabh/bojstat/core"
)

// Checkpoint record tags. The encoded record is a tagged union keyed
// by kind (and path for the data-layer variants); the JSON keys form a
// stable schema shared with other implementations of this client.
const (
	checkpointKindDataCode  = "data_code"
	checkpointKindDataLayer = "data_layer"

	checkpointPathDirect        = "direct"
	checkpointPathAutoPartition = "auto_partition"
)

// DataCodeCheckpointState captures partial getDataCode progress: the
// accumulator, the envelope context, and the exact resumption point.
type DataCodeCheckpointState struct {
	Query          DataCodeQuery
	ConfigSnapshot core.ConfigSnapshot
	ByCode         map[string]TimeSeries
	LastEnvelope   core.APIEnvelope
	ChunkIndex     int
	StartPosition  int
}

// DataLayerDirectCheckpointState captures partial direct-path
// getDataLayer progress.
type DataLayerDirectCheckpointState struct {
	Query          DataLayerQuery
	ConfigSnapshot core.ConfigSnapshot
	ByCode         map[string]TimeSeries
	LastEnvelope   core.APIEnvelope
	StartPosition  int
	NextPosition   int
}

// DataLayerAutoPartitionCheckpointState captures auto-partition
// progress: the selected codes and the inner data-code checkpoint, if
// one was emitted.
type DataLayerAutoPartitionCheckpointState struct {
	Query                DataLayerQuery
	ConfigSnapshot       core.ConfigSnapshot
	SelectedCodes        []string
	DataCodeCheckpointID string
}

// DataLayerCheckpointState is the union of the two layer variants.
// The sealed marker keeps the set closed.
type DataLayerCheckpointState interface {
	layerCheckpointState()
	stateQuery() DataLayerQuery
	stateSnapshot() core.ConfigSnapshot
}

func (*DataLayerDirectCheckpointState) layerCheckpointState()        {}
func (*DataLayerAutoPartitionCheckpointState) layerCheckpointState() {}

func (s *DataLayerDirectCheckpointState) stateQuery() DataLayerQuery        { return s.Query }
func (s *DataLayerAutoPartitionCheckpointState) stateQuery() DataLayerQuery { return s.Query }

func (s *DataLayerDirectCheckpointState) stateSnapshot() core.ConfigSnapshot { return s.ConfigSnapshot }
func (s *DataLayerAutoPartitionCheckpointState) stateSnapshot() core.ConfigSnapshot {
	return s.ConfigSnapshot
}

// Wire records. Field names match the cross-language schema.

type dataCodeRecord struct {
	Kind           string                `json:"kind"`
	Query          DataCodeQuery         `json:"query"`
	ConfigSnapshot core.ConfigSnapshot   `json:"config_snapshot"`
	ByCode         map[string]TimeSeries `json:"by_code"`
	LastEnvelope   core.APIEnvelope      `json:"last_envelope"`
	ChunkIndex     int                   `json:"chunk_index"`
	StartPosition  int                   `json:"start_position"`
}

type dataLayerDirectRecord struct {
	Kind           string                `json:"kind"`
	Path           string                `json:"path"`
	Query          DataLayerQuery        `json:"query"`
	ConfigSnapshot core.ConfigSnapshot   `json:"config_snapshot"`
	ByCode         map[string]TimeSeries `json:"by_code"`
	LastEnvelope   core.APIEnvelope      `json:"last_envelope"`
	StartPosition  int                   `json:"start_position"`
	NextPosition   int                   `json:"next_position"`
}

type dataLayerAutoPartitionRecord struct {
	Kind                 string              `json:"kind"`
	Path                 string              `json:"path"`
	Query                DataLayerQuery      `json:"query"`
	ConfigSnapshot       core.ConfigSnapshot `json:"config_snapshot"`
	SelectedCodes        []string            `json:"selected_codes"`
	DataCodeCheckpointID string              `json:"data_code_checkpoint_id,omitempty"`
}

type recordHeader struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
}

// EncodeRecord serializes a data-code state.
func (s *DataCodeCheckpointState) EncodeRecord() ([]byte, error) {
	if s.ChunkIndex < 0 {
		return nil, core.NewValidationError("chunk_index must be >= 0")
	}
	if s.StartPosition < 1 {
		return nil, core.NewValidationError("start_position must be >= 1")
	}
	return json.Marshal(dataCodeRecord{
		Kind:           checkpointKindDataCode,
		Query:          s.Query,
		ConfigSnapshot: s.ConfigSnapshot,
		ByCode:         s.ByCode,
		LastEnvelope:   s.LastEnvelope,
		ChunkIndex:     s.ChunkIndex,
		StartPosition:  s.StartPosition,
	})
}

// EncodeRecord serializes a direct-path layer state.
func (s *DataLayerDirectCheckpointState) EncodeRecord() ([]byte, error) {
	if s.StartPosition < 1 {
		return nil, core.NewValidationError("start_position must be >= 1")
	}
	return json.Marshal(dataLayerDirectRecord{
		Kind:           checkpointKindDataLayer,
		Path:           checkpointPathDirect,
		Query:          s.Query,
		ConfigSnapshot: s.ConfigSnapshot,
		ByCode:         s.ByCode,
		LastEnvelope:   s.LastEnvelope,
		StartPosition:  s.StartPosition,
		NextPosition:   s.NextPosition,
	})
}

// EncodeRecord serializes an auto-partition layer state.
func (s *DataLayerAutoPartitionCheckpointState) EncodeRecord() ([]byte, error) {
	return json.Marshal(dataLayerAutoPartitionRecord{
		Kind:                 checkpointKindDataLayer,
		Path:                 checkpointPathAutoPartition,
		Query:                s.Query,
		ConfigSnapshot:       s.ConfigSnapshot,
		SelectedCodes:        s.SelectedCodes,
		DataCodeCheckpointID: s.DataCodeCheckpointID,
	})
}

func decodeHeader(record []byte) (recordHeader, error) {
	var header recordHeader
	if err := json.Unmarshal(record, &header); err != nil {
		return recordHeader{}, core.NewValidationError("checkpoint payload is invalid")
	}
	return header, nil
}

// DecodeDataCodeRecord deserializes and validates a data-code record.
func DecodeDataCodeRecord(record []byte) (*DataCodeCheckpointState, error) {
	header, err := decodeHeader(record)
	if err != nil {
		return nil, err
	}
	if header.Kind != checkpointKindDataCode {
		return nil, core.NewValidationError("checkpoint kind mismatch")
	}
	var decoded dataCodeRecord
	if err := json.Unmarshal(record, &decoded); err != nil {
		return nil, core.NewValidationError("checkpoint payload is invalid")
	}
	if decoded.ChunkIndex < 0 {
		return nil, core.NewValidationError("chunk_index is invalid")
	}
	if decoded.StartPosition < 1 {
		return nil, core.NewValidationError("start_position is invalid")
	}
	if decoded.ByCode == nil {
		decoded.ByCode = make(map[string]TimeSeries)
	}
	return &DataCodeCheckpointState{
		Query:          decoded.Query,
		ConfigSnapshot: decoded.ConfigSnapshot,
		ByCode:         decoded.ByCode,
		LastEnvelope:   decoded.LastEnvelope,
		ChunkIndex:     decoded.ChunkIndex,
		StartPosition:  decoded.StartPosition,
	}, nil
}

// DecodeDataLayerRecord deserializes a layer record, dispatching on
// the path tag.
func DecodeDataLayerRecord(record []byte) (DataLayerCheckpointState, error) {
	header, err := decodeHeader(record)
	if err != nil {
		return nil, err
	}
	if header.Kind != checkpointKindDataLayer {
		return nil, core.NewValidationError("checkpoint kind mismatch")
	}
	switch header.Path {
	case checkpointPathDirect:
		var decoded dataLayerDirectRecord
		if err := json.Unmarshal(record, &decoded); err != nil {
			return nil, core.NewValidationError("checkpoint payload is invalid")
		}
		if decoded.StartPosition < 1 {
			return nil, core.NewValidationError("start_position is invalid")
		}
		if decoded.ByCode == nil {
			decoded.ByCode = make(map[string]TimeSeries)
		}
		return &DataLayerDirectCheckpointState{
			Query:          decoded.Query,
			ConfigSnapshot: decoded.ConfigSnapshot,
			ByCode:         decoded.ByCode,
			LastEnvelope:   decoded.LastEnvelope,
			StartPosition:  decoded.StartPosition,
			NextPosition:   decoded.NextPosition,
		}, nil
	case checkpointPathAutoPartition:
		var decoded dataLayerAutoPartitionRecord
		if err := json.Unmarshal(record, &decoded); err != nil {
			return nil, core.NewValidationError("checkpoint payload is invalid")
		}
		if decoded.DataCodeCheckpointID != "" {
			if err := core.ValidateCheckpointID(decoded.DataCodeCheckpointID); err != nil {
				return nil, core.NewValidationError("checkpoint data_code_checkpoint_id is invalid")
			}
		}
		return &DataLayerAutoPartitionCheckpointState{
			Query:                decoded.Query,
			ConfigSnapshot:       decoded.ConfigSnapshot,
			SelectedCodes:        decoded.SelectedCodes,
			DataCodeCheckpointID: decoded.DataCodeCheckpointID,
		}, nil
	default:
		return nil, core.NewValidationError("checkpoint path mismatch")
	}
}
