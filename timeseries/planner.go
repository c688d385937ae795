package timeseries

import (
	"errors"
	"strings"

	"github.com/itsneelabh/bojstat/core"
)

// AutoPartitionLimitMarker is the literal fragment of the server's
// refusal message when a layer query covers more series than its
// aggregate ceiling. Matched verbatim; exported so callers can adjust
// if the server rendering ever changes.
const AutoPartitionLimitMarker = "1,250"

// DefaultChunkSize is the per-request code ceiling used when chunking.
const DefaultChunkSize = MaxStrictCodes

// DataCodeChunkPlan is one planned getDataCode request unit.
type DataCodeChunkPlan struct {
	ChunkIndex    int
	Codes         []string
	StartPosition int
}

// ChunkCodes splits codes into contiguous slices of at most chunkSize,
// preserving input order.
func ChunkCodes(codes []string, chunkSize int) ([][]string, error) {
	if chunkSize <= 0 {
		return nil, core.NewValidationError("chunk_size must be > 0")
	}
	chunks := make([][]string, 0, (len(codes)+chunkSize-1)/chunkSize)
	for start := 0; start < len(codes); start += chunkSize {
		end := start + chunkSize
		if end > len(codes) {
			end = len(codes)
		}
		chunks = append(chunks, codes[start:end])
	}
	return chunks, nil
}

// PlanDataCodeChunks produces the chunk plans from resumeChunkIndex
// onward. The first plan starts at resumeStartPosition; the rest start
// at 1.
func PlanDataCodeChunks(codes []string, chunkSize, resumeChunkIndex, resumeStartPosition int) ([]DataCodeChunkPlan, error) {
	if resumeChunkIndex < 0 {
		return nil, core.NewValidationError("resume_chunk_index must be >= 0")
	}
	if resumeStartPosition < 1 {
		return nil, core.NewValidationError("resume_start_position must be >= 1")
	}
	chunks, err := ChunkCodes(codes, chunkSize)
	if err != nil {
		return nil, err
	}
	if resumeChunkIndex > len(chunks) {
		return nil, core.NewValidationError("resume_chunk_index is out of range")
	}

	plans := make([]DataCodeChunkPlan, 0, len(chunks)-resumeChunkIndex)
	for index := resumeChunkIndex; index < len(chunks); index++ {
		startPosition := 1
		if index == resumeChunkIndex {
			startPosition = resumeStartPosition
		}
		plans = append(plans, DataCodeChunkPlan{
			ChunkIndex:    index,
			Codes:         chunks[index],
			StartPosition: startPosition,
		})
	}
	return plans, nil
}

// ShouldUseAutoPartition reports whether a validation error carries the
// server's series-ceiling marker.
func ShouldUseAutoPartition(err error) bool {
	return errors.Is(err, core.ErrValidation) && strings.Contains(err.Error(), AutoPartitionLimitMarker)
}

// NextPositionOrRaise reads the pagination cursor during orchestration.
// Revisiting a position is reported as a validation error naming the
// operation; end-of-stream returns ok=false.
func NextPositionOrRaise(payload map[string]interface{}, seenPositions map[int]struct{}, contextName string) (int, bool, error) {
	nextPosition, ok, err := core.ParseNextPosition(payload)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, nil
	}
	if _, dup := seenPositions[nextPosition]; dup {
		return 0, false, core.NewValidationError("NEXTPOSITION loop detected during %s retrieval", contextName)
	}
	seenPositions[nextPosition] = struct{}{}
	return nextPosition, true, nil
}
