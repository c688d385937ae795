package timeseries

import (
	"errors"

	"github.com/itsneelabh/bojstat/core"
)

// PartialResultError carries the best-effort response assembled before
// an unrecoverable failure, the failure cause, and — when checkpointing
// is enabled and there is progress to resume — a checkpoint handle.
// Exactly one of DataCode and DataLayer is set, matching the failed
// operation. errors.Is matches core.ErrPartialResult.
type PartialResultError struct {
	Message      string
	DataCode     *DataCodeResponse
	DataLayer    *DataLayerResponse
	Cause        string
	Status       int
	MessageID    string
	HTTPStatus   int
	CheckpointID string
	Err          error
}

func (e *PartialResultError) Error() string {
	return e.Message
}

func (e *PartialResultError) Is(target error) bool {
	return target == core.ErrPartialResult
}

func (e *PartialResultError) Unwrap() error {
	return e.Err
}

// AsPartialResult extracts a PartialResultError from an error chain.
func AsPartialResult(err error) (*PartialResultError, bool) {
	var partial *PartialResultError
	ok := errors.As(err, &partial)
	return partial, ok
}

func newPartialResultError(message string, cause string, err error, checkpointID string) *PartialResultError {
	partial := &PartialResultError{
		Message:      message,
		Cause:        cause,
		CheckpointID: checkpointID,
		Err:          err,
	}
	var apiErr *core.APIError
	if errors.As(err, &apiErr) {
		partial.Status = apiErr.Status
		partial.MessageID = apiErr.MessageID
		partial.HTTPStatus = apiErr.HTTPStatus
	}
	return partial
}
