package timeseries

import (
	"context"
	"errors"

	"github.com/itsneelabh/bojstat/core"
)

// MaxLayerSeries is the local guardrail mirroring the server's
// aggregate ceiling on layer queries.
const MaxLayerSeries = 1250

// Service is the resilient orchestration layer. It turns the strict
// single-request executor into deterministic, resumable bulk
// retrievals: large code lists are chunked, pages are walked in cursor
// order, failures after partial progress surface a PartialResultError
// (carrying a checkpoint handle when checkpointing is enabled), and a
// supplied checkpoint resumes from
// the exact interruption point.
type Service struct {
	strict                   *StrictService
	enableLayerAutoPartition bool
	checkpoints              *CheckpointManager
	logger                   core.Logger
	telemetry                core.Telemetry
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithServiceLayerAutoPartition toggles the metadata-driven fallback
func WithServiceLayerAutoPartition(enabled bool) ServiceOption {
	return func(s *Service) { s.enableLayerAutoPartition = enabled }
}

// WithServiceCheckpoints attaches a checkpoint store and the config
// fingerprint embedded in every record it writes
func WithServiceCheckpoints(store core.CheckpointStore, snapshot core.ConfigSnapshot) ServiceOption {
	return func(s *Service) {
		s.checkpoints = NewCheckpointManager(store, snapshot, s.logger)
	}
}

// WithServiceLogger sets the logger for orchestration events
func WithServiceLogger(logger core.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
			if s.checkpoints != nil {
				s.checkpoints.logger = logger
			}
		}
	}
}

// WithServiceTelemetry sets the telemetry provider
func WithServiceTelemetry(telemetry core.Telemetry) ServiceOption {
	return func(s *Service) {
		if telemetry != nil {
			s.telemetry = telemetry
		}
	}
}

// NewService creates the orchestrator over a strict executor.
func NewService(strict *StrictService, opts ...ServiceOption) *Service {
	s := &Service{
		strict:    strict,
		logger:    &core.NoOpLogger{},
		telemetry: &core.NoOpTelemetry{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.checkpoints == nil {
		s.checkpoints = NewCheckpointManager(nil, core.ConfigSnapshot{}, s.logger)
	}
	return s
}

// CallOption adjusts a single Get call.
type CallOption func(*callOptions)

type callOptions struct {
	checkpointID string
}

// WithCheckpoint resumes a call from a previously emitted checkpoint.
// The stored query and config fingerprint must match the current call.
func WithCheckpoint(checkpointID string) CallOption {
	return func(o *callOptions) { o.checkpointID = checkpointID }
}

func applyCallOptions(opts []CallOption) callOptions {
	var options callOptions
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// GetDataCode retrieves all requested series, splitting the code list
// into request-sized chunks and walking every page of every chunk. The
// response preserves the input code order. On failure after partial
// progress it returns a PartialResultError, carrying a checkpoint handle
// when checkpointing is enabled; validation errors propagate unchanged.
func (s *Service) GetDataCode(ctx context.Context, query DataCodeQuery, opts ...CallOption) (*DataCodeResponse, error) {
	options := applyCallOptions(opts)
	normalized, err := NormalizeDataCodeQuery(query)
	if err != nil {
		return nil, err
	}
	ctx, span := s.telemetry.StartSpan(ctx, "bojstat.get_data_code")
	defer span.End()
	span.SetAttribute("db", normalized.DB)
	span.SetAttribute("codes", len(normalized.Code))
	s.logger.InfoWithContext(ctx, "data_code start", map[string]interface{}{
		"operation":   "data_code_start",
		"db":          normalized.DB,
		"total_codes": len(normalized.Code),
	})

	byCode := make(map[string]TimeSeries)
	lastEnvelope := makeSuccessEnvelope()
	resumeChunkIndex := 0
	resumeStartPosition := 1

	if options.checkpointID != "" {
		state, err := s.checkpoints.LoadDataCode(ctx, options.checkpointID, normalized)
		if err != nil {
			return nil, err
		}
		byCode = state.ByCode
		lastEnvelope = state.LastEnvelope
		resumeChunkIndex = state.ChunkIndex
		resumeStartPosition = state.StartPosition
		s.logger.InfoWithContext(ctx, "data_code resume", map[string]interface{}{
			"operation":      "resume",
			"checkpoint_id":  options.checkpointID,
			"chunk_index":    resumeChunkIndex,
			"start_position": resumeStartPosition,
			"partial_series": len(byCode),
		})
	}

	plans, err := PlanDataCodeChunks(normalized.Code, DefaultChunkSize, resumeChunkIndex, resumeStartPosition)
	if err != nil {
		return nil, err
	}

	for _, plan := range plans {
		currentPosition := plan.StartPosition
		seenPositions := map[int]struct{}{currentPosition: {}}

		runChunk := func() error {
			for {
				payload, err := s.strict.ExecuteDataCode(ctx, normalized, plan.Codes, currentPosition)
				if err != nil {
					return err
				}
				parsed, err := ParseDataCodeResponse(payload)
				if err != nil {
					return err
				}
				lastEnvelope = parsed.Envelope
				MergeSeriesMap(byCode, parsed.Series)
				nextPosition, ok, err := NextPositionOrRaise(payload, seenPositions, "data_code")
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
				currentPosition = nextPosition
			}
		}

		if err := runChunk(); err != nil {
			if errors.Is(err, core.ErrValidation) {
				return nil, err
			}
			checkpointID := ""
			if len(byCode) > 0 && s.checkpoints.Enabled() {
				checkpointID = s.saveDataCodeCheckpoint(ctx, normalized, byCode, lastEnvelope, plan.ChunkIndex, currentPosition)
			}
			partial := BuildDataCodeResponse(normalized.Code, byCode, lastEnvelope)
			if len(partial.Series) > 0 {
				s.logger.WarnWithContext(ctx, "data_code partial failure", map[string]interface{}{
					"operation":      "partial_failure",
					"chunk_index":    plan.ChunkIndex,
					"partial_series": len(partial.Series),
					"cause":          CauseFromError(err),
					"checkpoint_id":  checkpointID,
				})
				partialErr := newPartialResultError(
					"data_code retrieval failed after partial progress",
					CauseFromError(err), err, checkpointID,
				)
				partialErr.DataCode = partial
				return nil, partialErr
			}
			s.logger.ErrorWithContext(ctx, "data_code failure without partial", map[string]interface{}{
				"operation":   "request_failed",
				"chunk_index": plan.ChunkIndex,
				"cause":       CauseFromError(err),
			})
			return nil, err
		}
	}

	if options.checkpointID != "" {
		s.checkpoints.Cleanup(ctx, options.checkpointID)
	}

	s.logger.InfoWithContext(ctx, "data_code completed", map[string]interface{}{
		"operation": "data_code_completed",
		"series":    len(byCode),
	})
	return BuildDataCodeResponse(normalized.Code, byCode, lastEnvelope), nil
}

func (s *Service) saveDataCodeCheckpoint(ctx context.Context, normalized DataCodeQuery, byCode map[string]TimeSeries, lastEnvelope core.APIEnvelope, chunkIndex, startPosition int) string {
	checkpointID, err := s.checkpoints.SaveDataCode(ctx, &DataCodeCheckpointState{
		Query:          normalized,
		ConfigSnapshot: s.checkpoints.Snapshot(),
		ByCode:         byCode,
		LastEnvelope:   lastEnvelope,
		ChunkIndex:     chunkIndex,
		StartPosition:  startPosition,
	})
	if err != nil {
		s.logger.WarnWithContext(ctx, "checkpoint save failed", map[string]interface{}{
			"operation": "checkpoint_save_failed",
			"error":     err.Error(),
		})
		return ""
	}
	return checkpointID
}

// GetDataLayer retrieves the series selected by a layer filter. The
// direct path paginates getDataLayer; when the server refuses the
// query for exceeding its series ceiling and auto-partition is
// enabled, the metadata catalog selects the matching codes and the
// retrieval fans in through GetDataCode.
func (s *Service) GetDataLayer(ctx context.Context, query DataLayerQuery, opts ...CallOption) (*DataLayerResponse, error) {
	options := applyCallOptions(opts)
	normalized, err := NormalizeDataLayerQuery(query)
	if err != nil {
		return nil, err
	}
	ctx, span := s.telemetry.StartSpan(ctx, "bojstat.get_data_layer")
	defer span.End()
	span.SetAttribute("db", normalized.DB)
	span.SetAttribute("frequency", normalized.Frequency)

	if options.checkpointID != "" {
		state, err := s.checkpoints.LoadDataLayer(ctx, options.checkpointID, normalized)
		if err != nil {
			return nil, err
		}
		var response *DataLayerResponse
		switch resumed := state.(type) {
		case *DataLayerDirectCheckpointState:
			response, err = s.getDataLayerDirect(ctx, normalized, resumed)
		case *DataLayerAutoPartitionCheckpointState:
			response, err = s.getDataLayerViaMetadata(ctx, normalized, resumed)
		default:
			return nil, core.NewValidationError("checkpoint path mismatch")
		}
		if err != nil {
			return nil, err
		}
		s.checkpoints.Cleanup(ctx, options.checkpointID)
		return response, nil
	}

	if !s.enableLayerAutoPartition {
		return s.getDataLayerDirect(ctx, normalized, nil)
	}

	response, err := s.getDataLayerDirect(ctx, normalized, nil)
	if err == nil {
		return response, nil
	}
	if !errors.Is(err, core.ErrValidation) || !ShouldUseAutoPartition(err) {
		return nil, err
	}
	s.logger.InfoWithContext(ctx, "data_layer auto_partition fallback activated", map[string]interface{}{
		"operation": "auto_partition",
		"db":        normalized.DB,
		"frequency": normalized.Frequency,
	})
	return s.getDataLayerViaMetadata(ctx, normalized, nil)
}

func (s *Service) getDataLayerDirect(ctx context.Context, normalized DataLayerQuery, resumed *DataLayerDirectCheckpointState) (*DataLayerResponse, error) {
	s.logger.InfoWithContext(ctx, "data_layer start", map[string]interface{}{
		"operation": "data_layer_start",
		"db":        normalized.DB,
		"frequency": normalized.Frequency,
	})
	byCode := make(map[string]TimeSeries)
	lastEnvelope := makeSuccessEnvelope()
	finalNextPosition := 0
	currentPosition := 1

	if resumed != nil {
		byCode = resumed.ByCode
		lastEnvelope = resumed.LastEnvelope
		currentPosition = resumed.StartPosition
		finalNextPosition = resumed.NextPosition
		s.logger.InfoWithContext(ctx, "data_layer resume", map[string]interface{}{
			"operation":      "resume",
			"path":           "direct",
			"start_position": currentPosition,
			"partial_series": len(byCode),
		})
	}

	seenPositions := map[int]struct{}{currentPosition: {}}

	runPages := func() error {
		for {
			payload, err := s.strict.ExecuteDataLayer(ctx, normalized, currentPosition)
			if err != nil {
				return err
			}
			parsed, err := ParseDataLayerResponse(payload)
			if err != nil {
				return err
			}
			lastEnvelope = parsed.Envelope
			MergeSeriesMap(byCode, parsed.Series)
			if len(byCode) > MaxLayerSeries {
				s.logger.WarnWithContext(ctx, "data_layer exceeded series guardrail", map[string]interface{}{
					"operation": "layer_guardrail",
					"series":    len(byCode),
				})
				return core.NewValidationError("layer query exceeds 1,250 series limit; narrow layer conditions")
			}
			nextPosition, ok, err := NextPositionOrRaise(payload, seenPositions, "data_layer")
			if err != nil {
				return err
			}
			if !ok {
				finalNextPosition = 0
				return nil
			}
			finalNextPosition = nextPosition
			currentPosition = nextPosition
		}
	}

	if err := runPages(); err != nil {
		if errors.Is(err, core.ErrValidation) {
			return nil, err
		}
		partial := BuildDataLayerResponseFromMap(lastEnvelope, byCode, finalNextPosition)
		checkpointID := ""
		if len(partial.Series) > 0 && s.checkpoints.Enabled() {
			saved, saveErr := s.checkpoints.SaveDataLayerDirect(ctx, &DataLayerDirectCheckpointState{
				Query:          normalized,
				ConfigSnapshot: s.checkpoints.Snapshot(),
				ByCode:         byCode,
				LastEnvelope:   lastEnvelope,
				StartPosition:  currentPosition,
				NextPosition:   finalNextPosition,
			})
			if saveErr != nil {
				s.logger.WarnWithContext(ctx, "checkpoint save failed", map[string]interface{}{
					"operation": "checkpoint_save_failed",
					"error":     saveErr.Error(),
				})
			} else {
				checkpointID = saved
			}
		}
		if len(partial.Series) > 0 {
			s.logger.WarnWithContext(ctx, "data_layer partial failure", map[string]interface{}{
				"operation":      "partial_failure",
				"partial_series": len(partial.Series),
				"cause":          CauseFromError(err),
				"checkpoint_id":  checkpointID,
			})
			partialErr := newPartialResultError(
				"data_layer retrieval failed after partial progress",
				CauseFromError(err), err, checkpointID,
			)
			partialErr.DataLayer = partial
			return nil, partialErr
		}
		return nil, err
	}

	s.logger.InfoWithContext(ctx, "data_layer completed", map[string]interface{}{
		"operation": "data_layer_completed",
		"series":    len(byCode),
	})
	return BuildDataLayerResponseFromMap(lastEnvelope, byCode, finalNextPosition), nil
}

func (s *Service) getDataLayerViaMetadata(ctx context.Context, normalized DataLayerQuery, resumed *DataLayerAutoPartitionCheckpointState) (*DataLayerResponse, error) {
	metadataEnvelope := makeSuccessEnvelope()
	dataCodeCheckpointID := ""
	var codes []string

	if resumed == nil {
		metadata, err := s.GetMetadata(ctx, MetadataQuery{DB: normalized.DB, Lang: normalized.Lang})
		if err != nil {
			return nil, err
		}
		metadataEnvelope = metadata.Envelope
		codes = SelectMetadataSeriesCodes(metadata.Entries, normalized)
		s.logger.InfoWithContext(ctx, "data_layer auto_partition selected codes", map[string]interface{}{
			"operation":      "auto_partition",
			"selected_codes": len(codes),
		})
	} else {
		codes = resumed.SelectedCodes
		dataCodeCheckpointID = resumed.DataCodeCheckpointID
		s.logger.InfoWithContext(ctx, "data_layer resume", map[string]interface{}{
			"operation":      "resume",
			"path":           "auto_partition",
			"selected_codes": len(codes),
		})
	}

	if len(codes) == 0 {
		return BuildDataLayerResponseFromSeries(metadataEnvelope, nil, 0), nil
	}

	codeQuery := DataCodeQuery{
		DB:        normalized.DB,
		Code:      codes,
		Lang:      normalized.Lang,
		StartDate: normalized.StartDate,
		EndDate:   normalized.EndDate,
	}
	var codeResult *DataCodeResponse
	var err error
	if dataCodeCheckpointID == "" {
		codeResult, err = s.GetDataCode(ctx, codeQuery)
	} else {
		codeResult, err = s.GetDataCode(ctx, codeQuery, WithCheckpoint(dataCodeCheckpointID))
	}
	if err != nil {
		innerPartial, ok := AsPartialResult(err)
		if !ok || innerPartial.DataCode == nil {
			return nil, err
		}
		checkpointID := ""
		if len(innerPartial.DataCode.Series) > 0 && s.checkpoints.Enabled() {
			saved, saveErr := s.checkpoints.SaveDataLayerAutoPartition(ctx, &DataLayerAutoPartitionCheckpointState{
				Query:                normalized,
				ConfigSnapshot:       s.checkpoints.Snapshot(),
				SelectedCodes:        codes,
				DataCodeCheckpointID: innerPartial.CheckpointID,
			})
			if saveErr != nil {
				s.logger.WarnWithContext(ctx, "checkpoint save failed", map[string]interface{}{
					"operation": "checkpoint_save_failed",
					"error":     saveErr.Error(),
				})
			} else {
				checkpointID = saved
			}
		}
		outer := &PartialResultError{
			Message: "data_layer auto-partition retrieval failed after partial progress",
			DataLayer: BuildDataLayerResponseFromSeries(
				innerPartial.DataCode.Envelope,
				innerPartial.DataCode.Series,
				0,
			),
			Cause:        firstNonEmpty(innerPartial.Cause, "network"),
			Status:       innerPartial.Status,
			MessageID:    innerPartial.MessageID,
			HTTPStatus:   innerPartial.HTTPStatus,
			CheckpointID: checkpointID,
			Err:          err,
		}
		return nil, outer
	}

	return BuildDataLayerResponseFromSeries(codeResult.Envelope, codeResult.Series, 0), nil
}

// GetMetadata retrieves the database-wide metadata catalog with a
// single request. No pagination, no checkpointing.
func (s *Service) GetMetadata(ctx context.Context, query MetadataQuery) (*MetadataResponse, error) {
	normalized, err := NormalizeMetadataQuery(query)
	if err != nil {
		return nil, err
	}
	ctx, span := s.telemetry.StartSpan(ctx, "bojstat.get_metadata")
	defer span.End()
	span.SetAttribute("db", normalized.DB)
	s.logger.InfoWithContext(ctx, "metadata start", map[string]interface{}{
		"operation": "metadata_start",
		"db":        normalized.DB,
	})
	payload, err := s.strict.ExecuteMetadata(ctx, normalized)
	if err != nil {
		return nil, err
	}
	parsed, err := ParseMetadataResponse(payload)
	if err != nil {
		return nil, err
	}
	s.logger.InfoWithContext(ctx, "metadata completed", map[string]interface{}{
		"operation": "metadata_completed",
		"entries":   len(parsed.Entries),
	})
	return parsed, nil
}
