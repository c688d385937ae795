package timeseries

import (
	"context"

	"github.com/itsneelabh/bojstat/core"
)

// Endpoint paths of the stat-search API.
const (
	endpointDataCode  = "/getDataCode"
	endpointDataLayer = "/getDataLayer"
	endpointMetadata  = "/getMetadata"
)

// StrictService is the single-request execution unit. It applies
// per-request validation (code caps, duplicates, contiguity) before
// handing the wire parameters to the transport; it never paginates and
// never retries beyond the transport's own policy.
type StrictService struct {
	transport core.Requester
}

// NewStrictService creates a strict executor over a transport.
func NewStrictService(transport core.Requester) *StrictService {
	return &StrictService{transport: transport}
}

// ExecuteDataCode performs one getDataCode request for a code subset.
func (s *StrictService) ExecuteDataCode(ctx context.Context, query DataCodeQuery, codeSubset []string, startPosition int) (map[string]interface{}, error) {
	strictQuery := query.WithCodes(codeSubset)
	strictQuery.StartPosition = startPosition
	if err := StrictValidateDataCodeQuery(strictQuery); err != nil {
		return nil, err
	}
	return s.transport.Request(ctx, endpointDataCode, BuildDataCodeParams(strictQuery, startPosition))
}

// ExecuteDataLayer performs one getDataLayer request.
func (s *StrictService) ExecuteDataLayer(ctx context.Context, query DataLayerQuery, startPosition int) (map[string]interface{}, error) {
	strictQuery := query
	strictQuery.StartPosition = startPosition
	if err := StrictValidateDataLayerQuery(strictQuery); err != nil {
		return nil, err
	}
	return s.transport.Request(ctx, endpointDataLayer, BuildDataLayerParams(strictQuery, startPosition))
}

// ExecuteMetadata performs one getMetadata request.
func (s *StrictService) ExecuteMetadata(ctx context.Context, query MetadataQuery) (map[string]interface{}, error) {
	if err := StrictValidateMetadataQuery(query); err != nil {
		return nil, err
	}
	return s.transport.Request(ctx, endpointMetadata, BuildMetadataParams(query))
}
