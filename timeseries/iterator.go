package timeseries

import (
	"context"

	"github.com/itsneelabh/bojstat/core"
)

// DataCodeIterator yields one DataCodeResponse per HTTP page, chunk by
// chunk in input order and page by page in cursor order. No
// checkpointing is performed on the iter path. Usage:
//
//	it := svc.IterDataCode(query)
//	defer it.Close()
//	for it.Next(ctx) {
//	    page := it.Response()
//	    ...
//	}
//	if err := it.Err(); err != nil { ... }
type DataCodeIterator struct {
	svc        *Service
	normalized DataCodeQuery
	plans      []DataCodeChunkPlan
	planIndex  int
	pages      *core.PageIterator
	response   *DataCodeResponse
	err        error
	closed     bool
}

// IterDataCode creates a page iterator for a data-code query.
// Normalization failures surface on the first Next call.
func (s *Service) IterDataCode(query DataCodeQuery) *DataCodeIterator {
	it := &DataCodeIterator{svc: s}
	normalized, err := NormalizeDataCodeQuery(query)
	if err != nil {
		it.err = err
		return it
	}
	plans, err := PlanDataCodeChunks(normalized.Code, DefaultChunkSize, 0, 1)
	if err != nil {
		it.err = err
		return it
	}
	it.normalized = normalized
	it.plans = plans
	return it
}

// Next advances to the next page. It returns false when iteration is
// complete or failed; consult Err afterwards.
func (it *DataCodeIterator) Next(ctx context.Context) bool {
	if it.closed || it.err != nil {
		return false
	}
	for {
		if it.pages == nil {
			if it.planIndex >= len(it.plans) {
				return false
			}
			plan := it.plans[it.planIndex]
			codes := plan.Codes
			it.pages = core.NewPageIterator(func(ctx context.Context, startPosition int) (map[string]interface{}, error) {
				return it.svc.strict.ExecuteDataCode(ctx, it.normalized, codes, startPosition)
			}, plan.StartPosition, 0)
		}
		if it.pages.Next(ctx) {
			parsed, err := ParseDataCodeResponse(it.pages.Page())
			if err != nil {
				it.err = err
				return false
			}
			it.response = parsed
			return true
		}
		if err := it.pages.Err(); err != nil {
			it.err = err
			return false
		}
		// Chunk exhausted; move to the next one.
		it.pages = nil
		it.planIndex++
	}
}

// Response returns the page fetched by the last successful Next call.
func (it *DataCodeIterator) Response() *DataCodeResponse {
	return it.response
}

// Err returns the terminal error of the iteration, if any.
func (it *DataCodeIterator) Err() error {
	return it.err
}

// Close releases the underlying page iterator. Subsequent Next calls
// return false. Close is idempotent.
func (it *DataCodeIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	if it.pages != nil {
		it.pages.Close()
		it.pages = nil
	}
	return nil
}

// DataLayerIterator yields one DataLayerResponse per HTTP page in
// cursor order. Same pull contract as DataCodeIterator.
type DataLayerIterator struct {
	svc      *Service
	pages    *core.PageIterator
	response *DataLayerResponse
	err      error
	closed   bool
}

// IterDataLayer creates a page iterator for a layer query.
// Normalization failures surface on the first Next call.
func (s *Service) IterDataLayer(query DataLayerQuery) *DataLayerIterator {
	it := &DataLayerIterator{svc: s}
	normalized, err := NormalizeDataLayerQuery(query)
	if err != nil {
		it.err = err
		return it
	}
	it.pages = core.NewPageIterator(func(ctx context.Context, startPosition int) (map[string]interface{}, error) {
		return s.strict.ExecuteDataLayer(ctx, normalized, startPosition)
	}, 1, 0)
	return it
}

// Next advances to the next page.
func (it *DataLayerIterator) Next(ctx context.Context) bool {
	if it.closed || it.err != nil {
		return false
	}
	if !it.pages.Next(ctx) {
		if err := it.pages.Err(); err != nil {
			it.err = err
		}
		return false
	}
	parsed, err := ParseDataLayerResponse(it.pages.Page())
	if err != nil {
		it.err = err
		return false
	}
	it.response = parsed
	return true
}

// Response returns the page fetched by the last successful Next call.
func (it *DataLayerIterator) Response() *DataLayerResponse {
	return it.response
}

// Err returns the terminal error of the iteration, if any.
func (it *DataLayerIterator) Err() error {
	return it.err
}

// Close releases the underlying page iterator. Close is idempotent.
func (it *DataLayerIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	if it.pages != nil {
		it.pages.Close()
	}
	return nil
}
