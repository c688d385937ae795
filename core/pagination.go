package core

import (
	"context"
	"strconv"
	"strings"
)

// DefaultMaxPages is the pagination guardrail: a cursor walk that has
// not terminated after this many pages is treated as a protocol error.
const DefaultMaxPages = 10000

// ParseNextPosition reads the NEXTPOSITION cursor from a payload.
// Accepted encodings: integer, non-empty decimal digit string, empty
// string (end of stream), absent/null (end of stream). Returns
// ok=false at end of stream.
func ParseNextPosition(payload map[string]interface{}) (int, bool, error) {
	raw, present := payload["NEXTPOSITION"]
	if !present || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case string:
		text := strings.TrimSpace(v)
		if text == "" {
			return 0, false, nil
		}
		parsed, err := strconv.Atoi(text)
		if err != nil || parsed < 0 {
			return 0, false, NewProtocolError("NEXTPOSITION is not a valid integer")
		}
		return parsed, true, nil
	case float64:
		if v != float64(int(v)) {
			return 0, false, NewProtocolError("NEXTPOSITION is not a valid integer")
		}
		return int(v), true, nil
	case int:
		return v, true, nil
	default:
		return 0, false, NewProtocolError("NEXTPOSITION has unsupported type")
	}
}

// PageFetcher retrieves the page starting at the given cursor position.
type PageFetcher func(ctx context.Context, startPosition int) (map[string]interface{}, error)

// PageIterator walks an opaque NEXTPOSITION cursor. It detects cursor
// loops and enforces a page-count guardrail. Usage follows the
// Next/Page/Err pull pattern:
//
//	pages := core.NewPageIterator(fetch, 1, 0)
//	for pages.Next(ctx) {
//	    payload := pages.Page()
//	    ...
//	}
//	if err := pages.Err(); err != nil { ... }
type PageIterator struct {
	fetch     PageFetcher
	current   int
	seen      map[int]struct{}
	remaining int
	payload   map[string]interface{}
	err       error
	pending   error
	done      bool
}

// NewPageIterator creates a cursor walk from startPosition. maxPages
// <= 0 selects DefaultMaxPages.
func NewPageIterator(fetch PageFetcher, startPosition, maxPages int) *PageIterator {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	// The starting position counts as visited: a cursor that leads
	// back to it is a loop.
	seen := map[int]struct{}{startPosition: {}}
	return &PageIterator{
		fetch:     fetch,
		current:   startPosition,
		seen:      seen,
		remaining: maxPages,
	}
}

// Next fetches the next page. It returns false when the cursor walk is
// complete or failed; consult Err afterwards.
func (it *PageIterator) Next(ctx context.Context) bool {
	if it.done || it.err != nil {
		return false
	}
	if it.pending != nil {
		it.err = it.pending
		return false
	}
	if it.remaining == 0 {
		it.err = NewProtocolError("exceeded pagination guardrail (max pages)")
		return false
	}
	it.remaining--

	payload, err := it.fetch(ctx, it.current)
	if err != nil {
		it.err = err
		return false
	}
	it.payload = payload

	// The page is surfaced even when its cursor is malformed; the
	// failure lands on the following Next call.
	next, ok, err := ParseNextPosition(payload)
	switch {
	case err != nil:
		it.pending = err
	case !ok:
		it.done = true
	default:
		if _, dup := it.seen[next]; dup {
			it.pending = NewProtocolError("NEXTPOSITION loop detected")
		} else {
			it.seen[next] = struct{}{}
			it.current = next
		}
	}
	return true
}

// Page returns the payload fetched by the last successful Next call.
func (it *PageIterator) Page() map[string]interface{} {
	return it.payload
}

// Err returns the terminal error of the walk, if any.
func (it *PageIterator) Err() error {
	return it.err
}

// Close stops the walk; subsequent Next calls return false.
func (it *PageIterator) Close() {
	it.done = true
}
