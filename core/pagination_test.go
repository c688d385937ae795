package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNextPosition(t *testing.T) {
	cases := []struct {
		name    string
		payload map[string]interface{}
		want    int
		wantOK  bool
		wantErr bool
	}{
		{"absent", map[string]interface{}{}, 0, false, false},
		{"null", map[string]interface{}{"NEXTPOSITION": nil}, 0, false, false},
		{"empty string", map[string]interface{}{"NEXTPOSITION": ""}, 0, false, false},
		{"blank string", map[string]interface{}{"NEXTPOSITION": "  "}, 0, false, false},
		{"digit string", map[string]interface{}{"NEXTPOSITION": "251"}, 251, true, false},
		{"json number", map[string]interface{}{"NEXTPOSITION": float64(42)}, 42, true, false},
		{"int", map[string]interface{}{"NEXTPOSITION": 7}, 7, true, false},
		{"non-digit string", map[string]interface{}{"NEXTPOSITION": "abc"}, 0, false, true},
		{"fractional", map[string]interface{}{"NEXTPOSITION": 1.5}, 0, false, true},
		{"bool", map[string]interface{}{"NEXTPOSITION": true}, 0, false, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok, err := ParseNextPosition(tc.payload)
			if tc.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrProtocol)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func pageFetcher(pages map[int]map[string]interface{}) PageFetcher {
	return func(ctx context.Context, startPosition int) (map[string]interface{}, error) {
		page, ok := pages[startPosition]
		if !ok {
			return nil, NewProtocolError("no page at position %d", startPosition)
		}
		return page, nil
	}
}

func collectPages(t *testing.T, it *PageIterator) ([]map[string]interface{}, error) {
	t.Helper()
	var out []map[string]interface{}
	for it.Next(context.Background()) {
		out = append(out, it.Page())
	}
	return out, it.Err()
}

func TestPageIteratorWalksCursor(t *testing.T) {
	it := NewPageIterator(pageFetcher(map[int]map[string]interface{}{
		1:   {"page": "first", "NEXTPOSITION": "251"},
		251: {"page": "second", "NEXTPOSITION": ""},
	}), 1, 0)

	pages, err := collectPages(t, it)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "first", pages[0]["page"])
	assert.Equal(t, "second", pages[1]["page"])
}

func TestPageIteratorSinglePage(t *testing.T) {
	it := NewPageIterator(pageFetcher(map[int]map[string]interface{}{
		1: {"page": "only"},
	}), 1, 0)

	pages, err := collectPages(t, it)
	require.NoError(t, err)
	assert.Len(t, pages, 1)
}

func TestPageIteratorDetectsLoopToStart(t *testing.T) {
	// Page 2's cursor leads back to page 1's position.
	it := NewPageIterator(pageFetcher(map[int]map[string]interface{}{
		1: {"page": "first", "NEXTPOSITION": 2},
		2: {"page": "second", "NEXTPOSITION": 1},
	}), 1, 0)

	pages, err := collectPages(t, it)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProtocol)
	assert.Contains(t, err.Error(), "loop detected")
	// Both pages were yielded before the loop was reported.
	assert.Len(t, pages, 2)
}

func TestPageIteratorDetectsRepeatedCursor(t *testing.T) {
	it := NewPageIterator(pageFetcher(map[int]map[string]interface{}{
		1: {"NEXTPOSITION": 2},
		2: {"NEXTPOSITION": 2},
	}), 1, 0)

	_, err := collectPages(t, it)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loop detected")
}

func TestPageIteratorGuardrail(t *testing.T) {
	position := 0
	fetch := func(ctx context.Context, startPosition int) (map[string]interface{}, error) {
		position++
		return map[string]interface{}{"NEXTPOSITION": position * 1000}, nil
	}
	it := NewPageIterator(fetch, 1, 5)

	pages, err := collectPages(t, it)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProtocol)
	assert.Contains(t, err.Error(), "guardrail")
	assert.Len(t, pages, 5)
}

func TestPageIteratorMalformedCursorAfterYield(t *testing.T) {
	it := NewPageIterator(pageFetcher(map[int]map[string]interface{}{
		1: {"page": "first", "NEXTPOSITION": "not-a-number"},
	}), 1, 0)

	require.True(t, it.Next(context.Background()))
	require.False(t, it.Next(context.Background()))
	assert.ErrorIs(t, it.Err(), ErrProtocol)
}

func TestPageIteratorClose(t *testing.T) {
	it := NewPageIterator(pageFetcher(map[int]map[string]interface{}{
		1: {"NEXTPOSITION": 2},
		2: {},
	}), 1, 0)

	require.True(t, it.Next(context.Background()))
	it.Close()
	assert.False(t, it.Next(context.Background()))
	assert.NoError(t, it.Err())
}

func TestPageIteratorFetchError(t *testing.T) {
	it := NewPageIterator(func(ctx context.Context, startPosition int) (map[string]interface{}, error) {
		return nil, &APIError{Kind: ErrServer, Message: "boom", Status: 500}
	}, 1, 0)

	assert.False(t, it.Next(context.Background()))
	assert.ErrorIs(t, it.Err(), ErrServer)
}
