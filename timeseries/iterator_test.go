package timeseries

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/bojstat/core"
)

func TestIterDataCodeYieldsPerPage(t *testing.T) {
	fake := &fakeRequester{}
	fake.handler = func(endpoint string, params url.Values) (map[string]interface{}, error) {
		if params.Get("startPosition") == "" {
			return successPayload(itemsForCodes([]string{"C0"}), "2"), nil
		}
		return successPayload(itemsForCodes([]string{"C0"}), ""), nil
	}
	svc, _ := newServiceWithStore(fake)

	it := svc.IterDataCode(DataCodeQuery{DB: "CO", Code: []string{"C0"}})
	defer it.Close()

	var pages []*DataCodeResponse
	for it.Next(context.Background()) {
		pages = append(pages, it.Response())
	}
	require.NoError(t, it.Err())
	assert.Len(t, pages, 2)
}

func TestIterDataCodeWalksChunksInOrder(t *testing.T) {
	fake := &fakeRequester{}
	fake.handler = func(endpoint string, params url.Values) (map[string]interface{}, error) {
		return echoDataCode(params), nil
	}
	svc, _ := newServiceWithStore(fake)

	codes := makeCodes(251)
	it := svc.IterDataCode(DataCodeQuery{DB: "CO", Code: codes})
	defer it.Close()

	var pages []*DataCodeResponse
	for it.Next(context.Background()) {
		pages = append(pages, it.Response())
	}
	require.NoError(t, it.Err())
	require.Len(t, pages, 2)
	assert.Len(t, pages[0].Series, 250)
	require.Len(t, pages[1].Series, 1)
	assert.Equal(t, codes[250], pages[1].Series[0].SeriesCode)
}

func TestIterDataCodeNormalizationErrorOnFirstNext(t *testing.T) {
	svc, _ := newServiceWithStore(&fakeRequester{})
	it := svc.IterDataCode(DataCodeQuery{DB: "", Code: []string{"C0"}})
	assert.False(t, it.Next(context.Background()))
	assert.ErrorIs(t, it.Err(), core.ErrValidation)
}

func TestIterDataCodeCloseStopsIteration(t *testing.T) {
	fake := &fakeRequester{}
	fake.handler = func(endpoint string, params url.Values) (map[string]interface{}, error) {
		return successPayload(itemsForCodes(strings.Split(params.Get("code"), ",")), "99"), nil
	}
	svc, _ := newServiceWithStore(fake)

	it := svc.IterDataCode(DataCodeQuery{DB: "CO", Code: []string{"C0"}})
	require.True(t, it.Next(context.Background()))
	require.NoError(t, it.Close())
	assert.False(t, it.Next(context.Background()))
	assert.NoError(t, it.Close())
}

// TestIterDataLayerPagesInCursorOrder: a paginated layer yields
// exactly two responses in cursor order.
func TestIterDataLayerPagesInCursorOrder(t *testing.T) {
	fake := &fakeRequester{}
	fake.handler = func(endpoint string, params url.Values) (map[string]interface{}, error) {
		if params.Get("startPosition") == "" {
			return successPayload([]interface{}{resultItem("A1", "2020", 1)}, "2"), nil
		}
		return successPayload([]interface{}{resultItem("B2", "2020", 1)}, ""), nil
	}
	svc, _ := newServiceWithStore(fake)

	it := svc.IterDataLayer(DataLayerQuery{DB: "CO", Frequency: "Q", Layer1: "A"})
	defer it.Close()

	var pages []*DataLayerResponse
	for it.Next(context.Background()) {
		pages = append(pages, it.Response())
	}
	require.NoError(t, it.Err())
	require.Len(t, pages, 2)
	assert.Equal(t, "A1", pages[0].Series[0].SeriesCode)
	assert.Equal(t, 2, pages[0].NextPosition)
	assert.Equal(t, "B2", pages[1].Series[0].SeriesCode)
	assert.Equal(t, 0, pages[1].NextPosition)
}

// TestIterDataLayerLoopIsProtocolError: on the iter path a cursor that
// revisits a prior position is a protocol error from the pagination
// driver.
func TestIterDataLayerLoopIsProtocolError(t *testing.T) {
	fake := &fakeRequester{}
	fake.handler = func(endpoint string, params url.Values) (map[string]interface{}, error) {
		if params.Get("startPosition") == "" {
			return successPayload(nil, 2), nil
		}
		return successPayload(nil, 1), nil
	}
	svc, _ := newServiceWithStore(fake)

	it := svc.IterDataLayer(DataLayerQuery{DB: "CO", Frequency: "Q", Layer1: "A"})
	defer it.Close()

	count := 0
	for it.Next(context.Background()) {
		count++
	}
	require.Error(t, it.Err())
	assert.ErrorIs(t, it.Err(), core.ErrProtocol)
	assert.Contains(t, it.Err().Error(), "loop detected")
	assert.Equal(t, 2, count)
}

func TestIterDataLayerSurfacesRequestError(t *testing.T) {
	fake := &fakeRequester{}
	fake.handler = func(endpoint string, params url.Values) (map[string]interface{}, error) {
		return nil, serverError()
	}
	svc, _ := newServiceWithStore(fake)

	it := svc.IterDataLayer(DataLayerQuery{DB: "CO", Frequency: "Q", Layer1: "A"})
	defer it.Close()

	assert.False(t, it.Next(context.Background()))
	assert.ErrorIs(t, it.Err(), core.ErrServer)
}
