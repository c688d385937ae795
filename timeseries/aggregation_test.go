package timeseries

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/bojstat/core"
)

func floatPtr(v float64) *float64 { return &v }

func seriesWithPoints(code string, points ...TimeSeriesPoint) TimeSeries {
	return TimeSeries{SeriesCode: code, Points: points}
}

func TestMergeSeriesLastWriteWinsAndSorts(t *testing.T) {
	existing := seriesWithPoints("IR01",
		TimeSeriesPoint{SurveyDate: "2021", Value: floatPtr(1)},
		TimeSeriesPoint{SurveyDate: "2020", Value: floatPtr(2)},
	)
	incoming := seriesWithPoints("IR01",
		TimeSeriesPoint{SurveyDate: "2021", Value: floatPtr(9)},
		TimeSeriesPoint{SurveyDate: "2019", Value: floatPtr(3)},
	)

	merged := MergeSeries(existing, incoming)
	require.Len(t, merged.Points, 3)
	assert.Equal(t, "2019", merged.Points[0].SurveyDate)
	assert.Equal(t, "2020", merged.Points[1].SurveyDate)
	assert.Equal(t, "2021", merged.Points[2].SurveyDate)
	// The later observation wins on duplicate dates.
	assert.Equal(t, 9.0, *merged.Points[2].Value)
}

func TestMergeSeriesPrefersIncomingMetadata(t *testing.T) {
	existing := TimeSeries{SeriesCode: "IR01", Name: "old", Unit: "yen"}
	incoming := TimeSeries{SeriesCode: "IR01", Name: "new"}

	merged := MergeSeries(existing, incoming)
	assert.Equal(t, "new", merged.Name)
	// Empty incoming fields keep the existing values.
	assert.Equal(t, "yen", merged.Unit)
}

func TestMergeSeriesMap(t *testing.T) {
	byCode := map[string]TimeSeries{}
	MergeSeriesMap(byCode, []TimeSeries{
		seriesWithPoints("B", TimeSeriesPoint{SurveyDate: "2020"}),
		seriesWithPoints("A", TimeSeriesPoint{SurveyDate: "2020"}),
	})
	MergeSeriesMap(byCode, []TimeSeries{
		seriesWithPoints("B", TimeSeriesPoint{SurveyDate: "2021"}),
	})

	require.Len(t, byCode, 2)
	assert.Len(t, byCode["B"].Points, 2)
}

func TestBuildDataCodeResponseOrdering(t *testing.T) {
	byCode := map[string]TimeSeries{
		"C2": {SeriesCode: "C2"},
		"C1": {SeriesCode: "C1"},
		"C3": {SeriesCode: "C3"},
	}
	resp := BuildDataCodeResponse([]string{"C3", "C1", "C9", "C2"}, byCode, makeSuccessEnvelope())
	require.Len(t, resp.Series, 3)
	// Input order, absent codes skipped.
	assert.Equal(t, "C3", resp.Series[0].SeriesCode)
	assert.Equal(t, "C1", resp.Series[1].SeriesCode)
	assert.Equal(t, "C2", resp.Series[2].SeriesCode)
}

func TestBuildDataLayerResponseSorted(t *testing.T) {
	byCode := map[string]TimeSeries{
		"Z": {SeriesCode: "Z"},
		"A": {SeriesCode: "A"},
		"M": {SeriesCode: "M"},
	}
	resp := BuildDataLayerResponseFromMap(makeSuccessEnvelope(), byCode, 42)
	require.Len(t, resp.Series, 3)
	assert.Equal(t, "A", resp.Series[0].SeriesCode)
	assert.Equal(t, "M", resp.Series[1].SeriesCode)
	assert.Equal(t, "Z", resp.Series[2].SeriesCode)
	assert.Equal(t, 42, resp.NextPosition)
}

func TestCauseFromError(t *testing.T) {
	server := &core.APIError{Kind: core.ErrServer, Cause: core.CauseServerTransient}
	assert.Equal(t, "server_transient", CauseFromError(server))

	validation := core.NewValidationError("bad input")
	assert.Equal(t, "validation", CauseFromError(validation))

	network := &core.APIError{Kind: core.ErrTransport, Cause: "network"}
	assert.Equal(t, "network", CauseFromError(network))

	assert.Equal(t, "network", CauseFromError(errors.New("mystery")))
}
