package timeseries

import (
	"errors"
	"sort"

	"github.com/itsneelabh/bojstat/core"
)

// CauseFromError derives the partial-result cause tag from the error
// that interrupted an orchestration.
func CauseFromError(err error) string {
	var apiErr *core.APIError
	if errors.As(err, &apiErr) && apiErr.Cause != "" {
		return apiErr.Cause
	}
	if errors.Is(err, core.ErrValidation) {
		return "validation"
	}
	return "network"
}

// MergeSeries unions the points of two observations of the same series
// by survey date (the later observation wins), sorts ascending, and
// prefers incoming non-empty metadata fields.
func MergeSeries(existing, incoming TimeSeries) TimeSeries {
	byDate := make(map[string]TimeSeriesPoint, len(existing.Points)+len(incoming.Points))
	for _, point := range existing.Points {
		byDate[point.SurveyDate] = point
	}
	for _, point := range incoming.Points {
		byDate[point.SurveyDate] = point
	}
	merged := make([]TimeSeriesPoint, 0, len(byDate))
	for _, point := range byDate {
		merged = append(merged, point)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].SurveyDate < merged[j].SurveyDate })

	return TimeSeries{
		SeriesCode: existing.SeriesCode,
		Name:       firstNonEmpty(incoming.Name, existing.Name),
		Unit:       firstNonEmpty(incoming.Unit, existing.Unit),
		Frequency:  firstNonEmpty(incoming.Frequency, existing.Frequency),
		Category:   firstNonEmpty(incoming.Category, existing.Category),
		LastUpdate: firstNonEmpty(incoming.LastUpdate, existing.LastUpdate),
		Points:     merged,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// MergeSeriesMap merges incoming series into the accumulator by series
// code.
func MergeSeriesMap(byCode map[string]TimeSeries, items []TimeSeries) {
	for _, series := range items {
		if existing, ok := byCode[series.SeriesCode]; ok {
			byCode[series.SeriesCode] = MergeSeries(existing, series)
		} else {
			byCode[series.SeriesCode] = series
		}
	}
}

// SortSeriesByCode returns the series sorted ascending by code.
func SortSeriesByCode(items []TimeSeries) []TimeSeries {
	sorted := append([]TimeSeries(nil), items...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SeriesCode < sorted[j].SeriesCode })
	return sorted
}

// BuildDataCodeResponse assembles a response holding only the codes
// present in the accumulator, in the order of orderedCodes.
func BuildDataCodeResponse(orderedCodes []string, byCode map[string]TimeSeries, envelope core.APIEnvelope) *DataCodeResponse {
	series := make([]TimeSeries, 0, len(byCode))
	for _, code := range orderedCodes {
		if found, ok := byCode[code]; ok {
			series = append(series, found)
		}
	}
	return &DataCodeResponse{Envelope: envelope, Series: series}
}

// BuildDataLayerResponseFromMap assembles a layer response sorted by
// series code.
func BuildDataLayerResponseFromMap(envelope core.APIEnvelope, byCode map[string]TimeSeries, nextPosition int) *DataLayerResponse {
	series := make([]TimeSeries, 0, len(byCode))
	for _, item := range byCode {
		series = append(series, item)
	}
	return &DataLayerResponse{
		Envelope:     envelope,
		Series:       SortSeriesByCode(series),
		NextPosition: nextPosition,
	}
}

// BuildDataLayerResponseFromSeries assembles a layer response from a
// series slice, sorted by series code.
func BuildDataLayerResponseFromSeries(envelope core.APIEnvelope, series []TimeSeries, nextPosition int) *DataLayerResponse {
	return &DataLayerResponse{
		Envelope:     envelope,
		Series:       SortSeriesByCode(series),
		NextPosition: nextPosition,
	}
}
