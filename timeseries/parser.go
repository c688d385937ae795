package timeseries

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/itsneelabh/bojstat/core"
)

// noDataMessageID is the documented "no data found" marker; payloads
// carrying it have their RESULTSET treated as empty.
const noDataMessageID = "M181030I"

var metadataFieldKeys = map[string]string{
	"name_ja":         "NAME_OF_TIME_SERIES_J",
	"name_en":         "NAME_OF_TIME_SERIES",
	"unit_ja":         "UNIT_J",
	"unit_en":         "UNIT",
	"frequency":       "FREQUENCY",
	"category_ja":     "CATEGORY_J",
	"category_en":     "CATEGORY",
	"layer1":          "LAYER1",
	"layer2":          "LAYER2",
	"layer3":          "LAYER3",
	"layer4":          "LAYER4",
	"layer5":          "LAYER5",
	"start_of_series": "START_OF_THE_TIME_SERIES",
	"end_of_series":   "END_OF_THE_TIME_SERIES",
	"last_update":     "LAST_UPDATE",
	"notes_ja":        "NOTES_J",
	"notes_en":        "NOTES",
}

// normalizeText renders a payload scalar as text. Invalid UTF-8 is
// decoded with replacement characters; absent values become "".
func normalizeText(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		if utf8.ValidString(v) {
			return v
		}
		return strings.ToValidUTF8(v, "�")
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func asResultSet(payload map[string]interface{}) ([]map[string]interface{}, error) {
	raw, ok := payload["RESULTSET"]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, core.NewProtocolError("RESULTSET must be a list")
	}
	items := make([]map[string]interface{}, 0, len(list))
	for _, element := range list {
		item, ok := element.(map[string]interface{})
		if !ok {
			return nil, core.NewProtocolError("RESULTSET element must be an object")
		}
		items = append(items, item)
	}
	return items, nil
}

// parsePoints zips SURVEY_DATES and VALUES by position. Length
// mismatches truncate to the shorter side.
func parsePoints(valuesObj map[string]interface{}) ([]TimeSeriesPoint, error) {
	surveyDates, datesOK := listField(valuesObj, "SURVEY_DATES")
	values, valuesOK := listField(valuesObj, "VALUES")
	if !datesOK || !valuesOK {
		return nil, core.NewProtocolError("VALUES.SURVEY_DATES and VALUES.VALUES must be lists")
	}

	limit := len(surveyDates)
	if len(values) < limit {
		limit = len(values)
	}
	points := make([]TimeSeriesPoint, 0, limit)
	for i := 0; i < limit; i++ {
		points = append(points, TimeSeriesPoint{
			SurveyDate: normalizeText(surveyDates[i]),
			Value:      numericValue(values[i]),
		})
	}
	return points, nil
}

func listField(obj map[string]interface{}, key string) ([]interface{}, bool) {
	raw, ok := obj[key]
	if !ok || raw == nil {
		return nil, true
	}
	list, ok := raw.([]interface{})
	return list, ok
}

func numericValue(value interface{}) *float64 {
	switch v := value.(type) {
	case float64:
		return &v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		return &parsed
	default:
		return nil
	}
}

func seriesFromItem(item map[string]interface{}) (TimeSeries, error) {
	valuesObj := map[string]interface{}{}
	if raw, ok := item["VALUES"]; ok && raw != nil {
		obj, ok := raw.(map[string]interface{})
		if !ok {
			return TimeSeries{}, core.NewProtocolError("VALUES must be an object")
		}
		valuesObj = obj
	}
	points, err := parsePoints(valuesObj)
	if err != nil {
		return TimeSeries{}, err
	}

	name := normalizeText(item["NAME_OF_TIME_SERIES_J"])
	if name == "" {
		name = normalizeText(item["NAME_OF_TIME_SERIES"])
	}
	unit := normalizeText(item["UNIT_J"])
	if unit == "" {
		unit = normalizeText(item["UNIT"])
	}
	category := normalizeText(item["CATEGORY_J"])
	if category == "" {
		category = normalizeText(item["CATEGORY"])
	}

	return TimeSeries{
		SeriesCode: normalizeText(item["SERIES_CODE"]),
		Name:       name,
		Unit:       unit,
		Frequency:  normalizeText(item["FREQUENCY"]),
		Category:   category,
		LastUpdate: normalizeText(item["LAST_UPDATE"]),
		Points:     points,
	}, nil
}

// ParseDataCodeResponse converts a getDataCode payload into a typed
// response.
func ParseDataCodeResponse(payload map[string]interface{}) (*DataCodeResponse, error) {
	envelope := core.EnvelopeFromPayload(payload)
	if core.ExtractMessageID(payload) == noDataMessageID {
		return &DataCodeResponse{Envelope: envelope}, nil
	}

	items, err := asResultSet(payload)
	if err != nil {
		return nil, err
	}
	series := make([]TimeSeries, 0, len(items))
	for _, item := range items {
		parsed, err := seriesFromItem(item)
		if err != nil {
			return nil, err
		}
		series = append(series, parsed)
	}
	return &DataCodeResponse{Envelope: envelope, Series: series}, nil
}

// ParseDataLayerResponse converts a getDataLayer payload into a typed
// response, preserving the NEXTPOSITION cursor.
func ParseDataLayerResponse(payload map[string]interface{}) (*DataLayerResponse, error) {
	envelope := core.EnvelopeFromPayload(payload)
	nextPosition, ok, err := core.ParseNextPosition(payload)
	if err != nil {
		return nil, err
	}
	if !ok {
		nextPosition = 0
	}

	if core.ExtractMessageID(payload) == noDataMessageID {
		return &DataLayerResponse{Envelope: envelope, NextPosition: nextPosition}, nil
	}

	items, err := asResultSet(payload)
	if err != nil {
		return nil, err
	}
	series := make([]TimeSeries, 0, len(items))
	for _, item := range items {
		parsed, err := seriesFromItem(item)
		if err != nil {
			return nil, err
		}
		series = append(series, parsed)
	}
	return &DataLayerResponse{Envelope: envelope, Series: series, NextPosition: nextPosition}, nil
}

func metadataFromItem(item map[string]interface{}) MetadataEntry {
	field := func(name string) string {
		return normalizeText(item[metadataFieldKeys[name]])
	}
	return MetadataEntry{
		SeriesCode:    normalizeText(item["SERIES_CODE"]),
		NameJA:        field("name_ja"),
		NameEN:        field("name_en"),
		UnitJA:        field("unit_ja"),
		UnitEN:        field("unit_en"),
		Frequency:     field("frequency"),
		CategoryJA:    field("category_ja"),
		CategoryEN:    field("category_en"),
		Layer1:        field("layer1"),
		Layer2:        field("layer2"),
		Layer3:        field("layer3"),
		Layer4:        field("layer4"),
		Layer5:        field("layer5"),
		StartOfSeries: field("start_of_series"),
		EndOfSeries:   field("end_of_series"),
		LastUpdate:    field("last_update"),
		NotesJA:       field("notes_ja"),
		NotesEN:       field("notes_en"),
	}
}

// ParseMetadataResponse converts a getMetadata payload into a typed
// response.
func ParseMetadataResponse(payload map[string]interface{}) (*MetadataResponse, error) {
	envelope := core.EnvelopeFromPayload(payload)
	items, err := asResultSet(payload)
	if err != nil {
		return nil, err
	}
	entries := make([]MetadataEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, metadataFromItem(item))
	}
	return &MetadataResponse{Envelope: envelope, Entries: entries}, nil
}
