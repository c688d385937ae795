package timeseries

import "github.com/itsneelabh/bojstat/core"

// TimeSeriesPoint is a single observation. Value is nil when the
// server reports no value for the survey date.
type TimeSeriesPoint struct {
	SurveyDate string   `json:"survey_date"`
	Value      *float64 `json:"value"`
}

// TimeSeries is one series with its observations. Points are unique by
// survey date and sorted ascending once merged across pages.
type TimeSeries struct {
	SeriesCode string            `json:"series_code"`
	Name       string            `json:"name,omitempty"`
	Unit       string            `json:"unit,omitempty"`
	Frequency  string            `json:"frequency,omitempty"`
	Category   string            `json:"category,omitempty"`
	LastUpdate string            `json:"last_update,omitempty"`
	Points     []TimeSeriesPoint `json:"points"`
}

// MetadataEntry is one row of the database-wide metadata catalog.
type MetadataEntry struct {
	SeriesCode    string `json:"series_code"`
	NameJA        string `json:"name_ja,omitempty"`
	NameEN        string `json:"name_en,omitempty"`
	UnitJA        string `json:"unit_ja,omitempty"`
	UnitEN        string `json:"unit_en,omitempty"`
	Frequency     string `json:"frequency,omitempty"`
	CategoryJA    string `json:"category_ja,omitempty"`
	CategoryEN    string `json:"category_en,omitempty"`
	Layer1        string `json:"layer1,omitempty"`
	Layer2        string `json:"layer2,omitempty"`
	Layer3        string `json:"layer3,omitempty"`
	Layer4        string `json:"layer4,omitempty"`
	Layer5        string `json:"layer5,omitempty"`
	StartOfSeries string `json:"start_of_series,omitempty"`
	EndOfSeries   string `json:"end_of_series,omitempty"`
	LastUpdate    string `json:"last_update,omitempty"`
	NotesJA       string `json:"notes_ja,omitempty"`
	NotesEN       string `json:"notes_en,omitempty"`
}

// DataCodeResponse holds series in the order of the request's input
// codes; each series appears at most once.
type DataCodeResponse struct {
	Envelope core.APIEnvelope
	Series   []TimeSeries
}

// DataLayerResponse holds series sorted ascending by series code.
// NextPosition is 0 when the cursor is exhausted.
type DataLayerResponse struct {
	Envelope     core.APIEnvelope
	Series       []TimeSeries
	NextPosition int
}

// MetadataResponse holds the metadata catalog for one database.
type MetadataResponse struct {
	Envelope core.APIEnvelope
	Entries  []MetadataEntry
}

// makeSuccessEnvelope seeds accumulators before the first page lands.
func makeSuccessEnvelope() core.APIEnvelope {
	return core.APIEnvelope{Status: 200, MessageID: "M181000I", Message: "OK"}
}
