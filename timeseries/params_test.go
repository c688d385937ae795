package timeseries

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildLayerParamStopsAtGap(t *testing.T) {
	query := DataLayerQuery{Layer1: "A", Layer2: "B", Layer4: "D"}
	// Layer3 is unset, so layer4 is ignored.
	assert.Equal(t, "A,B", BuildLayerParam(query))

	assert.Equal(t, "A", BuildLayerParam(DataLayerQuery{Layer1: "A"}))
	assert.Equal(t, "A,B,C,D,E", BuildLayerParam(DataLayerQuery{
		Layer1: "A", Layer2: "B", Layer3: "C", Layer4: "D", Layer5: "E",
	}))
}

func TestBuildDataCodeParams(t *testing.T) {
	query := DataCodeQuery{
		DB:        "CO",
		Code:      []string{"IR01", "IR02"},
		Lang:      "JP",
		StartDate: "2020",
		EndDate:   "2021",
	}
	params := BuildDataCodeParams(query, 1)
	assert.Equal(t, "json", params.Get("format"))
	assert.Equal(t, "JP", params.Get("lang"))
	assert.Equal(t, "CO", params.Get("db"))
	assert.Equal(t, "IR01,IR02", params.Get("code"))
	assert.Equal(t, "2020", params.Get("startDate"))
	assert.Equal(t, "2021", params.Get("endDate"))
	// startPosition is omitted when 1.
	assert.False(t, params.Has("startPosition"))

	params = BuildDataCodeParams(query, 251)
	assert.Equal(t, "251", params.Get("startPosition"))
}

func TestBuildDataLayerParams(t *testing.T) {
	query := DataLayerQuery{
		DB:        "CO",
		Frequency: "Q",
		Layer1:    "A",
		Layer2:    "B",
		Lang:      "EN",
	}
	params := BuildDataLayerParams(query, 1)
	assert.Equal(t, "Q", params.Get("frequency"))
	assert.Equal(t, "A,B", params.Get("layer"))
	assert.Equal(t, "EN", params.Get("lang"))
	assert.False(t, params.Has("startDate"))
	assert.False(t, params.Has("startPosition"))
}

func TestBuildMetadataParams(t *testing.T) {
	params := BuildMetadataParams(MetadataQuery{DB: "CO", Lang: "JP"})
	assert.Equal(t, "json", params.Get("format"))
	assert.Equal(t, "CO", params.Get("db"))
	assert.Equal(t, "JP", params.Get("lang"))
	assert.Len(t, params, 3)
}
