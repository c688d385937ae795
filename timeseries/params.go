package timeseries

import (
	"net/url"
	"strconv"
	"strings"
)

// BuildLayerParam joins the set layers with commas, stopping at the
// first unset layer.
func BuildLayerParam(query DataLayerQuery) string {
	values := []string{query.Layer1}
	for _, layer := range []string{query.Layer2, query.Layer3, query.Layer4, query.Layer5} {
		if layer == "" {
			break
		}
		values = append(values, layer)
	}
	return strings.Join(values, ",")
}

func baseParams(db, lang string) url.Values {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("lang", lang)
	params.Set("db", db)
	return params
}

func applyWindow(params url.Values, startDate, endDate string, startPosition int) {
	if startPosition > 1 {
		params.Set("startPosition", strconv.Itoa(startPosition))
	}
	if startDate != "" {
		params.Set("startDate", startDate)
	}
	if endDate != "" {
		params.Set("endDate", endDate)
	}
}

// BuildDataCodeParams converts a data-code query into wire parameters.
func BuildDataCodeParams(query DataCodeQuery, startPosition int) url.Values {
	params := baseParams(query.DB, query.Lang)
	params.Set("code", strings.Join(query.Code, ","))
	applyWindow(params, query.StartDate, query.EndDate, startPosition)
	return params
}

// BuildDataLayerParams converts a layer query into wire parameters.
func BuildDataLayerParams(query DataLayerQuery, startPosition int) url.Values {
	params := baseParams(query.DB, query.Lang)
	params.Set("frequency", query.Frequency)
	params.Set("layer", BuildLayerParam(query))
	applyWindow(params, query.StartDate, query.EndDate, startPosition)
	return params
}

// BuildMetadataParams converts a metadata query into wire parameters.
func BuildMetadataParams(query MetadataQuery) url.Values {
	return baseParams(query.DB, query.Lang)
}
