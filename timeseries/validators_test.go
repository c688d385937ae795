package timeseries

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/bojstat/core"
)

func TestNormalizeDataCodeQuery(t *testing.T) {
	normalized, err := NormalizeDataCodeQuery(DataCodeQuery{
		DB:   "  CO ",
		Code: []string{" IR01 ", "IR02", "IR01"},
	})
	require.NoError(t, err)
	assert.Equal(t, "CO", normalized.DB)
	assert.Equal(t, []string{"IR01", "IR02"}, normalized.Code)
	assert.Equal(t, "JP", normalized.Lang)
}

func TestNormalizeDataCodeQueryPreservesLang(t *testing.T) {
	normalized, err := NormalizeDataCodeQuery(DataCodeQuery{DB: "CO", Code: []string{"IR01"}, Lang: "EN"})
	require.NoError(t, err)
	assert.Equal(t, "EN", normalized.Lang)
}

func TestNormalizeDataCodeQueryRejections(t *testing.T) {
	cases := []struct {
		name  string
		query DataCodeQuery
		want  string
	}{
		{"empty db", DataCodeQuery{Code: []string{"IR01"}}, "db is required"},
		{"blank db", DataCodeQuery{DB: "  ", Code: []string{"IR01"}}, "db is required"},
		{"no codes", DataCodeQuery{DB: "CO"}, "code must not be empty"},
		{"blank code", DataCodeQuery{DB: "CO", Code: []string{"  "}}, "code is required"},
		{"forbidden char", DataCodeQuery{DB: "CO", Code: []string{`IR<script>`}}, "forbidden characters"},
		{"quote", DataCodeQuery{DB: "CO", Code: []string{"IR'01"}}, "forbidden characters"},
		{"backslash", DataCodeQuery{DB: "CO", Code: []string{`IR\01`}}, "forbidden characters"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NormalizeDataCodeQuery(tc.query)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrValidation)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestStrictValidateDataCodeQuery(t *testing.T) {
	base := DataCodeQuery{DB: "CO", Code: []string{"IR01"}, Lang: "JP"}
	assert.NoError(t, StrictValidateDataCodeQuery(base))

	dup := base
	dup.Code = []string{"IR01", "IR01"}
	err := StrictValidateDataCodeQuery(dup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicates")

	big := base
	big.Code = make([]string, MaxStrictCodes+1)
	for i := range big.Code {
		big.Code[i] = "C" + strings.Repeat("0", 3) + string(rune('a'+i%26)) + string(rune('a'+i/26))
	}
	err = StrictValidateDataCodeQuery(big)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "<= 250")

	atCap := base
	atCap.Code = make([]string, MaxStrictCodes)
	for i := range atCap.Code {
		atCap.Code[i] = "C" + string(rune('a'+i%26)) + string(rune('a'+(i/26)%26)) + string(rune('a'+i/676))
	}
	assert.NoError(t, StrictValidateDataCodeQuery(atCap))

	negative := base
	negative.StartPosition = -1
	assert.Error(t, StrictValidateDataCodeQuery(negative))
}

func TestNormalizeDataLayerQuery(t *testing.T) {
	normalized, err := NormalizeDataLayerQuery(DataLayerQuery{
		DB:        " CO ",
		Frequency: "Q",
		Layer1:    " A ",
		Layer2:    "B",
	})
	require.NoError(t, err)
	assert.Equal(t, "CO", normalized.DB)
	assert.Equal(t, "A", normalized.Layer1)
	assert.Equal(t, "B", normalized.Layer2)
	assert.Equal(t, "JP", normalized.Lang)
}

func TestNormalizeDataLayerQueryContiguity(t *testing.T) {
	// layer3 set while layer2 is not: a gap.
	_, err := NormalizeDataLayerQuery(DataLayerQuery{
		DB:        "CO",
		Frequency: "Q",
		Layer1:    "A",
		Layer3:    "C",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contiguous")

	// Contiguous through layer4 is fine.
	_, err = NormalizeDataLayerQuery(DataLayerQuery{
		DB:        "CO",
		Frequency: "Q",
		Layer1:    "A",
		Layer2:    "B",
		Layer3:    "C",
		Layer4:    "D",
	})
	assert.NoError(t, err)
}

func TestNormalizeDataLayerQueryRequiredFields(t *testing.T) {
	_, err := NormalizeDataLayerQuery(DataLayerQuery{Frequency: "Q", Layer1: "A"})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = NormalizeDataLayerQuery(DataLayerQuery{DB: "CO", Layer1: "A"})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = NormalizeDataLayerQuery(DataLayerQuery{DB: "CO", Frequency: "Q"})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestNormalizeMetadataQuery(t *testing.T) {
	normalized, err := NormalizeMetadataQuery(MetadataQuery{DB: " CO "})
	require.NoError(t, err)
	assert.Equal(t, "CO", normalized.DB)
	assert.Equal(t, "JP", normalized.Lang)

	_, err = NormalizeMetadataQuery(MetadataQuery{})
	assert.ErrorIs(t, err, core.ErrValidation)
}
