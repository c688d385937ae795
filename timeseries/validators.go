package timeseries

import (
	"strings"

	"github.com/itsneelabh/bojstat/core"
)

const forbiddenChars = `<>"!|\;'`

// MaxStrictCodes is the per-request ceiling on the code list.
const MaxStrictCodes = 250

func containsForbidden(value string) bool {
	return strings.ContainsAny(value, forbiddenChars)
}

func ensureNonEmpty(value, name string) (string, error) {
	text := strings.TrimSpace(value)
	if text == "" {
		return "", core.NewValidationError("%s is required", name)
	}
	if containsForbidden(text) {
		return "", core.NewValidationError("%s contains forbidden characters", name)
	}
	return text, nil
}

func dedupeKeepOrder(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func validateContiguousLayers(layers ...string) error {
	seenGap := false
	for index, layer := range layers {
		if strings.TrimSpace(layer) == "" {
			seenGap = true
			continue
		}
		if seenGap {
			return core.NewValidationError("layer must be contiguous from layer1")
		}
		if _, err := ensureNonEmpty(layer, layerName(index+2)); err != nil {
			return err
		}
	}
	return nil
}

func layerName(index int) string {
	names := [...]string{"layer2", "layer3", "layer4", "layer5"}
	return names[index-2]
}

// NormalizeDataCodeQuery validates the resilient entry form: db and
// every code are trimmed and checked for forbidden characters, and the
// code list is deduplicated preserving first-seen order. Lang defaults
// to "JP".
func NormalizeDataCodeQuery(query DataCodeQuery) (DataCodeQuery, error) {
	db, err := ensureNonEmpty(query.DB, "db")
	if err != nil {
		return DataCodeQuery{}, err
	}
	if len(query.Code) == 0 {
		return DataCodeQuery{}, core.NewValidationError("code must not be empty")
	}
	cleaned := make([]string, 0, len(query.Code))
	for _, code := range query.Code {
		text, err := ensureNonEmpty(code, "code")
		if err != nil {
			return DataCodeQuery{}, err
		}
		cleaned = append(cleaned, text)
	}
	query.DB = db
	query.Code = dedupeKeepOrder(cleaned)
	if query.Lang == "" {
		query.Lang = "JP"
	}
	return query, nil
}

// StrictValidateDataCodeQuery enforces the single-request contract:
// no duplicates, at most MaxStrictCodes codes, positive cursor.
func StrictValidateDataCodeQuery(query DataCodeQuery) error {
	if _, err := ensureNonEmpty(query.DB, "db"); err != nil {
		return err
	}
	if len(query.Code) == 0 {
		return core.NewValidationError("code must not be empty")
	}
	cleaned := make([]string, 0, len(query.Code))
	for _, code := range query.Code {
		text, err := ensureNonEmpty(code, "code")
		if err != nil {
			return err
		}
		cleaned = append(cleaned, text)
	}
	if len(cleaned) != len(dedupeKeepOrder(cleaned)) {
		return core.NewValidationError("code contains duplicates in strict mode")
	}
	if len(cleaned) > MaxStrictCodes {
		return core.NewValidationError("code length must be <= %d in strict mode", MaxStrictCodes)
	}
	if query.StartPosition != 0 && query.StartPosition < 1 {
		return core.NewValidationError("start_position must be >= 1")
	}
	return nil
}

// NormalizeDataLayerQuery validates the layer filter form, including
// the contiguity rule. Lang defaults to "JP".
func NormalizeDataLayerQuery(query DataLayerQuery) (DataLayerQuery, error) {
	db, err := ensureNonEmpty(query.DB, "db")
	if err != nil {
		return DataLayerQuery{}, err
	}
	frequency, err := ensureNonEmpty(query.Frequency, "frequency")
	if err != nil {
		return DataLayerQuery{}, err
	}
	layer1, err := ensureNonEmpty(query.Layer1, "layer1")
	if err != nil {
		return DataLayerQuery{}, err
	}
	if err := validateContiguousLayers(query.Layer2, query.Layer3, query.Layer4, query.Layer5); err != nil {
		return DataLayerQuery{}, err
	}
	query.DB = db
	query.Frequency = frequency
	query.Layer1 = layer1
	query.Layer2 = strings.TrimSpace(query.Layer2)
	query.Layer3 = strings.TrimSpace(query.Layer3)
	query.Layer4 = strings.TrimSpace(query.Layer4)
	query.Layer5 = strings.TrimSpace(query.Layer5)
	if query.Lang == "" {
		query.Lang = "JP"
	}
	return query, nil
}

// StrictValidateDataLayerQuery enforces the single-request contract
// for the layer endpoint.
func StrictValidateDataLayerQuery(query DataLayerQuery) error {
	if _, err := ensureNonEmpty(query.DB, "db"); err != nil {
		return err
	}
	if _, err := ensureNonEmpty(query.Frequency, "frequency"); err != nil {
		return err
	}
	if _, err := ensureNonEmpty(query.Layer1, "layer1"); err != nil {
		return err
	}
	if err := validateContiguousLayers(query.Layer2, query.Layer3, query.Layer4, query.Layer5); err != nil {
		return err
	}
	if query.StartPosition != 0 && query.StartPosition < 1 {
		return core.NewValidationError("start_position must be >= 1")
	}
	return nil
}

// NormalizeMetadataQuery validates the metadata catalog form. Lang
// defaults to "JP".
func NormalizeMetadataQuery(query MetadataQuery) (MetadataQuery, error) {
	db, err := ensureNonEmpty(query.DB, "db")
	if err != nil {
		return MetadataQuery{}, err
	}
	query.DB = db
	if query.Lang == "" {
		query.Lang = "JP"
	}
	return query, nil
}

// StrictValidateMetadataQuery enforces the single-request contract for
// the metadata endpoint.
func StrictValidateMetadataQuery(query MetadataQuery) error {
	_, err := ensureNonEmpty(query.DB, "db")
	return err
}
