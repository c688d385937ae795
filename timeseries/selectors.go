package timeseries

import (
	"path"
	"sort"
	"strings"
)

// matchesPattern applies the layer pattern semantics: empty or "*"
// matches anything; a pattern containing a glob metacharacter is a
// case-sensitive fnmatch-style glob; anything else is exact equality.
func matchesPattern(pattern, value string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	if strings.ContainsAny(pattern, "*?[") {
		matched, err := path.Match(toPathPattern(pattern), value)
		return err == nil && matched
	}
	return value == pattern
}

// toPathPattern rewrites fnmatch character classes for path.Match:
// fnmatch negates a class with "[!seq]" where path.Match uses "[^seq]",
// and fnmatch treats "^" right after "[" as an ordinary member where
// path.Match would negate.
func toPathPattern(pattern string) string {
	var out strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		out.WriteByte(c)
		if c == '\\' && i+1 < len(pattern) {
			i++
			out.WriteByte(pattern[i])
			continue
		}
		if c == '[' && i+1 < len(pattern) {
			switch pattern[i+1] {
			case '!':
				out.WriteByte('^')
				i++
			case '^':
				out.WriteByte('\\')
				out.WriteByte('^')
				i++
			}
		}
	}
	return out.String()
}

// MetadataEntryMatchesLayerQuery reports whether a metadata entry
// satisfies a layer query: the frequency matches case-insensitively
// and every layer field matches its pattern.
func MetadataEntryMatchesLayerQuery(entry MetadataEntry, query DataLayerQuery) bool {
	if !strings.EqualFold(entry.Frequency, query.Frequency) {
		return false
	}
	layers := [...]struct{ pattern, value string }{
		{query.Layer1, entry.Layer1},
		{query.Layer2, entry.Layer2},
		{query.Layer3, entry.Layer3},
		{query.Layer4, entry.Layer4},
		{query.Layer5, entry.Layer5},
	}
	for _, layer := range layers {
		if !matchesPattern(layer.pattern, layer.value) {
			return false
		}
	}
	return true
}

// SelectMetadataSeriesCodes returns the sorted, deduplicated series
// codes of the entries matching the layer query.
func SelectMetadataSeriesCodes(entries []MetadataEntry, query DataLayerQuery) []string {
	seen := make(map[string]struct{})
	matched := make([]string, 0)
	for _, entry := range entries {
		if !MetadataEntryMatchesLayerQuery(entry, query) {
			continue
		}
		if _, dup := seen[entry.SeriesCode]; dup {
			continue
		}
		seen[entry.SeriesCode] = struct{}{}
		matched = append(matched, entry.SeriesCode)
	}
	sort.Strings(matched)
	return matched
}
