package configutil

import (
	"slices"
	"strings"
)

// Schema names the keys a provider accepts in its settings map.
type Schema struct {
	Required     []string
	Optional     []string
	AllowUnknown bool
}

// SettingsError reports required keys that are absent or blank and keys the schema
// does not know.
type SettingsError struct {
	Missing []string
	Unknown []string
}

func (e *SettingsError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, "unknown: "+strings.Join(e.Unknown, ", "))
	}
	return strings.Join(parts, "; ")
}

// Validate checks settings against the schema, matching keys the way DecodeSettings does.
// It returns a *SettingsError or nil.
func (s Schema) Validate(settings map[string]any) error {
	keys := make(map[string]string, len(s.Required)+len(s.Optional))
	for _, k := range s.Optional {
		keys[normalizeKey(k)] = ""
	}
	for _, k := range s.Required {
		keys[normalizeKey(k)] = k
	}

	present := make(map[string]bool, len(settings))
	serr := &SettingsError{}
	for k, v := range settings {
		nk := normalizeKey(k)
		required, known := keys[nk]
		switch {
		case !known && !s.AllowUnknown:
			serr.Unknown = append(serr.Unknown, k)
		case required != "" && blank(v):
			continue
		}
		present[nk] = true
	}
	for _, k := range s.Required {
		if !present[normalizeKey(k)] {
			serr.Missing = append(serr.Missing, k)
		}
	}

	if len(serr.Missing) == 0 && len(serr.Unknown) == 0 {
		return nil
	}
	slices.Sort(serr.Missing)
	slices.Sort(serr.Unknown)
	return serr
}

func blank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}
