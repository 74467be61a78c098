package groups

// Quota setting keys recognized in group settings. A zero or missing value
// means unlimited.
const (
	SettingMaxThings      = "maxThings"
	SettingMaxConnections = "maxConnections"
)

// MergeSettings merges an ancestor chain of settings maps ordered root-first.
// Later (closer) maps win per top-level key; the group's own settings are the
// last element and therefore always take precedence.
func MergeSettings(chain []map[string]any) map[string]any {
	merged := make(map[string]any)
	for _, settings := range chain {
		for k, v := range settings {
			merged[k] = v
		}
	}
	return merged
}

// QuotaFromSettings extracts an integer quota from a settings map. Returns 0
// (unlimited) when the key is absent or not numeric.
func QuotaFromSettings(settings map[string]any, key string) int {
	switch v := settings[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
