package config

// MergeSettings merges two Settings objects.
// Values from 'overlay' override values in 'base'.
// Scalars and pointers win when set; maps are merged key by key.
func MergeSettings(base, overlay *Settings) *Settings {
	if base == nil {
		return overlay
	}
	if overlay == nil {
		return base
	}

	result := NewSettings()

	result.Engine = mergeString(base.Engine, overlay.Engine)
	result.Persona = mergeString(base.Persona, overlay.Persona)
	result.AspectRatio = mergeString(base.AspectRatio, overlay.AspectRatio)
	result.Voice = mergeString(base.Voice, overlay.Voice)

	result.Search = mergeBool(base.Search, overlay.Search)
	result.Thinking = mergeBool(base.Thinking, overlay.Thinking)
	result.Turbo = mergeBool(base.Turbo, overlay.Turbo)

	result.Fallback = FallbackSettings{
		Provider: mergeString(base.Fallback.Provider, overlay.Fallback.Provider),
		Model:    mergeString(base.Fallback.Model, overlay.Fallback.Model),
	}

	result.History = HistorySettings{
		Path:       mergeString(base.History.Path, overlay.History.Path),
		QuotaBytes: base.History.QuotaBytes,
		Debounce:   mergeString(base.History.Debounce, overlay.History.Debounce),
		Disabled:   mergeBool(base.History.Disabled, overlay.History.Disabled),
	}
	if overlay.History.QuotaBytes != nil {
		result.History.QuotaBytes = overlay.History.QuotaBytes
	}

	// Merge Env (map merge)
	result.Env = mergeStringMaps(base.Env, overlay.Env)

	return result
}

func mergeString(base, overlay string) string {
	if overlay != "" {
		return overlay
	}
	return base
}

func mergeBool(base, overlay *bool) *bool {
	if overlay != nil {
		return overlay
	}
	return base
}

// mergeStringMaps merges two map[string]string.
func mergeStringMaps(base, overlay map[string]string) map[string]string {
	result := make(map[string]string)

	// Copy base
	for k, v := range base {
		result[k] = v
	}

	// Overlay
	for k, v := range overlay {
		result[k] = v
	}

	return result
}
