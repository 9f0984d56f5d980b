package payload

import "dario.cat/mergo"

// applyDefaults fills missing object properties from their schema "default"
// values, recursing into nested objects and array items. data is modified in
// place and returned.
func applyDefaults(schema map[string]any, data any) any {
	if schema == nil {
		return data
	}

	switch value := data.(type) {
	case map[string]any:
		properties, _ := schema["properties"].(map[string]any)

		for name, raw := range properties {
			propertySchema, ok := raw.(map[string]any)
			if !ok {
				continue
			}

			current, exists := value[name]
			if !exists {
				defaultValue, hasDefault := propertySchema["default"]
				if !hasDefault {
					continue
				}

				current = DeepCopyValue(defaultValue)
			}

			value[name] = applyDefaults(propertySchema, current)
		}

		return value
	case []any:
		items, ok := schema["items"].(map[string]any)
		if !ok {
			return value
		}

		for i := range value {
			value[i] = applyDefaults(items, value[i])
		}

		return value
	default:
		return data
	}
}

// DeepCopy returns an independent copy of a decoded JSON object.
func DeepCopy(source map[string]any) map[string]any {
	if source == nil {
		return nil
	}

	copied, _ := DeepCopyValue(source).(map[string]any)

	return copied
}

// DeepCopyValue copies maps and slices recursively; scalars are returned as is.
func DeepCopyValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		copied := make(map[string]any, len(typed))
		for key, nested := range typed {
			copied[key] = DeepCopyValue(nested)
		}

		return copied
	case []any:
		copied := make([]any, len(typed))
		for i, nested := range typed {
			copied[i] = DeepCopyValue(nested)
		}

		return copied
	default:
		return value
	}
}

// Merge deep-merges overlay on top of base and returns a new map. Values in
// overlay win on conflict; nested objects are merged key by key.
func Merge(base, overlay map[string]any) map[string]any {
	merged := DeepCopy(base)
	if merged == nil {
		merged = make(map[string]any, len(overlay))
	}

	if len(overlay) == 0 {
		return merged
	}

	// Both sides are fresh copies and map merging never fails.
	_ = mergo.Merge(&merged, DeepCopy(overlay), mergo.WithOverride)

	return merged
}
