package core

import "github.com/mohae/deepcopy"

// CloneMap returns a deep copy of nested map and slice values.
func CloneMap[K comparable](src map[K]any) map[K]any {
	if src == nil {
		return nil
	}
	if copied, ok := deepcopy.Copy(src).(map[K]any); ok {
		return copied
	}
	dst := make(map[K]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// StringValue reads a string entry from loosely typed metadata.
func StringValue(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return ""
	}
}
