package state

// Field returns a derived field value if present.
func (s Snapshot) Field(key string) (any, bool) {
	v, ok := s.Fields[key]
	return v, ok
}

// StringField returns a string-typed field, or "" if absent or mistyped.
func (s Snapshot) StringField(key string) string {
	if v, ok := s.Fields[key].(string); ok {
		return v
	}
	return ""
}

// MapField returns a map-typed field, or nil if absent or mistyped.
func (s Snapshot) MapField(key string) map[string]any {
	if v, ok := s.Fields[key].(map[string]any); ok {
		return v
	}
	return nil
}

// SliceField returns a slice-typed field, or nil if absent or mistyped.
func (s Snapshot) SliceField(key string) []any {
	if v, ok := s.Fields[key].([]any); ok {
		return v
	}
	return nil
}

// IntField returns an int-typed field, tolerating float64 from JSON decoding.
func (s Snapshot) IntField(key string) (int, bool) {
	switch v := s.Fields[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
