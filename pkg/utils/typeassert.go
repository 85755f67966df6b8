// Package utils provides utility functions for type assertions, token counting,
// and other common operations.
package utils

import "fmt"

// SafeAssert safely performs type assertion and returns the value and success status.
func SafeAssert[T any](value any) (T, bool) {
	if v, ok := value.(T); ok {
		return v, true
	}
	var zero T
	return zero, false
}

// MustAssert performs type assertion and panics with descriptive message if it fails.
func MustAssert[T any](value any, context string) T {
	if v, ok := value.(T); ok {
		return v
	}
	panic(fmt.Sprintf("type assertion failed in %s: expected %T, got %T", context, *new(T), value))
}

// AssertMapStringAny safely asserts a value as map[string]any.
func AssertMapStringAny(value any) (map[string]any, error) {
	if m, ok := value.(map[string]any); ok {
		return m, nil
	}
	return nil, fmt.Errorf("expected map[string]any, got %T", value)
}

// GetMapField safely gets a field from a map[string]any and asserts its type.
func GetMapField[T any](m map[string]any, key string) (T, error) {
	var zero T
	value, exists := m[key]
	if !exists {
		return zero, fmt.Errorf("field '%s' not found in map", key)
	}

	if typedValue, ok := value.(T); ok {
		return typedValue, nil
	}

	return zero, fmt.Errorf("field '%s' expected type %T, got %T", key, zero, value)
}

// GetMapFieldOr safely gets a field from a map[string]any with a default value.
func GetMapFieldOr[T any](m map[string]any, key string, defaultValue T) T {
	if value, err := GetMapField[T](m, key); err == nil {
		return value
	}
	return defaultValue
}

// FieldGetter represents any object that exposes named payload fields.
type FieldGetter interface {
	Field(key string) (any, bool)
}

// GetField safely gets and asserts a payload field.
func GetField[T any](fg FieldGetter, key string) (T, bool) {
	var zero T
	if value, exists := fg.Field(key); exists {
		if typedValue, ok := value.(T); ok {
			return typedValue, true
		}
	}
	return zero, false
}

// GetFieldOr safely gets a payload field with a default.
func GetFieldOr[T any](fg FieldGetter, key string, defaultValue T) T {
	if value, exists := GetField[T](fg, key); exists {
		return value
	}
	return defaultValue
}
