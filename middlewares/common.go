// Package middlewares holds optional step middlewares wired by the CLI.
package middlewares

import "reflect"

// IsEmpty reports whether the struct pointed to by i holds only zero values.
func IsEmpty(i any) bool {
	t := reflect.TypeOf(i).Elem()
	e := reflect.New(t).Interface()

	return reflect.DeepEqual(i, e)
}

// boolVal safely dereferences a *bool, returning false when nil.
func boolVal(b *bool) bool {
	if b == nil {
		return false
	}
	return *b
}

// BoolPtr returns a pointer to the given bool value.
func BoolPtr(v bool) *bool {
	return &v
}
