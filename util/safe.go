// Package util holds small pointer helpers for the optional fields of AWS SDK shapes.
package util

// Safe returns the value behind p, or the zero value if p is nil.
func Safe[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

// SafeString returns empty string if nil
func SafeString(input *string) string {
	return Safe(input)
}

// Ref returns a reference to v.
func Ref[T any](v T) *T {
	return &v
}

// RefNonEmpty returns a reference to input, or nil if it is empty.
func RefNonEmpty(input string) *string {
	if input == "" {
		return nil
	}
	return &input
}
