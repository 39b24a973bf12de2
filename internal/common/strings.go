package common

import "strings"

// Helper function to check if a string contains a substring (case-insensitive)
func ContainsInsensitive(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// LastSegment returns the final element of a slash separated path such as
// an ARM resource ID.
func LastSegment(path string) string {
	path = strings.TrimRight(path, "/")
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

// Capitalize upper-cases the first letter and lower-cases the rest.
func Capitalize(s string) string {
	if len(s) == 0 {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
