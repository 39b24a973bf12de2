package common

import "unicode"

// PasswordComplexity counts how many of the four character classes (upper,
// lower, digit, punctuation) appear in the password.
func PasswordComplexity(password string) int {
	var upper, lower, digit, punct bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			punct = true
		}
	}
	count := 0
	for _, ok := range []bool{upper, lower, digit, punct} {
		if ok {
			count++
		}
	}
	return count
}
