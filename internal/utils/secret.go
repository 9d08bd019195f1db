package utils

import "strings"

const maskedSecret = "*****"

// MaskSecret keeps a short prefix of long secrets for log correlation
func MaskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) < 12:
		return maskedSecret
	default:
		return s[:4] + strings.Repeat("*", 5)
	}
}
