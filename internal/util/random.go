// Package util provides small helpers shared across SalesPipe components.
package util

import (
	"math/rand/v2"
	"strings"
)

const base36Upper = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// randomString draws length characters from alphabet. Not for secrets.
func randomString(alphabet string, length int) string {
	if length <= 0 {
		return ""
	}
	var builder strings.Builder
	builder.Grow(length)
	for i := 0; i < length; i++ {
		builder.WriteByte(alphabet[rand.IntN(len(alphabet))])
	}
	return builder.String()
}

// GenerateConfirmationCode returns an uppercase base-36 code of the given length.
// Codes are unique by convention only; callers tolerate rare collisions.
func GenerateConfirmationCode(length int) string {
	return randomString(base36Upper, length)
}
