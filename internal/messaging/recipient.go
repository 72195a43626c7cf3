package messaging

import (
	"regexp"
	"strings"

	"github.com/BTreeMap/SalesPipe/internal/models"
)

// MinPhoneDigits is the shortest accepted phone number.
const MinPhoneDigits = 6

var nonDigitRegex = regexp.MustCompile(`\D`)

// CanonicalizeRecipient validates a recipient for ch and returns the form the
// stores key on: digits only for phone channels, lower-case for email.
func CanonicalizeRecipient(ch models.Channel, recipient string) (string, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return "", models.NewValidationError("recipient", "cannot be empty")
	}
	switch {
	case ch.IsPhoneChannel():
		return CanonicalizePhone(recipient)
	case ch == models.ChannelEmail:
		return canonicalizeEmail(recipient)
	}
	return "", models.NewValidationError("channel", "unknown channel %q", ch)
}

// CanonicalizePhone strips a whatsapp: prefix and every non-digit.
func CanonicalizePhone(phone string) (string, error) {
	phone = strings.TrimPrefix(strings.TrimSpace(phone), "whatsapp:")
	canonical := nonDigitRegex.ReplaceAllString(phone, "")
	if canonical == "" {
		return "", models.NewValidationError("recipient", "no digits found in %q", phone)
	}
	if len(canonical) < MinPhoneDigits {
		return "", models.NewValidationError("recipient", "%q is too short (minimum %d digits required)", canonical, MinPhoneDigits)
	}
	return canonical, nil
}

func canonicalizeEmail(addr string) (string, error) {
	addr = strings.ToLower(addr)
	if strings.Count(addr, "@") != 1 {
		return "", models.NewValidationError("recipient", "invalid email address %q", addr)
	}
	local, domain, _ := strings.Cut(addr, "@")
	if local == "" || domain == "" || strings.ContainsAny(addr, " \t") {
		return "", models.NewValidationError("recipient", "invalid email address %q", addr)
	}
	return addr, nil
}

// CanonicalPhoneOrRaw returns the canonical phone number, or the trimmed input when it does not parse.
func CanonicalPhoneOrRaw(phone string) string {
	if c, err := CanonicalizePhone(phone); err == nil {
		return c
	}
	return strings.TrimSpace(phone)
}
