package twilioapi

import (
	"net/http"
	"strings"

	twilioclient "github.com/twilio/twilio-go/client"
	"github.com/twilio/twilio-go/twiml"
)

// SignatureHeader carries Twilio's request signature.
const SignatureHeader = "X-Twilio-Signature"

// MessageReply renders a TwiML response with a single message.
func MessageReply(body string) (string, error) {
	return twiml.Messages([]twiml.Element{&twiml.MessagingMessage{Body: body}})
}

// EmptyReply renders a TwiML response with no messages.
func EmptyReply() (string, error) {
	return twiml.Messages([]twiml.Element{})
}

// SignatureValidator checks X-Twilio-Signature on webhook requests.
type SignatureValidator struct {
	validator twilioclient.RequestValidator
	baseURL   string
}

// NewSignatureValidator creates a validator. baseURL is the public scheme and
// host Twilio posts to, since the request seen behind a proxy may differ.
func NewSignatureValidator(authToken, baseURL string) *SignatureValidator {
	return &SignatureValidator{
		validator: twilioclient.NewRequestValidator(authToken),
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// Validate reports whether r carries a valid signature. The form must already be parsed.
func (v *SignatureValidator) Validate(r *http.Request) bool {
	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		return false
	}
	params := make(map[string]string, len(r.PostForm))
	for k, vals := range r.PostForm {
		if len(vals) > 0 {
			params[k] = vals[0]
		}
	}
	return v.validator.Validate(v.baseURL+r.URL.RequestURI(), params, signature)
}
