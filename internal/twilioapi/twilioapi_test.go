package twilioapi

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
)

func TestNewClient_RequiresCredentials(t *testing.T) {
	if _, err := NewClient(WithFromSMS("+15550001111")); err == nil {
		t.Error("expected error without credentials")
	}
	if _, err := NewClient(WithAccountSID("AC1"), WithAuthToken("tok")); err == nil {
		t.Error("expected error without any sender number")
	}
	if _, err := NewClient(WithAccountSID("AC1"), WithAuthToken("tok"), WithFromWhatsApp("+15550001111")); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSendWhatsApp_AddsPrefixes(t *testing.T) {
	mock := NewMockClient()
	c := NewClientWithMock(mock, WithFromWhatsApp("+15550001111"))

	res, err := c.WhatsAppSender().Send(context.Background(), "919876543210", "Hello", "ignored")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if res.ExternalID == "" || res.Status != "queued" {
		t.Errorf("unexpected result %+v", res)
	}
	sent := mock.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sent))
	}
	if sent[0].To != "whatsapp:+919876543210" || sent[0].From != "whatsapp:+15550001111" {
		t.Errorf("unexpected addressing: %+v", sent[0])
	}
}

func TestSendSMS(t *testing.T) {
	mock := NewMockClient()
	c := NewClientWithMock(mock, WithFromSMS("+15550002222"))
	if _, err := c.SMSSender().Send(context.Background(), "15551234567", "Hi", ""); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got := mock.Sent()[0].To; got != "+15551234567" {
		t.Errorf("expected +15551234567, got %q", got)
	}
	if _, err := c.SendWhatsApp(context.Background(), "15551234567", "Hi"); err == nil {
		t.Error("expected error when WhatsApp number is not configured")
	}
}

func TestSend_PropagatesError(t *testing.T) {
	mock := NewMockClient()
	mock.Err = errors.New("twilio down")
	c := NewClientWithMock(mock, WithFromSMS("+15550002222"))
	_, err := c.SendSMS(context.Background(), "15551234567", "Hi")
	if err == nil || !strings.Contains(err.Error(), "twilio down") {
		t.Errorf("expected wrapped error, got %v", err)
	}
}

func TestMessageReply(t *testing.T) {
	out, err := MessageReply("Thanks & see you")
	if err != nil {
		t.Fatalf("MessageReply failed: %v", err)
	}
	if !strings.Contains(out, "<Response>") || !strings.Contains(out, "<Message>") {
		t.Errorf("unexpected TwiML: %s", out)
	}
	if !strings.Contains(out, "Thanks &amp; see you") {
		t.Errorf("expected escaped body in TwiML: %s", out)
	}
}

func sign(token, fullURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params.Get(k))
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestSignatureValidator(t *testing.T) {
	form := url.Values{"From": {"whatsapp:+15551234567"}, "Body": {"hi"}, "MessageSid": {"SM1"}}
	newReq := func(sig string) *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(form.Encode()))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if sig != "" {
			r.Header.Set(SignatureHeader, sig)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm failed: %v", err)
		}
		return r
	}

	v := NewSignatureValidator("secret", "https://sales.example.com/")
	good := sign("secret", "https://sales.example.com/webhook/whatsapp", form)
	if !v.Validate(newReq(good)) {
		t.Error("expected valid signature to pass")
	}
	if v.Validate(newReq("bogus")) {
		t.Error("expected bad signature to fail")
	}
	if v.Validate(newReq("")) {
		t.Error("expected missing signature to fail")
	}
}
