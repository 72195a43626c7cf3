package email

import (
	"context"
	"errors"
	"testing"

	"github.com/resend/resend-go/v2"
)

type fakeEmails struct {
	last *resend.SendEmailRequest
	err  error
}

func (f *fakeEmails) SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
	f.last = params
	if f.err != nil {
		return nil, f.err
	}
	return &resend.SendEmailResponse{Id: "email-123"}, nil
}

func TestSend(t *testing.T) {
	fake := &fakeEmails{}
	c := newClient(fake, Opts{FromEmail: "sales@example.com", FromName: "SalesPipe"})
	res, err := c.Send(context.Background(), "lead@example.com", "Hello", "Spring offer")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if res.ExternalID != "email-123" {
		t.Errorf("expected external id from Resend, got %q", res.ExternalID)
	}
	if fake.last.From != "SalesPipe <sales@example.com>" {
		t.Errorf("unexpected from %q", fake.last.From)
	}
	if len(fake.last.To) != 1 || fake.last.To[0] != "lead@example.com" || fake.last.Text != "Hello" {
		t.Errorf("unexpected request %+v", fake.last)
	}
}

func TestSend_DefaultsSubjectAndSender(t *testing.T) {
	fake := &fakeEmails{}
	c := newClient(fake, Opts{})
	if _, err := c.Send(context.Background(), "lead@example.com", "Hello", " "); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if fake.last.Subject != DefaultSubject || fake.last.From != DefaultFromEmail {
		t.Errorf("unexpected defaults: %q / %q", fake.last.Subject, fake.last.From)
	}
}

func TestSend_Error(t *testing.T) {
	c := newClient(&fakeEmails{err: errors.New("quota")}, Opts{})
	if _, err := c.Send(context.Background(), "lead@example.com", "Hello", "Hi"); err == nil {
		t.Error("expected error")
	}
}

func TestNewClient_RequiresKey(t *testing.T) {
	if _, err := NewClient(); err == nil {
		t.Error("expected error without API key")
	}
	if _, err := NewClient(WithAPIKey("re_test"), WithFromEmail("a@b.co")); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
