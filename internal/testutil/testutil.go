// Package testutil provides fakes and helpers shared by SalesPipe tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/BTreeMap/SalesPipe/internal/genai"
	"github.com/BTreeMap/SalesPipe/internal/models"
)

// TB is the subset of testing.TB used by the assertion helpers.
type TB interface {
	Helper()
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// SentMessage is one call captured by FakeSender.
type SentMessage struct {
	Recipient string
	Body      string
	Subject   string
}

// FakeSender records sends. Err, when set, fails every send; FailTimes fails
// only the first N sends.
type FakeSender struct {
	mu        sync.Mutex
	Sent      []SentMessage
	Err       error
	FailTimes int
	calls     int
}

// NewFakeSender creates a FakeSender that always succeeds.
func NewFakeSender() *FakeSender {
	return &FakeSender{}
}

// NewFailingSender creates a FakeSender that always fails with err.
func NewFailingSender(err error) *FakeSender {
	return &FakeSender{Err: err}
}

// Send records the message or returns the configured failure.
func (f *FakeSender) Send(ctx context.Context, recipient, body, subject string) (models.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.Err != nil {
		return models.SendResult{}, f.Err
	}
	if f.calls <= f.FailTimes {
		return models.SendResult{}, errors.New("fake sender: transient failure")
	}
	f.Sent = append(f.Sent, SentMessage{Recipient: recipient, Body: body, Subject: subject})
	return models.SendResult{ExternalID: fmt.Sprintf("fake-%d", len(f.Sent)), Status: "sent"}, nil
}

// Messages returns a copy of the recorded sends.
func (f *FakeSender) Messages() []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentMessage(nil), f.Sent...)
}

// Calls returns how many times Send was invoked.
func (f *FakeSender) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// FakeGenerator returns canned replies and records the context it was given.
type FakeGenerator struct {
	mu       sync.Mutex
	Reply    string
	Err      error
	Requests [][]genai.Message
}

// NewFakeGenerator creates a generator that always returns reply.
func NewFakeGenerator(reply string) *FakeGenerator {
	return &FakeGenerator{Reply: reply}
}

// Complete records messages and returns the canned reply or error.
func (g *FakeGenerator) Complete(ctx context.Context, messages []genai.Message) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Requests = append(g.Requests, append([]genai.Message(nil), messages...))
	if g.Err != nil {
		return "", g.Err
	}
	return g.Reply, nil
}

// LastRequest returns the most recent context, or nil.
func (g *FakeGenerator) LastRequest() []genai.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.Requests) == 0 {
		return nil
	}
	return g.Requests[len(g.Requests)-1]
}

// Clock is a manually advanced clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a Clock at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t.UTC()}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t TB, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes JSON response and validates the status field.
func AssertJSONResponse(t TB, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
		return nil
	}
	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Errorf("response missing or invalid 'status' field")
	}
	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t TB, method, url string, body interface{}) *http.Request {
	t.Helper()
	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		reqBody = bytes.NewBuffer(MustMarshalJSON(t, body))
	}
	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
		return nil
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t TB, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t TB, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
