package testutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BTreeMap/SalesPipe/internal/genai"
	"github.com/BTreeMap/SalesPipe/internal/models"
)

func TestFakeSender(t *testing.T) {
	s := NewFakeSender()
	s.FailTimes = 1
	if _, err := s.Send(context.Background(), "15551234567", "hi", ""); err == nil {
		t.Error("expected first send to fail")
	}
	res, err := s.Send(context.Background(), "15551234567", "hi", "subj")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExternalID == "" || s.Calls() != 2 || len(s.Messages()) != 1 {
		t.Errorf("unexpected sender state: %+v calls=%d", res, s.Calls())
	}

	failing := NewFailingSender(errors.New("down"))
	if _, err := failing.Send(context.Background(), "1", "x", ""); err == nil {
		t.Error("expected failing sender to fail")
	}
}

func TestFakeGenerator(t *testing.T) {
	g := NewFakeGenerator("hello")
	out, err := g.Complete(context.Background(), []genai.Message{{Role: models.RoleUser, Content: "hi"}})
	if err != nil || out != "hello" {
		t.Fatalf("Complete = %q, %v", out, err)
	}
	if len(g.LastRequest()) != 1 {
		t.Errorf("expected recorded request")
	}
}

func TestClock(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewClock(start)
	c.Advance(time.Minute)
	if !c.Now().Equal(start.Add(time.Minute)) {
		t.Errorf("unexpected time %v", c.Now())
	}
}

func TestAssertHTTPStatus(t *testing.T) {
	tests := []struct {
		name       string
		expected   int
		actual     int
		shouldFail bool
	}{
		{"matching status codes", 200, 200, false},
		{"different status codes", 200, 404, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockT := &mockTestingT{}
			AssertHTTPStatus(mockT, tt.expected, tt.actual, "test context")
			if tt.shouldFail != mockT.failed {
				t.Errorf("expected failed=%v, got %v (%s)", tt.shouldFail, mockT.failed, mockT.errorMsg)
			}
		})
	}
}

func TestAssertJSONResponse(t *testing.T) {
	rr := httptest.NewRecorder()
	rr.WriteString(`{"status":"ok","result":1}`)
	mockT := &mockTestingT{}
	resp := AssertJSONResponse(mockT, rr, "ok")
	if mockT.failed || resp["result"].(float64) != 1 {
		t.Errorf("unexpected result: failed=%v resp=%v", mockT.failed, resp)
	}

	rr = httptest.NewRecorder()
	rr.WriteString(`{"status":"error"}`)
	mockT = &mockTestingT{}
	AssertJSONResponse(mockT, rr, "ok")
	if !mockT.failed {
		t.Error("expected mismatch to fail")
	}
}

func TestCreateHTTPRequest(t *testing.T) {
	req := CreateHTTPRequest(t, http.MethodPost, "/triggers", map[string]string{"name": "x"})
	if req.Header.Get("Content-Type") != "application/json" {
		t.Errorf("expected JSON content type")
	}
	var body map[string]string
	buf := make([]byte, req.ContentLength)
	req.Body.Read(buf)
	MustUnmarshalJSON(t, buf, &body)
	if body["name"] != "x" {
		t.Errorf("unexpected body %v", body)
	}
}

// mockTestingT implements TB for testing our test helpers
type mockTestingT struct {
	failed   bool
	errorMsg string
}

func (m *mockTestingT) Helper() {}

func (m *mockTestingT) Errorf(format string, args ...interface{}) {
	m.failed = true
	m.errorMsg = fmt.Sprintf(format, args...)
}

func (m *mockTestingT) Fatalf(format string, args ...interface{}) {
	m.failed = true
	m.errorMsg = fmt.Sprintf(format, args...)
}
