package genai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/openai/openai-go"

	"github.com/BTreeMap/SalesPipe/internal/models"
)

// mockChatService implements chatService for testing. Responses and errors
// are consumed in order; the last entry repeats.
type mockChatService struct {
	resps  []openai.ChatCompletion
	errs   []error
	calls  int
	models []string
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	i := m.calls
	m.calls++
	m.models = append(m.models, string(params.Model))
	var err error
	if len(m.errs) > 0 {
		err = m.errs[min(i, len(m.errs)-1)]
	}
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	if len(m.resps) == 0 {
		return openai.ChatCompletion{}, nil
	}
	return m.resps[min(i, len(m.resps)-1)], nil
}

func completion(content string) openai.ChatCompletion {
	return openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func rateLimitError() error {
	req := httptest.NewRequest(http.MethodPost, "https://api.example.com/v1/chat/completions", nil)
	return &openai.Error{
		StatusCode: http.StatusTooManyRequests,
		Request:    req,
		Response:   &http.Response{StatusCode: http.StatusTooManyRequests, Request: req},
	}
}

func newTestClient(chat chatService) (*Client, *[]time.Duration) {
	var slept []time.Duration
	c := &Client{
		chat:          chat,
		model:         "primary-model",
		fallbackModel: "fallback-model",
		temperature:   DefaultTemperature,
		maxTokens:     DefaultMaxTokens,
		sleep: func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}
	return c, &slept
}

func TestComplete_Success(t *testing.T) {
	mock := &mockChatService{resps: []openai.ChatCompletion{completion("Hello World")}}
	client, _ := newTestClient(mock)
	out, err := client.Complete(context.Background(), []Message{
		{Role: models.RoleSystem, Content: "system prompt"},
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "hello"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "Hello World" {
		t.Errorf("expected 'Hello World', got '%s'", out)
	}
	if mock.calls != 1 || mock.models[0] != "primary-model" {
		t.Errorf("expected one call on the primary model, got %v", mock.models)
	}
}

func TestComplete_ServiceErrorIsNotRetried(t *testing.T) {
	mock := &mockChatService{errs: []error{errors.New("service failure")}}
	client, slept := newTestClient(mock)
	_, err := client.Complete(context.Background(), []Message{{Role: models.RoleUser, Content: "hi"}})
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
	if mock.calls != 1 || len(*slept) != 0 {
		t.Errorf("non rate-limit errors must return immediately, calls=%d sleeps=%d", mock.calls, len(*slept))
	}
}

func TestComplete_NoChoices(t *testing.T) {
	mock := &mockChatService{resps: []openai.ChatCompletion{{Choices: []openai.ChatCompletionChoice{}}}}
	client, _ := newTestClient(mock)
	_, err := client.Complete(context.Background(), []Message{{Role: models.RoleUser, Content: "hi"}})
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected no choices returned error, got %v", err)
	}
}

func TestComplete_RateLimitFallsBackToSecondaryModel(t *testing.T) {
	mock := &mockChatService{
		errs:  []error{rateLimitError(), rateLimitError(), nil},
		resps: []openai.ChatCompletion{completion("from fallback")},
	}
	client, slept := newTestClient(mock)
	out, err := client.Complete(context.Background(), []Message{{Role: models.RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("expected success on the third attempt, got %v", err)
	}
	if out != "from fallback" {
		t.Errorf("unexpected output %q", out)
	}
	want := []string{"primary-model", "primary-model", "fallback-model"}
	for i, m := range want {
		if mock.models[i] != m {
			t.Errorf("attempt %d used %q, want %q", i+1, mock.models[i], m)
		}
	}
	if len(*slept) != 2 || (*slept)[0] != 2*time.Second || (*slept)[1] != 4*time.Second {
		t.Errorf("unexpected backoff sequence %v", *slept)
	}
}

func TestComplete_RateLimitExhausted(t *testing.T) {
	mock := &mockChatService{errs: []error{rateLimitError()}}
	client, _ := newTestClient(mock)
	_, err := client.Complete(context.Background(), []Message{{Role: models.RoleUser, Content: "hi"}})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if mock.calls != MaxAttempts {
		t.Errorf("expected %d attempts, got %d", MaxAttempts, mock.calls)
	}
}

func TestNewClient_NoKey(t *testing.T) {
	_, err := NewClient()
	if err == nil {
		t.Error("expected error when API key not provided, got nil")
	}
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"), WithBaseURL("https://api.groq.com/openai/v1"), WithModel("llama"), WithFallbackModel(""))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli.model != "llama" || cli.fallbackModel != "llama" {
		t.Errorf("empty fallback should reuse the primary model, got %q/%q", cli.model, cli.fallbackModel)
	}
	if cli.maxTokens != DefaultMaxTokens || cli.temperature != DefaultTemperature {
		t.Errorf("unexpected defaults: %d %v", cli.maxTokens, cli.temperature)
	}
}

func TestNewClient_SamplingOptions(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"), WithTemperature(0.2), WithMaxTokens(64))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if cli.temperature != 0.2 || cli.maxTokens != 64 {
		t.Errorf("options not applied: temperature=%v max_tokens=%d", cli.temperature, cli.maxTokens)
	}
}
