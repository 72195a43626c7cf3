package twilioapi

import (
	"fmt"
	"sync"

	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// MockClient records CreateMessage calls instead of hitting the Twilio API.
type MockClient struct {
	mu       sync.Mutex
	Messages []SentMessage
	Err      error
}

// SentMessage is a message captured by MockClient.
type SentMessage struct {
	To   string
	From string
	Body string
}

// NewMockClient creates an empty MockClient.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// CreateMessage records params and returns a fake SID.
func (m *MockClient) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	msg := SentMessage{}
	if params.To != nil {
		msg.To = *params.To
	}
	if params.From != nil {
		msg.From = *params.From
	}
	if params.Body != nil {
		msg.Body = *params.Body
	}
	m.Messages = append(m.Messages, msg)
	sid := fmt.Sprintf("SM%032d", len(m.Messages))
	status := "queued"
	return &twilioApi.ApiV2010Message{Sid: &sid, Status: &status}, nil
}

// Sent returns a copy of the recorded messages.
func (m *MockClient) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.Messages...)
}

// NewClientWithMock builds a Client that delivers into mock.
func NewClientWithMock(mock *MockClient, opts ...Option) *Client {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	return newClient(mock, cfg)
}
