package genai

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/openai/openai-go"

	"github.com/BTreeMap/SalesPipe/internal/models"
)

// Test the debug logging functionality
func TestDebugLogging(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "genai_debug_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	client, _ := newTestClient(&mockChatService{resps: []openai.ChatCompletion{completion("Test response")}})
	client.debugMode = true
	client.stateDir = tempDir

	if _, err := client.Complete(context.Background(), []Message{{Role: models.RoleUser, Content: "hi"}}); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	debugDir := filepath.Join(tempDir, "debug")
	files, err := os.ReadDir(debugDir)
	if err != nil {
		t.Fatalf("Failed to read debug directory: %v", err)
	}
	if len(files) == 0 {
		t.Fatalf("No debug files were created")
	}

	content, err := os.ReadFile(filepath.Join(debugDir, files[0].Name()))
	if err != nil {
		t.Fatalf("Failed to read debug file: %v", err)
	}
	var logEntry map[string]interface{}
	if err := json.Unmarshal(content, &logEntry); err != nil {
		t.Fatalf("Failed to unmarshal debug log: %v", err)
	}
	for _, field := range []string{"timestamp", "method", "model", "params", "response"} {
		if _, exists := logEntry[field]; !exists {
			t.Errorf("Required field '%s' missing from debug log", field)
		}
	}
	if logEntry["model"] != "primary-model" {
		t.Errorf("Expected model 'primary-model', got %v", logEntry["model"])
	}
}

// Test that debug logging is disabled when debug mode is false
func TestDebugLoggingDisabled(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "genai_debug_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	client, _ := newTestClient(&mockChatService{resps: []openai.ChatCompletion{completion("Test response")}})
	client.stateDir = tempDir

	if _, err := client.Complete(context.Background(), []Message{{Role: models.RoleUser, Content: "hi"}}); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "debug")); !os.IsNotExist(err) {
		t.Errorf("Debug directory should not be created when debug mode is disabled")
	}
}
