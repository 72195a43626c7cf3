package util

import (
	"testing"
	"time"
)

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"yes", false, true},
		{"ON", false, true},
		{"0", true, false},
		{"off", true, false},
		{"maybe", true, true},
	}
	for _, tt := range tests {
		t.Setenv("SALESPIPE_TEST_BOOL", tt.value)
		if got := ParseBoolEnv("SALESPIPE_TEST_BOOL", tt.def); got != tt.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.want)
		}
	}
}

func TestParseIntEnv(t *testing.T) {
	t.Setenv("SALESPIPE_TEST_INT", "42")
	if got := ParseIntEnv("SALESPIPE_TEST_INT", 7); got != 42 {
		t.Errorf("got %d, want 42", got)
	}
	t.Setenv("SALESPIPE_TEST_INT", "forty")
	if got := ParseIntEnv("SALESPIPE_TEST_INT", 7); got != 7 {
		t.Errorf("invalid value should fall back, got %d", got)
	}
}

func TestParseDurationEnv(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 10 * time.Second},
		{"30", 30 * time.Second},
		{"1m30s", 90 * time.Second},
		{"-5", 10 * time.Second},
		{"soon", 10 * time.Second},
	}
	for _, tt := range tests {
		t.Setenv("SALESPIPE_TEST_DURATION", tt.value)
		if got := ParseDurationEnv("SALESPIPE_TEST_DURATION", 10*time.Second); got != tt.want {
			t.Errorf("ParseDurationEnv(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
