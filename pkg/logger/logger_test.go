package logger

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWithContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	if l := WithContext(ctx); l == nil {
		t.Fatal("WithContext() returned nil")
	}
	if l := NewSchedulerLogger(); l.Base() == nil {
		t.Fatal("SchedulerLogger.Base() returned nil")
	}
}
