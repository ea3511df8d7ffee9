package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "debug", expected: "debug"},
		{input: "WARN", expected: "warning"},
		{input: "warning", expected: "warning"},
		{input: "error", expected: "error"},
		{input: "bogus", expected: "info"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			SetLevel(tt.input)
			if got := GetLevel(); got != tt.expected {
				t.Errorf("GetLevel() = %v, want %v", got, tt.expected)
			}
		})
	}
	SetLevel("info")
}

func TestConfigureWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "dashboard.log")

	closeFn, err := Configure(Options{Level: "info", File: path})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	Info("hello from the dashboard")
	if err := closeFn(); err != nil {
		t.Fatalf("close error = %v", err)
	}
	defer SetOutput(os.Stderr)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello from the dashboard") {
		t.Errorf("log file missing message, got %q", string(data))
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	WithFields(map[string]interface{}{"panel": "summary"}).Info("panel loaded")

	if !strings.Contains(buf.String(), "panel=summary") {
		t.Errorf("expected structured field in output, got %q", buf.String())
	}
}
