package env

import "testing"

func TestGetFallsBackWhenUnset(t *testing.T) {
	t.Setenv("MARKETREPORTS_ENV_TEST", "")
	if got := Get("MARKETREPORTS_ENV_TEST", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}

	t.Setenv("MARKETREPORTS_ENV_TEST", "set")
	if got := Get("MARKETREPORTS_ENV_TEST", "fallback"); got != "set" {
		t.Fatalf("expected set, got %q", got)
	}
}

func TestLogFormat(t *testing.T) {
	t.Setenv("MARKETREPORTS_LOG_FORMAT", "")
	if got := LogFormat(); got != "json" {
		t.Fatalf("expected json default, got %q", got)
	}
	t.Setenv("MARKETREPORTS_LOG_FORMAT", "console")
	if got := LogFormat(); got != "console" {
		t.Fatalf("expected console, got %q", got)
	}
}
