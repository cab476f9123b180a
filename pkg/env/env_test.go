package env

import "testing"

func TestGetPrefersPrefixedKey(t *testing.T) {
	t.Setenv("LOG_FORMAT", "console")
	if got := Get("LOG_FORMAT", "json"); got != "console" {
		t.Fatalf("expected bare key fallback, got %q", got)
	}
	t.Setenv("VENDEO_LOG_FORMAT", "json")
	if got := Get("LOG_FORMAT", "console"); got != "json" {
		t.Fatalf("expected prefixed key to win, got %q", got)
	}
}

func TestGetFallsBack(t *testing.T) {
	t.Setenv("VENDEO_WORKER_ID", "  ")
	if got := Get("VENDEO_WORKER_ID", "worker-0"); got != "worker-0" {
		t.Fatalf("expected fallback for blank value, got %q", got)
	}
}
