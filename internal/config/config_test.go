package config

import "testing"

func TestLoadPipelineDefaults(t *testing.T) {
	t.Setenv("MAX_CONCURRENT_EXTRACTIONS", "")
	t.Setenv("LLM_REQUESTS_PER_SECOND", "")
	t.Setenv("LLM_MAX_ATTEMPTS", "")
	t.Setenv("NATS_SUBJECT", "")

	cfg := Load()
	if cfg.MaxConcurrentExtractions != 4 {
		t.Fatalf("expected default concurrent extractions 4, got %d", cfg.MaxConcurrentExtractions)
	}
	if cfg.LLMRequestsPerSecond != 2 {
		t.Fatalf("expected default requests per second 2, got %v", cfg.LLMRequestsPerSecond)
	}
	if cfg.LLMMaxAttempts != 1 {
		t.Fatalf("expected default max attempts 1, got %d", cfg.LLMMaxAttempts)
	}
	if cfg.NATSSubject != "loandocs.pipeline" {
		t.Fatalf("expected default subject loandocs.pipeline, got %q", cfg.NATSSubject)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("MAX_CONCURRENT_EXTRACTIONS", "8")
	t.Setenv("LLM_REQUESTS_PER_SECOND", "0.5")
	t.Setenv("BREAKER_FAILURE_RATIO", "0.8")
	t.Setenv("GEMINI_MODEL", "gemini-2.5-pro")

	cfg := Load()
	if cfg.MaxConcurrentExtractions != 8 {
		t.Fatalf("expected concurrent extractions 8, got %d", cfg.MaxConcurrentExtractions)
	}
	if cfg.LLMRequestsPerSecond != 0.5 {
		t.Fatalf("expected requests per second 0.5, got %v", cfg.LLMRequestsPerSecond)
	}
	if cfg.BreakerFailureRatio != 0.8 {
		t.Fatalf("expected breaker ratio 0.8, got %v", cfg.BreakerFailureRatio)
	}
	if cfg.GeminiModel != "gemini-2.5-pro" {
		t.Fatalf("expected model override, got %q", cfg.GeminiModel)
	}
}

func TestLoadIgnoresUnparseableNumbers(t *testing.T) {
	t.Setenv("LLM_MAX_ATTEMPTS", "many")
	t.Setenv("BREAKER_FAILURE_RATIO", "mostly")

	cfg := Load()
	if cfg.LLMMaxAttempts != 1 {
		t.Fatalf("expected fallback max attempts 1, got %d", cfg.LLMMaxAttempts)
	}
	if cfg.BreakerFailureRatio != 0.6 {
		t.Fatalf("expected fallback ratio 0.6, got %v", cfg.BreakerFailureRatio)
	}
}
