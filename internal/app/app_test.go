package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestInit_WithDefaults_Succeeds(t *testing.T) {
	setTestEnv(t)

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg == nil {
		t.Fatal("expected non-nil config")
	}

	if cfg.ServerPort != "3000" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "3000")
	}

	// slogのデフォルトロガーがJSON出力になっていること
	slog.Default().Info("init test")
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log output, got error: %v\nraw: %s", err, buf.String())
	}
	if entry["msg"] != "init test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "init test")
	}
}

func TestInit_AppliesLogLevel(t *testing.T) {
	setTestEnv(t)
	t.Setenv("LOG_LEVEL", "warn")

	var buf bytes.Buffer
	if _, err := Init(&buf); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	slog.Default().Info("should be filtered")
	if buf.Len() != 0 {
		t.Errorf("info log should be filtered at warn level, got %s", buf.String())
	}
}

func TestInit_WithInvalidConfig_ReturnsError(t *testing.T) {
	setTestEnv(t)
	t.Setenv("GITHUB_REPO", "not-a-repository")

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err == nil {
		t.Fatal("expected error for invalid GITHUB_REPO, got nil")
	}
	if cfg != nil {
		t.Error("expected nil config on error")
	}
}

func TestBuildComponents_WithoutCredentials(t *testing.T) {
	setTestEnv(t)

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	c, err := buildComponents(t.Context(), cfg, slog.Default())
	if err != nil {
		t.Fatalf("buildComponents: %v", err)
	}
	defer c.rateLimiter.Stop()

	if len(c.feeds.FeedIDs()) == 0 {
		t.Error("expected built-in feeds to be registered")
	}
	if c.videos.Configured() {
		t.Error("youtube should be unconfigured without API key")
	}
	if c.summarizer.Configured() {
		t.Error("summarizer should be unconfigured without API key")
	}
	if c.feedback.Configured() {
		t.Error("feedback should be unconfigured without token")
	}
	if c.summaries.Path() != cfg.SummaryCachePath {
		t.Errorf("summary path = %q, want %q", c.summaries.Path(), cfg.SummaryCachePath)
	}
}

func TestBuildComponents_InvalidFeedsConfig(t *testing.T) {
	setTestEnv(t)
	t.Setenv("FEEDS_CONFIG_PATH", t.TempDir()+"/missing.yaml")

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	if _, err := buildComponents(t.Context(), cfg, slog.Default()); err == nil {
		t.Fatal("expected error for missing feeds config")
	}
}
