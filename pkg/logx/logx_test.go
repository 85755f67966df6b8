package logx

import (
	"os"
	"testing"
)

func TestDebugToggle(t *testing.T) {
	SetDebugConfig(false)
	SetDebugDomains(nil)

	if IsDebugEnabled() {
		t.Error("expected debug disabled by default")
	}

	SetDebugConfig(true)
	if !IsDebugEnabled() {
		t.Error("expected debug enabled after SetDebugConfig(true)")
	}
	if !IsDebugEnabledForDomain("orchestrator") {
		t.Error("expected all domains enabled when no domain filter is set")
	}
}

func TestDomainFiltering(t *testing.T) {
	SetDebugConfig(true)
	SetDebugDomains([]string{"atlas", "human"})
	defer func() {
		SetDebugConfig(false)
		SetDebugDomains(nil)
	}()

	if !IsDebugEnabledForDomain("atlas") {
		t.Error("expected atlas domain enabled")
	}
	if IsDebugEnabledForDomain("persistence") {
		t.Error("expected persistence domain filtered out")
	}
}

func TestEnvironmentVariableConfiguration(t *testing.T) {
	os.Setenv("DEBUG", "1")
	os.Setenv("DEBUG_DOMAINS", "atlas,orchestrator")
	defer func() {
		os.Unsetenv("DEBUG")
		os.Unsetenv("DEBUG_DOMAINS")
		SetDebugConfig(false)
		SetDebugDomains(nil)
	}()

	initDebugFromEnv()

	if !IsDebugEnabled() {
		t.Error("expected debug enabled via DEBUG=1")
	}
	if !IsDebugEnabledForDomain("orchestrator") {
		t.Error("expected orchestrator domain enabled via DEBUG_DOMAINS")
	}
	if IsDebugEnabledForDomain("ticket") {
		t.Error("expected ticket domain filtered out")
	}
}

func TestLogBufferCapturesEntries(t *testing.T) {
	logger := NewLogger("logx-test")
	logger.Info("hello %s", "world")

	entries := GetRecentLogEntries("logx-test")
	if len(entries) == 0 {
		t.Fatal("expected at least one buffered entry")
	}
	last := entries[len(entries)-1]
	if last.Message != "hello world" {
		t.Errorf("expected message 'hello world', got %q", last.Message)
	}
	if last.Level != string(LevelInfo) {
		t.Errorf("expected level INFO, got %s", last.Level)
	}
}
