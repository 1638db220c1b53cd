package logger

import (
	"testing"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("test")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	// Ensure environment variables do not override the provided level
	t.Setenv(EnvLogLevel, "")

	log := Logger()
	if err := log.Configure("invalid", "json", "stderr", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestConfigureInvalidFormat(t *testing.T) {
	t.Setenv(EnvLogLevel, "")

	log := Logger()
	if err := log.Configure("info", "xml", "stderr", 0); err == nil {
		t.Fatalf("expected error for invalid format")
	}
}

func TestEnvOverridesLevel(t *testing.T) {
	t.Setenv(EnvLogLevel, "debug")

	log := Logger()
	if err := log.Configure("error", "json", "stderr", 0); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if log.Logger.GetLevel().String() != "debug" {
		t.Fatalf("env variable must win: level = %s", log.Logger.GetLevel())
	}
}
