package config

import (
	"os"
	"testing"
	"time"
)

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal string
		expected   string
	}{
		{"uses env value", "TEST_VAR_1", "hello", "default", "hello"},
		{"uses default when empty", "TEST_VAR_2", "", "default", "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			result := getEnvOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, result)
			}
		})
	}
}

func TestGetEnvAsIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal int
		expected   int
	}{
		{"parses integer", "TEST_INT_1", "42", 10, 42},
		{"uses default for empty", "TEST_INT_2", "", 10, 10},
		{"uses default for non-numeric", "TEST_INT_3", "abc", 10, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			result := getEnvAsIntOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, result)
			}
		})
	}
}

func TestMustGetEnv_Panics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for missing required env var")
		}
	}()

	os.Unsetenv("NONEXISTENT_REQUIRED_VAR")
	mustGetEnv("NONEXISTENT_REQUIRED_VAR")
}

func TestMustGetEnv_ReturnsValue(t *testing.T) {
	os.Setenv("TEST_REQUIRED", "value123")
	defer os.Unsetenv("TEST_REQUIRED")

	result := mustGetEnv("TEST_REQUIRED")
	if result != "value123" {
		t.Errorf("Expected 'value123', got %q", result)
	}
}

func TestGetEnvAsDurationOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal time.Duration
		expected   time.Duration
	}{
		{"parses duration", "TEST_DUR_1", "45s", time.Minute, 45 * time.Second},
		{"parses plain seconds", "TEST_DUR_2", "90", time.Minute, 90 * time.Second},
		{"uses default for empty", "TEST_DUR_3", "", time.Minute, time.Minute},
		{"uses default for garbage", "TEST_DUR_4", "soon", time.Minute, time.Minute},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				t.Setenv(tc.key, tc.envValue)
			}

			result := getEnvAsDurationOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %v, got %v", tc.expected, result)
			}
		})
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("AGENT_PROVIDER", "mock")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg := Load()
	if cfg.StoreDriver != "redis" {
		t.Errorf("Expected redis store driver, got %q", cfg.StoreDriver)
	}
	if cfg.StoreKeyPrefix != "poetica:saved_poems" {
		t.Errorf("Unexpected key prefix %q", cfg.StoreKeyPrefix)
	}
	if cfg.AgentTimeout != 60*time.Second {
		t.Errorf("Expected 60s agent timeout, got %v", cfg.AgentTimeout)
	}
	if cfg.GeminiAPIKey != "" {
		t.Errorf("Mock provider should not require a Gemini key")
	}
}

func TestLoad_PostgresRequiresDatabaseURL(t *testing.T) {
	setRequired(t)
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for missing DATABASE_URL")
		}
	}()
	Load()
}

func TestLoad_UnknownProviderPanics(t *testing.T) {
	setRequired(t)
	t.Setenv("AGENT_PROVIDER", "carrier-pigeon")

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for unknown provider")
		}
	}()
	Load()
}

func TestLoad_FileDriverRunsWithoutRedis(t *testing.T) {
	setRequired(t)
	t.Setenv("REDIS_URL", "")
	t.Setenv("STORE_DRIVER", "file")

	cfg := Load()
	if cfg.RedisURL != "" {
		t.Errorf("Expected empty REDIS_URL, got %q", cfg.RedisURL)
	}
	if cfg.StoragePath != "./data" {
		t.Errorf("Unexpected storage path %q", cfg.StoragePath)
	}
}

func TestLoad_RedisDriverRequiresRedisURL(t *testing.T) {
	setRequired(t)
	t.Setenv("REDIS_URL", "")

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for missing REDIS_URL")
		}
	}()
	Load()
}
