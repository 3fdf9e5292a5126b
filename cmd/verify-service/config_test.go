package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dailycode/internal/verify/model"
	"dailycode/internal/verify/sandbox"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "verify_service.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
database:
  driver: postgres
  dsn: ${VERIFY_TEST_DSN}
redis:
  addr: 127.0.0.1:6379
auth:
  jwtSecret: ${VERIFY_TEST_SECRET}
kafka:
  brokers: [127.0.0.1:9092]
`

func TestLoadAppConfigExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("VERIFY_TEST_DSN", "postgres://verify@localhost/dailycode")
	t.Setenv("VERIFY_TEST_SECRET", "s3cret")

	cfg, err := loadAppConfig(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("loadAppConfig: %v", err)
	}
	if cfg.Database.DSN != "postgres://verify@localhost/dailycode" || cfg.Auth.JWTSecret != "s3cret" {
		t.Fatalf("env not expanded: %+v %+v", cfg.Database, cfg.Auth)
	}
	if cfg.Server.Addr != defaultHTTPAddr || cfg.Remote.BaseURL != defaultPistonURL {
		t.Fatalf("server/remote defaults = %q %q", cfg.Server.Addr, cfg.Remote.BaseURL)
	}
	if cfg.Worker.PoolSize != 4 || cfg.Local.TestTimeout != 2*time.Second || cfg.Remote.Timeout != 15*time.Second {
		t.Fatalf("worker/local/remote defaults = %+v %+v %+v", cfg.Worker, cfg.Local, cfg.Remote)
	}
	if cfg.Kafka.JobTopic != "verify.jobs" || cfg.Kafka.CompletionTopic != "verify.completion" || cfg.Kafka.PoolRetryMax != 5 {
		t.Fatalf("kafka defaults = %+v", cfg.Kafka)
	}
	policy, err := cfg.Rewards.policy()
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	if policy.XPPerProblem != 50 || policy.StreakBonusXP != 25 || policy.DailyTarget != 2 || policy.FreeHintsPerDay != 3 {
		t.Fatalf("policy = %+v", policy)
	}
	if policy.Location.String() != "UTC" {
		t.Fatalf("location = %v", policy.Location)
	}
}

func TestLoadAppConfigLanguageOverrides(t *testing.T) {
	t.Setenv("VERIFY_TEST_DSN", "dsn")
	t.Setenv("VERIFY_TEST_SECRET", "s")
	body := minimalConfig + `
languages:
  - id: py
    backend: remote
    runtime: python
    version: 3.12.0
    fileName: solution.py
`
	cfg, err := loadAppConfig(writeConfig(t, body))
	if err != nil {
		t.Fatalf("loadAppConfig: %v", err)
	}
	registry, err := cfg.registry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	spec, ok := registry.Lookup(model.LanguagePython)
	if !ok || spec.Version != "3.12.0" || spec.FileName != "solution.py" {
		t.Fatalf("python spec = %+v", spec)
	}
	if js, ok := registry.Lookup(model.LanguageJavaScript); !ok || js.Backend != sandbox.BackendLocal {
		t.Fatalf("javascript spec = %+v", js)
	}
}

func TestLoadAppConfigRejects(t *testing.T) {
	t.Setenv("VERIFY_TEST_DSN", "dsn")
	t.Setenv("VERIFY_TEST_SECRET", "s")

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "missing dsn", body: "redis:\n  addr: x\n", want: "dsn"},
		{name: "no auth", body: "database:\n  dsn: d\nredis:\n  addr: x\n", want: "jwtSecret"},
		{name: "bad timezone", body: minimalConfig + "rewards:\n  timezone: Mars/Olympus\n", want: "timezone"},
		{name: "local rust", body: minimalConfig + "languages:\n  - id: rust\n    backend: local\n", want: "only javascript"},
	}
	for _, tt := range tests {
		_, err := loadAppConfig(writeConfig(t, tt.body))
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: err = %v, want mention of %q", tt.name, err, tt.want)
		}
	}
}

func TestLoadDotEnvMissingFileIsFine(t *testing.T) {
	if err := loadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("loadDotEnv: %v", err)
	}
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("VERIFY_DOTENV_PROBE=hello\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("VERIFY_DOTENV_PROBE", "")
	os.Unsetenv("VERIFY_DOTENV_PROBE")
	if err := loadDotEnv(path); err != nil {
		t.Fatalf("loadDotEnv: %v", err)
	}
	if got := os.Getenv("VERIFY_DOTENV_PROBE"); got != "hello" {
		t.Fatalf("probe = %q", got)
	}
}
