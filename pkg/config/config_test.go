package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// repoRoot returns the absolute path to the repository root by walking up
// from the test file location until it finds go.mod.
func repoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find repository root (go.mod)")
		}
		dir = parent
	}
}

// -----------------------------------------------------------------------
// TestLoadConfig - Parse configs/contextguard.yaml and verify key fields
// -----------------------------------------------------------------------

func TestLoadConfig(t *testing.T) {
	root := repoRoot(t)
	cfgPath := filepath.Join(root, "configs", "contextguard.yaml")

	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("CONTEXTGUARD_STREAMING")
	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		t.Fatalf("LoadConfig(%s): %v", cfgPath, err)
	}

	// Service section
	if cfg.Service.ID != "contextguard" {
		t.Errorf("service.id = %q, want %q", cfg.Service.ID, "contextguard")
	}
	if cfg.Service.Version != "1.0.0" {
		t.Errorf("service.version = %q, want %q", cfg.Service.Version, "1.0.0")
	}

	// Guard section
	if !cfg.Guard.EnableWarnings {
		t.Error("guard.enable_warnings should be true")
	}
	if cfg.Guard.EnableAutoRedact {
		t.Error("guard.enable_auto_redact should be false")
	}
	if !cfg.Guard.EnableLogging {
		t.Error("guard.enable_logging should be true")
	}
	if cfg.Guard.ScanDelay != 300*time.Millisecond {
		t.Errorf("guard.scan_delay = %v, want %v", cfg.Guard.ScanDelay, 300*time.Millisecond)
	}
	if cfg.Guard.BlockSeverity != "CRITICAL" {
		t.Errorf("guard.block_severity = %q, want %q", cfg.Guard.BlockSeverity, "CRITICAL")
	}

	// Scanning section
	if cfg.Scanning.MaxContentSize != 10485760 {
		t.Errorf("scanning.max_content_size = %d, want 10485760", cfg.Scanning.MaxContentSize)
	}
	if len(cfg.Scanning.CustomSignatures) != 1 {
		t.Fatalf("scanning.custom_signatures length = %d, want 1", len(cfg.Scanning.CustomSignatures))
	}
	if cfg.Scanning.CustomSignatures[0].Name != "internal_ticket" {
		t.Errorf("custom_signatures[0].name = %q, want %q", cfg.Scanning.CustomSignatures[0].Name, "internal_ticket")
	}
	if cfg.Scanning.Redaction.Placeholder != "[REDACTED]" {
		t.Errorf("scanning.redaction.placeholder = %q, want %q", cfg.Scanning.Redaction.Placeholder, "[REDACTED]")
	}

	// Audit section
	if cfg.Audit.Capacity != 1000 {
		t.Errorf("audit.capacity = %d, want 1000", cfg.Audit.Capacity)
	}
	if cfg.Audit.Retention != 168*time.Hour {
		t.Errorf("audit.retention = %v, want %v", cfg.Audit.Retention, 168*time.Hour)
	}

	// Actions section
	if !cfg.Actions.Enabled {
		t.Error("actions.enabled should be true")
	}
	if cfg.Actions.RateLimit.Window != time.Minute {
		t.Errorf("actions.rate_limit.window = %v, want %v", cfg.Actions.RateLimit.Window, time.Minute)
	}

	// Streaming section
	if cfg.Streaming.Enabled {
		t.Error("streaming.enabled should default to false")
	}
	if len(cfg.Streaming.Kafka.Brokers) != 1 || cfg.Streaming.Kafka.Brokers[0] != "localhost:9092" {
		t.Errorf("streaming.kafka.brokers = %v, want [localhost:9092]", cfg.Streaming.Kafka.Brokers)
	}
	if cfg.Streaming.Kafka.Topics.Critical != "contextguard.critical" {
		t.Errorf("streaming.kafka.topics.critical = %q, want %q", cfg.Streaming.Kafka.Topics.Critical, "contextguard.critical")
	}
	if cfg.Streaming.Kafka.Producer.FlushInterval != 100*time.Millisecond {
		t.Errorf("streaming.kafka.producer.flush_interval = %v, want %v", cfg.Streaming.Kafka.Producer.FlushInterval, 100*time.Millisecond)
	}

	// Server
	if cfg.Server.HTTP.Port != 8087 {
		t.Errorf("server.http.port = %d, want 8087", cfg.Server.HTTP.Port)
	}
	if cfg.Server.HTTP.Mode != "block" {
		t.Errorf("server.http.mode = %q, want %q", cfg.Server.HTTP.Mode, "block")
	}
	if cfg.Server.GRPC.Port != 8088 {
		t.Errorf("server.grpc.port = %d, want 8088", cfg.Server.GRPC.Port)
	}
	if cfg.Server.GRPC.MaxRecvMsgSize != 16777216 {
		t.Errorf("server.grpc.max_recv_msg_size = %d, want 16777216", cfg.Server.GRPC.MaxRecvMsgSize)
	}
	if cfg.Server.GRPC.RateLimit.Burst != 200 {
		t.Errorf("server.grpc.rate_limit.burst = %d, want 200", cfg.Server.GRPC.RateLimit.Burst)
	}

	// Logging (env var ${LOG_LEVEL:-info} defaults)
	if cfg.Logging.Level != "info" {
		t.Errorf("logging.level = %q, want %q (default)", cfg.Logging.Level, "info")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("logging.format = %q, want %q", cfg.Logging.Format, "json")
	}
}

// -----------------------------------------------------------------------
// TestLoadConfig_PartialFileKeepsDefaults
// -----------------------------------------------------------------------

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	content := "guard:\n  enable_auto_redact: true\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.Guard.EnableAutoRedact {
		t.Error("guard.enable_auto_redact should be true from file")
	}
	if !cfg.Guard.EnableWarnings {
		t.Error("guard.enable_warnings should keep its default")
	}
	if cfg.Guard.ScanDelay != 300*time.Millisecond {
		t.Errorf("guard.scan_delay = %v, want default %v", cfg.Guard.ScanDelay, 300*time.Millisecond)
	}
	if cfg.Audit.Capacity != 1000 {
		t.Errorf("audit.capacity = %d, want default 1000", cfg.Audit.Capacity)
	}
}

// -----------------------------------------------------------------------
// TestEnvVarSubstitution
// -----------------------------------------------------------------------

func TestEnvVarSubstitution(t *testing.T) {
	t.Run("simple var replacement", func(t *testing.T) {
		t.Setenv("TEST_CFG_VAR", "hello-world")
		out := substituteEnvVars([]byte("value: ${TEST_CFG_VAR}"))
		if string(out) != "value: hello-world" {
			t.Errorf("got %q, want %q", string(out), "value: hello-world")
		}
	})

	t.Run("var with default when unset", func(t *testing.T) {
		os.Unsetenv("TEST_CFG_UNSET")
		out := substituteEnvVars([]byte("value: ${TEST_CFG_UNSET:-fallback_value}"))
		if string(out) != "value: fallback_value" {
			t.Errorf("got %q, want %q", string(out), "value: fallback_value")
		}
	})

	t.Run("var with default when set", func(t *testing.T) {
		t.Setenv("TEST_CFG_SET", "override")
		out := substituteEnvVars([]byte("value: ${TEST_CFG_SET:-fallback}"))
		if string(out) != "value: override" {
			t.Errorf("got %q, want %q", string(out), "value: override")
		}
	})

	t.Run("unset var without default yields empty", func(t *testing.T) {
		os.Unsetenv("TEST_CFG_EMPTY")
		out := substituteEnvVars([]byte("value: ${TEST_CFG_EMPTY}"))
		if string(out) != "value: " {
			t.Errorf("got %q, want %q", string(out), "value: ")
		}
	})

	t.Run("multiple substitutions in same content", func(t *testing.T) {
		t.Setenv("TEST_A", "aaa")
		t.Setenv("TEST_B", "bbb")
		out := substituteEnvVars([]byte("${TEST_A} and ${TEST_B}"))
		if string(out) != "aaa and bbb" {
			t.Errorf("got %q, want %q", string(out), "aaa and bbb")
		}
	})

	t.Run("default with colon in value", func(t *testing.T) {
		os.Unsetenv("TEST_CFG_COLON")
		out := substituteEnvVars([]byte("broker: ${TEST_CFG_COLON:-localhost:9092}"))
		if string(out) != "broker: localhost:9092" {
			t.Errorf("got %q, want %q", string(out), "broker: localhost:9092")
		}
	})

	t.Run("empty string env var uses default", func(t *testing.T) {
		t.Setenv("TEST_CFG_EMPTYVAL", "")
		out := substituteEnvVars([]byte("value: ${TEST_CFG_EMPTYVAL:-default_val}"))
		if string(out) != "value: default_val" {
			t.Errorf("got %q, want %q", string(out), "value: default_val")
		}
	})

	t.Run("no env vars leaves content unchanged", func(t *testing.T) {
		input := "plain: value without substitution"
		out := substituteEnvVars([]byte(input))
		if string(out) != input {
			t.Errorf("got %q, want %q", string(out), input)
		}
	})
}

// -----------------------------------------------------------------------
// TestLoadRulesDir
// -----------------------------------------------------------------------

func TestLoadRulesDir(t *testing.T) {
	root := repoRoot(t)
	rulesDir := filepath.Join(root, "configs", "rules")

	rules, err := LoadRulesDir(rulesDir)
	if err != nil {
		t.Fatalf("LoadRulesDir(%s): %v", rulesDir, err)
	}

	if len(rules) != 2 {
		t.Fatalf("loaded %d rule files, want 2", len(rules))
	}

	byName := make(map[string]RuleFile)
	for _, r := range rules {
		byName[r.Name] = r
	}

	policy, ok := byName["policy"]
	if !ok {
		t.Fatal("policy rule file not found")
	}
	if len(policy.Rules) != 3 {
		t.Errorf("policy.rules length = %d, want 3", len(policy.Rules))
	}
	if policy.Rules[1].Conditions[0].Operator != "in" {
		t.Errorf("policy.rules[1] operator = %q, want %q", policy.Rules[1].Conditions[0].Operator, "in")
	}
	if len(policy.Rules[1].Conditions[0].Values) != 2 {
		t.Errorf("policy.rules[1] values = %v, want 2 entries", policy.Rules[1].Conditions[0].Values)
	}

	infra, ok := byName["infrastructure"]
	if !ok {
		t.Fatal("infrastructure rule file not found")
	}
	if infra.Rules[0].Cooldown != 30*time.Second {
		t.Errorf("infrastructure cooldown = %v, want %v", infra.Rules[0].Cooldown, 30*time.Second)
	}
	if infra.Rules[0].RateLimit == nil || infra.Rules[0].RateLimit.Count != 10 {
		t.Errorf("infrastructure rate_limit = %+v, want count 10", infra.Rules[0].RateLimit)
	}
	if len(infra.Patterns) != 1 {
		t.Errorf("infrastructure patterns length = %d, want 1", len(infra.Patterns))
	}

	for _, r := range rules {
		if r.Name == "" {
			t.Errorf("rule file has empty name: %+v", r)
		}
		if r.Version == "" {
			t.Errorf("rule file %q has empty version", r.Name)
		}
	}
}

func TestLoadRulesDir_InvalidDir(t *testing.T) {
	_, err := LoadRulesDir("/nonexistent/directory")
	if err == nil {
		t.Error("expected error for nonexistent directory, got nil")
	}
}

func TestLoadRulesDir_SkipsOtherFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# rules"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.yml"), []byte("version: \"1\"\nname: a\n"), 0644); err != nil {
		t.Fatal(err)
	}

	rules, err := LoadRulesDir(dir)
	if err != nil {
		t.Fatalf("LoadRulesDir: %v", err)
	}
	if len(rules) != 1 || rules[0].Name != "a" {
		t.Errorf("got %+v, want a single rule file named a", rules)
	}
}

// -----------------------------------------------------------------------
// TestValidation
// -----------------------------------------------------------------------

func TestValidation(t *testing.T) {
	mutate := func(fn func(*Config)) *Config {
		cfg := Default()
		fn(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{"nil config", nil, true},
		{"defaults", Default(), false},
		{"missing service id", mutate(func(c *Config) { c.Service.ID = "" }), true},
		{"negative scan delay", mutate(func(c *Config) { c.Guard.ScanDelay = -time.Second }), true},
		{"invalid block severity", mutate(func(c *Config) { c.Guard.BlockSeverity = "urgent" }), true},
		{"lowercase block severity", mutate(func(c *Config) { c.Guard.BlockSeverity = "high" }), false},
		{"unknown disabled category", mutate(func(c *Config) { c.Scanning.DisabledCategories = []string{"secrets"} }), true},
		{"known disabled category", mutate(func(c *Config) { c.Scanning.DisabledCategories = []string{"pii"} }), false},
		{"custom signature without regex", mutate(func(c *Config) {
			c.Scanning.CustomSignatures = []PatternDefinition{{Name: "x"}}
		}), true},
		{"custom signature bad severity", mutate(func(c *Config) {
			c.Scanning.CustomSignatures = []PatternDefinition{{Name: "x", Regex: "x", Severity: "severe"}}
		}), true},
		{"multi-char mask", mutate(func(c *Config) { c.Scanning.Redaction.MaskChar = "**" }), true},
		{"zero audit capacity", mutate(func(c *Config) { c.Audit.Capacity = 0 }), true},
		{"negative retention", mutate(func(c *Config) { c.Audit.Retention = -time.Hour }), true},
		{"streaming without brokers", mutate(func(c *Config) {
			c.Streaming.Enabled = true
			c.Streaming.Kafka.Brokers = nil
		}), true},
		{"partition by outcome", mutate(func(c *Config) { c.Streaming.Kafka.Producer.PartitionKey = "outcome" }), false},
		{"invalid partition key", mutate(func(c *Config) { c.Streaming.Kafka.Producer.PartitionKey = "random" }), true},
		{"mixed case custom severity", mutate(func(c *Config) {
			c.Scanning.CustomSignatures = []PatternDefinition{{Name: "ticket", Regex: `SEC-[0-9]+`, Severity: "hIgH"}}
		}), false},
		{"invalid log level", mutate(func(c *Config) { c.Logging.Level = "verbose" }), true},
		{"invalid log format", mutate(func(c *Config) { c.Logging.Format = "xml" }), true},
		{"negative http port", mutate(func(c *Config) { c.Server.HTTP.Port = -1 }), true},
		{"negative grpc port", mutate(func(c *Config) { c.Server.GRPC.Port = -1 }), true},
		{"invalid http mode", mutate(func(c *Config) { c.Server.HTTP.Mode = "drop" }), true},
		{"negative rps", mutate(func(c *Config) { c.Server.GRPC.RateLimit.RPS = -1 }), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cfg)
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent config file")
	}
	if err != nil && !strings.Contains(err.Error(), "/nonexistent/config.yaml") {
		t.Errorf("error %q should name the path", err)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "bad.yaml")
	if err := os.WriteFile(path, []byte("{{invalid yaml"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadConfig(path)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	root := repoRoot(t)
	cfgPath := filepath.Join(root, "configs", "contextguard.yaml")

	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CONTEXTGUARD_STREAMING", "true")
	t.Setenv("KAFKA_BROKER", "kafka-1:9092")
	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging.level = %q, want %q (from env override)", cfg.Logging.Level, "debug")
	}
	if !cfg.Streaming.Enabled {
		t.Error("streaming.enabled should be true from env override")
	}
	if cfg.Streaming.Kafka.Brokers[0] != "kafka-1:9092" {
		t.Errorf("streaming.kafka.brokers[0] = %q, want %q", cfg.Streaming.Kafka.Brokers[0], "kafka-1:9092")
	}
}

// -----------------------------------------------------------------------
// TestNewLogger
// -----------------------------------------------------------------------

func TestNewLogger(t *testing.T) {
	t.Run("json at warn", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LoggingConfig{Level: "warn", Format: "json"}, &buf)

		logger.Info("hidden")
		logger.Warn("shown", "k", "v")

		out := buf.String()
		if strings.Contains(out, "hidden") {
			t.Errorf("info record should be filtered at warn level: %s", out)
		}
		if !strings.Contains(out, `"msg":"shown"`) {
			t.Errorf("expected JSON record, got %s", out)
		}
	})

	t.Run("text format", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LoggingConfig{Level: "debug", Format: "text"}, &buf)

		logger.Debug("details", "n", 3)
		if !strings.Contains(buf.String(), "msg=details") {
			t.Errorf("expected text record, got %s", buf.String())
		}
	})
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"WARN":  slog.LevelWarn,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
