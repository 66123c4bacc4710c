package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	regexp "github.com/wasilibs/go-re2"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR} and ${VAR:-default} expressions.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// Default returns the built-in configuration. Guard defaults match the
// browser extension: warnings and logging on, auto-redact off, 300ms delay.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			ID:          "contextguard",
			Version:     "1.0.0",
			Environment: "development",
		},
		Guard: GuardConfig{
			EnableWarnings:   true,
			EnableAutoRedact: false,
			EnableLogging:    true,
			ScanDelay:        300 * time.Millisecond,
			BlockSeverity:    "CRITICAL",
		},
		Scanning: ScanningConfig{
			MaxContentSize: 10 << 20,
			Redaction: RedactionConfig{
				MaskChar:    "*",
				Placeholder: "[REDACTED]",
			},
		},
		Audit: AuditConfig{
			Capacity:  1000,
			Retention: 7 * 24 * time.Hour,
		},
		Actions: ActionsConfig{
			Enabled: true,
			RateLimit: RateLimitConfig{
				Enabled:    true,
				Window:     time.Minute,
				MaxActions: 1000,
			},
		},
		Streaming: StreamingConfig{
			Kafka: KafkaConfig{
				Brokers:  []string{"localhost:9092"},
				ClientID: "contextguard",
				Topics: KafkaTopicsConfig{
					Events:     "contextguard.events",
					Critical:   "contextguard.critical",
					Redactions: "contextguard.redactions",
				},
				Producer: KafkaProducerConfig{
					BatchSize:     100,
					FlushInterval: 100 * time.Millisecond,
					Compression:   "snappy",
					RequiredAcks:  "local",
					PartitionKey:  "source",
				},
			},
		},
		Server: ServerConfig{
			HTTP: HTTPServerConfig{
				Port:         8087,
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 30 * time.Second,
				IdleTimeout:  60 * time.Second,
				MaxBodySize:  1 << 20,
				Mode:         "block",
			},
			GRPC: GRPCServerConfig{
				Port:           8088,
				MaxRecvMsgSize: 16 << 20,
				MaxSendMsgSize: 16 << 20,
				RateLimit: RequestRateConfig{
					RPS:   100,
					Burst: 200,
				},
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
	}
}

// LoadConfig reads a YAML config file, performs environment variable
// substitution on the raw bytes, then unmarshals it over Default(). Keys
// absent from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	data = substituteEnvVars(data)

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadRulesDir reads all .yaml and .yml files from the given directory and
// parses each into a RuleFile struct. Files are returned in name order.
func LoadRulesDir(dir string) ([]RuleFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading rules directory %s: %w", dir, err)
	}

	var rules []RuleFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading rule file %s: %w", path, err)
		}

		data = substituteEnvVars(data)

		var rf RuleFile
		if err := yaml.Unmarshal(data, &rf); err != nil {
			return nil, fmt.Errorf("parsing rule file %s: %w", path, err)
		}
		rules = append(rules, rf)
	}

	return rules, nil
}

// substituteEnvVars replaces ${VAR} and ${VAR:-default} patterns in content
// with the corresponding environment variable values. If a variable is not
// set and no default is provided, the expression is replaced with an empty
// string.
func substituteEnvVars(content []byte) []byte {
	return envVarPattern.ReplaceAllFunc(content, func(match []byte) []byte {
		groups := envVarPattern.FindSubmatch(match)
		if groups == nil {
			return match
		}

		varName := string(groups[1])
		defaultVal := ""
		hasDefault := len(groups) > 2 && groups[2] != nil
		if hasDefault {
			defaultVal = string(groups[2])
		}

		val, ok := os.LookupEnv(varName)
		if !ok || val == "" {
			if hasDefault {
				return []byte(defaultVal)
			}
			return []byte("")
		}
		return []byte(val)
	})
}

var (
	validSeverities = map[string]bool{
		"LOW": true, "MEDIUM": true, "HIGH": true, "CRITICAL": true,
	}
	validCategories = map[string]bool{
		"credential": true, "pii": true, "phi": true, "financial": true,
		"infrastructure": true, "source_code": true, "custom": true,
	}
)

// Validate performs basic validation on a loaded Config. It checks that
// required fields are set and that values are within expected ranges.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if cfg.Service.ID == "" {
		return fmt.Errorf("service.id is required")
	}

	// Guard
	if cfg.Guard.ScanDelay < 0 {
		return fmt.Errorf("guard.scan_delay must be non-negative, got %v", cfg.Guard.ScanDelay)
	}
	if sev := cfg.Guard.BlockSeverity; sev != "" && !validSeverities[strings.ToUpper(sev)] {
		return fmt.Errorf("guard.block_severity %q is not valid; must be one of: LOW, MEDIUM, HIGH, CRITICAL", sev)
	}

	// Scanning
	if cfg.Scanning.MaxContentSize < 0 {
		return fmt.Errorf("scanning.max_content_size must be non-negative, got %d", cfg.Scanning.MaxContentSize)
	}
	for _, c := range cfg.Scanning.DisabledCategories {
		if !validCategories[c] {
			return fmt.Errorf("scanning.disabled_categories: unknown category %q", c)
		}
	}
	for i, p := range cfg.Scanning.CustomSignatures {
		if p.Name == "" {
			return fmt.Errorf("scanning.custom_signatures[%d]: name is required", i)
		}
		if p.Regex == "" {
			return fmt.Errorf("scanning.custom_signatures[%d] %s: regex is required", i, p.Name)
		}
		if p.Severity != "" && !validSeverities[strings.ToUpper(p.Severity)] {
			return fmt.Errorf("scanning.custom_signatures[%d] %s: severity %q is not valid", i, p.Name, p.Severity)
		}
	}
	if len([]rune(cfg.Scanning.Redaction.MaskChar)) > 1 {
		return fmt.Errorf("scanning.redaction.mask_char must be a single character, got %q", cfg.Scanning.Redaction.MaskChar)
	}

	// Audit
	if cfg.Audit.Capacity <= 0 {
		return fmt.Errorf("audit.capacity must be positive, got %d", cfg.Audit.Capacity)
	}
	if cfg.Audit.Retention < 0 {
		return fmt.Errorf("audit.retention must be non-negative, got %v", cfg.Audit.Retention)
	}

	// Streaming
	if cfg.Streaming.Enabled && len(cfg.Streaming.Kafka.Brokers) == 0 {
		return fmt.Errorf("streaming.kafka.brokers is required when streaming is enabled")
	}
	switch key := cfg.Streaming.Kafka.Producer.PartitionKey; key {
	case "", "source", "outcome", "event":
	default:
		return fmt.Errorf("streaming.kafka.producer.partition_key %q is not valid; must be one of: source, outcome, event", key)
	}

	// Validate log level
	level := cfg.Logging.Level
	if level != "" {
		validLevels := map[string]bool{
			"debug": true, "info": true, "warn": true, "error": true,
		}
		if !validLevels[level] {
			return fmt.Errorf("logging.level %q is not valid; must be one of: debug, info, warn, error", level)
		}
	}

	// Validate log format
	format := cfg.Logging.Format
	if format != "" {
		if format != "json" && format != "text" {
			return fmt.Errorf("logging.format %q is not valid; must be json or text", format)
		}
	}

	// Validate server ports are positive when set
	if cfg.Server.HTTP.Port < 0 {
		return fmt.Errorf("server.http.port must be non-negative, got %d", cfg.Server.HTTP.Port)
	}
	if cfg.Server.GRPC.Port < 0 {
		return fmt.Errorf("server.grpc.port must be non-negative, got %d", cfg.Server.GRPC.Port)
	}
	if mode := cfg.Server.HTTP.Mode; mode != "" && mode != "block" && mode != "redact" {
		return fmt.Errorf("server.http.mode %q is not valid; must be block or redact", mode)
	}
	if cfg.Server.GRPC.RateLimit.RPS < 0 || cfg.Server.GRPC.RateLimit.Burst < 0 {
		return fmt.Errorf("server.grpc.rate_limit must be non-negative")
	}

	return nil
}
