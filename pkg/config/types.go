// Package config provides configuration loading and validation for
// ContextGuard. It supports YAML configuration files with environment
// variable substitution.
package config

import "time"

// Config is the top-level configuration structure mirroring contextguard.yaml.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Guard     GuardConfig     `yaml:"guard"`
	Scanning  ScanningConfig  `yaml:"scanning"`
	Audit     AuditConfig     `yaml:"audit"`
	Actions   ActionsConfig   `yaml:"actions"`
	Streaming StreamingConfig `yaml:"streaming"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServiceConfig holds service identification metadata.
type ServiceConfig struct {
	ID          string `yaml:"id"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// GuardConfig holds the interactive session settings.
type GuardConfig struct {
	EnableWarnings   bool          `yaml:"enable_warnings"`
	EnableAutoRedact bool          `yaml:"enable_auto_redact"`
	EnableLogging    bool          `yaml:"enable_logging"`
	ScanDelay        time.Duration `yaml:"scan_delay"`
	BlockSeverity    string        `yaml:"block_severity"`
}

// ScanningConfig holds scanning engine settings.
type ScanningConfig struct {
	MaxContentSize     int                 `yaml:"max_content_size"`
	DisabledCategories []string            `yaml:"disabled_categories"`
	DisabledSignatures []string            `yaml:"disabled_signatures"`
	CustomSignatures   []PatternDefinition `yaml:"custom_signatures"`
	Redaction          RedactionConfig     `yaml:"redaction"`
}

// RedactionConfig holds masking and scrubbing settings.
type RedactionConfig struct {
	MaskChar    string `yaml:"mask_char"`
	Placeholder string `yaml:"placeholder"`
}

// AuditConfig holds event log settings.
type AuditConfig struct {
	Capacity  int           `yaml:"capacity"`
	Retention time.Duration `yaml:"retention"`
	File      string        `yaml:"file"`
}

// ActionsConfig holds policy engine settings.
type ActionsConfig struct {
	Enabled   bool            `yaml:"enabled"`
	RulesDir  string          `yaml:"rules_dir"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig holds rate limiting settings for the policy engine.
type RateLimitConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Window     time.Duration `yaml:"window"`
	MaxActions int           `yaml:"max_actions"`
}

// StreamingConfig holds Kafka streaming settings.
type StreamingConfig struct {
	Enabled bool        `yaml:"enabled"`
	Kafka   KafkaConfig `yaml:"kafka"`
}

// KafkaConfig holds Kafka connection and producer settings.
type KafkaConfig struct {
	Brokers  []string            `yaml:"brokers"`
	ClientID string              `yaml:"client_id"`
	Topics   KafkaTopicsConfig   `yaml:"topics"`
	Producer KafkaProducerConfig `yaml:"producer"`
}

// KafkaTopicsConfig maps event routes to Kafka topic names.
type KafkaTopicsConfig struct {
	Events     string `yaml:"events"`
	Critical   string `yaml:"critical"`
	Redactions string `yaml:"redactions"`
}

// KafkaProducerConfig holds Kafka producer settings.
type KafkaProducerConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	Compression   string        `yaml:"compression"`
	RequiredAcks  string        `yaml:"required_acks"`
	PartitionKey  string        `yaml:"partition_key"`
}

// ServerConfig holds HTTP and gRPC server settings.
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http"`
	GRPC GRPCServerConfig `yaml:"grpc"`
}

// HTTPServerConfig holds settings for the body-scanning HTTP middleware.
type HTTPServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	MaxBodySize  int64         `yaml:"max_body_size"`
	Mode         string        `yaml:"mode"`
}

// GRPCServerConfig holds gRPC server settings.
type GRPCServerConfig struct {
	Port           int               `yaml:"port"`
	MaxRecvMsgSize int               `yaml:"max_recv_msg_size"`
	MaxSendMsgSize int               `yaml:"max_send_msg_size"`
	RateLimit      RequestRateConfig `yaml:"rate_limit"`
}

// RequestRateConfig is a token bucket: RPS tokens per second, up to Burst.
type RequestRateConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// RuleFile represents a parsed YAML file from the rules directory. A file may
// carry policy rules, extra signatures, or both.
type RuleFile struct {
	Version     string              `yaml:"version"`
	Name        string              `yaml:"name"`
	Description string              `yaml:"description"`
	Rules       []RuleDefinition    `yaml:"rules,omitempty"`
	Patterns    []PatternDefinition `yaml:"patterns,omitempty"`
}

// RuleDefinition represents a single policy rule in a rule file.
type RuleDefinition struct {
	ID          string                `yaml:"id"`
	Name        string                `yaml:"name"`
	Description string                `yaml:"description"`
	Enabled     bool                  `yaml:"enabled"`
	Priority    int                   `yaml:"priority"`
	Conditions  []ConditionDefinition `yaml:"conditions,omitempty"`
	Action      string                `yaml:"action"`
	Cooldown    time.Duration         `yaml:"cooldown,omitempty"`
	RateLimit   *RuleRateLimit        `yaml:"rate_limit,omitempty"`
}

// ConditionDefinition is one rule condition as written in YAML.
type ConditionDefinition struct {
	Field    string   `yaml:"field"`
	Operator string   `yaml:"operator"`
	Value    string   `yaml:"value,omitempty"`
	Values   []string `yaml:"values,omitempty"`
}

// RuleRateLimit caps how often a rule may fire.
type RuleRateLimit struct {
	Count  int           `yaml:"count"`
	Window time.Duration `yaml:"window"`
}

// PatternDefinition represents a custom detection signature.
type PatternDefinition struct {
	Name         string `yaml:"name"`
	Category     string `yaml:"category"`
	Regex        string `yaml:"regex"`
	Severity     string `yaml:"severity"`
	Multiplicity string `yaml:"multiplicity"`
	Description  string `yaml:"description"`
}
