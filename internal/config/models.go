package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"
)

// TelegramConfig represents the configuration for the Telegram adapter
type TelegramConfig struct {
	BotToken       string
	AllowedUserIDs []int64
	MaxConcurrency int
	PollTimeout    int
}

// EmailConfig represents the configuration for the email adapter
type EmailConfig struct {
	Address              string
	Password             string
	Domain               string
	CheckInterval        time.Duration
	CycleTimeout         time.Duration
	Signature            string
	Disclaimer           string
	Greeting             string
	MinBodyLength        int
	IgnoredSenderDomains []string
}

// IMAPConfig represents the inbound mail server endpoint
type IMAPConfig struct {
	Host          string
	Port          int
	TLS           string
	Mailbox       string
	LoginAttempts int
	Timeout       time.Duration
}

// SMTPConfig represents the outbound mail server endpoint
type SMTPConfig struct {
	Host    string
	Port    int
	TLS     string
	Timeout time.Duration
}

// ModelConfig represents the language model backend
type ModelConfig struct {
	Provider          string
	Name              string
	BaseURL           string
	APIKey            string
	Device            string
	PromptTemplate    string
	UseQuantization   bool
	LoadIn4Bit        bool
	GenerationTimeout time.Duration
	StartupTimeout    time.Duration
	HardMaxTokens     int
	MaxInputChars     int
}

// GenerationConfig represents per-channel sampling parameters
type GenerationConfig struct {
	MaxTokens         int
	Temperature       float32
	TopP              float32
	TopK              int
	RepetitionPenalty float32
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region string
}

// LedgerConfig represents the reply ledger storage
type LedgerConfig struct {
	Type             string
	TTL              time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
}

// LoggingConfig represents the logger output
type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

// SupervisorConfig represents process supervision paths and timings
type SupervisorConfig struct {
	RunDir      string
	LogDir      string
	StartWait   time.Duration
	StopTimeout time.Duration
}

// HealthConfig represents the readiness endpoint and health check thresholds
type HealthConfig struct {
	Listen            string
	DiskWarnPercent   float64
	MemoryWarnPercent float64
	MaxLogSizeMB      int
}

// GetTelegram returns the Telegram configuration
func (c *Config) GetTelegram() (TelegramConfig, error) {
	cfg := TelegramConfig{
		BotToken:       c.GetString("telegram.bot_token"),
		MaxConcurrency: c.GetInt("telegram.max_concurrency"),
		PollTimeout:    c.GetInt("telegram.poll_timeout"),
	}
	for _, raw := range c.GetStringSlice("telegram.allowed_user_ids") {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return cfg, &InvalidValueError{Key: "telegram.allowed_user_ids", Env: EnvName("telegram.allowed_user_ids"), Value: raw, Err: err}
		}
		cfg.AllowedUserIDs = append(cfg.AllowedUserIDs, id)
	}
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 1
	}
	return cfg, nil
}

// GetEmail returns the email adapter configuration
func (c *Config) GetEmail() (EmailConfig, error) {
	cfg := EmailConfig{
		Address:              c.GetString("email.address"),
		Password:             c.v.GetString("email.password"),
		Domain:               c.GetString("email.domain"),
		Signature:            c.GetString("email.signature"),
		Disclaimer:           c.GetString("email.disclaimer"),
		Greeting:             c.GetString("email.greeting"),
		MinBodyLength:        c.GetInt("email.min_body_length"),
		IgnoredSenderDomains: c.GetStringSlice("email.ignored_sender_domains"),
	}
	var err error
	if cfg.CheckInterval, err = c.GetDuration("email.check_interval"); err != nil {
		return cfg, err
	}
	if cfg.CheckInterval <= 0 {
		return cfg, &InvalidValueError{Key: "email.check_interval", Env: EnvName("email.check_interval"), Value: c.GetString("email.check_interval"), Err: ErrNotPositive}
	}
	if cfg.CycleTimeout, err = c.GetDuration("email.cycle_timeout"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// GetIMAP returns the IMAP endpoint configuration
func (c *Config) GetIMAP() (IMAPConfig, error) {
	cfg := IMAPConfig{
		Host:          c.GetString("imap.host"),
		Port:          c.GetInt("imap.port"),
		TLS:           c.GetString("imap.tls"),
		Mailbox:       c.GetString("imap.mailbox"),
		LoginAttempts: c.GetInt("imap.login_attempts"),
	}
	var err error
	if cfg.Timeout, err = c.GetDuration("imap.timeout"); err != nil {
		return cfg, err
	}
	if err := checkTLSMode("imap.tls", cfg.TLS); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// GetSMTP returns the SMTP endpoint configuration
func (c *Config) GetSMTP() (SMTPConfig, error) {
	cfg := SMTPConfig{
		Host: c.GetString("smtp.host"),
		Port: c.GetInt("smtp.port"),
		TLS:  c.GetString("smtp.tls"),
	}
	var err error
	if cfg.Timeout, err = c.GetDuration("smtp.timeout"); err != nil {
		return cfg, err
	}
	if err := checkTLSMode("smtp.tls", cfg.TLS); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// GetModel returns the model backend configuration
func (c *Config) GetModel() (ModelConfig, error) {
	cfg := ModelConfig{
		Provider:        c.GetString("model.provider"),
		Name:            c.GetString("model.name"),
		BaseURL:         c.GetString("model.base_url"),
		APIKey:          c.GetString("model.api_key"),
		Device:          c.GetString("model.device"),
		PromptTemplate:  c.v.GetString("model.prompt_template"),
		UseQuantization: c.GetBool("model.quantization.enabled"),
		LoadIn4Bit:      c.GetBool("model.quantization.load_in_4bit"),
		HardMaxTokens:   c.GetInt("model.hard_max_tokens"),
		MaxInputChars:   c.GetInt("model.max_input_chars"),
	}
	var err error
	if cfg.GenerationTimeout, err = c.GetDuration("model.generation_timeout"); err != nil {
		return cfg, err
	}
	if cfg.StartupTimeout, err = c.GetDuration("model.startup_timeout"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// GetGeneration returns the sampling parameters for a channel ("telegram" or "email")
func (c *Config) GetGeneration(channel string) GenerationConfig {
	prefix := channel + ".generation."
	return GenerationConfig{
		MaxTokens:         c.GetInt(prefix + "max_tokens"),
		Temperature:       float32(c.GetFloat64(prefix + "temperature")),
		TopP:              float32(c.GetFloat64(prefix + "top_p")),
		TopK:              c.GetInt(prefix + "top_k"),
		RepetitionPenalty: float32(c.GetFloat64(prefix + "repetition_penalty")),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region: c.GetString("bedrock.region"),
	}
}

// GetLedger returns the reply ledger configuration
func (c *Config) GetLedger() (LedgerConfig, error) {
	cfg := LedgerConfig{
		Type:       c.GetString("ledger.type"),
		SQLitePath: c.GetString("ledger.sqlite_path"),
		MySQLDSN:   c.GetString("ledger.mysql_dsn"),
	}
	var err error
	if cfg.TTL, err = c.GetDuration("ledger.ttl"); err != nil {
		return cfg, err
	}
	if cfg.CleanupFrequency, err = c.GetDuration("ledger.cleanup_frequency"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// GetLogging returns the logging configuration
func (c *Config) GetLogging() LoggingConfig {
	return LoggingConfig{
		Level:  c.GetString("logging.level"),
		Format: c.GetString("logging.format"),
		File:   c.GetString("logging.file"),
	}
}

// GetSupervisor returns the process supervision configuration
func (c *Config) GetSupervisor() (SupervisorConfig, error) {
	cfg := SupervisorConfig{
		RunDir: c.GetString("supervisor.run_dir"),
		LogDir: c.GetString("supervisor.log_dir"),
	}
	var err error
	if cfg.StartWait, err = c.GetDuration("supervisor.start_wait"); err != nil {
		return cfg, err
	}
	if cfg.StopTimeout, err = c.GetDuration("supervisor.stop_timeout"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// GetShutdownGrace returns how long in-flight work may drain on shutdown
func (c *Config) GetShutdownGrace() (time.Duration, error) {
	return c.GetDuration("shutdown.grace_period")
}

// GetHealth returns the health endpoint configuration
func (c *Config) GetHealth() HealthConfig {
	return HealthConfig{
		Listen:            c.GetString("health.listen"),
		DiskWarnPercent:   c.GetFloat64("health.disk_warn_percent"),
		MemoryWarnPercent: c.GetFloat64("health.memory_warn_percent"),
		MaxLogSizeMB:      c.GetInt("health.max_log_size_mb"),
	}
}

// LogFile returns the log file for an adapter, honouring an explicit logging.file
func (c *Config) LogFile(adapter string) string {
	if f := c.GetString("logging.file"); f != "" {
		return f
	}
	return filepath.Join(c.GetString("supervisor.log_dir"), adapter+".log")
}

// PIDFile returns the PID file path for an adapter
func (c *Config) PIDFile(adapter string) string {
	return filepath.Join(c.GetString("supervisor.run_dir"), adapter+".pid")
}

func checkTLSMode(key, mode string) error {
	switch mode {
	case "auto", "tls", "starttls", "none":
		return nil
	default:
		return &InvalidValueError{Key: key, Env: EnvName(key), Value: mode, Err: fmt.Errorf("expected auto, tls, starttls or none")}
	}
}
