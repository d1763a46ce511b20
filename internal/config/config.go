package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// Options controls where configuration is loaded from
type Options struct {
	// ConfigFile is an explicit YAML file; empty means search the default paths
	ConfigFile string
	// EnvFile is loaded into the process environment before binding; empty means ".env"
	EnvFile string
	// SkipEnvFile disables dotenv loading entirely
	SkipEnvFile bool
}

// envBindings maps configuration keys to the environment variables operators set
var envBindings = map[string]string{
	"telegram.bot_token":                    "TELEGRAM_BOT_TOKEN",
	"telegram.allowed_user_ids":             "TELEGRAM_ALLOWED_USERS",
	"telegram.max_concurrency":              "TELEGRAM_MAX_CONCURRENCY",
	"telegram.poll_timeout":                 "TELEGRAM_POLL_TIMEOUT",
	"telegram.generation.max_tokens":        "TELEGRAM_MAX_TOKENS",
	"telegram.generation.temperature":       "TELEGRAM_TEMPERATURE",
	"telegram.generation.top_p":             "TELEGRAM_TOP_P",
	"telegram.generation.top_k":             "TELEGRAM_TOP_K",
	"telegram.generation.repetition_penalty": "TELEGRAM_REPETITION_PENALTY",

	"email.address":                      "EMAIL_ADDRESS",
	"email.password":                     "EMAIL_PASSWORD",
	"email.domain":                       "EMAIL_DOMAIN",
	"email.check_interval":               "EMAIL_CHECK_INTERVAL",
	"email.cycle_timeout":                "EMAIL_CYCLE_TIMEOUT",
	"email.signature":                    "EMAIL_SIGNATURE",
	"email.disclaimer":                   "EMAIL_DISCLAIMER",
	"email.greeting":                     "EMAIL_GREETING",
	"email.min_body_length":              "EMAIL_MIN_BODY_LENGTH",
	"email.ignored_sender_domains":       "EMAIL_IGNORED_SENDER_DOMAINS",
	"email.generation.max_tokens":        "EMAIL_MAX_TOKENS",
	"email.generation.temperature":       "EMAIL_TEMPERATURE",
	"email.generation.top_p":             "EMAIL_TOP_P",
	"email.generation.top_k":             "EMAIL_TOP_K",
	"email.generation.repetition_penalty": "EMAIL_REPETITION_PENALTY",

	"imap.host":           "IMAP_HOST",
	"imap.port":           "IMAP_PORT",
	"imap.tls":            "IMAP_TLS",
	"imap.mailbox":        "IMAP_MAILBOX",
	"imap.login_attempts": "IMAP_LOGIN_ATTEMPTS",
	"imap.timeout":        "IMAP_TIMEOUT",

	"smtp.host":    "SMTP_HOST",
	"smtp.port":    "SMTP_PORT",
	"smtp.tls":     "SMTP_TLS",
	"smtp.timeout": "SMTP_TIMEOUT",

	"model.provider":                  "MODEL_PROVIDER",
	"model.name":                      "MODEL_NAME",
	"model.base_url":                  "MODEL_BASE_URL",
	"model.api_key":                   "MODEL_API_KEY",
	"model.device":                    "DEVICE",
	"model.quantization.enabled":      "USE_QUANTIZATION",
	"model.quantization.load_in_4bit": "LOAD_IN_4BIT",
	"model.generation_timeout":        "MODEL_GENERATION_TIMEOUT",
	"model.hard_max_tokens":           "MODEL_HARD_MAX_TOKENS",
	"model.max_input_chars":           "MODEL_MAX_INPUT_CHARS",
	"model.startup_timeout":           "MODEL_STARTUP_TIMEOUT",
	"model.hf_token":                  "HUGGING_FACE_TOKEN",
	"model.prompt_template":           "MODEL_PROMPT_TEMPLATE",

	"bedrock.region": "BEDROCK_REGION",

	"ledger.type":              "LEDGER_TYPE",
	"ledger.ttl":               "LEDGER_TTL",
	"ledger.cleanup_frequency": "LEDGER_CLEANUP_FREQUENCY",
	"ledger.sqlite_path":       "LEDGER_SQLITE_PATH",
	"ledger.mysql_dsn":         "LEDGER_MYSQL_DSN",

	"logging.level":  "LOG_LEVEL",
	"logging.format": "LOG_FORMAT",
	"logging.file":   "LOG_FILE",

	"supervisor.run_dir":      "RUN_DIR",
	"supervisor.log_dir":      "LOG_DIR",
	"supervisor.start_wait":   "SUPERVISOR_START_WAIT",
	"supervisor.stop_timeout": "SUPERVISOR_STOP_TIMEOUT",

	"shutdown.grace_period": "SHUTDOWN_GRACE_PERIOD",

	"health.listen":              "HEALTH_LISTEN",
	"health.disk_warn_percent":   "HEALTH_DISK_WARN_PERCENT",
	"health.memory_warn_percent": "HEALTH_MEMORY_WARN_PERCENT",
	"health.max_log_size_mb":     "HEALTH_MAX_LOG_SIZE_MB",
}

// New creates a new configuration instance with the default search paths
func New() (*Config, error) {
	return Load(Options{})
}

// Load creates a configuration instance from dotenv, the environment and an optional YAML file
func Load(opts Options) (*Config, error) {
	if !opts.SkipEnvFile {
		envFile := opts.EnvFile
		if envFile == "" {
			envFile = ".env"
		}
		// Variables already present in the environment win over the file
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	v := NewEmptyViper()
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/llm-answer-bot/")
		v.AddConfigPath("$HOME/.llm-answer-bot")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return NewFromViper(v), nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func bindEnv(v *viper.Viper) error {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	return nil
}

// EnvName returns the environment variable bound to a configuration key
func EnvName(key string) string {
	if env, ok := envBindings[key]; ok {
		return env
	}
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Telegram defaults
	v.SetDefault("telegram.allowed_user_ids", []string{})
	v.SetDefault("telegram.max_concurrency", 2)
	v.SetDefault("telegram.poll_timeout", 30)
	v.SetDefault("telegram.generation.max_tokens", 512)
	v.SetDefault("telegram.generation.temperature", 0.7)
	v.SetDefault("telegram.generation.top_p", 0.9)
	v.SetDefault("telegram.generation.top_k", 50)
	v.SetDefault("telegram.generation.repetition_penalty", 1.1)

	// Email defaults
	v.SetDefault("email.check_interval", "30s")
	v.SetDefault("email.cycle_timeout", "10m")
	v.SetDefault("email.signature", "Assistant IA Code du Travail - ColonyLab")
	v.SetDefault("email.disclaimer", "Cette réponse est fournie à titre informatif uniquement. "+
		"Pour des conseils juridiques précis et personnalisés, consultez un avocat spécialisé en droit du travail.")
	v.SetDefault("email.greeting", "Bonjour,")
	v.SetDefault("email.min_body_length", 10)
	v.SetDefault("email.ignored_sender_domains", []string{})
	v.SetDefault("email.generation.max_tokens", 1500)
	v.SetDefault("email.generation.temperature", 0.3)
	v.SetDefault("email.generation.top_p", 0.95)
	v.SetDefault("email.generation.top_k", 50)
	v.SetDefault("email.generation.repetition_penalty", 1.15)

	// IMAP defaults
	v.SetDefault("imap.host", "localhost")
	v.SetDefault("imap.port", 993)
	v.SetDefault("imap.tls", "auto")
	v.SetDefault("imap.mailbox", "INBOX")
	v.SetDefault("imap.login_attempts", 3)
	v.SetDefault("imap.timeout", "2m")

	// SMTP defaults
	v.SetDefault("smtp.host", "localhost")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.tls", "auto")
	v.SetDefault("smtp.timeout", "30s")

	// Model defaults
	v.SetDefault("model.provider", "openai")
	v.SetDefault("model.name", "Pyzeur/Code-du-Travail-mistral-finetune")
	v.SetDefault("model.base_url", "")
	v.SetDefault("model.api_key", "")
	v.SetDefault("model.device", "auto")
	v.SetDefault("model.quantization.enabled", true)
	v.SetDefault("model.quantization.load_in_4bit", true)
	v.SetDefault("model.generation_timeout", "120s")
	v.SetDefault("model.hard_max_tokens", 2048)
	v.SetDefault("model.max_input_chars", 8000)
	v.SetDefault("model.startup_timeout", "60s")
	v.SetDefault("model.prompt_template", "")

	// Bedrock defaults
	v.SetDefault("bedrock.region", "us-east-1")

	// Ledger defaults
	v.SetDefault("ledger.type", "sqlite")
	v.SetDefault("ledger.ttl", "720h")
	v.SetDefault("ledger.cleanup_frequency", "1h")
	v.SetDefault("ledger.sqlite_path", "data/replies.db")
	v.SetDefault("ledger.mysql_dsn", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")

	// Supervisor defaults
	v.SetDefault("supervisor.run_dir", "run")
	v.SetDefault("supervisor.log_dir", "logs")
	v.SetDefault("supervisor.start_wait", "3s")
	v.SetDefault("supervisor.stop_timeout", "30s")

	v.SetDefault("shutdown.grace_period", "30s")

	// Health defaults
	v.SetDefault("health.listen", "")
	v.SetDefault("health.disk_warn_percent", 90.0)
	v.SetDefault("health.memory_warn_percent", 90.0)
	v.SetDefault("health.max_log_size_mb", 100)
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return strings.TrimSpace(c.v.GetString(key))
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a list value from the configuration.
// Environment values are split on commas as well as whitespace.
func (c *Config) GetStringSlice(key string) []string {
	var out []string
	for _, item := range c.v.GetStringSlice(key) {
		for _, part := range strings.FieldsFunc(item, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n'
		}) {
			out = append(out, part)
		}
	}
	return out
}

// GetDuration gets a duration value from the configuration.
// A bare integer is read as a number of seconds.
func (c *Config) GetDuration(key string) (time.Duration, error) {
	raw := c.GetString(key)
	if raw == "" {
		return 0, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, &InvalidValueError{Key: key, Env: EnvName(key), Value: raw, Err: err}
	}
	return d, nil
}

// Set overrides a value, used by command line flags
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
