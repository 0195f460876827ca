// Package config loads and validates pagewatch configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/spf13/viper"
)

// DefaultUserAgent identifies pagewatch to the monitored site.
const DefaultUserAgent = "Mozilla/5.0 (compatible; pagewatch/1.0; +https://github.com/JakeFAU/pagewatch)"

// Config captures every knob of a pagewatch run. It is built once at startup
// and passed by value to the components that need it.
type Config struct {
	Target  TargetConfig  `mapstructure:"target"`
	Email   EmailConfig   `mapstructure:"email"`
	SMTP    SMTPConfig    `mapstructure:"smtp"`
	Storage StorageConfig `mapstructure:"storage"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// TargetConfig describes the monitored page.
type TargetConfig struct {
	URL            string `mapstructure:"url"`
	Selector       string `mapstructure:"selector"`
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// EmailConfig holds the report envelope.
type EmailConfig struct {
	To      []string `mapstructure:"to"`
	From    string   `mapstructure:"from"`
	Subject string   `mapstructure:"subject"`
}

// SMTPConfig holds the submission server settings.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`

	// TimeoutSeconds bounds the whole SMTP session.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// StorageConfig locates snapshots and the run log.
type StorageConfig struct {
	DataDir   string `mapstructure:"data_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSPrefix string `mapstructure:"gcs_prefix"`
}

// DBConfig enables the optional Postgres run-log mirror.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig enables change events.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MetricsConfig points at a node_exporter textfile collector file.
type MetricsConfig struct {
	TextfilePath string `mapstructure:"textfile_path"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ConfigError reports a missing or invalid setting.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Field, e.Reason)
}

// ErrNoRecipients is returned when email.to is empty.
var ErrNoRecipients = &ConfigError{
	Field:  "email.to",
	Reason: "must list at least one recipient (set EMAIL_TO)",
}

// legacyEnv maps keys to the unprefixed variable names older deployments use.
var legacyEnv = map[string]string{
	"target.url":             "TARGET_URL",
	"target.selector":        "TARGET_SELECTOR",
	"target.user_agent":      "TARGET_USER_AGENT",
	"target.timeout_seconds": "TARGET_TIMEOUT_SECONDS",
	"email.to":               "EMAIL_TO",
	"email.from":             "EMAIL_FROM",
	"email.subject":          "EMAIL_SUBJECT",
	"smtp.host":              "SMTP_HOST",
	"smtp.port":              "SMTP_PORT",
	"smtp.username":          "SMTP_USER",
	"smtp.password":          "SMTP_PASS",
	"smtp.from":              "SMTP_FROM",
}

var prefixedOnly = []string{
	"smtp.timeout_seconds",
	"storage.data_dir",
	"storage.gcs_bucket",
	"storage.gcs_prefix",
	"db.dsn",
	"db.table",
	"db.max_conns",
	"pubsub.project_id",
	"pubsub.topic_name",
	"metrics.textfile_path",
	"logging.development",
}

// Load builds a Config from an optional file plus the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PAGEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Email.To = ParseRecipients(cfg.Email.To...)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("target.url", "https://example.com")
	v.SetDefault("target.selector", "")
	v.SetDefault("target.user_agent", DefaultUserAgent)
	v.SetDefault("target.timeout_seconds", 15)
	v.SetDefault("email.subject", "Page update for {url}")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.timeout_seconds", 30)
	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.gcs_prefix", "pagewatch")
	v.SetDefault("db.table", "pagewatch_runs")
	v.SetDefault("db.max_conns", 2)
	v.SetDefault("logging.development", false)
}

func bindEnv(v *viper.Viper) error {
	for key, legacy := range legacyEnv {
		if err := v.BindEnv(key, envName(key), legacy); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	for _, key := range prefixedOnly {
		if err := v.BindEnv(key, envName(key)); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func envName(key string) string {
	return "PAGEWATCH_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// ParseRecipients splits comma-separated entries, trims them and drops blanks.
func ParseRecipients(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if addr := strings.TrimSpace(part); addr != "" {
				out = append(out, addr)
			}
		}
	}
	return out
}

// Validate enforces the settings every command depends on. Recipients are
// checked separately by RequireRecipients because read-only commands do not
// need them.
func (c Config) Validate() error {
	u, err := url.Parse(c.Target.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ConfigError{Field: "target.url", Reason: fmt.Sprintf("must be an absolute http(s) URL, got %q", c.Target.URL)}
	}
	if c.Target.TimeoutSeconds <= 0 {
		return &ConfigError{Field: "target.timeout_seconds", Reason: "must be > 0"}
	}
	if sel := strings.TrimSpace(c.Target.Selector); sel != "" {
		if _, err := cascadia.ParseGroup(sel); err != nil {
			return &ConfigError{Field: "target.selector", Reason: fmt.Sprintf("is not a valid CSS selector: %v", err)}
		}
	}
	if c.Storage.DataDir == "" {
		return &ConfigError{Field: "storage.data_dir", Reason: "is required"}
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return &ConfigError{Field: "pubsub.project_id", Reason: "is required when pubsub.topic_name is set"}
	}
	return nil
}

// RequireRecipients returns ErrNoRecipients when no address is configured.
func (c Config) RequireRecipients() error {
	if len(ParseRecipients(c.Email.To...)) == 0 {
		return ErrNoRecipients
	}
	return nil
}

// RequestTimeout converts target.timeout_seconds to a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Target.TimeoutSeconds) * time.Second
}

// IsConfigError reports whether err carries a *ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}
