package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"TGEMonitor/internal/domain"
	"TGEMonitor/internal/scoring"
)

const (
	configPathEnv = "TGE_MONITOR_CONFIG"

	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Monitor       MonitorConfig      `yaml:"monitor"`
	Tracking      TrackingConfig     `yaml:"tracking"`
	Feeds         FeedsConfig        `yaml:"feeds"`
	Social        SocialConfig       `yaml:"social"`
	Scoring       ScoringConfig      `yaml:"scoring"`
	Sentiment     SentimentConfig    `yaml:"sentiment"`
	State         StateConfig        `yaml:"state"`
	Notifications NotificationConfig `yaml:"notifications"`
	HTTP          HTTPConfig         `yaml:"http"`
}

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// MonitorConfig defines how often cycles run and what counts as recent.
type MonitorConfig struct {
	Interval        time.Duration `yaml:"interval" validate:"gt=0"`
	RecencyHours    int           `yaml:"recencyHours" validate:"gt=0"`
	AlertUndated    bool          `yaml:"alertUndated"`
	CycleRetries    int           `yaml:"cycleRetries" validate:"gte=0"`
	CycleRetryDelay time.Duration `yaml:"cycleRetryDelay" validate:"gte=0"`
	// SummaryHour is the UTC hour of the daily summary; -1 disables it.
	SummaryHour int `yaml:"summaryHour" validate:"gte=-1,lte=23"`
	// ShutdownGrace is how often shutdown reports a cycle it is still
	// waiting on. Shutdown never abandons a running cycle.
	ShutdownGrace time.Duration `yaml:"shutdownGrace" validate:"gte=0"`
	MaxTextLength int           `yaml:"maxTextLength" validate:"gte=0"`
}

// RecencyWindow converts RecencyHours to a duration.
func (m MonitorConfig) RecencyWindow() time.Duration {
	return time.Duration(m.RecencyHours) * time.Hour
}

// TrackingConfig lists the tracked entities and trigger phrases.
type TrackingConfig struct {
	Entities []string `yaml:"entities" validate:"min=1,dive,required"`
	Phrases  []string `yaml:"phrases" validate:"min=1,dive,required"`
}

// FeedsConfig describes the RSS/Atom endpoints.
type FeedsConfig struct {
	URLs                []string          `yaml:"urls" validate:"dive,url"`
	Fallbacks           map[string]string `yaml:"fallbacks" validate:"dive,keys,url,endkeys,url"`
	Pacing              time.Duration     `yaml:"pacing" validate:"gte=0"`
	Timeout             time.Duration     `yaml:"timeout" validate:"gt=0"`
	UserAgent           string            `yaml:"userAgent"`
	Retry               RetryConfig       `yaml:"retry"`
	BreakerFailures     uint32            `yaml:"breakerFailures"`
	BreakerCooldown     time.Duration     `yaml:"breakerCooldown" validate:"gte=0"`
	FetchArticleContent bool              `yaml:"fetchArticleContent"`
	ArticlePacing       time.Duration     `yaml:"articlePacing" validate:"gte=0"`
}

// RetryConfig is the per-call retry policy.
type RetryConfig struct {
	Attempts  int           `yaml:"attempts" validate:"gte=1"`
	BaseDelay time.Duration `yaml:"baseDelay" validate:"gte=0"`
	MaxDelay  time.Duration `yaml:"maxDelay" validate:"gte=0"`
}

// SocialConfig describes the recent-search API and what to query.
type SocialConfig struct {
	BaseURL        string        `yaml:"baseUrl" validate:"url"`
	BearerToken    string        `yaml:"bearerToken"`
	Accounts       []string      `yaml:"accounts"`
	MaxResults     int           `yaml:"maxResults" validate:"gte=10,lte=100"`
	MaxEntities    int           `yaml:"maxEntities" validate:"gte=0"`
	MaxPhrases     int           `yaml:"maxPhrases" validate:"gte=0"`
	GenericQueries []string      `yaml:"genericQueries"`
	Pacing         time.Duration `yaml:"pacing" validate:"gte=0"`
	Timeout        time.Duration `yaml:"timeout" validate:"gt=0"`
	Retry          RetryConfig   `yaml:"retry"`
}

// Enabled reports whether a bearer token is configured.
func (s SocialConfig) Enabled() bool {
	return strings.TrimSpace(s.BearerToken) != ""
}

// ScoringConfig mirrors scoring.Config with YAML bindings.
type ScoringConfig struct {
	Threshold            float64         `yaml:"threshold" validate:"gte=0,lte=1"`
	SentimentBoost       float64         `yaml:"sentimentBoost" validate:"gte=0,lte=1"`
	SentimentMinPolarity float64         `yaml:"sentimentMinPolarity" validate:"gte=-1,lte=1"`
	UrgencyWords         []string        `yaml:"urgencyWords"`
	UrgencyIncrement     float64         `yaml:"urgencyIncrement" validate:"gte=0"`
	UrgencyCap           float64         `yaml:"urgencyCap" validate:"gte=0,lte=1"`
	Feed                 scoring.Weights `yaml:"feed"`
	Social               scoring.Weights `yaml:"social"`
}

// ScorerConfig converts to the scorer's own configuration.
func (s ScoringConfig) ScorerConfig() scoring.Config {
	return scoring.Config{
		Threshold:            s.Threshold,
		SentimentBoost:       s.SentimentBoost,
		SentimentMinPolarity: s.SentimentMinPolarity,
		UrgencyWords:         append([]string(nil), s.UrgencyWords...),
		UrgencyIncrement:     s.UrgencyIncrement,
		UrgencyCap:           s.UrgencyCap,
		Weights: map[domain.SourceKind]scoring.Weights{
			domain.SourceFeed:   s.Feed,
			domain.SourceSocial: s.Social,
		},
	}
}

// SentimentConfig picks the sentiment contributors.
type SentimentConfig struct {
	Lexicon     bool          `yaml:"lexicon"`
	EnglishOnly bool          `yaml:"englishOnly"`
	RemoteURL   string        `yaml:"remoteUrl" validate:"omitempty,url"`
	APIKey      string        `yaml:"apiKey"`
	Timeout     time.Duration `yaml:"timeout" validate:"gte=0"`
}

// StateConfig selects the persistence backend.
type StateConfig struct {
	Driver          string `yaml:"driver" validate:"oneof=file sqlite postgres"`
	Path            string `yaml:"path" validate:"required_if=Driver file"`
	DSN             string `yaml:"dsn" validate:"required_unless=Driver file"`
	MaxHistory      int    `yaml:"maxHistory" validate:"gte=0"`
	MaxProcessedIDs int    `yaml:"maxProcessedIds" validate:"gte=0"`
	MaxSeenHashes   int    `yaml:"maxSeenHashes" validate:"gte=0"`
}

// Limits returns the growth limits for the store.
func (s StateConfig) Limits() domain.Limits {
	return domain.Limits{
		MaxHistory:      s.MaxHistory,
		MaxProcessedIDs: s.MaxProcessedIDs,
		MaxSeenHashes:   s.MaxSeenHashes,
	}
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Email    EmailConfig    `yaml:"email"`
	// Log forces the log sink even when other sinks are configured.
	Log bool `yaml:"log"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether both token and chat are set.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// EmailConfig holds SMTP settings.
type EmailConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port" validate:"gte=0,lte=65535"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	From      string `yaml:"from"`
	Recipient string `yaml:"recipient" validate:"omitempty,email"`
}

// HTTPConfig configures the status server; an empty Addr disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// envOverlay lists the variables that override file settings.
type envOverlay struct {
	TelegramBotToken   string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID     string `envconfig:"TELEGRAM_CHAT_ID"`
	TwitterBearerToken string `envconfig:"TWITTER_BEARER_TOKEN"`
	EmailUser          string `envconfig:"EMAIL_USER"`
	EmailPassword      string `envconfig:"EMAIL_PASSWORD"`
	RecipientEmail     string `envconfig:"RECIPIENT_EMAIL"`
	SMTPServer         string `envconfig:"SMTP_SERVER"`
	SMTPPort           int    `envconfig:"SMTP_PORT"`
	LogLevel           string `envconfig:"LOG_LEVEL"`
	LogFormat          string `envconfig:"LOG_FORMAT"`
	StateDriver        string `envconfig:"STATE_DRIVER"`
	StateDSN           string `envconfig:"STATE_DSN"`
	SentimentURL       string `envconfig:"SENTIMENT_URL"`
	SentimentAPIKey    string `envconfig:"SENTIMENT_API_KEY"`
	HTTPAddr           string `envconfig:"HTTP_ADDR"`
}

// Load reads .env, the YAML file at path (or $TGE_MONITOR_CONFIG) over the
// defaults, applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if cfg, err = decode(cfg, raw); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode unmarshals raw over base. Keys absent from the document keep their
// defaults; lists present in the document replace the default list.
func decode(base Config, raw []byte) (Config, error) {
	if err := yaml.Unmarshal(raw, &base); err != nil {
		return Config{}, err
	}
	return base, nil
}

func (c *Config) applyEnvOverrides() error {
	var env envOverlay
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("environment overrides: %w", err)
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Notifications.Telegram.BotToken, env.TelegramBotToken)
	set(&c.Notifications.Telegram.ChatID, env.TelegramChatID)
	set(&c.Social.BearerToken, env.TwitterBearerToken)
	set(&c.Notifications.Email.Username, env.EmailUser)
	set(&c.Notifications.Email.Password, env.EmailPassword)
	set(&c.Notifications.Email.Recipient, env.RecipientEmail)
	set(&c.Notifications.Email.Host, env.SMTPServer)
	set(&c.Logging.Level, env.LogLevel)
	set(&c.Logging.Format, env.LogFormat)
	set(&c.State.Driver, env.StateDriver)
	set(&c.State.DSN, env.StateDSN)
	set(&c.Sentiment.RemoteURL, env.SentimentURL)
	set(&c.Sentiment.APIKey, env.SentimentAPIKey)
	set(&c.HTTP.Addr, env.HTTPAddr)
	if env.SMTPPort != 0 {
		c.Notifications.Email.Port = env.SMTPPort
	}
	return nil
}

func (c *Config) normalize() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	switch c.Logging.Level {
	case "warning":
		c.Logging.Level = "warn"
	case "critical", "fatal":
		c.Logging.Level = "error"
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.State.Driver = strings.ToLower(strings.TrimSpace(c.State.Driver))

	c.Tracking.Entities = compact(c.Tracking.Entities)
	c.Tracking.Phrases = compact(c.Tracking.Phrases)
	c.Feeds.URLs = compact(c.Feeds.URLs)
	c.Social.Accounts = compact(c.Social.Accounts)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports every violation.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// compact trims entries and drops blanks and repeats, keeping order.
func compact(values []string) []string {
	out := make([]string, 0, len(values))
	seen := map[string]struct{}{}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
