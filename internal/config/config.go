package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/niksrid/sendsms-go/pkg/msg91"
)

// Config captures the runtime configuration shared by the SMS commands.
type Config struct {
	App        AppConfig
	Msg91      Msg91Config
	Kafka      KafkaConfig
	Worker     WorkerConfig
	Validation ValidationConfig
}

// AppConfig contains generic application level settings.
type AppConfig struct {
	Env      string
	LogLevel string
	HTTPAddr string
}

// Msg91Config holds gateway credentials and client tuning.
type Msg91Config struct {
	AuthKey        string
	SenderID       string
	RouteID        string
	BaseURL        string
	TimeoutSeconds int
	MaxBodyBytes   int64
	DefaultCountry string
}

// KafkaConfig is only needed by the worker; see RequireKafka.
type KafkaConfig struct {
	Brokers       []string
	RequestTopic  string
	StatusTopic   string
	ConsumerGroup string
}

// WorkerConfig controls record processing.
type WorkerConfig struct {
	Concurrency         int
	CommitOnSuccessOnly bool
	// HealthAddr is where the worker serves GET /healthz.
	HealthAddr string
}

// ValidationConfig holds the limits used while validating inbound requests.
type ValidationConfig struct {
	MsgMaxBytes     int
	RecipientsMax   int
	MessageMaxLen   int
	MetaMaxEntries  int
	MetaMaxKeyLen   int
	MetaMaxValueLen int
}

// Load reads an optional .env file and the process environment, applies
// defaults and reports every invalid or missing value at once.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}

	cfg := &Config{}
	cfg.App.Env = ldr.getString("APP_ENV", "development", false)
	cfg.App.LogLevel = ldr.getString("LOG_LEVEL", "info", false)
	cfg.App.HTTPAddr = ldr.getString("HTTP_ADDR", ":8080", false)

	cfg.Msg91.AuthKey = ldr.getString("MSG91_AUTH_KEY", "", true)
	cfg.Msg91.SenderID = ldr.getString("MSG91_SENDER_ID", "", true)
	cfg.Msg91.RouteID = ldr.getString("MSG91_ROUTE_ID", "4", false)
	cfg.Msg91.BaseURL = ldr.getString("MSG91_BASE_URL", msg91.DefaultBaseURL, false)
	cfg.Msg91.TimeoutSeconds = ldr.getInt("MSG91_TIMEOUT_SECONDS", int(msg91.DefaultTimeout/time.Second), false)
	cfg.Msg91.MaxBodyBytes = int64(ldr.getInt("MSG91_MAX_BODY_BYTES", int(msg91.DefaultMaxBodyBytes), false))
	cfg.Msg91.DefaultCountry = ldr.getString("MSG91_DEFAULT_COUNTRY", "91", false)

	cfg.Kafka.Brokers = ldr.getStringSlice("KAFKA_BROKERS", false)
	cfg.Kafka.RequestTopic = ldr.getString("KAFKA_SMS_REQUEST_TOPIC", "sms.request", false)
	cfg.Kafka.StatusTopic = ldr.getString("KAFKA_SMS_STATUS_TOPIC", "sms.status", false)
	cfg.Kafka.ConsumerGroup = ldr.getString("SMS_CONSUMER_GROUP", "sms-worker", false)

	cfg.Worker.Concurrency = ldr.getInt("WORKER_CONCURRENCY", 10, false)
	cfg.Worker.CommitOnSuccessOnly = ldr.getBool("COMMIT_ON_SUCCESS_ONLY", true, false)
	cfg.Worker.HealthAddr = ldr.getString("WORKER_HEALTH_ADDR", ":8081", false)

	cfg.Validation.MsgMaxBytes = ldr.getInt("MSG_MAX_BYTES", 65536, false)
	cfg.Validation.RecipientsMax = ldr.getInt("SMS_RECIPIENTS_MAX", 100, false)
	cfg.Validation.MessageMaxLen = ldr.getInt("SMS_BODY_MAX", 1600, false)
	cfg.Validation.MetaMaxEntries = ldr.getInt("META_MAX_ENTRIES", 20, false)
	cfg.Validation.MetaMaxKeyLen = ldr.getInt("META_MAX_KEY_LEN", 64, false)
	cfg.Validation.MetaMaxValueLen = ldr.getInt("META_MAX_VALUE_LEN", 256, false)

	if cfg.Msg91.TimeoutSeconds < 0 {
		ldr.addError("MSG91_TIMEOUT_SECONDS cannot be negative")
	}
	if cfg.Msg91.MaxBodyBytes <= 0 {
		ldr.addError("MSG91_MAX_BODY_BYTES must be positive")
	}
	if cfg.Worker.Concurrency < 1 {
		ldr.addError("WORKER_CONCURRENCY must be >= 1")
	}

	if err := ldr.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RequireKafka reports whether the settings only the worker needs are present.
func (c *Config) RequireKafka() error {
	var errs []string
	if len(c.Kafka.Brokers) == 0 {
		errs = append(errs, "KAFKA_BROKERS is required")
	}
	if c.Kafka.RequestTopic == "" {
		errs = append(errs, "KAFKA_SMS_REQUEST_TOPIC is required")
	}
	if c.Kafka.StatusTopic == "" {
		errs = append(errs, "KAFKA_SMS_STATUS_TOPIC is required")
	}
	if c.Kafka.ConsumerGroup == "" {
		errs = append(errs, "SMS_CONSUMER_GROUP is required")
	}
	if len(errs) > 0 {
		return errors.New("config validation failed: " + strings.Join(errs, "; "))
	}
	return nil
}

// Credentials returns the gateway credentials.
func (m Msg91Config) Credentials() msg91.Credentials {
	return msg91.Credentials{AuthKey: m.AuthKey, SenderID: m.SenderID, RouteID: m.RouteID}
}

// Timeout returns the per-request timeout; zero disables it.
func (m Msg91Config) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

type envLoader struct {
	errs []string
}

func (l *envLoader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(l.errs, "; "))
}

// lookup returns the trimmed value for key, recording an error when a required
// key is unset or blank.
func (l *envLoader) lookup(key string, required bool) (string, bool) {
	val, ok := os.LookupEnv(key)
	val = strings.TrimSpace(val)
	if !ok || val == "" {
		if required {
			l.addError(fmt.Sprintf("%s is required", key))
		}
		return "", false
	}
	return val, true
}

func (l *envLoader) getString(key, def string, required bool) string {
	if val, ok := l.lookup(key, required); ok {
		return val
	}
	return def
}

func (l *envLoader) getInt(key string, def int, required bool) int {
	val, ok := l.lookup(key, required)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		l.addError(fmt.Sprintf("%s must be a valid integer", key))
		return def
	}
	return i
}

func (l *envLoader) getBool(key string, def bool, required bool) bool {
	val, ok := l.lookup(key, required)
	if !ok {
		return def
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		l.addError(fmt.Sprintf("%s must be a valid boolean", key))
		return def
	}
	return parsed
}

func (l *envLoader) getStringSlice(key string, required bool) []string {
	raw, ok := l.lookup(key, required)
	if !ok {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if required && len(out) == 0 {
		l.addError(fmt.Sprintf("%s must contain at least one entry", key))
	}
	return out
}

func (l *envLoader) addError(err string) {
	l.errs = append(l.errs, err)
}
