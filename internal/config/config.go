// Package config handles application configuration loading from a YAML file
// with environment variable overrides.
package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	contextutils "lexiboost/internal/utils"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Database  DatabaseConfig  `json:"database" yaml:"database"`
	Preloader PreloaderConfig `json:"preloader" yaml:"preloader"`
	Quiz      QuizConfig      `json:"quiz" yaml:"quiz"`
	Explainer ExplainerConfig `json:"explainer" yaml:"explainer"`

	// OpenTelemetry Configuration
	OpenTelemetry OpenTelemetryConfig `json:"open_telemetry" yaml:"open_telemetry"`

	// Internal fields
	IsTest bool `json:"is_test" yaml:"is_test"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port          string   `json:"port" yaml:"port"`
	SessionSecret string   `json:"session_secret" yaml:"session_secret"`
	Debug         bool     `json:"debug" yaml:"debug"`
	LogLevel      string   `json:"log_level" yaml:"log_level"`
	CORSOrigins   []string `json:"cors_origins" yaml:"cors_origins"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL             string        `json:"url" yaml:"url"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// PreloaderConfig tunes the per-session question preloading subsystem.
type PreloaderConfig struct {
	// QueueSize bounds each session's preload queue.
	QueueSize int `json:"queue_size" yaml:"queue_size"`
	// PreloadAhead is the queue fullness the background worker maintains.
	PreloadAhead int `json:"preload_ahead" yaml:"preload_ahead"`
	// QuestionTTL is how long a preloaded question may sit in the queue
	// before it is discarded as stale.
	QuestionTTL time.Duration `json:"question_ttl" yaml:"question_ttl"`
	// StopTimeout bounds how long StopSession waits for the worker to exit.
	StopTimeout time.Duration `json:"stop_timeout" yaml:"stop_timeout"`
	// CacheSize bounds the shared explanation cache.
	CacheSize int `json:"cache_size" yaml:"cache_size"`
}

// QuizConfig represents quiz behavior configuration
type QuizConfig struct {
	MaxQuestionsPerSession int  `json:"max_questions_per_session" yaml:"max_questions_per_session"`
	HoverZhEnabled         bool `json:"hover_zh_enabled" yaml:"hover_zh_enabled"`
}

// ExplainerConfig represents the external explanation provider configuration
type ExplainerConfig struct {
	URL          string        `json:"url" yaml:"url"`
	APIKey       string        `json:"api_key" yaml:"api_key"`
	Model        string        `json:"model" yaml:"model"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout"`
	DefaultLevel string        `json:"default_level" yaml:"default_level"`
	// MockMode serves canned deterministic explanations instead of calling
	// the provider; used in development and tests.
	MockMode bool `json:"mock_mode" yaml:"mock_mode"`
}

// OpenTelemetryConfig holds all OpenTelemetry-related configuration
type OpenTelemetryConfig struct {
	Endpoint       string            `json:"endpoint" yaml:"endpoint"`               // Default: "http://localhost:4317"
	Protocol       string            `json:"protocol" yaml:"protocol"`               // "grpc" or "http", default: "grpc"
	Insecure       bool              `json:"insecure" yaml:"insecure"`               // Default: true (for localhost)
	Headers        map[string]string `json:"headers" yaml:"headers"`                 // For authenticated endpoints
	ServiceName    string            `json:"service_name" yaml:"service_name"`       // Default: "lexiboost-backend"
	ServiceVersion string            `json:"service_version" yaml:"service_version"` // From version package
	EnableTracing  bool              `json:"enable_tracing" yaml:"enable_tracing"`
	EnableMetrics  bool              `json:"enable_metrics" yaml:"enable_metrics"`
	EnableLogging  bool              `json:"enable_logging" yaml:"enable_logging"`
	SamplingRate   float64           `json:"sampling_rate" yaml:"sampling_rate"` // Default: 1.0 (100%)
}

// NewConfig loads configuration from the YAML file first, then overrides with
// environment variables.
func NewConfig() (result0 *Config, err error) {
	config, err := loadConfigWithOverrides()
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config: %w", err)
	}

	config.overrideFromEnv()
	config.applyDefaults()

	return config, nil
}

// applyDefaults fills zero-valued tunables with their constants.
func (c *Config) applyDefaults() {
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = DatabaseConnMaxLifetime
	}
	if c.Preloader.QueueSize == 0 {
		c.Preloader.QueueSize = DefaultPreloadQueueSize
	}
	if c.Preloader.PreloadAhead == 0 {
		c.Preloader.PreloadAhead = DefaultPreloadAhead
	}
	if c.Preloader.QuestionTTL == 0 {
		c.Preloader.QuestionTTL = DefaultQuestionTTL
	}
	if c.Preloader.StopTimeout == 0 {
		c.Preloader.StopTimeout = DefaultPreloaderStopTimeout
	}
	if c.Preloader.CacheSize == 0 {
		c.Preloader.CacheSize = DefaultExplanationCacheSize
	}
	if c.Quiz.MaxQuestionsPerSession == 0 {
		c.Quiz.MaxQuestionsPerSession = DefaultMaxQuestionsPerSession
	}
	if c.Explainer.Timeout == 0 {
		c.Explainer.Timeout = ExplainerTimeout
	}
	if c.Explainer.DefaultLevel == "" {
		c.Explainer.DefaultLevel = DefaultWordLevel
	}
}

// overrideFromEnv overrides config values with environment variables using reflection
func (c *Config) overrideFromEnv() {
	overrideStructFromEnvWithPrefix(c, "")
}

// overrideStructFromEnvWithPrefix recursively overrides struct fields with
// environment variables derived from yaml tags (SERVER_PORT, DATABASE_URL, ...).
func overrideStructFromEnvWithPrefix(v interface{}, prefix string) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		if !field.CanSet() {
			continue
		}

		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}

		envKey := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
		if prefix != "" {
			envKey = prefix + "_" + envKey
		}

		switch field.Kind() {
		case reflect.String:
			if envVal := os.Getenv(envKey); envVal != "" {
				field.SetString(envVal)
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if envVal := os.Getenv(envKey); envVal != "" {
				// time.Duration fields accept Go duration syntax
				if field.Type() == reflect.TypeOf(time.Duration(0)) {
					if d, err := time.ParseDuration(envVal); err == nil {
						field.SetInt(int64(d))
					}
					continue
				}
				if intVal, err := strconv.ParseInt(envVal, 10, 64); err == nil {
					field.SetInt(intVal)
				}
			}
		case reflect.Float32, reflect.Float64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if floatVal, err := strconv.ParseFloat(envVal, 64); err == nil {
					field.SetFloat(floatVal)
				}
			}
		case reflect.Bool:
			if envVal := os.Getenv(envKey); envVal != "" {
				if boolVal, err := strconv.ParseBool(envVal); err == nil {
					field.SetBool(boolVal)
				}
			}
		case reflect.Slice:
			if envVal := os.Getenv(envKey); envVal != "" {
				if field.Type().Elem().Kind() == reflect.String {
					field.Set(reflect.ValueOf(strings.Split(envVal, ",")))
				}
			}
		case reflect.Struct:
			if field.CanAddr() {
				overrideStructFromEnvWithPrefix(field.Addr().Interface(), envKey)
			}
		case reflect.Ptr:
			if !field.IsNil() && field.Elem().Kind() == reflect.Struct {
				overrideStructFromEnvWithPrefix(field.Interface(), envKey)
			}
		}
	}
}

// loadConfigWithOverrides loads the config file, honoring LEXIBOOST_CONFIG_FILE.
func loadConfigWithOverrides() (result0 *Config, err error) {
	if envPath := os.Getenv("LEXIBOOST_CONFIG_FILE"); envPath != "" {
		config, err := loadConfigFromFile(envPath)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config from %s: %w", envPath, err)
		}
		return config, nil
	}

	config, err := loadConfigFromFile("config.yaml")
	if err != nil {
		if os.IsNotExist(err) {
			// No config file is fine; env vars and defaults carry the load.
			return &Config{}, nil
		}
		return nil, err
	}
	return config, nil
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (result0 *Config, err error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(yamlFile, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
