// Package config loads application configuration from YAML files with
// environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Model, Training, etc.).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Model     ModelConfig     `yaml:"model"`
	Training  TrainingConfig  `yaml:"training"`
	History   HistoryConfig   `yaml:"history"`
	Cache     CacheConfig     `yaml:"cache"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`

	// RateLimit is the /predict allowance per client per minute; 0 disables it.
	RateLimit int `yaml:"rateLimit"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	PredictionEvents string `yaml:"predictionEvents"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// ModelConfig locates the artifact served by the inference service.
type ModelConfig struct {
	ArtifactPath      string   `yaml:"artifactPath"`
	ExpectedClasses   []string `yaml:"expectedClasses"`
	ConfidenceDecimal int      `yaml:"confidenceDecimals"`
}

// TrainingConfig controls the offline pipeline: dataset layout, feature
// space bounds, classifier hyperparameters and output paths.
type TrainingConfig struct {
	DatasetPath  string   `yaml:"datasetPath"`
	TextColumn   string   `yaml:"textColumn"`
	LabelColumn  string   `yaml:"labelColumn"`
	OutputDir    string   `yaml:"outputDir"`
	ArtifactName string   `yaml:"artifactName"`
	MetadataName string   `yaml:"metadataName"`
	TestRatio    float64  `yaml:"testRatio"`
	Seed         int64    `yaml:"seed"`
	MaxFeatures  int      `yaml:"maxFeatures"`
	NGramMin     int      `yaml:"ngramMin"`
	NGramMax     int      `yaml:"ngramMax"`
	MinDF        int      `yaml:"minDF"`
	MaxDF        float64  `yaml:"maxDF"`
	StripAccents bool     `yaml:"stripAccents"`
	StopWords    bool     `yaml:"stopWords"`
	C            float64  `yaml:"c"`
	MaxIter      int      `yaml:"maxIter"`
	Alpha        float64  `yaml:"alpha"`
	Candidates   []string `yaml:"candidates"`
	TopFeatures  int      `yaml:"topFeatures"`
}

// HistoryConfig controls persistence of served predictions.
type HistoryConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxFailures  int           `yaml:"maxFailures"`
	ResetTimeout time.Duration `yaml:"resetTimeout"`
}

// CacheConfig controls the Redis prediction cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

// AnalyticsConfig controls prediction event publishing and aggregation.
type AnalyticsConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Port             int           `yaml:"port"`
	BufferSize       int           `yaml:"bufferSize"`
	FlushInterval    time.Duration `yaml:"flushInterval"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// ArtifactPath joins the training output directory with the artifact name.
func (t TrainingConfig) ArtifactPath() string {
	return filepath.Join(t.OutputDir, t.ArtifactName)
}

// MetadataPath joins the training output directory with the metadata name.
func (t TrainingConfig) MetadataPath() string {
	return filepath.Join(t.OutputDir, t.MetadataName)
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	t := c.Training
	if t.TestRatio <= 0 || t.TestRatio >= 1 {
		return fmt.Errorf("training.testRatio must be in (0,1), got %v", t.TestRatio)
	}
	if t.NGramMin < 1 || t.NGramMax < t.NGramMin {
		return fmt.Errorf("training.ngram range invalid: [%d,%d]", t.NGramMin, t.NGramMax)
	}
	if t.MaxDF <= 0 || t.MaxDF > 1 {
		return fmt.Errorf("training.maxDF must be in (0,1], got %v", t.MaxDF)
	}
	if c.Model.ConfidenceDecimal < 0 || c.Model.ConfidenceDecimal > 12 {
		return fmt.Errorf("model.confidenceDecimals out of range: %d", c.Model.ConfidenceDecimal)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			RequestTimeout:  5 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			AllowedOrigins:  []string{"*"},
			RateLimit:       600,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "sentiment_db",
			User:            "sentiment",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "sentiment-analytics",
			Topics: KafkaTopics{
				PredictionEvents: "prediction-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Model: ModelConfig{
			ArtifactPath:      "models/sentiment_model.snta",
			ConfidenceDecimal: 4,
		},
		Training: TrainingConfig{
			DatasetPath:  "data/dataset_sentimientos_500.csv",
			TextColumn:   "texto",
			LabelColumn:  "sentimiento",
			OutputDir:    "models",
			ArtifactName: "sentiment_model.snta",
			MetadataName: "model_metadata.json",
			TestRatio:    0.2,
			Seed:         42,
			MaxFeatures:  5000,
			NGramMin:     1,
			NGramMax:     2,
			MinDF:        2,
			MaxDF:        0.95,
			C:            1.0,
			MaxIter:      1000,
			Alpha:        1.0,
			Candidates:   []string{"logistic_regression", "naive_bayes"},
			TopFeatures:  15,
		},
		History: HistoryConfig{
			Enabled:      false,
			Timeout:      2 * time.Second,
			MaxFailures:  5,
			ResetTimeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			Enabled: false,
			TTL:     10 * time.Minute,
		},
		Analytics: AnalyticsConfig{
			Enabled:          false,
			Port:             8090,
			BufferSize:       1000,
			FlushInterval:    2 * time.Second,
			SnapshotInterval: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads SA_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	setInt("SA_SERVER_PORT", &cfg.Server.Port)
	setInt("SA_SERVER_RATE_LIMIT", &cfg.Server.RateLimit)
	setString("SA_POSTGRES_HOST", &cfg.Postgres.Host)
	setInt("SA_POSTGRES_PORT", &cfg.Postgres.Port)
	setString("SA_POSTGRES_DATABASE", &cfg.Postgres.Database)
	setString("SA_POSTGRES_USER", &cfg.Postgres.User)
	setString("SA_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	setString("SA_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)
	if v := os.Getenv("SA_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	setString("SA_REDIS_ADDR", &cfg.Redis.Addr)
	setString("SA_REDIS_PASSWORD", &cfg.Redis.Password)
	setString("SA_MODEL_PATH", &cfg.Model.ArtifactPath)
	if v := os.Getenv("SA_MODEL_EXPECTED_CLASSES"); v != "" {
		cfg.Model.ExpectedClasses = strings.Split(v, ",")
	}
	setString("SA_TRAINING_DATASET", &cfg.Training.DatasetPath)
	setString("SA_TRAINING_OUTPUT_DIR", &cfg.Training.OutputDir)
	setBool("SA_HISTORY_ENABLED", &cfg.History.Enabled)
	setBool("SA_CACHE_ENABLED", &cfg.Cache.Enabled)
	setBool("SA_ANALYTICS_ENABLED", &cfg.Analytics.Enabled)
	setString("SA_LOGGING_LEVEL", &cfg.Logging.Level)
	setString("SA_LOGGING_FORMAT", &cfg.Logging.Format)
	setInt("SA_METRICS_PORT", &cfg.Metrics.Port)
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
