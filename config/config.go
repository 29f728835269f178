package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Auth     AuthConfig     `yaml:"auth"`
	Store    StoreConfig    `yaml:"store"`
	Storage  StorageConfig  `yaml:"storage"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Upload   UploadConfig   `yaml:"upload"`
}

type ServerConfig struct {
	Port              int    `yaml:"port"`
	CORSOrigin        string `yaml:"cors_origin"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// StoreConfig selects the metadata-record backend
type StoreConfig struct {
	Backend       string `yaml:"backend"` // memory, redis
	RedisURL      string `yaml:"redis_url"`
	ChannelPrefix string `yaml:"channel_prefix"`
	MaxDocuments  int    `yaml:"max_documents"`
}

// StorageConfig selects the binary-transfer backend
type StorageConfig struct {
	Backend string      `yaml:"backend"` // minio, gcs
	Minio   MinioConfig `yaml:"minio"`
	GCS     GCSConfig   `yaml:"gcs"`
}

type MinioConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	Region     string `yaml:"region"`
	UseSSL     bool   `yaml:"use_ssl"`
	ExpireDays int    `yaml:"expire_days"`
}

type GCSConfig struct {
	Bucket           string `yaml:"bucket"`
	CredentialsFile  string `yaml:"credentials_file"`
	URLExpiryMinutes int    `yaml:"url_expiry_minutes"`
	ChunkSizeMB      int    `yaml:"chunk_size_mb"`
}

// URLExpiry is how long a resolved download URL stays valid
func (c GCSConfig) URLExpiry() time.Duration {
	return time.Duration(c.URLExpiryMinutes) * time.Minute
}

type AnalysisConfig struct {
	BaseURL        string `yaml:"base_url"`
	QueryURL       string `yaml:"query_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	CallbackSeed   string `yaml:"callback_seed"`
}

// Timeout bounds a single analysis call
func (c AnalysisConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type UploadConfig struct {
	MaxSizeMB              int `yaml:"max_size_mb"`
	TransferTimeoutSeconds int `yaml:"transfer_timeout_seconds"`
}

// MaxBytes is the largest accepted upload
func (c UploadConfig) MaxBytes() int64 {
	return int64(c.MaxSizeMB) << 20
}

// TransferTimeout bounds the binary transfer stage
func (c UploadConfig) TransferTimeout() time.Duration {
	return time.Duration(c.TransferTimeoutSeconds) * time.Second
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv lets secrets stay out of the YAML file
func (c *Config) applyEnv() {
	overrides := []struct {
		key string
		dst *string
	}{
		{"LEGALMIND_JWT_SECRET", &c.Auth.JWTSecret},
		{"LEGALMIND_REDIS_URL", &c.Store.RedisURL},
		{"LEGALMIND_CALLBACK_SEED", &c.Analysis.CallbackSeed},
		{"MINIO_ACCESS_KEY", &c.Storage.Minio.AccessKey},
		{"MINIO_SECRET_KEY", &c.Storage.Minio.SecretKey},
		{"GOOGLE_APPLICATION_CREDENTIALS", &c.Storage.GCS.CredentialsFile},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.key); v != "" {
			*o.dst = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.CORSOrigin == "" {
		c.Server.CORSOrigin = "*"
	}
	if c.Server.RequestsPerMinute == 0 {
		c.Server.RequestsPerMinute = 120
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "memory"
	}
	if c.Store.ChannelPrefix == "" {
		c.Store.ChannelPrefix = "legalmind"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "minio"
	}
	if c.Storage.Minio.Region == "" {
		c.Storage.Minio.Region = "us-east-1"
	}
	if c.Storage.Minio.ExpireDays == 0 {
		c.Storage.Minio.ExpireDays = 7
	}
	if c.Storage.GCS.URLExpiryMinutes == 0 {
		c.Storage.GCS.URLExpiryMinutes = 60
	}
	if c.Storage.GCS.ChunkSizeMB == 0 {
		c.Storage.GCS.ChunkSizeMB = 8
	}
	if c.Analysis.QueryURL == "" && c.Analysis.BaseURL != "" {
		c.Analysis.QueryURL = c.Analysis.BaseURL + "/query-document"
	}
	if c.Analysis.TimeoutSeconds == 0 {
		c.Analysis.TimeoutSeconds = 300
	}
	if c.Upload.MaxSizeMB == 0 {
		c.Upload.MaxSizeMB = 25
	}
	if c.Upload.TransferTimeoutSeconds == 0 {
		c.Upload.TransferTimeoutSeconds = 600
	}
}

// Validate rejects backend selections the server can't wire
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory":
	case "redis":
		if c.Store.RedisURL == "" {
			return fmt.Errorf("store.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	switch c.Storage.Backend {
	case "minio":
		if c.Storage.Minio.Bucket == "" {
			return fmt.Errorf("storage.minio.bucket is required")
		}
	case "gcs":
		if c.Storage.GCS.Bucket == "" {
			return fmt.Errorf("storage.gcs.bucket is required")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if c.Analysis.BaseURL == "" {
		return fmt.Errorf("analysis.base_url is required")
	}
	return nil
}
