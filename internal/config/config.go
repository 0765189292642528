package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	DB        DBConfig
	Storage   StorageConfig
	MinIO     MinIOConfig
	S3        S3Config
	JWT       JWTConfig
	Server    ServerConfig
	RateLimit RateLimitConfig
	Reconcile ReconcileConfig
	Folders   FolderConfig
	Audit     AuditConfig
	Log       LogConfig
}

type DBConfig struct {
	Driver   string `validate:"oneof=postgres sqlite"`
	Host     string `validate:"required_if=Driver postgres"`
	Port     string `validate:"required_if=Driver postgres"`
	User     string
	Password string
	Name     string `validate:"required_if=Driver postgres"`
	SSLMode  string
	Path     string        `validate:"required_if=Driver sqlite"`
	Timeout  time.Duration `validate:"gt=0"`
}

type StorageConfig struct {
	Driver  string        `validate:"oneof=minio s3 memory"`
	Timeout time.Duration `validate:"gt=0"`
}

type MinIOConfig struct {
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
}

type S3Config struct {
	Region         string
	Bucket         string
	Endpoint       string
	AccessKey      string
	SecretKey      string
	PublicURL      string
	ForcePathStyle bool
}

type JWTConfig struct {
	Secret          string `validate:"required"`
	ExpirationHours int    `validate:"gt=0"`
}

type ServerConfig struct {
	Port        string `validate:"required"`
	BodyLimitMB int    `validate:"gt=0"`
	CORSOrigins string
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `validate:"gte=0"`
	Burst             int     `validate:"gte=0"`
}

type ReconcileConfig struct {
	Interval time.Duration `validate:"gte=0"`
	Grace    time.Duration `validate:"gte=0"`
}

type FolderConfig struct {
	MaxDepth int `validate:"gt=0"`
}

type AuditConfig struct {
	QueueSize int `validate:"gt=0"`
}

type LogConfig struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

var validate = validator.New()

var defaults = map[string]interface{}{
	"db_driver":            "postgres",
	"db_host":              "localhost",
	"db_port":              "5432",
	"db_user":              "filevault",
	"db_password":          "filevault_secret",
	"db_name":              "filevault",
	"db_sslmode":           "disable",
	"db_path":              "filevault.db",
	"db_timeout":           10 * time.Second,
	"storage_driver":       "minio",
	"storage_timeout":      30 * time.Second,
	"minio_endpoint":       "localhost:9000",
	"minio_access_key":     "filevault",
	"minio_secret_key":     "filevault_secret",
	"minio_bucket":         "filevault",
	"minio_use_ssl":        false,
	"s3_region":            "us-east-1",
	"s3_bucket":            "filevault",
	"s3_force_path_style":  false,
	"jwt_secret":           "change-me-in-production",
	"jwt_expiration_hours": 24,
	"server_port":          "8080",
	"server_body_limit_mb": 100,
	"cors_origins":         "*",
	"rate_limit_rps":       5.0,
	"rate_limit_burst":     10,
	"reconcile_interval":   5 * time.Minute,
	"reconcile_grace":      time.Minute,
	"max_folder_depth":     64,
	"audit_queue_size":     1000,
	"log_max_size_mb":      100,
	"log_max_backups":      5,
	"log_max_age_days":     30,
	"log_compress":         true,
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is ignored.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Load reads defaults, the optional config file at path, then environment
// variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	publicEndpoint := v.GetString("minio_public_endpoint")
	if publicEndpoint == "" {
		publicEndpoint = v.GetString("minio_endpoint")
	}

	cfg := &Config{
		DB: DBConfig{
			Driver:   v.GetString("db_driver"),
			Host:     v.GetString("db_host"),
			Port:     v.GetString("db_port"),
			User:     v.GetString("db_user"),
			Password: v.GetString("db_password"),
			Name:     v.GetString("db_name"),
			SSLMode:  v.GetString("db_sslmode"),
			Path:     v.GetString("db_path"),
			Timeout:  v.GetDuration("db_timeout"),
		},
		Storage: StorageConfig{
			Driver:  v.GetString("storage_driver"),
			Timeout: v.GetDuration("storage_timeout"),
		},
		MinIO: MinIOConfig{
			Endpoint:       v.GetString("minio_endpoint"),
			PublicEndpoint: publicEndpoint,
			AccessKey:      v.GetString("minio_access_key"),
			SecretKey:      v.GetString("minio_secret_key"),
			Bucket:         v.GetString("minio_bucket"),
			UseSSL:         v.GetBool("minio_use_ssl"),
		},
		S3: S3Config{
			Region:         v.GetString("s3_region"),
			Bucket:         v.GetString("s3_bucket"),
			Endpoint:       v.GetString("s3_endpoint"),
			AccessKey:      v.GetString("s3_access_key"),
			SecretKey:      v.GetString("s3_secret_key"),
			PublicURL:      v.GetString("s3_public_url"),
			ForcePathStyle: v.GetBool("s3_force_path_style"),
		},
		JWT: JWTConfig{
			Secret:          v.GetString("jwt_secret"),
			ExpirationHours: v.GetInt("jwt_expiration_hours"),
		},
		Server: ServerConfig{
			Port:        v.GetString("server_port"),
			BodyLimitMB: v.GetInt("server_body_limit_mb"),
			CORSOrigins: v.GetString("cors_origins"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: v.GetFloat64("rate_limit_rps"),
			Burst:             v.GetInt("rate_limit_burst"),
		},
		Reconcile: ReconcileConfig{
			Interval: v.GetDuration("reconcile_interval"),
			Grace:    v.GetDuration("reconcile_grace"),
		},
		Folders: FolderConfig{
			MaxDepth: v.GetInt("max_folder_depth"),
		},
		Audit: AuditConfig{
			QueueSize: v.GetInt("audit_queue_size"),
		},
		Log: LogConfig{
			File:       v.GetString("log_file"),
			MaxSizeMB:  v.GetInt("log_max_size_mb"),
			MaxBackups: v.GetInt("log_max_backups"),
			MaxAgeDays: v.GetInt("log_max_age_days"),
			Compress:   v.GetBool("log_compress"),
		},
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("invalid configuration: %s failed on '%s' (value: %v)", e.Namespace(), e.Tag(), e.Value())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch cfg.Storage.Driver {
	case "minio":
		if cfg.MinIO.Endpoint == "" || cfg.MinIO.Bucket == "" {
			return fmt.Errorf("invalid configuration: minio storage requires MINIO_ENDPOINT and MINIO_BUCKET")
		}
	case "s3":
		if cfg.S3.Bucket == "" || cfg.S3.Region == "" {
			return fmt.Errorf("invalid configuration: s3 storage requires S3_BUCKET and S3_REGION")
		}
	}

	// A delete holds its purge mark for up to one blob delete plus one unmark.
	if cfg.Reconcile.Interval > 0 && cfg.Reconcile.Grace <= cfg.Storage.Timeout+cfg.DB.Timeout {
		return fmt.Errorf("invalid configuration: RECONCILE_GRACE (%s) must exceed STORAGE_TIMEOUT + DB_TIMEOUT (%s)",
			cfg.Reconcile.Grace, cfg.Storage.Timeout+cfg.DB.Timeout)
	}
	return nil
}
