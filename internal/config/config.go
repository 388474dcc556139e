package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers accepted for uploaded documents.
const (
	StorageLocal      = "local"
	StorageCloudinary = "cloudinary"
	StorageS3         = "s3"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName             string
	AppEnv              string
	AppPort             string
	LogLevel            string
	CORSAllowOrigins    string
	DatabaseDriver      string
	DatabaseURL         string
	RedisURL            string
	EvaluationCacheTTL  time.Duration
	GradingPolicy       string
	MinCoefficient      float64
	JWTSecret           string
	JWTTTL              time.Duration
	AdminUsername       string
	AdminPasswordHash   string
	LoginRateLimit      int
	StorageDriver       string
	StorageLocalDir     string
	StoragePublicURL    string
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string
	S3Bucket            string
	S3Region            string
	S3Endpoint          string
	S3AccessKey         string
	S3SecretKey         string
	S3UseSSL            bool
	S3PublicURL         string
	MaxUploadMB         int
	NATSURL             string
	NATSSubject         string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// IsDevelopment reports whether the service runs in a local environment.
func (c Config) IsDevelopment() bool {
	switch strings.ToLower(c.AppEnv) {
	case "", "development", "dev", "local":
		return true
	default:
		return false
	}
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GRADEBOOK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Gradebook API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("evaluation.cache_ttl", "10m")
	v.SetDefault("grading.policy", "simple")
	v.SetDefault("grading.min_coefficient", 1)
	v.SetDefault("jwt.ttl", "12h")
	v.SetDefault("admin.username", "admin")
	v.SetDefault("auth.login_rate_limit", 5)
	v.SetDefault("storage.driver", StorageLocal)
	v.SetDefault("storage.local_dir", "pdfs")
	v.SetDefault("storage.public_url", "/files")
	v.SetDefault("cloudinary.folder", "gradebook/documents")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("upload.max_mb", 10)
	v.SetDefault("nats.subject", "gradebook.events")

	ttl, err := parseDuration(v, "evaluation.cache_ttl", "10m")
	if err != nil {
		return Config{}, fmt.Errorf("invalid evaluation cache ttl: %w", err)
	}

	jwtTTL, err := parseDuration(v, "jwt.ttl", "12h")
	if err != nil {
		return Config{}, fmt.Errorf("invalid jwt ttl: %w", err)
	}

	cfg := Config{
		AppName:             v.GetString("app.name"),
		AppEnv:              v.GetString("app.env"),
		AppPort:             v.GetString("app.port"),
		LogLevel:            strings.ToLower(v.GetString("log.level")),
		CORSAllowOrigins:    v.GetString("cors.allow_origins"),
		DatabaseDriver:      strings.ToLower(v.GetString("database.driver")),
		DatabaseURL:         v.GetString("database.url"),
		RedisURL:            v.GetString("redis.url"),
		EvaluationCacheTTL:  ttl,
		GradingPolicy:       strings.ToLower(v.GetString("grading.policy")),
		MinCoefficient:      v.GetFloat64("grading.min_coefficient"),
		JWTSecret:           v.GetString("jwt.secret"),
		JWTTTL:              jwtTTL,
		AdminUsername:       v.GetString("admin.username"),
		AdminPasswordHash:   v.GetString("admin.password_hash"),
		LoginRateLimit:      v.GetInt("auth.login_rate_limit"),
		StorageDriver:       strings.ToLower(v.GetString("storage.driver")),
		StorageLocalDir:     v.GetString("storage.local_dir"),
		StoragePublicURL:    v.GetString("storage.public_url"),
		CloudinaryCloudName: v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:    v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret: v.GetString("cloudinary.api_secret"),
		CloudinaryFolder:    v.GetString("cloudinary.folder"),
		S3Bucket:            v.GetString("s3.bucket"),
		S3Region:            v.GetString("s3.region"),
		S3Endpoint:          v.GetString("s3.endpoint"),
		S3AccessKey:         v.GetString("s3.access_key"),
		S3SecretKey:         v.GetString("s3.secret_key"),
		S3UseSSL:            v.GetBool("s3.use_ssl"),
		S3PublicURL:         v.GetString("s3.public_url"),
		MaxUploadMB:         v.GetInt("upload.max_mb"),
		NATSURL:             v.GetString("nats.url"),
		NATSSubject:         v.GetString("nats.subject"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.StorageDriver {
	case StorageLocal, StorageCloudinary, StorageS3:
	default:
		return Config{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	if cfg.MinCoefficient < 0 {
		cfg.MinCoefficient = 1
	}

	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 10
	}

	if cfg.LoginRateLimit <= 0 {
		cfg.LoginRateLimit = 5
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key, fallback string) (time.Duration, error) {
	raw := v.GetString(key)
	if raw == "" {
		raw = fallback
	}
	return time.ParseDuration(raw)
}
