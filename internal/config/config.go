package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// storage drivers yang didukung
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// OCR engines
const (
	OCRTesseract = "tesseract"
	OCRVision    = "vision"
	OCRNone      = "none"
)

type Config struct {
	Server struct {
		Port           int               `yaml:"port"`
		AllowedOrigins []string          `yaml:"allowedOrigins"`
		APIKeys        map[string]string `yaml:"apiKeys"` // tenant -> key, empty disables auth
		RateLimit      struct {
			RPS   float64 `yaml:"rps"`
			Burst int     `yaml:"burst"`
		} `yaml:"rateLimit"`
		MaxUploadMB int `yaml:"maxUploadMB"`
	} `yaml:"server"`

	Log struct {
		Development bool   `yaml:"development"`
		File        string `yaml:"file"`
	} `yaml:"log"`

	AI struct {
		APIKey       string        `yaml:"apiKey"`
		BaseURL      string        `yaml:"baseURL"`
		Model        string        `yaml:"model"`
		EnhanceModel string        `yaml:"enhanceModel"`
		MaxTokens    int           `yaml:"maxTokens"`
		Temperature  float32       `yaml:"temperature"`
		Timeout      time.Duration `yaml:"timeout"`
	} `yaml:"ai"`

	Video struct {
		APIKey     string `yaml:"apiKey"`
		Endpoint   string `yaml:"endpoint"`
		MaxResults int    `yaml:"maxResults"`
	} `yaml:"video"`

	OCR struct {
		Engine         string `yaml:"engine"`
		Language       string `yaml:"language"`
		VisionAPIKey   string `yaml:"visionAPIKey"`
		VisionEndpoint string `yaml:"visionEndpoint"`
	} `yaml:"ocr"`

	Storage struct {
		Driver     string `yaml:"driver"`
		SQLitePath string `yaml:"sqlitePath"`
		Table      string `yaml:"table"`
	} `yaml:"storage"`

	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Minio struct {
		Enabled    bool   `yaml:"enabled"`
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Pipeline struct {
		VideosPerQuestion int `yaml:"videosPerQuestion"`
		TopicLimit        int `yaml:"topicLimit"`
		RecentLimit       int `yaml:"recentLimit"`
		ChatLimit         int `yaml:"chatLimit"`
	} `yaml:"pipeline"`

	// SubjectsFile overrides the embedded subject vocabulary
	SubjectsFile string `yaml:"subjectsFile"`
}

// Load baca .env (kalau ada) lalu file config yaml. File yang tidak ada
// bukan error: semua field punya default.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, cfg.Validate()
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Server.RateLimit.RPS <= 0 {
		c.Server.RateLimit.RPS = 5
	}
	if c.Server.RateLimit.Burst <= 0 {
		c.Server.RateLimit.Burst = 20
	}
	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = 25
	}
	if c.AI.Model == "" {
		c.AI.Model = "gpt-4o-mini"
	}
	if c.AI.EnhanceModel == "" {
		c.AI.EnhanceModel = c.AI.Model
	}
	if c.AI.MaxTokens <= 0 {
		c.AI.MaxTokens = 4096
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = 90 * time.Second
	}
	if c.Video.MaxResults <= 0 {
		c.Video.MaxResults = 2
	}
	if c.OCR.Engine == "" {
		c.OCR.Engine = OCRTesseract
	}
	if c.OCR.Language == "" {
		c.OCR.Language = "eng"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverMemory
	}
	if c.Storage.Table == "" {
		c.Storage.Table = "kv_entries"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Pipeline.VideosPerQuestion <= 0 {
		c.Pipeline.VideosPerQuestion = 2
	}
	if c.Pipeline.TopicLimit <= 0 {
		c.Pipeline.TopicLimit = 10
	}
	if c.Pipeline.RecentLimit <= 0 {
		c.Pipeline.RecentLimit = 10
	}
	if c.Pipeline.ChatLimit <= 0 {
		c.Pipeline.ChatLimit = 20
	}
}

// secrets: config dulu, baru env
func (c *Config) applyEnv() {
	c.AI.APIKey = firstNonEmpty(c.AI.APIKey, os.Getenv("PYQ_AI_KEY"), os.Getenv("OPENAI_API_KEY"))
	c.AI.BaseURL = firstNonEmpty(c.AI.BaseURL, os.Getenv("PYQ_AI_BASE_URL"))
	c.Video.APIKey = firstNonEmpty(c.Video.APIKey, os.Getenv("PYQ_VIDEO_KEY"), os.Getenv("YOUTUBE_API_KEY"))
	c.OCR.VisionAPIKey = firstNonEmpty(c.OCR.VisionAPIKey, os.Getenv("PYQ_VISION_KEY"))
	c.Database.Password = firstNonEmpty(c.Database.Password, os.Getenv("PYQ_DB_PASSWORD"))
	c.Redis.Password = firstNonEmpty(c.Redis.Password, os.Getenv("PYQ_REDIS_PASSWORD"))
	c.Minio.SecretKey = firstNonEmpty(c.Minio.SecretKey, os.Getenv("PYQ_MINIO_SECRET_KEY"))
}

// Validate checks enum-like fields and ranges.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory, DriverSQLite, DriverMySQL, DriverPostgres, DriverRedis:
	default:
		return fmt.Errorf("unknown storage driver: %q", c.Storage.Driver)
	}
	switch c.OCR.Engine {
	case OCRTesseract, OCRVision, OCRNone:
	default:
		return fmt.Errorf("unknown ocr engine: %q", c.OCR.Engine)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Storage.Driver == DriverSQLite && c.Storage.SQLitePath == "" {
		return errors.New("storage.sqlitePath is required for the sqlite driver")
	}
	if c.Minio.Enabled && (c.Minio.Endpoint == "" || c.Minio.BucketName == "") {
		return errors.New("minio.endpoint and minio.bucketName are required when minio is enabled")
	}
	return nil
}

// AIEnabled true kalau API key LLM tersedia
func (c *Config) AIEnabled() bool { return c.AI.APIKey != "" }

// VideoEnabled true kalau API key video tersedia
func (c *Config) VideoEnabled() bool { return c.Video.APIKey != "" }

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// Helper untuk build DSN Postgres
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// MaxUploadBytes batas ukuran body upload
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
