package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"Server"`
	Database DatabaseConfig `mapstructure:"Database"`
	Redis    RedisConfig    `mapstructure:"Redis"`
	Upload   UploadConfig   `mapstructure:"Upload"`
	Sweep    SweepConfig    `mapstructure:"Sweep"`
}

type ServerConfig struct {
	Port          string `mapstructure:"Port"`
	PublicBaseURL string `mapstructure:"PublicBaseURL"`
	JWTSecret     string `mapstructure:"JWTSecret"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"Host"`
	Port     string `mapstructure:"Port"`
	User     string `mapstructure:"User"`
	Password string `mapstructure:"Password"`
	Name     string `mapstructure:"Name"`
	SSLMode  string `mapstructure:"SSLMode"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"Addr"`
	Password string `mapstructure:"Password"`
	DB       int    `mapstructure:"DB"`
}

type UploadConfig struct {
	MaxUploadBytes int64  `mapstructure:"MaxUploadBytes"`
	AllowedMIME    string `mapstructure:"AllowedMIME"`
	URLTTLSeconds  int    `mapstructure:"URLTTLSeconds"`
	DefaultQuota   int64  `mapstructure:"DefaultQuota"`
}

type SweepConfig struct {
	OrphanIntervalMinutes  int `mapstructure:"OrphanIntervalMinutes"`
	PendingIntervalMinutes int `mapstructure:"PendingIntervalMinutes"`
	ExpiredIntervalMinutes int `mapstructure:"ExpiredIntervalMinutes"`
	OrphanRetentionHours   int `mapstructure:"OrphanRetentionHours"`
	PendingGraceHours      int `mapstructure:"PendingGraceHours"`
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()

	// Устанавливаем файл конфигурации
	v.SetConfigFile(path)

	// Привязываем переменные окружения
	v.BindEnv("Database.Host", "DATABASE_HOST")
	v.BindEnv("Database.Port", "DATABASE_PORT")
	v.BindEnv("Database.User", "DATABASE_USER")
	v.BindEnv("Database.Password", "DATABASE_PASSWORD")
	v.BindEnv("Database.Name", "DATABASE_NAME")
	v.BindEnv("Database.SSLMode", "DATABASE_SSLMODE")
	v.BindEnv("Server.Port", "HTTP_PORT")
	v.BindEnv("Server.PublicBaseURL", "PUBLIC_BASE_URL")
	v.BindEnv("Server.JWTSecret", "JWT_SECRET")
	v.BindEnv("Redis.Addr", "REDIS_ADDR")
	v.BindEnv("Redis.Password", "REDIS_PASSWORD")

	// Читаем конфигурацию из файла
	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: using only environment variables: %v\n", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Проверяем переменные окружения напрямую если конфигурация неполная
	if cfg.Database.Host == "" {
		cfg.Database.Host = v.GetString("DATABASE_HOST")
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = v.GetString("DATABASE_PORT")
	}
	if cfg.Database.User == "" {
		cfg.Database.User = v.GetString("DATABASE_USER")
	}
	if cfg.Database.Password == "" {
		cfg.Database.Password = v.GetString("DATABASE_PASSWORD")
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = v.GetString("DATABASE_NAME")
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = v.GetString("HTTP_PORT")
	}

	// Проверяем, что все необходимые поля заполнены
	if cfg.Database.Host == "" ||
		cfg.Database.Port == "" ||
		cfg.Database.User == "" ||
		cfg.Database.Password == "" ||
		cfg.Database.Name == "" {
		return nil, fmt.Errorf("database configuration is incomplete: host=%s, port=%s, user=%s, name=%s",
			cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Name)
	}
	if cfg.Server.PublicBaseURL == "" {
		return nil, fmt.Errorf("Server.PublicBaseURL is required")
	}
	if cfg.Server.JWTSecret == "" {
		return nil, fmt.Errorf("Server.JWTSecret is required")
	}

	// Установка значений по умолчанию
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "2525"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Upload.MaxUploadBytes <= 0 {
		cfg.Upload.MaxUploadBytes = 2 * 1024 * 1024
	}
	if cfg.Upload.AllowedMIME == "" {
		cfg.Upload.AllowedMIME = "image/jpeg,image/png,image/webp"
	}
	if cfg.Upload.URLTTLSeconds <= 0 {
		cfg.Upload.URLTTLSeconds = 300
	}
	if cfg.Sweep.OrphanIntervalMinutes <= 0 {
		cfg.Sweep.OrphanIntervalMinutes = 10
	}
	if cfg.Sweep.PendingIntervalMinutes <= 0 {
		cfg.Sweep.PendingIntervalMinutes = 60
	}
	if cfg.Sweep.ExpiredIntervalMinutes <= 0 {
		cfg.Sweep.ExpiredIntervalMinutes = 24 * 60
	}
	if cfg.Sweep.OrphanRetentionHours <= 0 {
		cfg.Sweep.OrphanRetentionHours = 7 * 24
	}
	if cfg.Sweep.PendingGraceHours <= 0 {
		cfg.Sweep.PendingGraceHours = 24
	}

	return &cfg, nil
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

// AllowedMIMEList возвращает список разрешенных MIME-типов
func (c *UploadConfig) AllowedMIMEList() []string {
	parts := strings.Split(c.AllowedMIME, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *UploadConfig) URLTTL() time.Duration {
	return time.Duration(c.URLTTLSeconds) * time.Second
}
