package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Share     ShareConfig
	Log       LogConfig
}

type AppConfig struct {
	Port string
	// PublicBaseURL адрес фронтенда, на котором открываются публичные ссылки
	PublicBaseURL string
	// CORSOrigins origins, которым разрешены запросы из браузера
	CORSOrigins []string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// ShareConfig параметры выдачи и проверки публичных ссылок
type ShareConfig struct {
	MaxPasswordAttempts int           // Неудачных попыток ввода пароля до блокировки
	AttemptWindow       time.Duration // Окно подсчёта неудачных попыток
	CacheTTL            time.Duration // TTL записи ссылки в Redis
	BcryptCost          int
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	// .env необязателен: в контейнере всё приходит через окружение
	if err := viper.ReadInConfig(); err != nil && !isMissingFile(err) {
		return nil, err
	}

	var cfg Config
	cfg.App.Port = viper.GetString("APP_PORT")
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	cfg.App.PublicBaseURL = strings.TrimRight(viper.GetString("PUBLIC_BASE_URL"), "/")
	if cfg.App.PublicBaseURL == "" {
		cfg.App.PublicBaseURL = "http://localhost:3000"
	}
	cfg.App.CORSOrigins = parseList(viper.GetString("CORS_ORIGINS"))
	if len(cfg.App.CORSOrigins) == 0 {
		cfg.App.CORSOrigins = []string{cfg.App.PublicBaseURL}
	}

	cfg.DB.Host = viper.GetString("DB_HOST")
	cfg.DB.Port = viper.GetString("DB_PORT")
	cfg.DB.User = viper.GetString("DB_USER")
	cfg.DB.Password = viper.GetString("DB_PASSWORD")
	cfg.DB.Name = viper.GetString("DB_NAME")
	cfg.Redis.Host = viper.GetString("REDIS_HOST")
	cfg.Redis.Port = viper.GetString("REDIS_PORT")
	cfg.Redis.Password = viper.GetString("REDIS_PASSWORD")

	cfg.Auth.JWTSecret = viper.GetString("JWT_SECRET")
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	cfg.Auth.JWTIssuer = viper.GetString("JWT_ISSUER")

	// Rate limit config
	cfg.RateLimit.RequestsPerSecond = viper.GetFloat64("RATE_LIMIT_RPS")
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 10
	}
	cfg.RateLimit.BurstSize = viper.GetInt("RATE_LIMIT_BURST")
	if cfg.RateLimit.BurstSize == 0 {
		cfg.RateLimit.BurstSize = 20
	}

	cfg.Share = parseShareConfig()

	cfg.Log.Level = viper.GetString("LOG_LEVEL")
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	return &cfg, nil
}

func parseShareConfig() ShareConfig {
	share := ShareConfig{
		MaxPasswordAttempts: viper.GetInt("SHARE_MAX_ATTEMPTS"),
		AttemptWindow:       viper.GetDuration("SHARE_ATTEMPT_WINDOW"),
		CacheTTL:            viper.GetDuration("SHARE_CACHE_TTL"),
		BcryptCost:          viper.GetInt("BCRYPT_COST"),
	}

	if share.MaxPasswordAttempts <= 0 {
		share.MaxPasswordAttempts = 10
	}
	if share.AttemptWindow <= 0 {
		share.AttemptWindow = 15 * time.Minute
	}
	if share.CacheTTL <= 0 {
		share.CacheTTL = time.Hour
	}
	if share.BcryptCost == 0 {
		share.BcryptCost = 12
	}

	return share
}

// parseList разбирает список через запятую, пустые элементы пропускаются
func parseList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimRight(strings.TrimSpace(item), "/"); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func isMissingFile(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}
