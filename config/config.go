package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config 从环境变量读取
type Config struct {
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"APP_ENV"` // development | production

	// 数据库：DB_DRIVER=postgres|sqlite；DATABASE_URL 为空时按 DB_HOST 等拼接
	DBDriver    string `mapstructure:"DB_DRIVER"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBHost      string `mapstructure:"DB_HOST"`
	DBUser      string `mapstructure:"DB_USER"`
	DBPassword  string `mapstructure:"DB_PASSWORD"`
	DBName      string `mapstructure:"DB_NAME"`
	DBPort      string `mapstructure:"DB_PORT"`

	RedisAddr string `mapstructure:"REDIS_ADDR"`
	RedisPwd  string `mapstructure:"REDIS_PASSWORD"`
	RedisDB   int    `mapstructure:"REDIS_DB"`

	JWTSecret string        `mapstructure:"JWT_SECRET"`
	TokenTTL  time.Duration `mapstructure:"TOKEN_TTL"`

	WebOrigin  string        `mapstructure:"WEB_ORIGIN"`
	RPID       string        `mapstructure:"RP_ID"`
	RPOrigins  []string      `mapstructure:"RP_ORIGINS"`
	SessionTTL time.Duration `mapstructure:"SESSION_TTL"` // WebAuthn 仪式数据 TTL

	LastSeenThrottle time.Duration `mapstructure:"LAST_SEEN_THROTTLE"`
	LoginRateLimit   int           `mapstructure:"LOGIN_RATE_LIMIT"` // 每分钟每 IP

	BootstrapEmail    string `mapstructure:"BOOTSTRAP_EMAIL"`
	BootstrapUsername string `mapstructure:"BOOTSTRAP_USERNAME"`
	BootstrapPassword string `mapstructure:"BOOTSTRAP_PASSWORD"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     string `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`
	AppName      string `mapstructure:"APP_NAME"`
}

// LoadEnv 读取 .env（不存在时忽略）
func LoadEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("load .env")
	}
}

func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	defaults := map[string]any{
		"PORT":               "3001",
		"APP_ENV":            "development",
		"DB_DRIVER":          "postgres",
		"DATABASE_URL":       "",
		"DB_HOST":            "127.0.0.1",
		"DB_USER":            "postgres",
		"DB_PASSWORD":        "postgres",
		"DB_NAME":            "campus_rent",
		"DB_PORT":            "5432",
		"REDIS_ADDR":         "127.0.0.1:6379",
		"REDIS_PASSWORD":     "",
		"REDIS_DB":           0,
		"JWT_SECRET":         "",
		"TOKEN_TTL":          "24h",
		"WEB_ORIGIN":         "http://localhost:5173",
		"RP_ID":              "localhost",
		"RP_ORIGINS":         "http://localhost:5173",
		"SESSION_TTL":        "10m",
		"LAST_SEEN_THROTTLE": "5m",
		"LOGIN_RATE_LIMIT":   20,
		"BOOTSTRAP_EMAIL":    "",
		"BOOTSTRAP_USERNAME": "superadmin",
		"BOOTSTRAP_PASSWORD": "",
		"SMTP_HOST":          "",
		"SMTP_PORT":          "587",
		"SMTP_USERNAME":      "",
		"SMTP_PASSWORD":      "",
		"SMTP_FROM":          "",
		"APP_NAME":           "Campus Rent",
	}
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	// viper 不会自动拆分逗号列表
	cfg.RPOrigins = splitCSV(v.GetString("RP_ORIGINS"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 汇总所有配置问题，一次性报出
func (c *Config) Validate() error {
	var result *multierror.Error
	if c.JWTSecret == "" {
		if c.IsProduction() {
			result = multierror.Append(result, errors.New("JWT_SECRET is required in production"))
		} else {
			c.JWTSecret = "dev-secret-change-me"
			log.Warn().Msg("JWT_SECRET not set, using development secret")
		}
	}
	if c.DBDriver != "postgres" && c.DBDriver != "sqlite" {
		result = multierror.Append(result, fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver))
	}
	if c.TokenTTL <= 0 {
		result = multierror.Append(result, errors.New("TOKEN_TTL must be positive"))
	}
	if c.SessionTTL <= 0 {
		result = multierror.Append(result, errors.New("SESSION_TTL must be positive"))
	}
	if len(c.RPOrigins) == 0 {
		result = multierror.Append(result, errors.New("RP_ORIGINS must list at least one origin"))
	}
	if (c.BootstrapEmail == "") != (c.BootstrapPassword == "") {
		result = multierror.Append(result, errors.New("BOOTSTRAP_EMAIL and BOOTSTRAP_PASSWORD must be set together"))
	}
	return result.ErrorOrNil()
}

func (c *Config) IsProduction() bool { return c.Env == "production" }

// DSN 优先使用 DATABASE_URL
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	if c.DBDriver == "sqlite" {
		return "campus_rent.db"
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort,
	)
}

func splitCSV(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if t := strings.TrimSpace(o); t != "" {
			out = append(out, t)
		}
	}
	return out
}
