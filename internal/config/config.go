package config

import (
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	App      AppConfig
	HTTP     HTTPConfig
	Auth     AuthConfig
	Postgres PostgresConfig
	Slack    SlackConfig
}

type AppConfig struct {
	Env          string `env:"APP_ENV" envDefault:"dev"`
	ServiceName  string `env:"SERVICE_NAME" envDefault:"rescuelog-api"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	MetricsPath  string `env:"METRICS_PATH" envDefault:"/metrics"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	SeedFirstAid bool   `env:"SEED_FIRST_AID" envDefault:"false"`
}

type HTTPConfig struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":5000"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"10s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	AllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

type AuthConfig struct {
	JWTSecret          string        `env:"JWT_SECRET,required,notEmpty"`
	RefreshSecret      string        `env:"REFRESH_SECRET,required,notEmpty"`
	AccessTTL          time.Duration `env:"JWT_ACCESS_TTL" envDefault:"15m"`
	RefreshTTL         time.Duration `env:"JWT_REFRESH_TTL" envDefault:"720h"`
	BcryptCost         int           `env:"BCRYPT_COST" envDefault:"10"`
	LockoutThreshold   int           `env:"LOCKOUT_THRESHOLD" envDefault:"5"`
	LockoutStep        time.Duration `env:"LOCKOUT_STEP" envDefault:"10m"`
	LockoutTimezone    string        `env:"LOCKOUT_TIMEZONE" envDefault:"Local"`
	RotateRefreshOnUse bool          `env:"ROTATE_REFRESH_ON_USE" envDefault:"false"`
	EnableTestRoutes   bool          `env:"ENABLE_TEST_ROUTES" envDefault:"false"`
}

type PostgresConfig struct {
	DatabaseURL string `env:"DATABASE_URL"`
	Host        string `env:"PGHOST" envDefault:"localhost"`
	Port        string `env:"PGPORT" envDefault:"5432"`
	User        string `env:"PGUSER"`
	Password    string `env:"PGPASSWORD"`
	Database    string `env:"PGDATABASE"`
	SSLMode     string `env:"PGSSLMODE" envDefault:"disable"`
}

// SlackConfig enables lockout alerts when both the bot token and channel are set.
type SlackConfig struct {
	BotToken  string `env:"SLACK_BOT_TOKEN"`
	ChannelID string `env:"SLACK_CHANNEL_ID"`
	APIURL    string `env:"SLACK_API_URL" envDefault:"https://slack.com/api/chat.postMessage"`
}

// ClientConfig drives the terminal client in cmd/client.
type ClientConfig struct {
	APIBaseURL string        `env:"API_BASE_URL" envDefault:"http://localhost:5000"`
	StorePath  string        `env:"CLIENT_STORE_PATH" envDefault:"rescuelog-session.db"`
	KeyPath    string        `env:"CLIENT_KEY_PATH" envDefault:"rescuelog-device.key"`
	Timeout    time.Duration `env:"CLIENT_TIMEOUT" envDefault:"10s"`
	LogLevel   string        `env:"LOG_LEVEL" envDefault:"warn"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func LoadClient() (ClientConfig, error) {
	var cfg ClientConfig
	if err := env.Parse(&cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// DSN returns DATABASE_URL when set, otherwise a URL assembled from the PG* variables.
func (p PostgresConfig) DSN() (string, error) {
	if p.DatabaseURL != "" {
		return p.DatabaseURL, nil
	}
	if p.User == "" || p.Database == "" {
		return "", fmt.Errorf("missing required env: DATABASE_URL or PGUSER/PGDATABASE")
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(p.Host, p.Port),
		Path:   p.Database,
	}
	if p.Password == "" {
		u.User = url.User(p.User)
	} else {
		u.User = url.UserPassword(p.User, p.Password)
	}
	q := u.Query()
	q.Set("sslmode", p.SSLMode)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
