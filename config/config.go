package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	// DevJWTSecret is the fallback signing secret used when JWT_SECRET is unset.
	DevJWTSecret  = "your-secret-key-here"
	devDBPassword = "password"
)

type Config struct {
	Env        string `env:"ENV" env-default:"dev"`
	ServerPort int    `env:"SERVER_PORT" env-default:"8080"`
	LogLevel   string `env:"LOG_LEVEL" env-default:"info"`
	LogFormat  string `env:"LOG_FORMAT" env-default:"text"`
	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable it only behind a proxy that overwrites them.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" env-default:"false"`

	Database  DatabaseConfig
	Auth      AuthConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
	MQ        MQConfig
	Storage   StorageConfig
}

type DatabaseConfig struct {
	// Driver selects the database/sql driver: "postgres" (lib/pq) or "pgx".
	Driver   string `env:"DB_DRIVER" env-default:"postgres"`
	URL      string `env:"DATABASE_URL"`
	Host     string `env:"DB_HOST" env-default:"localhost"`
	Port     int    `env:"DB_PORT" env-default:"5432"`
	User     string `env:"DB_USER" env-default:"aquanet"`
	Password string `env:"DB_PASSWORD" env-default:"password"`
	DBName   string `env:"DB_NAME" env-default:"aquanet_db"`
	UseSSL   bool   `env:"DB_SSL" env-default:"false"`

	PoolSize        int           `env:"DB_POOL_SIZE" env-default:"10"`
	MaxOverflow     int           `env:"DB_MAX_OVERFLOW" env-default:"20"`
	ConnMaxLifetime time.Duration `env:"DB_POOL_RECYCLE" env-default:"5m"`
	ConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE" env-default:"2m"`
	PingTimeout     time.Duration `env:"DB_PING_TIMEOUT" env-default:"5s"`
}

type AuthConfig struct {
	JWTSecret          string        `env:"JWT_SECRET" env-default:"your-secret-key-here"`
	TokenTTLMinutes    int           `env:"ACCESS_TOKEN_EXPIRE_MINUTES" env-default:"30"`
	BcryptCost         int           `env:"BCRYPT_COST" env-default:"10"`
	MaxLoginAttempts   int           `env:"MAX_LOGIN_ATTEMPTS" env-default:"5"`
	LoginAttemptWindow time.Duration `env:"LOGIN_ATTEMPT_WINDOW" env-default:"15m"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:5173,http://localhost:3000,http://localhost:8000,http://127.0.0.1:5173,http://127.0.0.1:3000,http://127.0.0.1:8000"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `env:"RATE_LIMIT_RPS" env-default:"20"`
	Burst             int     `env:"RATE_LIMIT_BURST" env-default:"40"`
}

// RedisConfig is optional; an empty Addr keeps login throttling in memory.
type RedisConfig struct {
	Addr        string        `env:"REDIS_ADDR"`
	User        string        `env:"REDIS_USER"`
	Password    string        `env:"REDIS_PASSWORD"`
	DB          int           `env:"REDIS_DB" env-default:"0"`
	MaxRetries  int           `env:"REDIS_MAX_RETRIES" env-default:"3"`
	DialTimeout time.Duration `env:"REDIS_DIAL_TIMEOUT" env-default:"5s"`
	Timeout     time.Duration `env:"REDIS_TIMEOUT" env-default:"3s"`
}

type MQConfig struct {
	// Backend is "", "rabbitmq" or "pubsub". Empty disables event publishing.
	Backend             string `env:"MQ_BACKEND"`
	NotificationChannel string `env:"MQ_NOTIFICATION_CHANNEL" env-default:"notifications"`
	RabbitMQ            RabbitMQConfig
	PubSub              PubSubConfig
}

type RabbitMQConfig struct {
	URL             string `env:"RABBITMQ_URL"`
	QueueDurable    bool   `env:"RABBITMQ_QUEUE_DURABLE" env-default:"true"`
	QueueAutoDelete bool   `env:"RABBITMQ_QUEUE_AUTO_DELETE" env-default:"false"`
	PrefetchCount   int    `env:"RABBITMQ_PREFETCH" env-default:"10"`
}

type PubSubConfig struct {
	ProjectID          string `env:"PUBSUB_PROJECT_ID"`
	CredentialsFile    string `env:"PUBSUB_CREDENTIALS_FILE"`
	SubscriptionSuffix string `env:"PUBSUB_SUBSCRIPTION_SUFFIX" env-default:"-sub"`
}

type StorageConfig struct {
	// Backend is "", "minio" or "gcs". Empty disables photo uploads.
	Backend string `env:"STORAGE_BACKEND"`
	Minio   MinioConfig
	GCS     GCSConfig
}

type MinioConfig struct {
	Endpoint  string `env:"MINIO_ENDPOINT"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	Bucket    string `env:"MINIO_BUCKET" env-default:"aquanet"`
	UseSSL    bool   `env:"MINIO_USE_SSL" env-default:"false"`
}

type GCSConfig struct {
	Bucket          string `env:"GCS_BUCKET"`
	ProjectID       string `env:"GCS_PROJECT_ID"`
	CredentialsFile string `env:"GCS_CREDENTIALS_FILE"`
}

// LoadConfig reads the process environment once. In dev a local .env file is
// loaded first.
func LoadConfig() (Config, error) {
	if os.Getenv("ENV") == "dev" || os.Getenv("ENV") == "" {
		_ = godotenv.Load()
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("config.LoadConfig: %w", err)
	}
	cfg.CORS.AllowedOrigins = normalizeOrigins(cfg.CORS.AllowedOrigins)
	return cfg, nil
}

// TokenTTL is the default lifetime of issued access tokens.
func (c AuthConfig) TokenTTL() time.Duration {
	if c.TokenTTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

// MaxOpenConns mirrors a bounded pool with an overflow allowance.
func (c DatabaseConfig) MaxOpenConns() int {
	return c.PoolSize + c.MaxOverflow
}

// DSN returns DATABASE_URL when set, otherwise a URL assembled from parts.
func (c DatabaseConfig) DSN() string {
	if strings.TrimSpace(c.URL) != "" {
		return c.URL
	}

	sslmode := "disable"
	if c.UseSSL {
		sslmode = "require"
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		User:   url.UserPassword(c.User, c.Password),
		Path:   c.DBName,
	}
	q := u.Query()
	q.Set("sslmode", sslmode)
	u.RawQuery = q.Encode()
	return u.String()
}

// InsecureDefaults names settings still running on development fallbacks.
func (c Config) InsecureDefaults() []string {
	var out []string
	if c.Auth.JWTSecret == DevJWTSecret || strings.TrimSpace(c.Auth.JWTSecret) == "" {
		out = append(out, "JWT_SECRET")
	}
	if strings.TrimSpace(c.Database.URL) == "" && c.Database.Password == devDBPassword {
		out = append(out, "DB_PASSWORD")
	}
	for _, origin := range c.CORS.AllowedOrigins {
		if origin == "*" {
			out = append(out, "ALLOWED_ORIGINS")
			break
		}
	}
	return out
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		if o := strings.TrimRight(strings.TrimSpace(origin), "/"); o != "" {
			out = append(out, o)
		}
	}
	return out
}
