package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type KeyspaceConfig struct {
	Keyspace string
	Role     string
	Password string
}

type Config struct {
	Port           string
	LogLevel       string
	RequestTimeout time.Duration

	ScyllaHosts      []string
	ScyllaSSLEnabled bool
	ScyllaCACertPath string
	UsersKeyspace    KeyspaceConfig
	ProductsKeyspace KeyspaceConfig
	OrdersKeyspace   KeyspaceConfig

	RedisHost     string
	RedisPassword string

	ElasticURL      string
	ElasticUser     string
	ElasticPassword string

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool
	MinIOPublicURL string

	JWTSecret     []byte
	UserTokenTTL  time.Duration
	AdminTokenTTL time.Duration

	StripeSecretKey string
	StripeCurrency  string
	DeliveryCharge  float64

	AllowedOrigins []string
	DefaultOrigin  string

	KafkaBrokers     []string
	KafkaOrdersTopic string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string
}

// Load reads .env when present and builds the configuration from the environment.
func Load() Config {
	if err := godotenv.Load(".env"); err != nil {
		slog.Info("no .env file found, using process environment")
	} else {
		slog.Info(".env file loaded")
	}
	return FromEnv()
}

func FromEnv() Config {
	return Config{
		Port:           EnvDefault("PORT", "8080"),
		LogLevel:       EnvDefault("LOG_LEVEL", "info"),
		RequestTimeout: EnvDurationDefault("REQUEST_TIMEOUT", 10*time.Second),

		ScyllaHosts:      CSV(os.Getenv("SCYLLA_HOSTS")),
		ScyllaSSLEnabled: EnvBool("SCYLLA_SSL_ENABLED"),
		ScyllaCACertPath: os.Getenv("SCYLLA_SSL_CA_PATH"),
		UsersKeyspace:    keyspace("USERS", "shop_users"),
		ProductsKeyspace: keyspace("PRODUCTS", "shop_products"),
		OrdersKeyspace:   keyspace("ORDERS", "shop_orders"),

		RedisHost:     EnvDefault("REDIS_HOST", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		ElasticURL:      EnvDefault("ELASTIC_URL", "http://localhost:9200"),
		ElasticUser:     os.Getenv("ELASTIC_USER"),
		ElasticPassword: os.Getenv("ELASTIC_PASSWORD"),

		MinIOEndpoint:  EnvDefault("MINIO_ENDPOINT", "localhost:9000"),
		MinIOAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinIOSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinIOBucket:    EnvDefault("MINIO_BUCKET", "products"),
		MinIOUseSSL:    EnvBool("MINIO_USE_SSL"),
		MinIOPublicURL: os.Getenv("MINIO_PUBLIC_URL"),

		JWTSecret:     []byte(os.Getenv("JWT_SECRET")),
		UserTokenTTL:  EnvDurationDefault("USER_TOKEN_TTL", 24*time.Hour),
		AdminTokenTTL: EnvDurationDefault("ADMIN_TOKEN_TTL", 12*time.Hour),

		StripeSecretKey: os.Getenv("STRIPE_SECRET_KEY"),
		StripeCurrency:  EnvDefault("STRIPE_CURRENCY", "thb"),
		DeliveryCharge:  EnvFloatDefault("DELIVERY_CHARGE", 10),

		AllowedOrigins: CSV(EnvDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:5174")),
		DefaultOrigin:  EnvDefault("DEFAULT_ORIGIN", "http://localhost:5173"),

		KafkaBrokers:     CSV(os.Getenv("KAFKA_BROKERS")),
		KafkaOrdersTopic: EnvDefault("KAFKA_ORDERS_TOPIC", "orders"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     EnvIntDefault("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailFrom:     EnvDefault("MAIL_FROM", "no-reply@shopfront.local"),
	}
}

func keyspace(name, def string) KeyspaceConfig {
	prefix := "SCYLLA_KS_" + name + "_"
	return KeyspaceConfig{
		Keyspace: EnvDefault(prefix+"KEYSPACE", def),
		Role:     os.Getenv(prefix + "ROLE"),
		Password: os.Getenv(prefix + "PASSWORD"),
	}
}

// Validate reports every missing setting the server cannot start without.
func (c Config) Validate() error {
	var errs []error
	if len(c.JWTSecret) == 0 {
		errs = append(errs, errors.New("missing required env JWT_SECRET"))
	}
	if c.StripeSecretKey == "" {
		errs = append(errs, errors.New("missing required env STRIPE_SECRET_KEY"))
	}
	if len(c.ScyllaHosts) == 0 {
		errs = append(errs, errors.New("missing required env SCYLLA_HOSTS"))
	}
	return errors.Join(errs...)
}

// MailEnabled is false when no SMTP host is configured; mails are then skipped.
func (c Config) MailEnabled() bool {
	return c.SMTPHost != ""
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvFloatDefault(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func EnvBool(key string) bool {
	return strings.EqualFold(os.Getenv(key), "true")
}
