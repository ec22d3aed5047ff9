package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env        string
	ServerPort int
	JWTSecret  string
	TokenTTL   time.Duration
	Log        LogConfig
	Database   DatabaseConfig
	Storage    StorageConfig
	MQ         MQConfig
	SMTP       SMTPConfig
	Redis      RedisConfig
	Codes      CodeConfig
}

type LogConfig struct {
	Level  string
	Pretty bool
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

// StorageConfig selects where uploaded files live. Backend is one of
// "local", "minio" or "gcs".
type StorageConfig struct {
	Backend  string
	LocalDir string
	Minio    MinioConfig
	GCS      GCSConfig
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

// MQConfig selects how outbound email is dispatched. Backend "none" sends
// directly from the API process.
type MQConfig struct {
	Backend     string
	MailChannel string
	RabbitMQ    RabbitMQConfig
	PubSub      PubSubConfig
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
	AckDeadline        time.Duration
	MaxOutstanding     int
}

type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
	UseTLS    bool
}

// RedisConfig is optional; an empty Addr disables rate limiting.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	RateLimit int
	Window    time.Duration
}

type CodeConfig struct {
	VerificationTTL time.Duration
	ResetTTL        time.Duration
	JanitorInterval time.Duration
}

func LoadConfig() Config {
	env := getEnv("ENV", "production")
	if env == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "projectplus"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "projectplus_db"),
		UseSSL:   getEnvBool("DB_SSL", false),
	}

	storageConfig := StorageConfig{
		Backend:  strings.ToLower(getEnv("STORAGE_BACKEND", "local")),
		LocalDir: getEnv("STORAGE_LOCAL_DIR", "uploads"),
		Minio: MinioConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "projectplus"),
			Region:    getEnv("MINIO_REGION", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		GCS: GCSConfig{
			Bucket:          getEnv("GCS_BUCKET", ""),
			ProjectID:       getEnv("GCS_PROJECT_ID", ""),
			CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
		},
	}

	mqConfig := MQConfig{
		Backend:     strings.ToLower(getEnv("MQ_BACKEND", "none")),
		MailChannel: getEnv("MQ_MAIL_CHANNEL", "projectplus-mail"),
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
			PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 10),
		},
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
			CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
			AckDeadline:        getEnvDuration("PUBSUB_ACK_DEADLINE", 60*time.Second),
			MaxOutstanding:     getEnvInt("PUBSUB_MAX_OUTSTANDING", 10),
		},
	}

	smtpConfig := SMTPConfig{
		Host:      getEnv("SMTP_HOST", "smtp.gmail.com"),
		Port:      getEnvInt("SMTP_PORT", 587),
		Username:  getEnv("EMAIL", ""),
		Password:  getEnv("PASSWORD", ""),
		FromEmail: getEnv("EMAIL_FROM", getEnv("EMAIL", "")),
		FromName:  getEnv("EMAIL_FROM_NAME", "ProjectPlus Team"),
		UseTLS:    getEnvBool("SMTP_USE_TLS", false),
	}

	redisConfig := RedisConfig{
		Addr:      getEnv("REDIS_ADDR", ""),
		Password:  getEnv("REDIS_PASSWORD", ""),
		DB:        getEnvInt("REDIS_DB", 0),
		RateLimit: getEnvInt("RATE_LIMIT", 20),
		Window:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
	}

	return Config{
		Env:        env,
		ServerPort: getEnvInt("PORT", getEnvInt("SERVER_PORT", 3000)),
		JWTSecret:  strings.TrimSpace(getEnv("JWT_SECRET", "")),
		TokenTTL:   getEnvDuration("TOKEN_TTL", 48*time.Hour),
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getEnvBool("LOG_PRETTY", env == "dev"),
		},
		Database: dbConfig,
		Storage:  storageConfig,
		MQ:       mqConfig,
		SMTP:     smtpConfig,
		Redis:    redisConfig,
		Codes: CodeConfig{
			VerificationTTL: getEnvDuration("VERIFICATION_CODE_TTL", time.Hour),
			ResetTTL:        getEnvDuration("RESET_CODE_TTL", 5*time.Minute),
			JanitorInterval: getEnvDuration("JANITOR_INTERVAL", time.Minute),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.Atoi(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := time.ParseDuration(strings.TrimSpace(valueStr))
		if err != nil || value <= 0 {
			return defaultValue
		}
		return value
	}
	return defaultValue
}
