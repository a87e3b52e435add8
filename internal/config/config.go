package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Provider  ProviderConfig
	Notify    NotifyConfig
	Reconcile ReconcileConfig
}

type ServerConfig struct {
	Port int
	Env  string // "development", "production"
}

type DatabaseConfig struct {
	Host    string
	Port    string
	Name    string
	User    string
	Pass    string
	Charset string
}

type RedisConfig struct {
	Addr string
	Pass string
	DB   int
}

// ProviderConfig holds the billing provider credentials. WebhookToken is the
// static shared secret the provider echoes back on every webhook delivery.
type ProviderConfig struct {
	BaseURL        string
	APIKey         string
	WebhookToken   string
	BillingMethod  string
	RequestTimeout time.Duration
}

type NotifyConfig struct {
	BotToken string
	ChatID   int64
}

type ReconcileConfig struct {
	CronSpec   string
	PendingAge time.Duration
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_CHARSET", "utf8mb4")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("PROVIDER_BASE_URL", "https://api-sandbox.asaas.com/v3")
	viper.SetDefault("PROVIDER_BILLING_METHOD", "BOLETO")
	viper.SetDefault("PROVIDER_TIMEOUT", "15s")
	viper.SetDefault("RECONCILE_CRON", "0 */15 * * * *")
	viper.SetDefault("RECONCILE_PENDING_AGE", "48h")

	timeout, err := time.ParseDuration(viper.GetString("PROVIDER_TIMEOUT"))
	if err != nil {
		timeout = 15 * time.Second
	}
	pendingAge, err := time.ParseDuration(viper.GetString("RECONCILE_PENDING_AGE"))
	if err != nil {
		pendingAge = 48 * time.Hour
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetInt("APP_PORT"),
			Env:  viper.GetString("APP_ENV"),
		},
		Database: DatabaseConfig{
			Host:    viper.GetString("DB_HOST"),
			Port:    viper.GetString("DB_PORT"),
			Name:    viper.GetString("DB_NAME"),
			User:    viper.GetString("DB_USER"),
			Pass:    viper.GetString("DB_PASS"),
			Charset: viper.GetString("DB_CHARSET"),
		},
		Redis: RedisConfig{
			Addr: viper.GetString("REDIS_ADDR"),
			Pass: viper.GetString("REDIS_PASS"),
			DB:   viper.GetInt("REDIS_DB"),
		},
		Provider: ProviderConfig{
			BaseURL:        viper.GetString("PROVIDER_BASE_URL"),
			APIKey:         viper.GetString("PROVIDER_API_KEY"),
			WebhookToken:   viper.GetString("PROVIDER_WEBHOOK_TOKEN"),
			BillingMethod:  viper.GetString("PROVIDER_BILLING_METHOD"),
			RequestTimeout: timeout,
		},
		Notify: NotifyConfig{
			BotToken: viper.GetString("NOTIFY_BOT_TOKEN"),
			ChatID:   viper.GetInt64("NOTIFY_CHAT_ID"),
		},
		Reconcile: ReconcileConfig{
			CronSpec:   viper.GetString("RECONCILE_CRON"),
			PendingAge: pendingAge,
		},
	}

	if cfg.Database.Name == "" {
		log.Println("WARNING: DB_NAME is not set")
	}
	if cfg.Provider.APIKey == "" {
		log.Println("WARNING: PROVIDER_API_KEY is not set")
	}
	if cfg.Provider.WebhookToken == "" {
		log.Println("WARNING: PROVIDER_WEBHOOK_TOKEN is not set, all webhook deliveries will be rejected")
	}

	return cfg, nil
}

// DSN returns the MySQL DSN string for GORM.
func (d *DatabaseConfig) DSN() string {
	return d.User + ":" + d.Pass + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name + "?charset=" + d.Charset + "&parseTime=True&loc=Local"
}
