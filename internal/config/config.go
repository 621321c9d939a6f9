package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env    string
	Server ServerConfig
	DB     DBConfig
	// Storage is the hosted object-storage bucket used for chat attachments.
	Storage  StorageConfig
	Auth     AuthConfig
	Stripe   StripeConfig
	Checkout CheckoutConfig
	Telegram TelegramConfig
	GPT      GPTConfig

	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

type ServerConfig struct {
	Port    string
	BaseURL string
}

type DBConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

type StorageConfig struct {
	ProjectURL string
	AnonKey    string
	Bucket     string
}

type AuthConfig struct {
	// Provider is "jwt" (hosted auth HS256 tokens) or "firebase".
	Provider            string
	JWTSecret           string
	FirebaseCredentials string
	// StateSecret signs the navigation-state cookie.
	StateSecret string
}

type StripeConfig struct {
	SecretKey  string
	PublicKey  string
	WebhookKey string
	Currency   string
}

type CheckoutConfig struct {
	ScriptURL string
	Key       string
}

type TelegramConfig struct {
	Token        string
	ExpertChatID int64
}

type GPTConfig struct {
	APIKey string
	Model  string
}

// Load reads config.{yaml,json} when present, falling back to the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetConfigType("json")

	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")
	v.AddConfigPath("$HOME/.ats-boost")

	setDefaults(v)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Config file not found: %v\n", err)
		fmt.Println("Building config from environment variables...")
		return fromEnv(), nil
	}

	// Process any ${ENV_VAR} syntax in the config values
	for _, key := range v.AllKeys() {
		value := v.GetString(key)
		if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
			envVar := strings.TrimPrefix(strings.TrimSuffix(value, "}"), "${")
			if envValue := os.Getenv(envVar); envValue != "" {
				v.Set(key, envValue)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("Env", "development")
	v.SetDefault("ShutdownTimeout", 10*time.Second)
	v.SetDefault("Server.Port", "8080")
	v.SetDefault("Server.BaseURL", "http://localhost:8080")
	v.SetDefault("DB.SSLMode", "require")
	v.SetDefault("DB.MaxOpenConns", 20)
	v.SetDefault("DB.MaxIdleConns", 5)
	v.SetDefault("DB.ConnLifetime", 5*time.Minute)
	v.SetDefault("Storage.Bucket", "chat_attachments")
	v.SetDefault("Auth.Provider", "jwt")
	v.SetDefault("Stripe.Currency", "inr")
	v.SetDefault("Checkout.ScriptURL", "https://js.stripe.com/v3/")
	v.SetDefault("GPT.Model", "gpt-4o-mini")
	v.SetDefault("AllowedOrigins", []string{"http://localhost:8080"})
}

func fromEnv() *Config {
	cfg := &Config{}

	cfg.Env = getEnvOr("ENV", "development")
	cfg.Server.Port = getEnvOr("SERVER_PORT", "8080")
	cfg.Server.BaseURL = getEnvOr("BASE_URL", "http://localhost:"+cfg.Server.Port)

	cfg.DB.Host = getEnvOr("DB_HOST", "localhost")
	cfg.DB.Port = getEnvOr("DB_PORT", "5432")
	cfg.DB.User = getEnvOr("DB_USER", "postgres")
	cfg.DB.Password = getEnvOr("DB_PASSWORD", "postgres")
	cfg.DB.DBName = getEnvOr("DB_NAME", "postgres")
	cfg.DB.SSLMode = getEnvOr("DB_SSL_MODE", "disable")
	cfg.DB.MaxOpenConns = 20
	cfg.DB.MaxIdleConns = 5
	cfg.DB.ConnLifetime = 5 * time.Minute

	cfg.Storage.ProjectURL = os.Getenv("SUPABASE_URL")
	cfg.Storage.AnonKey = os.Getenv("SUPABASE_ANON_KEY")
	cfg.Storage.Bucket = getEnvOr("STORAGE_BUCKET", "chat_attachments")

	cfg.Auth.Provider = getEnvOr("AUTH_PROVIDER", "jwt")
	cfg.Auth.JWTSecret = os.Getenv("AUTH_JWT_SECRET")
	cfg.Auth.FirebaseCredentials = os.Getenv("FIREBASE_CREDENTIALS")
	cfg.Auth.StateSecret = os.Getenv("STATE_SECRET")

	cfg.Stripe.SecretKey = os.Getenv("STRIPE_SECRET_KEY")
	cfg.Stripe.PublicKey = os.Getenv("STRIPE_PUBLIC_KEY")
	cfg.Stripe.WebhookKey = os.Getenv("STRIPE_WEBHOOK_KEY")
	cfg.Stripe.Currency = getEnvOr("STRIPE_CURRENCY", "inr")

	cfg.Checkout.ScriptURL = getEnvOr("CHECKOUT_SCRIPT_URL", "https://js.stripe.com/v3/")
	cfg.Checkout.Key = getEnvOr("CHECKOUT_KEY", cfg.Stripe.PublicKey)

	cfg.Telegram.Token = os.Getenv("TELEGRAM_TOKEN")
	cfg.Telegram.ExpertChatID = getEnvInt64("TELEGRAM_EXPERT_CHAT_ID", 0)

	cfg.GPT.APIKey = os.Getenv("GPT_API_KEY")
	cfg.GPT.Model = getEnvOr("GPT_MODEL", "gpt-4o-mini")

	cfg.AllowedOrigins = splitOrigins(getEnvOr("ALLOWED_ORIGINS", cfg.Server.BaseURL))
	cfg.ShutdownTimeout = 10 * time.Second

	return cfg
}

// Validate reports the first missing setting the server cannot run without.
func (c *Config) Validate() error {
	if c.Storage.ProjectURL == "" || c.Storage.AnonKey == "" {
		return fmt.Errorf("storage project URL and anon key are required")
	}
	if c.Auth.StateSecret == "" {
		return fmt.Errorf("auth state secret is required")
	}
	switch c.Auth.Provider {
	case "jwt":
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth JWT secret is required for the jwt provider")
		}
	case "firebase":
		if c.Auth.FirebaseCredentials == "" {
			return fmt.Errorf("firebase credentials are required for the firebase provider")
		}
	default:
		return fmt.Errorf("unknown auth provider %q", c.Auth.Provider)
	}
	if c.Telegram.Token != "" && c.Telegram.ExpertChatID == 0 {
		return fmt.Errorf("telegram expert chat ID is required when a telegram token is set")
	}
	return nil
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Helper function to get environment variable with default value
func getEnvOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return n
}
