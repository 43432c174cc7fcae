// s3csv2sfdc/internal/config/config.go
package config

import (
	"log"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	App        AppConfig
	Cache      CacheConfig
	Salesforce SalesforceConfig
	Storage    StorageConfig
	Sync       SyncConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
	WebhookToken   string
	SyncTimeout    int
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Enabled reports whether a run ledger database has been configured.
func (c DatabaseConfig) Enabled() bool {
	return c.URL != "" || c.Host != ""
}

type AppConfig struct {
	TempDir         string
	ArchiveFolder   string
	ErrorFolder     string
	ExecutionObject string
	BatchSize       int
	LogLevel        string
	LogJSON         bool
}

type CacheConfig struct {
	Enabled       bool
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
}

type SalesforceConfig struct {
	Username          string
	Password          string
	SecurityToken     string
	Domain            string
	ClientID          string
	ClientSecret      string
	APIVersion        string
	SessionTTLSeconds int
	MaxBatchWaitSecs  int
}

type StorageConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// SyncConfig describes the default CSV upsert step.
type SyncConfig struct {
	Object     string
	ExternalID string
	FieldMap   string
	Strict     bool
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		// Set default values
		viper.SetDefault("SERVER_PORT", "8080")
		viper.SetDefault("SERVER_MODE", "debug")
		viper.SetDefault("SERVER_READ_TIMEOUT", 30)
		viper.SetDefault("SERVER_WRITE_TIMEOUT", 900)
		viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{})
		viper.SetDefault("SERVER_WEBHOOK_TOKEN", "")
		viper.SetDefault("SERVER_SYNC_TIMEOUT_SECONDS", 3600)
		viper.SetDefault("DATABASE_URL", "")
		viper.SetDefault("DB_HOST", "")
		viper.SetDefault("DB_PORT", "5432")
		viper.SetDefault("DB_USER", "postgres")
		viper.SetDefault("DB_PASSWORD", "postgres")
		viper.SetDefault("DB_NAME", "s3csv2sfdc")
		viper.SetDefault("DB_SSLMODE", "disable")
		viper.SetDefault("APP_TEMP_DIR", os.TempDir())
		viper.SetDefault("APP_ARCHIVE_FOLDER", "archive")
		viper.SetDefault("APP_ERROR_FOLDER", "errors")
		viper.SetDefault("APP_EXECUTION_OBJECT", "")
		viper.SetDefault("APP_BATCH_SIZE", 10000)
		viper.SetDefault("LOG_LEVEL", "info")
		viper.SetDefault("LOG_JSON", false)
		viper.SetDefault("CACHE_ENABLED", false)
		viper.SetDefault("REDIS_URL", "")
		viper.SetDefault("REDIS_HOST", "127.0.0.1")
		viper.SetDefault("REDIS_PORT", "6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("SFDC_DOMAIN", "na")
		viper.SetDefault("SFDC_API_VERSION", "59.0")
		viper.SetDefault("SFDC_SESSION_TTL_SECONDS", 3600)
		viper.SetDefault("SFDC_MAX_BATCH_WAIT_SECONDS", 3600)
		viper.SetDefault("S3_ENDPOINT", "s3.amazonaws.com")
		viper.SetDefault("S3_REGION", "us-east-1")
		viper.SetDefault("S3_USE_SSL", true)
		viper.SetDefault("SYNC_OBJECT", "")
		viper.SetDefault("SYNC_EXTERNAL_ID", "")
		viper.SetDefault("SYNC_FIELD_MAP", "")
		viper.SetDefault("SYNC_STRICT", false)

		// Read from environment variables
		viper.AutomaticEnv()

		// Ensure the download/report directory exists
		ensureDir(viper.GetString("APP_TEMP_DIR"))

		instance = &Config{
			Server: ServerConfig{
				Port:           viper.GetString("SERVER_PORT"),
				Mode:           viper.GetString("SERVER_MODE"),
				ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
				WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
				AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
				WebhookToken:   viper.GetString("SERVER_WEBHOOK_TOKEN"),
				SyncTimeout:    viper.GetInt("SERVER_SYNC_TIMEOUT_SECONDS"),
			},
			Database: DatabaseConfig{
				URL:      viper.GetString("DATABASE_URL"),
				Host:     viper.GetString("DB_HOST"),
				Port:     viper.GetString("DB_PORT"),
				User:     viper.GetString("DB_USER"),
				Password: viper.GetString("DB_PASSWORD"),
				DBName:   viper.GetString("DB_NAME"),
				SSLMode:  viper.GetString("DB_SSLMODE"),
			},
			App: AppConfig{
				TempDir:         viper.GetString("APP_TEMP_DIR"),
				ArchiveFolder:   viper.GetString("APP_ARCHIVE_FOLDER"),
				ErrorFolder:     viper.GetString("APP_ERROR_FOLDER"),
				ExecutionObject: viper.GetString("APP_EXECUTION_OBJECT"),
				BatchSize:       viper.GetInt("APP_BATCH_SIZE"),
				LogLevel:        viper.GetString("LOG_LEVEL"),
				LogJSON:         viper.GetBool("LOG_JSON"),
			},
			Cache: CacheConfig{
				Enabled:       viper.GetBool("CACHE_ENABLED"),
				RedisURL:      viper.GetString("REDIS_URL"),
				RedisHost:     viper.GetString("REDIS_HOST"),
				RedisPort:     viper.GetString("REDIS_PORT"),
				RedisPassword: viper.GetString("REDIS_PASSWORD"),
				RedisDB:       viper.GetInt("REDIS_DB"),
			},
			Salesforce: SalesforceConfig{
				Username:          viper.GetString("SFDC_USERNAME"),
				Password:          viper.GetString("SFDC_PASSWORD"),
				SecurityToken:     viper.GetString("SFDC_SECURITY_TOKEN"),
				Domain:            viper.GetString("SFDC_DOMAIN"),
				ClientID:          viper.GetString("SFDC_CLIENT_ID"),
				ClientSecret:      viper.GetString("SFDC_CLIENT_SECRET"),
				APIVersion:        viper.GetString("SFDC_API_VERSION"),
				SessionTTLSeconds: viper.GetInt("SFDC_SESSION_TTL_SECONDS"),
				MaxBatchWaitSecs:  viper.GetInt("SFDC_MAX_BATCH_WAIT_SECONDS"),
			},
			Storage: StorageConfig{
				Endpoint:  viper.GetString("S3_ENDPOINT"),
				Region:    viper.GetString("S3_REGION"),
				AccessKey: viper.GetString("S3_ACCESS_KEY"),
				SecretKey: viper.GetString("S3_SECRET_KEY"),
				UseSSL:    viper.GetBool("S3_USE_SSL"),
			},
			Sync: SyncConfig{
				Object:     viper.GetString("SYNC_OBJECT"),
				ExternalID: viper.GetString("SYNC_EXTERNAL_ID"),
				FieldMap:   viper.GetString("SYNC_FIELD_MAP"),
				Strict:     viper.GetBool("SYNC_STRICT"),
			},
		}
	})

	return instance
}

func ensureDir(dir string) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
