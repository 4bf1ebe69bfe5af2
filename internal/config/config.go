package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string

		// AllowOrigins lists browser origins allowed to send credentialed
		// requests. Comma separated when set from the environment.
		AllowOrigins []string
	}
	Log struct {
		Level string
	}
	Database struct {
		Path string
	}
	Auth struct {
		JWTSecret       string
		TokenTTLMinutes int
		CookieName      string
		CookieSecure    bool
	}
	Hotmart struct {
		Hottok           string
		PlanDurationDays int
		// Products maps Hotmart product ids to plans.
		Products map[string]string
	}
	Brapi struct {
		BaseURL         string
		Token           string
		CacheTTLSeconds int
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	OpenAI struct {
		APIKey  string
		Model   string
		BaseURL string
	}
	Reports struct {
		MaxConcurrent int
	}
	Proventos struct {
		ChunkSize    int
		ChunkDelayMS int
	}
	Permissions struct {
		CatalogPath string
	}
	Storage struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
	}
	AWS struct {
		Profile string
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	// .env never overrides variables already set in the environment.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("MEMBROS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("server.alloworigins", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("database.path", "data/membros.db")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.tokenttlminutes", 7*24*60)
	v.SetDefault("auth.cookiename", "auth-token")
	v.SetDefault("auth.cookiesecure", true)
	v.SetDefault("hotmart.hottok", "")
	v.SetDefault("hotmart.plandurationdays", 365)
	v.SetDefault("hotmart.products", map[string]string{})
	v.SetDefault("brapi.baseurl", "https://brapi.dev/api")
	v.SetDefault("brapi.token", "")
	v.SetDefault("brapi.cachettlseconds", 300)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("openai.apikey", "")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.baseurl", "https://api.openai.com/v1")
	v.SetDefault("reports.maxconcurrent", 2)
	v.SetDefault("proventos.chunksize", 50)
	v.SetDefault("proventos.chunkdelayms", 100)
	v.SetDefault("permissions.catalogpath", "")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "membros")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("aws.profile", "")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}
