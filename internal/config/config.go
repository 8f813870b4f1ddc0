// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Seed      SeedConfig      `mapstructure:"seed"`
	Log       LogConfig       `mapstructure:"log"`
	Auth      AuthConfig      `mapstructure:"auth"`
}

type ServerConfig struct {
	GRPCPort    string `mapstructure:"grpc_port"`
	HTTPPort    string `mapstructure:"http_port"`
	Environment string `mapstructure:"environment"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
	CORSOrigins string `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
	Path     string `mapstructure:"path"`
	Debug    bool   `mapstructure:"debug"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
	Issuer     string        `mapstructure:"issuer"`
}

type SchedulerConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Interval      time.Duration `mapstructure:"interval"`
	DueSoonWindow time.Duration `mapstructure:"due_soon_window"`
}

type RedisConfig struct {
	URL     string `mapstructure:"url"`
	Channel string `mapstructure:"channel"`
}

type SeedConfig struct {
	TestUsers bool `mapstructure:"test_users"`
	DemoData  bool `mapstructure:"demo_data"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type AuthConfig struct {
	// LoginRateLimit is the number of login/register attempts allowed per client per minute
	LoginRateLimit int `mapstructure:"login_rate_limit"`
	BcryptCost     int `mapstructure:"bcrypt_cost"`
}

const devJWTSecret = "dev-secret-change-in-production-it-must-be-at-least-64-bytes-long-for-hs512"

// legacy environment names still honoured alongside the derived KEY_NAME form
var envAliases = map[string][]string{
	"server.grpc_port":   {"GRPC_PORT"},
	"server.http_port":   {"HTTP_PORT", "PORT"},
	"server.environment": {"ENVIRONMENT"},
	"database.host":      {"DB_HOST"},
	"database.port":      {"DB_PORT"},
	"database.user":      {"DB_USER"},
	"database.password":  {"DB_PASSWORD"},
	"database.name":      {"DB_NAME"},
	"database.ssl_mode":  {"DB_SSL_MODE"},
	"database.driver":    {"DB_DRIVER"},
	"jwt.secret":         {"JWT_SECRET"},
	"jwt.expiration":     {"JWT_EXPIRATION"},
	"seed.test_users":    {"SEED_TEST_USERS"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.grpc_port", "50051")
	v.SetDefault("server.http_port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.auto_migrate", true)
	v.SetDefault("server.cors_origins", "*")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "taskboard")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.path", "taskboard.db")
	v.SetDefault("database.debug", false)

	v.SetDefault("jwt.secret", devJWTSecret)
	v.SetDefault("jwt.expiration", 24*time.Hour)
	v.SetDefault("jwt.issuer", "taskboard")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", 60*time.Second)
	v.SetDefault("scheduler.due_soon_window", time.Hour)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.channel", "taskboard:events")

	v.SetDefault("seed.test_users", false)
	v.SetDefault("seed.demo_data", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("auth.login_rate_limit", 20)
	v.SetDefault("auth.bcrypt_cost", 12)
}

// Flags declares the command line flags understood by Load
func Flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "path to a YAML config file")
	fs.Bool("seed-test-users", false, "create the e2e test accounts at startup")
	fs.Bool("seed-demo-data", false, "seed demo accounts and tasks into an empty database")
	fs.Bool("auto-migrate", true, "apply schema migrations at startup")
	fs.String("http-port", "8080", "HTTP listen port")
	fs.String("grpc-port", "50051", "gRPC admin listen port")
	return fs
}

var flagKeys = map[string]string{
	"seed-test-users": "seed.test_users",
	"seed-demo-data":  "seed.demo_data",
	"auto-migrate":    "server.auto_migrate",
	"http-port":       "server.http_port",
	"grpc-port":       "server.grpc_port",
}

// Load resolves configuration from defaults, .env, an optional config file, the environment
// and flags, in increasing order of precedence. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	// A missing .env file is fine
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		if err := v.BindEnv(append([]string{key, strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	configFile := ""
	if fs != nil {
		for flagName, key := range flagKeys {
			if f := fs.Lookup(flagName); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", flagName, err)
				}
			}
		}
		configFile, _ = fs.GetString("config")
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/taskboard")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configFile != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// Validate checks the loaded configuration for values the server cannot run with
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt secret is required")
	}
	if c.Server.Environment != "development" && c.Server.Environment != "test" {
		if c.JWT.Secret == devJWTSecret {
			return errors.New("jwt secret must be changed outside development")
		}
		if len(c.JWT.Secret) < 32 {
			return errors.New("jwt secret must be at least 32 characters")
		}
	}
	if c.JWT.Expiration <= 0 {
		return errors.New("jwt expiration must be positive")
	}

	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" || c.Database.DBName == "" {
			return errors.New("database host and name are required for postgres")
		}
	case "sqlite3":
		if c.Database.Path == "" {
			return errors.New("database path is required for sqlite3")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Scheduler.Interval <= 0 {
		return errors.New("scheduler interval must be positive")
	}
	if c.Scheduler.DueSoonWindow <= 0 {
		return errors.New("scheduler due soon window must be positive")
	}
	if c.Auth.LoginRateLimit < 0 {
		return errors.New("login rate limit must not be negative")
	}

	return nil
}

// IsDevelopment reports whether the server runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}
