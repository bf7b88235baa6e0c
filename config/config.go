package config

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// SigningKey is one entry of the JWT key ring.
type SigningKey struct {
	ID     string `mapstructure:"id"`
	Secret string `mapstructure:"secret"`
}

type Config struct {
	Database struct {
		Host         string        `mapstructure:"host"`
		Port         string        `mapstructure:"port"`
		User         string        `mapstructure:"user"`
		Password     string        `mapstructure:"password"`
		Name         string        `mapstructure:"name"`
		QueryTimeout time.Duration `mapstructure:"query_timeout"`
	} `mapstructure:"database"`
	Redis struct {
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		Password string `mapstructure:"password"`
	} `mapstructure:"redis"`
	Server struct {
		Port string `mapstructure:"port"`
	} `mapstructure:"server"`
	JWT struct {
		Issuer     string        `mapstructure:"issuer"`
		AccessTTL  time.Duration `mapstructure:"access_ttl"`
		RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
		ActiveKey  string        `mapstructure:"active_key"`
		Keys       []SigningKey  `mapstructure:"keys"`
	} `mapstructure:"jwt"`
	Auth struct {
		BcryptCost        int           `mapstructure:"bcrypt_cost"`
		PasswordMinLength int           `mapstructure:"password_min_length"`
		ResetTTL          time.Duration `mapstructure:"reset_ttl"`
		ResetURL          string        `mapstructure:"reset_url"`
		CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
	} `mapstructure:"auth"`
	Storage struct {
		// Driver is either "postgres" or "memory".
		Driver string `mapstructure:"driver"`
	} `mapstructure:"storage"`
	Notifier struct {
		// Driver is either "log" or "redis".
		Driver  string `mapstructure:"driver"`
		Channel string `mapstructure:"channel"`
	} `mapstructure:"notifier"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

var AppConfig Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("database.query_timeout", 5*time.Second)
	v.SetDefault("jwt.issuer", "dashboard-auth")
	v.SetDefault("jwt.access_ttl", 15*time.Minute)
	v.SetDefault("jwt.refresh_ttl", 7*24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("auth.password_min_length", 8)
	v.SetDefault("auth.reset_ttl", 30*time.Minute)
	v.SetDefault("auth.cleanup_interval", time.Hour)
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("notifier.driver", "log")
	v.SetDefault("notifier.channel", "auth:password-reset")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// LoadConfig reads config.yml from path into AppConfig. A .env file next to
// it, when present, is loaded into the process environment first so that
// its values can override the file through AutomaticEnv.
func LoadConfig(path string) {
	if err := godotenv.Load(filepath.Join(path, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Ignoring unreadable .env file: %v", err)
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file, %s", err)
	}

	if err := v.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	if err := AppConfig.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
}

// Validate checks the settings the auth core cannot run without.
func (c *Config) Validate() error {
	if len(c.JWT.Keys) == 0 {
		return errors.New("jwt.keys must contain at least one signing key")
	}
	found := false
	for _, k := range c.JWT.Keys {
		if k.ID == "" || len(k.Secret) < 32 {
			return errors.New("every jwt key needs an id and a secret of at least 32 bytes")
		}
		if k.ID == c.JWT.ActiveKey {
			found = true
		}
	}
	if !found {
		return errors.New("jwt.active_key must name one of jwt.keys")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("jwt.refresh_ttl must be longer than a positive jwt.access_ttl")
	}
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return errors.New("storage.driver must be postgres or memory")
	}
	switch c.Notifier.Driver {
	case "log", "redis":
	default:
		return errors.New("notifier.driver must be log or redis")
	}
	return nil
}
