// Package config handles configuration loading for the account service.
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Storage backends and database drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	StorageLocal    = "local"
	StorageS3       = "s3"
	StorageDisabled = "none"

	EnvProduction = "production"
)

// Config holds all configuration for the account service.
type Config struct {
	Port        string `koanf:"port"`
	Environment string `koanf:"environment"`

	DBDriver      string `koanf:"db_driver"`
	DBHost        string `koanf:"db_host"`
	DBPort        string `koanf:"db_port"`
	DBUser        string `koanf:"db_user"`
	DBPassword    string `koanf:"db_password"`
	DBName        string `koanf:"db_name"`
	DBSSLMode     string `koanf:"db_sslmode"`
	DBAutoMigrate bool   `koanf:"db_auto_migrate"`

	RedisHost     string `koanf:"redis_host"`
	RedisPort     string `koanf:"redis_port"`
	RedisPassword string `koanf:"redis_password"`

	JWTSecret         string        `koanf:"jwt_secret"`
	PasswordAlgorithm string        `koanf:"password_algorithm"`
	BcryptCost        int           `koanf:"bcrypt_cost"`
	OperationTimeout  time.Duration `koanf:"operation_timeout"`

	AllowedOrigins string `koanf:"allowed_origins"`

	AvatarStorage  string `koanf:"avatar_storage"`
	UploadDir      string `koanf:"upload_dir"`
	AvatarMaxBytes int64  `koanf:"avatar_max_bytes"`
	S3Bucket       string `koanf:"s3_bucket"`
	S3Region       string `koanf:"s3_region"`
	S3Endpoint     string `koanf:"s3_endpoint"`
	S3AccessKey    string `koanf:"s3_access_key"`
	S3SecretKey    string `koanf:"s3_secret_key"`
	S3PublicURL    string `koanf:"s3_public_url"`

	LogFormat string `koanf:"log_format"`
	LogLevel  string `koanf:"log_level"`
}

var defaults = map[string]any{
	"port":               "8084",
	"environment":        "development",
	"db_driver":          DriverPostgres,
	"db_port":            "5432",
	"db_sslmode":         "disable",
	"db_auto_migrate":    true,
	"redis_port":         "6379",
	"password_algorithm": "bcrypt",
	"bcrypt_cost":        10,
	"operation_timeout":  "5s",
	"allowed_origins":    "http://localhost:3000",
	"avatar_storage":     StorageLocal,
	"upload_dir":         "./uploads",
	"avatar_max_bytes":   5 << 20,
	"log_format":         "json",
	"log_level":          "info",
}

// Load layers configuration: defaults, then the optional YAML file at path,
// then environment variables, then flags the user set explicitly. The
// environment variable DB_HOST, the YAML key db_host and the flag --db-host
// all set the same value.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("key", key).Wrap(err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
		}
	}

	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), f.Value.String()
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_INVALID").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.AvatarStorage = strings.ToLower(strings.TrimSpace(c.AvatarStorage))
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	c.PasswordAlgorithm = strings.ToLower(strings.TrimSpace(c.PasswordAlgorithm))
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	errb := oops.Code("CONFIG_INVALID")

	if c.JWTSecret == "" {
		return errb.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return errb.Errorf("JWT_SECRET must be at least 32 bytes")
	}

	switch c.DBDriver {
	case DriverPostgres:
		required := []struct{ name, value string }{
			{"DB_HOST", c.DBHost},
			{"DB_USER", c.DBUser},
			{"DB_NAME", c.DBName},
		}
		for _, r := range required {
			if r.value == "" {
				return errb.With("key", r.name).Errorf("%s is required for the postgres driver", r.name)
			}
		}
	case DriverMemory:
		if c.IsProduction() {
			return errb.Errorf("the memory driver cannot be used in production")
		}
	default:
		return errb.With("driver", c.DBDriver).Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}

	switch c.AvatarStorage {
	case StorageLocal:
		if c.UploadDir == "" {
			return errb.Errorf("UPLOAD_DIR is required for local avatar storage")
		}
	case StorageS3:
		if c.S3Bucket == "" || c.S3Region == "" {
			return errb.Errorf("S3_BUCKET and S3_REGION are required for s3 avatar storage")
		}
		if !strings.HasPrefix(c.S3PublicURL, "http://") && !strings.HasPrefix(c.S3PublicURL, "https://") {
			return errb.Errorf("S3_PUBLIC_URL must be an absolute http(s) URL for s3 avatar storage")
		}
	case StorageDisabled:
	default:
		return errb.With("storage", c.AvatarStorage).Errorf("unknown AVATAR_STORAGE %q", c.AvatarStorage)
	}

	if c.OperationTimeout < 0 {
		return errb.Errorf("OPERATION_TIMEOUT must not be negative")
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// RedisEnabled reports whether a Redis host is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c *Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
