package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Storage struct {
		// postgres | memory
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	JWT struct {
		// Secret firma todos los tokens. Si está vacío se genera una clave
		// aleatoria por proceso: los tokens emitidos antes del reinicio dejan
		// de verificar, lo cual es una propiedad operativa aceptada.
		Secret string `yaml:"secret"`
		Issuer string `yaml:"issuer"`
	} `yaml:"jwt"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		Login   struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"login"`
	} `yaml:"rate"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load lee el YAML, expande ${VARS} y aplica overrides de entorno.
// Carga un .env si existe (solo para desarrollo local).
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if b, err := os.ReadFile(path); err != nil {
		// Sin archivo se corre con defaults + entorno; cualquier otro fallo
		// de lectura sí es fatal.
		if path != "" && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		// Expansión de ${VAR} antes de parsear
		expanded := os.Expand(string(b), func(key string) string {
			return os.Getenv(key)
		})
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SSOHUB_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("SSOHUB_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("SSOHUB_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("SSOHUB_JWT_SECRET"); v != "" {
		cfg.JWT.Secret = v
	}
	if v := os.Getenv("SSOHUB_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SSOHUB_ENV"); v != "" {
		cfg.App.Env = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "postgres"
	}
	if cfg.Cache.Kind == "" {
		cfg.Cache.Kind = "memory"
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "ssohub"
	}
	if cfg.Rate.Login.Limit == 0 {
		cfg.Rate.Login.Limit = 10
	}
	if cfg.Rate.Login.Window == "" {
		cfg.Rate.Login.Window = "1m"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "dev"
	}
}

// LoginWindow parsea la ventana del rate limit de login.
func (c *Config) LoginWindow() time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(c.Rate.Login.Window))
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}
