package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "ONEPASS"

type Config struct {
	HTTPAddr string
	GRPCAddr string // empty disables the gRPC health server

	Env string // "dev" | "prod"

	LogLevel  string
	LogFormat string // "json" | "text"

	// Storage
	StorageDriver string // "memory" | "sqlite" | "postgres"
	SQLitePath    string
	PostgresDSN   string

	// Site
	Timezone  string
	ZonesFile string // empty uses the built-in zone graph

	// Gate
	AllowAll      bool
	AllowedActors []string

	CORSAllowedOrigins []string

	OccupancyInterval time.Duration // 0 disables the collector
}

func defaults() map[string]any {
	return map[string]any{
		"http.addr":                  ":8080",
		"grpc.addr":                  ":9090",
		"env":                        "dev",
		"log.level":                  "info",
		"log.format":                 "",
		"storage.driver":             "sqlite",
		"storage.sqlite_path":        "./data/onepass.db",
		"storage.postgres_dsn":       "",
		"site.timezone":              "Europe/Paris",
		"site.zones_file":            "",
		"gate.allow_all":             true,
		"gate.allowed_actors":        "",
		"cors.allowed_origins":       "",
		"occupancy.interval_seconds": 30,
	}
}

// Load reads configuration from an optional .env file, an optional config
// file and ONEPASS_* environment variables, in increasing precedence.
// path may be empty, in which case onepass.{yaml,json,toml} is looked up in
// the working directory and ./configs.
func Load(path string) (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for k, val := range defaults() {
		v.SetDefault(k, val)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("onepass")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	env := strings.ToLower(strings.TrimSpace(v.GetString("env")))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	interval := v.GetInt("occupancy.interval_seconds")
	if interval < 0 {
		interval = 0
	}

	cfg := Config{
		HTTPAddr:           v.GetString("http.addr"),
		GRPCAddr:           strings.TrimSpace(v.GetString("grpc.addr")),
		Env:                env,
		LogLevel:           v.GetString("log.level"),
		LogFormat:          strings.ToLower(strings.TrimSpace(v.GetString("log.format"))),
		StorageDriver:      strings.ToLower(strings.TrimSpace(v.GetString("storage.driver"))),
		SQLitePath:         v.GetString("storage.sqlite_path"),
		PostgresDSN:        v.GetString("storage.postgres_dsn"),
		Timezone:           v.GetString("site.timezone"),
		ZonesFile:          v.GetString("site.zones_file"),
		AllowAll:           v.GetBool("gate.allow_all"),
		AllowedActors:      stringList(v, "gate.allowed_actors"),
		CORSAllowedOrigins: stringList(v, "cors.allowed_origins"),
		OccupancyInterval:  time.Duration(interval) * time.Second,
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
		if env == "prod" {
			cfg.LogFormat = "json"
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StorageDriver {
	case "memory", "sqlite":
	case "postgres":
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return errors.New("storage.postgres_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q (want memory, sqlite or postgres)", c.StorageDriver)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the site timezone used to bucket time slots by day.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("site.timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// stringList accepts either a YAML list or a comma separated string.
func stringList(v *viper.Viper, key string) []string {
	if s, ok := v.Get(key).(string); ok {
		return splitCSV(s)
	}
	var out []string
	for _, s := range v.GetStringSlice(key) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
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
