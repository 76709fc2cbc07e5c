package auth

import (
	"os"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"

	"github.com/hsmss/go-console-auth/storage"
)

// Config drives the console gateway. Values come from an optional YAML
// file with CONSOLE_* environment variables layered on top.
type Config struct {
	Listen      string        `yaml:"listen"`
	AuthBaseURL string        `yaml:"auth_base_url"`
	APIBaseURL  string        `yaml:"api_base_url"`
	Debug       bool          `yaml:"debug"`
	Routes      RoutesConfig  `yaml:"routes"`
	Storage     StorageConfig `yaml:"storage"`
}

type RoutesConfig struct {
	Login      string   `yaml:"login"`
	Landing    string   `yaml:"landing"`
	Protected  []string `yaml:"protected"`
	PublicOnly []string `yaml:"public_only"`
}

type StorageConfig struct {
	Driver string               `yaml:"driver"`
	Redis  storage.RedisConfig  `yaml:"redis"`
	SQLite storage.SQLiteConfig `yaml:"sqlite"`
}

func DefaultConfig() *Config {
	return &Config{
		Listen:      ":8080",
		AuthBaseURL: "http://localhost:9096/auth",
		APIBaseURL:  "http://localhost:9096/api",
		Routes: RoutesConfig{
			Login:   "/login",
			Landing: "/dashboard",
			Protected: []string{
				"/dashboard",
				"/student",
				"/book",
				"/author",
				"/issue",
				"/transaction-view",
			},
			PublicOnly: []string{"/login"},
		},
		Storage: StorageConfig{
			Driver: "memory",
			Redis: storage.RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "console:",
			},
			SQLite: storage.SQLiteConfig{
				Path: "console.db",
			},
		},
	}
}

// LoadConfig reads path if it exists, then applies environment overrides.
// A missing file is fine; the defaults plus environment carry a dev setup.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "config: read file")
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "config: parse yaml")
			}
		}
	}

	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("CONSOLE_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("CONSOLE_AUTH_BASE_URL"); v != "" {
		c.AuthBaseURL = v
	}
	if v := os.Getenv("CONSOLE_API_BASE_URL"); v != "" {
		c.APIBaseURL = v
	}
	if v := os.Getenv("CONSOLE_DEBUG"); v != "" {
		c.Debug, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("CONSOLE_STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("CONSOLE_REDIS_ADDR"); v != "" {
		c.Storage.Redis.Addr = v
	}
	if v := os.Getenv("CONSOLE_REDIS_PASSWORD"); v != "" {
		c.Storage.Redis.Password = v
	}
	if v := os.Getenv("CONSOLE_SQLITE_PATH"); v != "" {
		c.Storage.SQLite.Path = v
	}
}

// Classifier builds the route classifier the guard consumes. Paths match
// on the first segment so nested screens inherit the class of their root.
func (c *Config) Classifier() RouteClassifier {
	protected := map[string]bool{}
	for _, p := range c.Routes.Protected {
		protected[rootSegment(p)] = true
	}

	publicOnly := map[string]bool{}
	for _, p := range c.Routes.PublicOnly {
		publicOnly[rootSegment(p)] = true
	}

	return func(path string) RouteClass {
		root := rootSegment(path)
		switch {
		case publicOnly[root]:
			return RoutePublicOnly
		case protected[root]:
			return RouteProtected
		default:
			return RoutePublic
		}
	}
}

func rootSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	return "/" + path
}
