// Package config assembles the gateway's runtime configuration from a .env
// file, flags, and the environment. Everything here is read once at startup
// and treated as immutable afterwards.
package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Port string
	Env  string

	StaticDir string

	// DatabaseURL switches the registry and the document archive to
	// PostgreSQL. Empty means local files.
	DatabaseURL string

	Engine   EngineConfig
	Upload   UploadConfig
	Registry RegistryConfig
	Archive  ArchiveConfig
}

// EngineConfig locates the external analysis engine and caps each task.
type EngineConfig struct {
	Python         string
	ScriptDir      string
	MaxCommits     int
	TaskTimeout    time.Duration
	MaxOutputBytes int
}

type UploadConfig struct {
	Dir      string
	MaxBytes int64
}

// RegistryConfig locates the analyzed-repository registry file, used when
// no database is configured.
type RegistryConfig struct {
	Path string
}

// ArchiveConfig selects where analysis documents are archived. DataDir is
// shared with the engine's own on-disk output; the S3 block, when complete,
// switches the archive to object storage.
type ArchiveConfig struct {
	DataDir string
	S3      S3Config
}

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// CanUseS3 reports whether the block carries everything a client needs.
func (c S3Config) CanUseS3() bool {
	return strings.TrimSpace(c.Endpoint) != "" &&
		strings.TrimSpace(c.AccessKey) != "" &&
		strings.TrimSpace(c.SecretKey) != "" &&
		strings.TrimSpace(c.Bucket) != ""
}

// IsDevelopment reports whether error responses may carry diagnostic detail.
// Anything that is not explicitly production counts as development.
func (c *Config) IsDevelopment() bool {
	return !strings.EqualFold(strings.TrimSpace(c.Env), EnvProduction)
}

// Load reads .env, parses flags, and resolves the full configuration.
// PORT in the environment wins over the -port flag.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8080", "server port")
	flag.Parse()

	cfg := FromEnv()
	if envPort := strings.TrimSpace(os.Getenv("PORT")); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			cfg.Port = envPort
		} else {
			cfg.Port = ":" + envPort
		}
	} else {
		cfg.Port = *port
	}
	return cfg, nil
}

// FromEnv resolves everything except the port from the environment, with
// working defaults for a bare development checkout.
func FromEnv() *Config {
	return &Config{
		Port:        ":8080",
		Env:         firstNonEmpty(strings.TrimSpace(os.Getenv("APP_ENV")), EnvDevelopment),
		StaticDir:   envStr("STATIC_DIR", "public"),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Engine: EngineConfig{
			Python:         envStr("ENGINE_PYTHON", "python3"),
			ScriptDir:      envStr("ENGINE_SCRIPT_DIR", "python"),
			MaxCommits:     envInt("ENGINE_MAX_COMMITS", 100),
			TaskTimeout:    envDuration("ENGINE_TASK_TIMEOUT", 5*time.Minute),
			MaxOutputBytes: envInt("ENGINE_MAX_OUTPUT_BYTES", 10<<20),
		},
		Upload: UploadConfig{
			Dir:      envStr("UPLOAD_DIR", "uploads"),
			MaxBytes: envInt64("UPLOAD_MAX_BYTES", 100<<20),
		},
		Registry: RegistryConfig{
			Path: envStr("REGISTRY_PATH", "analysis_data/registry.json"),
		},
		Archive: ArchiveConfig{
			DataDir: envStr("ANALYSIS_DATA_DIR", "analysis_data"),
			S3: S3Config{
				Endpoint:  strings.TrimSpace(os.Getenv("ARCHIVE_S3_ENDPOINT")),
				Region:    envStr("ARCHIVE_S3_REGION", "us-east-1"),
				AccessKey: strings.TrimSpace(os.Getenv("ARCHIVE_S3_ACCESS_KEY")),
				SecretKey: strings.TrimSpace(os.Getenv("ARCHIVE_S3_SECRET_KEY")),
				Bucket:    strings.TrimSpace(os.Getenv("ARCHIVE_S3_BUCKET")),
				UseSSL:    envBool("ARCHIVE_S3_USE_SSL", true),
			},
		},
	}
}
