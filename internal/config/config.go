package config

import (
	"os"
	"path/filepath"
	"strconv"
)

type Config struct {
	Port        int
	DatabaseURL string
	OllamaURL   string
	EmbedModel  string
	EmbedDim    int
	BatchSize   int
	ProjectsDir string
	NatsURL     string
	NatsToken   string
	LogLevel    string
}

func Load() Config {
	return Config{
		Port:        envInt("CHATVAULT_PORT", 8460),
		DatabaseURL: envStr("DATABASE_URL", ""),
		OllamaURL:   envStr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel:  envStr("CHATVAULT_EMBED_MODEL", "nomic-embed-text"),
		EmbedDim:    envInt("CHATVAULT_EMBED_DIM", 768),
		BatchSize:   envInt("CHATVAULT_BATCH_SIZE", 32),
		ProjectsDir: envStr("CHATVAULT_PROJECTS_DIR", defaultProjectsDir()),
		NatsURL:     envStr("NATS_URL", ""),
		NatsToken:   envStr("NATS_TOKEN", ""),
		LogLevel:    envStr("LOG_LEVEL", "info"),
	}
}

func defaultProjectsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".claude", "projects")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
