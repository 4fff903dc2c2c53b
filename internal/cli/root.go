package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/chatvault/chatvault/internal/config"
	"github.com/chatvault/chatvault/internal/embed"
	"github.com/chatvault/chatvault/internal/store"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "chatvault",
	Short: "Semantic archive for agent conversation logs",
	Long: `chatvault ingests JSONL conversation logs into Postgres with pgvector
embeddings and serves semantic search over the archive.

Configuration comes from the environment: DATABASE_URL, OLLAMA_URL,
CHATVAULT_EMBED_MODEL, CHATVAULT_PROJECTS_DIR and friends.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		setupLogging(cfg.LogLevel)
	},
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

func openStore(ctx context.Context) (*store.Store, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	return store.New(ctx, cfg.DatabaseURL, slog.Default())
}

func newEmbedder() *embed.Client {
	ec := embed.DefaultConfig()
	ec.BaseURL = cfg.OllamaURL
	ec.Model = cfg.EmbedModel
	ec.Dimensions = cfg.EmbedDim
	ec.BatchSize = cfg.BatchSize
	return embed.NewClient(ec, slog.Default())
}
