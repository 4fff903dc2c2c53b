package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database schema and verify the embedding model",
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.EnsureSchema(ctx, cfg.EmbedDim); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	fmt.Printf("Schema ready (embedding dimension %d)\n", cfg.EmbedDim)

	emb := newEmbedder()
	ok, err := emb.IsModelAvailable(ctx)
	if err != nil {
		return fmt.Errorf("check embedding model: %w", err)
	}
	if !ok {
		return fmt.Errorf("model %q not found on %s; pull it with: ollama pull %s",
			cfg.EmbedModel, cfg.OllamaURL, cfg.EmbedModel)
	}
	fmt.Printf("Embedding model %q available at %s\n", cfg.EmbedModel, cfg.OllamaURL)
	return nil
}
