package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/chatvault/chatvault/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP search API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	srv := api.NewServer(cfg.Port, s, newEmbedder(), slog.Default())
	return srv.Start()
}
