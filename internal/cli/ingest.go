package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/chatvault/chatvault/internal/ingest"
	"github.com/chatvault/chatvault/internal/notify"
)

var (
	ingestDir         string
	ingestFile        string
	ingestProject     string
	ingestMinMessages int
	ingestDryRun      bool
	ingestBuildIndex  bool
	ingestIndexLists  int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Parse conversation logs, embed them and store them",
	Long: `Walk a directory tree of JSONL conversation logs (by default the
configured projects directory), parse each file into a conversation,
embed the substantial messages and store everything in Postgres.

Files that fail to parse or store are skipped with a warning; the run
always completes and prints an aggregate summary.

Examples:
  chatvault ingest
  chatvault ingest --project my-api --dry-run
  chatvault ingest --file ~/.claude/projects/my-api/abc123.jsonl
  chatvault ingest --build-index`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestDir, "dir", "", "Directory to walk (default: configured projects dir)")
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "Ingest a single JSONL file")
	ingestCmd.Flags().StringVar(&ingestProject, "project", "", "Only ingest projects whose directory name contains this substring")
	ingestCmd.Flags().IntVar(&ingestMinMessages, "min-messages", 0, "Skip conversations with fewer messages")
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "Parse and embed but do not write to the database")
	ingestCmd.Flags().BoolVar(&ingestBuildIndex, "build-index", false, "Build the vector index after ingestion")
	ingestCmd.Flags().IntVar(&ingestIndexLists, "index-lists", 100, "ivfflat cluster count for --build-index")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	var notifier ingest.Publisher
	if cfg.NatsURL != "" {
		nc, err := notify.NewClient(cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Warn("NATS unavailable, continuing without event publishing", "error", err)
		} else {
			defer nc.Close()
			notifier = nc
		}
	}

	dir := ingestDir
	if dir == "" {
		dir = cfg.ProjectsDir
	}

	runner := ingest.NewRunner(ingest.Config{
		Dir:         dir,
		Project:     ingestProject,
		SingleFile:  ingestFile,
		MinMessages: ingestMinMessages,
		DryRun:      ingestDryRun,
		BuildIndex:  ingestBuildIndex,
		IndexLists:  ingestIndexLists,
	}, s, newEmbedder(), notifier, slog.Default())

	report, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Print(report.Summary())
	return nil
}
