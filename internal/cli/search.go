package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/chatvault/chatvault/internal/store"
)

var (
	searchProject   string
	searchRole      string
	searchAfter     string
	searchBefore    string
	searchLimit     int
	searchThreshold float64
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantic search over stored conversations",
	Long: `Embed the query and find the closest stored messages by cosine
distance, with optional project, role and date filters.

Examples:
  chatvault search "connection pool sizing"
  chatvault search "auth middleware" --project my-api --limit 5
  chatvault search "migration plan" --after 2026-01-01 --threshold 0.5`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVar(&searchProject, "project", "", "Restrict to one project")
	searchCmd.Flags().StringVar(&searchRole, "role", "", "Restrict to one message role")
	searchCmd.Flags().StringVar(&searchAfter, "after", "", "Only messages on or after this date (YYYY-MM-DD)")
	searchCmd.Flags().StringVar(&searchBefore, "before", "", "Only messages on or before this date (YYYY-MM-DD)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "Maximum number of results")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", 0.7, "Maximum cosine distance for a match")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	query := strings.Join(args, " ")

	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	params := store.SearchParams{
		Limit:       searchLimit,
		MaxDistance: searchThreshold,
		Project:     searchProject,
		Role:        searchRole,
	}
	if searchAfter != "" {
		t, err := time.Parse("2006-01-02", searchAfter)
		if err != nil {
			return fmt.Errorf("invalid --after date: %w", err)
		}
		params.After = t
	}
	if searchBefore != "" {
		t, err := time.Parse("2006-01-02", searchBefore)
		if err != nil {
			return fmt.Errorf("invalid --before date: %w", err)
		}
		params.Before = t
	}

	vec, err := newEmbedder().EmbedSingle(ctx, query)
	if err != nil {
		return fmt.Errorf("embed query: %w", err)
	}

	results, err := s.SearchSimilar(ctx, vec, params)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if len(results) == 0 {
		fmt.Printf("No results for: %s\n", query)
		return nil
	}

	fmt.Printf("Found %d result(s) for: %s\n\n", len(results), query)
	for i, r := range results {
		fmt.Printf("--- Result %d (distance %.3f) ---\n", i+1, r.Distance)
		fmt.Printf("Project: %s\n", r.ProjectName)
		fmt.Printf("Session: %s\n", r.SessionID)
		if r.GitBranch != nil && *r.GitBranch != "" {
			fmt.Printf("Branch:  %s\n", *r.GitBranch)
		}
		if r.Timestamp != nil {
			fmt.Printf("When:    %s\n", r.Timestamp.Format(time.RFC3339))
		}
		fmt.Printf("Role:    %s\n", r.Role)
		fmt.Printf("%s\n\n", snippet(r.Content, 300))
	}
	return nil
}

func snippet(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
