package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show archive totals and per-project breakdown",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := s.Stats(ctx)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	fmt.Println("=== Archive ===")
	fmt.Printf("Conversations:     %d\n", st.ConversationCount)
	fmt.Printf("Messages:          %d\n", st.MessageCount)
	fmt.Printf("Embedded messages: %d\n", st.EmbeddedMessageCount)
	fmt.Printf("Technical events:  %d\n", st.TechnicalEventCount)
	fmt.Printf("Projects:          %d\n", st.ProjectCount)
	if st.EarliestConversation != nil && st.LatestConversation != nil {
		fmt.Printf("Range:             %s to %s\n",
			st.EarliestConversation.Format(time.DateOnly),
			st.LatestConversation.Format(time.DateOnly))
	}

	projects, err := s.Projects(ctx)
	if err != nil {
		return fmt.Errorf("projects: %w", err)
	}
	if len(projects) == 0 {
		return nil
	}

	fmt.Println("\n=== Projects ===")
	for _, p := range projects {
		last := "never"
		if p.LatestConversation != nil {
			last = p.LatestConversation.Format(time.DateOnly)
		}
		fmt.Printf("%-40s %5d conversations %7d messages  last %s\n",
			p.ProjectName, p.ConversationCount, p.MessageCount, last)
	}
	return nil
}
