package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var topLimit int

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Show the lifetime leaderboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, client, ident, err := setup()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		page, err := client.Leaderboard(ctx, ident.UserID, topLimit)
		if err != nil {
			return fmt.Errorf("fetching leaderboard: %w", err)
		}

		youStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
		for _, e := range page.Entries {
			line := fmt.Sprintf("%3d. %-24s %7.1fh", e.Rank, e.DisplayName, e.TotalHours)
			if e.IsCurrentUser {
				line = youStyle.Render(line + "  ← you")
			}
			fmt.Println(line)
		}
		if page.CurrentUserRank > len(page.Entries) {
			fmt.Printf("  …\n  your rank: #%d\n", page.CurrentUserRank)
		}
		return nil
	},
}

func init() {
	topCmd.Flags().IntVar(&topLimit, "limit", 10, "number of entries to show")
}
