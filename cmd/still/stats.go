package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"stillmind/internal/localstore"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show your lifetime meditation statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, client, ident, err := setup()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Prefer fresh numbers; fall back to the local cache offline.
		refreshLocalStats(ctx, client, store, ident.UserID, false)

		stats, err := store.LocalStats()
		if err == localstore.ErrNotFound {
			fmt.Println("No sessions recorded yet. Try `still sit`.")
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Printf("%s (%s)\n", ident.DisplayName, ident.UserID)
		fmt.Printf("  total    %s\n", formatDuration(time.Duration(stats.TotalSeconds)*time.Second))
		fmt.Printf("  sessions %d\n", stats.SessionsCount)
		if stats.Rank > 0 {
			fmt.Printf("  rank     #%d\n", stats.Rank)
		}
		fmt.Printf("  as of    %s\n", stats.UpdatedAt.Local().Format("Jan 2 15:04"))
		return nil
	},
}
