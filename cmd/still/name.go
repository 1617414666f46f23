package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var nameCmd = &cobra.Command{
	Use:   "name <display name>",
	Short: "Change your display name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, client, ident, err := setup()
		if err != nil {
			return err
		}

		newName := strings.TrimSpace(strings.Join(args, " "))
		if newName == "" {
			return fmt.Errorf("display name must not be empty")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if _, err := client.InitUser(ctx, ident.UserID, newName); err != nil {
			return fmt.Errorf("renaming: %w", err)
		}

		ident.DisplayName = newName
		if err := store.SaveIdentity(ident); err != nil {
			return err
		}
		fmt.Printf("You are now %s.\n", newName)
		return nil
	},
}
