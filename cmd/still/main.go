package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stillmind/internal/backend"
	"stillmind/internal/localstore"
	"stillmind/internal/namegen"

	"github.com/google/uuid"
)

var (
	serverURL string
	dataDir   string
)

var rootCmd = &cobra.Command{
	Use:   "still",
	Short: "Meditate together, anonymously",
	Long: `still runs a meditation session against a stillmind server:
it heartbeats while you sit, shows how many people are meditating right
now, and keeps your lifetime statistics on the shared leaderboard.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "stillmind server URL")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "state directory (default: $XDG_DATA_HOME/stillmind)")

	rootCmd.AddCommand(sitCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(topCmd)
	rootCmd.AddCommand(nameCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup opens the local store and ensures an identity exists, generating an
// anonymous one on first run.
func setup() (*localstore.Store, *backend.Client, *localstore.Identity, error) {
	dir := dataDir
	if dir == "" {
		var err error
		dir, err = localstore.DefaultDir()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("resolving data directory: %w", err)
		}
	}
	store, err := localstore.New(dir)
	if err != nil {
		return nil, nil, nil, err
	}

	ident, err := store.Identity()
	if err == localstore.ErrNotFound {
		ident = &localstore.Identity{
			UserID:      "u_" + uuid.New().String()[:8],
			DisplayName: namegen.Generate(),
		}
		if err := store.SaveIdentity(ident); err != nil {
			return nil, nil, nil, err
		}
		fmt.Printf("Welcome. You are %s (%s).\n", ident.DisplayName, ident.UserID)
	} else if err != nil {
		return nil, nil, nil, err
	}

	return store, backend.NewClient(serverURL), ident, nil
}
