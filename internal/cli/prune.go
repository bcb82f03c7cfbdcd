package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune [folders...]",
	Short: "Remove cached embeddings for deleted or out-of-set images",
	Long: `Remove records whose image is no longer inside the given folder set or
no longer exists on disk.

Example:
  clipfind prune ~/Pictures`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	model, err := activeModel()
	if err != nil {
		return err
	}

	st, manager, err := openStack()
	if err != nil {
		return err
	}
	defer st.Close()

	removed, err := manager.Prune(args, model)
	if err != nil {
		return fmt.Errorf("prune failed: %w", err)
	}
	fmt.Printf("Removed %d stale record(s).\n", removed)
	return nil
}
