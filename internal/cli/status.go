package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"clipfind/internal/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show embedding cache statistics per model",
	RunE:  runStatus,
}

var clearForce bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop all cached embeddings for the active model",
	RunE:  runClear,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(clearCmd)
	clearCmd.Flags().BoolVar(&clearForce, "force", false, "confirm deletion")
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, manager, err := openStack()
	if err != nil {
		return err
	}
	defer st.Close()

	fmt.Printf("Cache directory: %s\n\n", st.Dir())
	for _, model := range domain.Models() {
		stats, err := manager.Stats(model)
		if err != nil {
			return err
		}
		marker := " "
		if string(model) == cfg.Cache.Model {
			marker = "*"
		}
		fmt.Printf("%s %-24s %6d image(s)  %8.1f MB\n",
			marker, model, stats.Records, float64(stats.SizeBytes)/(1024*1024))
	}
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	model, err := activeModel()
	if err != nil {
		return err
	}
	if !clearForce {
		return fmt.Errorf("refusing to clear the %s cache without --force", model)
	}

	st, manager, err := openStack()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := manager.Clear(model); err != nil {
		return fmt.Errorf("clear failed: %w", err)
	}
	fmt.Printf("Cleared the %s cache.\n", model)
	return nil
}
