package cli

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"clipfind/internal/domain"
	"clipfind/internal/usecase"
)

var embedBatchSize int

var embedCmd = &cobra.Command{
	Use:   "embed [folders...]",
	Short: "Compute missing embeddings for a folder set",
	Long: `Scan the given folders, diff them against the embedding cache for the
active model, and compute embeddings for new or changed images. Interrupting
with Ctrl-C keeps everything already committed.

Examples:
  clipfind embed ~/Pictures
  clipfind embed ~/Pictures ~/Downloads --batch-size 32`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEmbed,
}

func init() {
	rootCmd.AddCommand(embedCmd)
	embedCmd.Flags().IntVar(&embedBatchSize, "batch-size", 0, "images per provider call (default from config)")
}

func runEmbed(cmd *cobra.Command, args []string) error {
	model, err := activeModel()
	if err != nil {
		return err
	}

	st, manager, err := openStack()
	if err != nil {
		return err
	}
	defer st.Close()

	prov, err := newProvider()
	if err != nil {
		return err
	}

	fmt.Printf("Scanning %d folder(s)...\n", len(args))
	pending, err := manager.Diff(args, model)
	if err != nil {
		return fmt.Errorf("diff failed: %w", err)
	}
	if len(pending) == 0 {
		fmt.Println("Cache is up to date.")
		return nil
	}
	fmt.Printf("Embedding %d image(s) with %s...\n", len(pending), model)

	batchSize := cfg.Provider.BatchSize
	if embedBatchSize > 0 {
		batchSize = embedBatchSize
	}
	orch := usecase.NewOrchestrator(prov, manager, batchSize)

	bar := progressbar.NewOptions(len(pending),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	report, err := orch.Run(ctx, model, pending, func(completed, total int) {
		bar.Set(completed)
	})
	if err != nil {
		return fmt.Errorf("embedding run failed: %w", err)
	}

	printReport(report)
	return nil
}

func printReport(report *domain.RunReport) {
	fmt.Printf("\nEmbedding complete:\n")
	fmt.Printf("  Succeeded:       %d\n", report.Succeeded)
	fmt.Printf("  Decode failures: %d\n", report.DecodeFailed)
	fmt.Printf("  Provider failures: %d\n", report.ProviderFailed)
	if report.CancelledRemaining > 0 {
		fmt.Printf("  Cancelled (remaining): %d\n", report.CancelledRemaining)
	}
	if len(report.Failures) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, f := range report.Failures {
			fmt.Printf("  - %s: %s\n", f.Path, f.Reason)
		}
	}
}
