package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"clipfind/internal/usecase"
)

var watchCmd = &cobra.Command{
	Use:   "watch [folders...]",
	Short: "Keep the embedding cache in sync with a folder set",
	Long: `Watch the given folders and re-run the diff/embed cycle whenever files
change, after a debounce interval. Runs until interrupted.

Example:
  clipfind watch ~/Pictures`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
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
	orch := usecase.NewOrchestrator(prov, manager, cfg.Provider.BatchSize)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	for _, folder := range args {
		if err := watchRecursive(watcher, folder); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	sync := func() {
		pending, err := manager.Diff(args, model)
		if err != nil {
			fmt.Printf("diff failed: %v\n", err)
			return
		}
		if removed, err := manager.Prune(args, model); err == nil && removed > 0 {
			fmt.Printf("Pruned %d stale record(s).\n", removed)
		}
		if len(pending) == 0 {
			return
		}
		fmt.Printf("Embedding %d changed image(s)...\n", len(pending))
		report, err := orch.Run(ctx, model, pending, nil)
		if err != nil {
			fmt.Printf("embedding run failed: %v\n", err)
			return
		}
		fmt.Printf("Done: %d succeeded, %d decode failures, %d provider failures.\n",
			report.Succeeded, report.DecodeFailed, report.ProviderFailed)
	}

	fmt.Printf("Watching %d folder(s), model %s. Ctrl-C to stop.\n", len(args), model)
	sync()

	debounce := time.Duration(cfg.Watch.DebounceMillis) * time.Millisecond
	if debounce <= 0 {
		debounce = 1500 * time.Millisecond
	}
	var timer *time.Timer
	pendingSync := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nStopped.")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// New directories need their own watch; everything else just
			// schedules a debounced sync.
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					watchRecursive(watcher, event.Name)
				}
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case pendingSync <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Printf("watch error: %v\n", err)
		case <-pendingSync:
			sync()
		}
	}
}

func watchRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if err := watcher.Add(path); err != nil {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
		}
		return nil
	})
}
