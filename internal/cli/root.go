package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"clipfind/config"
	"clipfind/internal/adapter/fs"
	"clipfind/internal/adapter/provider"
	"clipfind/internal/adapter/store"
	"clipfind/internal/domain"
	"clipfind/internal/port"
	"clipfind/internal/usecase"
)

var (
	cfgFile      string
	cfg          *config.Config
	cacheDirFlag string
	modelFlag    string
)

var rootCmd = &cobra.Command{
	Use:   "clipfind",
	Short: "Find images by text or visual similarity",
	Long: `clipfind indexes image folders into a per-model embedding cache and
answers similarity queries over it with an exact cosine scan.

Example usage:
  clipfind embed ~/Pictures              # compute missing embeddings
  clipfind search -q "a cat on a sofa"   # search by text
  clipfind search --image ref.jpg        # search by reference image`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			wd, werr := os.Getwd()
			if werr != nil {
				return fmt.Errorf("failed to get working directory: %w", werr)
			}
			cfg, err = config.LoadFromDir(wd)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if cacheDirFlag != "" {
			cfg.Cache.Dir = cacheDirFlag
		}
		if modelFlag != "" {
			cfg.Cache.Model = modelFlag
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./clipfind.yaml)")
	rootCmd.PersistentFlags().StringVar(&cacheDirFlag, "cache-dir", "", "embedding cache directory")
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "active model identifier")
}

func activeModel() (domain.Model, error) {
	return domain.ParseModel(cfg.Cache.Model)
}

// openStack wires the scanner, record store and cache manager from config.
// The caller must Close the returned store.
func openStack() (*store.BoltRecordStore, *usecase.CacheManager, error) {
	dir, err := cfg.CacheDir()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve cache directory: %w", err)
	}
	st, err := store.NewBoltRecordStore(dir)
	if err != nil {
		return nil, nil, err
	}
	scanner := fs.NewScanner(cfg.Scan.Excludes, cfg.Cache.Fingerprint)
	return st, usecase.NewCacheManager(st, scanner), nil
}

func newProvider() (port.EmbeddingProvider, error) {
	switch cfg.Provider.Kind {
	case "clip-http", "":
		timeout := time.Duration(cfg.Provider.TimeoutSeconds) * time.Second
		return provider.NewCLIPClient(cfg.Provider.BaseURL, timeout), nil
	case "mock":
		return provider.NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported provider kind: %s", cfg.Provider.Kind)
	}
}
