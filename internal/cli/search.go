package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"clipfind/internal/adapter/cache"
	"clipfind/internal/domain"
	"clipfind/internal/usecase"
)

var (
	searchText  string
	searchImage string
	searchTopK  int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search cached images by text or reference image",
	Long: `Rank all cached images for the active model against a text query or a
reference image, by cosine similarity.

Examples:
  clipfind search -q "sunset over mountains"
  clipfind search --image ~/Pictures/ref.jpg -k 10 --json`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchText, "query", "q", "", "text query")
	searchCmd.Flags().StringVar(&searchImage, "image", "", "reference image path")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	searchCmd.MarkFlagsOneRequired("query", "image")
	searchCmd.MarkFlagsMutuallyExclusive("query", "image")
}

func runSearch(cmd *cobra.Command, args []string) error {
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

	queryCache := cache.NewVectorCache(
		cfg.Search.QueryCacheSize,
		time.Duration(cfg.Search.QueryCacheTTLMinutes)*time.Minute,
	)
	engine := usecase.NewSearchEngine(prov, manager, queryCache)

	topK := cfg.Search.TopK
	if searchTopK != 0 {
		topK = searchTopK
	}

	var matches []domain.Match
	if searchImage != "" {
		matches, err = engine.SearchImage(cmd.Context(), searchImage, model, topK)
	} else {
		matches, err = engine.SearchText(cmd.Context(), searchText, model, topK)
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		output, _ := json.MarshalIndent(matches, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(matches) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	for i, m := range matches {
		fmt.Printf("%3d. %.4f  %s\n", i+1, m.Score, m.Path)
	}
	return nil
}
