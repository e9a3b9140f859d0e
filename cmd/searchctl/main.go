package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhuyinghua6961/LiFeO4Agent/internal/di"
	"github.com/zhuyinghua6961/LiFeO4Agent/internal/infra/config"
	"github.com/zhuyinghua6961/LiFeO4Agent/internal/usecase"
)

var (
	version = "dev"

	verbose     bool
	topK        int
	noExpansion bool
	noReranking bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "searchctl",
	Short:   "Query the literature retrieval pipeline from the command line",
	Version: version,
}

var searchCmd = &cobra.Command{
	Use:   "search <question>",
	Short: "Run expansion, retrieval, and reranking for one question",
	Long: `Run the full retrieval pipeline for a question and print the ranked
passages with diagnostics as JSON.

Examples:
  # Full pipeline
  searchctl search "磷酸铁锂的压实密度是多少？"

  # Skip reranking to see the raw retrieval order
  searchctl search --no-rerank "LiFePO4 compaction density"`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var expandCmd = &cobra.Command{
	Use:   "expand <query>",
	Short: "Show the query variants expansion would produce",
	Args:  cobra.ExactArgs(1),
	RunE:  runExpand,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline internals to stderr")
	searchCmd.Flags().IntVar(&topK, "top-k", 0, "number of results to return (0 = configured default)")
	searchCmd.Flags().BoolVar(&noExpansion, "no-expansion", false, "disable query expansion")
	searchCmd.Flags().BoolVar(&noReranking, "no-rerank", false, "disable sentence-level reranking")
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(expandCmd)
}

func newLogger() *slog.Logger {
	if verbose {
		return slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	log := newLogger()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	components, err := di.NewApplicationComponents(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to wire components: %w", err)
	}
	defer components.Close()

	output, err := components.Search.Execute(ctx, usecase.SearchInput{
		Question:        args[0],
		TopK:            topK,
		EnableExpansion: !noExpansion,
		EnableReranking: !noReranking,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	return printJSON(output)
}

func runExpand(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	log := newLogger()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	components, err := di.NewApplicationComponents(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to wire components: %w", err)
	}
	defer components.Close()

	result := components.Expander.Expand(ctx, args[0])
	return printJSON(map[string]any{
		"original":           result.Original,
		"variants":           result.Variants,
		"translation_method": result.TranslationMethod,
		"elapsed_ms":         result.Elapsed.Milliseconds(),
	})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
