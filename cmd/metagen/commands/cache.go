package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/teranos/metagen/cache"
	"github.com/teranos/metagen/display"
	"github.com/teranos/metagen/errors"
	"github.com/teranos/metagen/logger"
)

// CacheCmd inspects and prunes the translation cache
var CacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or prune the translation cache",
	Long: `Inspect or prune the SQLite translation cache used by generate.

The cache path comes from --cache or generate.cache.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry and hit counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCache()
		if err != nil {
			return err
		}
		defer store.Close()
		return runCacheStats(cmd, store, cmd.OutOrStdout())
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove entries created before --older-than",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCache()
		if err != nil {
			return err
		}
		defer store.Close()
		return runCachePrune(cmd, store, cacheOlderThan, cmd.OutOrStdout())
	},
}

var (
	cachePath      string
	cacheOlderThan time.Duration
)

func init() {
	CacheCmd.PersistentFlags().StringVar(&cachePath, "cache", "", "SQLite cache path (default: generate.cache)")
	cacheStatsCmd.Flags().BoolP("json", "j", false, "Output stats as JSON")
	cachePruneCmd.Flags().DurationVar(&cacheOlderThan, "older-than", 30*24*time.Hour, "remove entries older than this")

	CacheCmd.AddCommand(cacheStatsCmd)
	CacheCmd.AddCommand(cachePruneCmd)
}

func openCache() (*cache.Store, error) {
	path := cachePath
	if path == "" {
		path = Config().Generate.Cache
	}
	if path == "" {
		return nil, errors.WithHint(
			errors.Wrap(errors.ErrInvalidInput, "no cache configured"),
			"set generate.cache in metagen.toml or pass --cache")
	}
	return cache.OpenStore(path, logger.ComponentLogger("cache"))
}

func runCacheStats(cmd *cobra.Command, store *cache.Store, out io.Writer) error {
	st, err := store.Stats(cmd.Context())
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(out, st)
	}
	_, err = fmt.Fprintf(out, "%d entries, %d hits\n", st.Entries, st.Hits)
	return err
}

func runCachePrune(cmd *cobra.Command, store *cache.Store, olderThan time.Duration, out io.Writer) error {
	if olderThan <= 0 {
		return errors.Newf("--older-than must be positive, got %s", olderThan)
	}
	n, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "Removed %d entries\n", n)
	return err
}
