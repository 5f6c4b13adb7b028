package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/readaloud/internal/cache"
)

var (
	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Show the synthesized audio cache",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			store, err := openCache(s)
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck

			fmt.Println(formatCacheStats(s.Cache.Dir, store.Stats().Disk))
			return nil
		},
	}

	cacheClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached audio",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			store, err := openCache(s)
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck

			before := store.Stats().Disk
			if err := store.Clear(); err != nil {
				return fmt.Errorf("unable to clear cache: %w", err)
			}
			fmt.Printf("Removed %s in %s\n",
				keyword(humanize.Comma(before.Items)+" entries"),
				humanize.Bytes(uint64(before.Size)))
			return nil
		},
	}
)

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
}

func formatCacheStats(dir string, st cache.Stats) string {
	used := 0.0
	if st.Capacity > 0 {
		used = float64(st.Size) / float64(st.Capacity) * 100
	}

	last := "never"
	if !st.LastAccess.IsZero() {
		last = humanize.Time(st.LastAccess)
	}

	return fmt.Sprintf("%s %s\n%s %s\n%s %s of %s (%.0f%%)\n%s %s",
		faint("Directory:"), dir,
		faint("Entries:  "), humanize.Comma(st.Items),
		faint("Size:     "), humanize.Bytes(uint64(st.Size)), humanize.Bytes(uint64(st.Capacity)), used,
		faint("Last used:"), last,
	)
}
