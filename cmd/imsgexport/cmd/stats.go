package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/wesm/imsgexport/internal/chatdb"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show chat.db statistics",
	Long: `Show handle and message counts for the Messages database, along with
the dates of the oldest and newest message.

Use this to check that chat.db is readable before exporting.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := chatDBPath()
		db, err := chatdb.Open(path)
		if err != nil {
			return fmt.Errorf("open chat.db: %w", err)
		}
		defer db.Close()

		stats, err := db.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("get stats: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Database: %s\n", db.Path())
		fmt.Fprintf(out, "  Handles:     %s\n", humanize.Comma(int64(stats.Handles)))
		fmt.Fprintf(out, "  Messages:    %s\n", humanize.Comma(int64(stats.Messages)))
		fmt.Fprintf(out, "  Max ROWID:   %d\n", stats.MaxRowID)
		fmt.Fprintf(out, "  Oldest:      %s\n", formatStatsDate(stats.OldestDate))
		fmt.Fprintf(out, "  Newest:      %s\n", formatStatsDate(stats.NewestDate))
		if info, err := os.Stat(db.Path()); err == nil {
			fmt.Fprintf(out, "  Size:        %s\n", humanize.Bytes(uint64(info.Size())))
		}

		return nil
	},
}

func formatStatsDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
