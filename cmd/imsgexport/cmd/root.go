package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/wesm/imsgexport/internal/chatdb"
	"github.com/wesm/imsgexport/internal/config"
	"github.com/wesm/imsgexport/internal/export"
)

var (
	cfgFile  string
	homeDir  string
	dbPath   string
	logLevel string
	verbose  bool
	cfg      *config.Config
	logger   *slog.Logger

	outputFile string
	startDate  string
	endDate    string
	onlyFromMe bool

	// logOutput is where the logger writes; tests replace it.
	logOutput io.Writer = os.Stderr
)

var rootCmd = &cobra.Command{
	Use:   "imsgexport",
	Short: "Export iMessage history to JSON",
	Long: `imsgexport reads the macOS Messages database (chat.db) and writes the
messages inside a date range to a JSON array.

Dates are YYYY-MM-DD and the range is inclusive. Without --start-date the
export covers the last 7 days (see [export].window_days), and without
--end-date it runs up to now.

Reading ~/Library/Messages/chat.db requires Full Disk Access for the
terminal running imsgexport.`,
	Example: `  imsgexport -o messages.json
  imsgexport -o march.json -s 2024-03-01 -e 2024-03-31
  imsgexport -o sent.json --only-from-me`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for commands that don't need it
		if cmd.Name() == "version" {
			return nil
		}

		// Load config (--home is passed through so it influences
		// where config.toml is loaded from, like IMSGEXPORT_HOME).
		var err error
		cfg, err = config.Load(cfgFile, homeDir)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger, err = newLogger(logOutput)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	},
	RunE: runExport,
}

// newLogger builds the process logger. The level comes from [log].level,
// then --log-level, then --verbose. Terminals get text output, everything
// else JSON lines.
func newLogger(w io.Writer) (*slog.Logger, error) {
	levelName := cfg.Log.Level
	if logLevel != "" {
		levelName = logLevel
	}
	level, err := config.ParseLogLevel(levelName)
	if err != nil {
		return nil, fmt.Errorf("--log-level: %w", err)
	}
	if verbose && level > slog.LevelDebug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nil
}

// chatDBPath returns --db, or the configured/default chat.db location.
func chatDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	return cfg.ChatDBPath()
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Dates are validated before chat.db is touched so a typo never
	// leaves a partial output file behind.
	r, err := export.ResolveRange(startDate, endDate, time.Now(), cfg.Window())
	if err != nil {
		return err
	}

	path := chatDBPath()
	db, err := chatdb.Open(path)
	if err != nil {
		return reportExportError(export.NewTableError("open "+path, err))
	}
	defer db.Close()

	logger.Info("exporting messages",
		"db", path,
		"start", r.Start.Format(time.RFC3339),
		"end", r.End.Format(time.RFC3339),
		"only_from_me", onlyFromMe,
	)

	summary, err := export.NewExporter(db, logger).Run(ctx, export.Request{
		OutputPath: outputFile,
		Range:      r,
		OnlyFromMe: onlyFromMe,
	})
	if err != nil {
		// Propagate cancellation unwrapped so main can pick the exit code.
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return context.Canceled
		}
		return reportExportError(err)
	}

	logger.Info("export complete",
		"output", summary.OutputPath,
		"exported", summary.MessagesExported,
		"scanned", summary.MessagesScanned,
		"dropped", summary.MessagesDropped,
		"handles", summary.HandlesLoaded,
		"handles_skipped", summary.HandlesSkipped,
		"duration", summary.Duration.Round(time.Millisecond),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d messages to %s\n", summary.MessagesExported, summary.OutputPath)
	return nil
}

// reportExportError logs the stack trace of an export failure at debug
// level and returns err for cobra to print.
func reportExportError(err error) error {
	var exportErr *export.Error
	if errors.As(err, &exportErr) {
		logger.Debug("export failed", "kind", exportErr.Kind, "trace", exportErr.Trace())
	}
	return err
}

// Execute runs the root command with a background context.
// Prefer ExecuteContext for signal-aware execution.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with the given context,
// enabling graceful shutdown when the context is cancelled.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.imsgexport/config.toml)")
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "home directory (overrides IMSGEXPORT_HOME)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to chat.db (default: ~/Library/Messages/chat.db)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error")

	rootCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "write the JSON export to this file")
	rootCmd.Flags().StringVarP(&startDate, "start-date", "s", "", "first day to export, YYYY-MM-DD (default: 7 days ago)")
	rootCmd.Flags().StringVarP(&endDate, "end-date", "e", "", "last day to export, YYYY-MM-DD (default: now)")
	rootCmd.Flags().BoolVarP(&onlyFromMe, "only-from-me", "m", false, "only export messages you sent")
	_ = rootCmd.MarkFlagRequired("output-file")
}
