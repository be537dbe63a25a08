package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/feedspot/feedmerge/internal/controller"
	"github.com/feedspot/feedmerge/internal/mergesdk"
	"github.com/feedspot/feedmerge/internal/progress"
	"github.com/feedspot/feedmerge/internal/utils"
	"github.com/feedspot/feedmerge/internal/version"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

// consoleLevel gates the stderr handler only. The log file always gets debug.
var consoleLevel = new(slog.LevelVar)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "feedmerge [flags] FILE...",
		Short:   "Merge CSV feed exports into one download",
		Version: version.Detailed(),
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			if cfg.Debug {
				consoleLevel.Set(slog.LevelDebug)
			}

			// all good now, errors past this point are runtime errors
			cmd.SilenceUsage = true

			client, err := mergesdk.New(cfg.SDKConfig())
			if err != nil {
				return err
			}

			sub := &controller.Submission{
				Files:        args,
				Fields:       cfg.Fields,
				DownloadType: mergesdk.DownloadType(cfg.DownloadType),
			}

			if cfg.Plain || !isTerminal(os.Stdout) {
				err = runMergePlain(cmd.Context(), cmd.OutOrStdout(), client, cfg, sub)
			} else {
				err = runMergeTUI(cmd.Context(), cmd.OutOrStdout(), client, cfg, sub)
			}

			// the view already showed a failed submission
			var submitErr *controller.SubmitError
			cmd.SilenceErrors = errors.As(err, &submitErr)
			return err
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().StringP("format", "f", defaultDownloadType, "Download format (csv or excel)")
	cmd.Flags().StringP("server", "s", defaultServerURL, "Merge server URL")
	cmd.Flags().StringP("out", "o", defaultOutputDir, "Directory the merged file is saved to")
	cmd.Flags().StringToString("field", nil, "Extra form field sent with the upload (key=value, repeatable)")
	cmd.Flags().Duration("interval", defaultTickInterval, "Progress bar tick interval")
	cmd.Flags().Duration("timeout", defaultClientTimeout, "Request timeout")
	cmd.Flags().Bool("plain", false, "Print plain progress lines instead of the interactive view")
	cmd.Flags().Bool("debug", false, "Debug logging and HTTP dumps")
	cmd.PersistentFlags().StringP("config", "c", defaultConfigPath, "FeedMerge config file")
	cmd.PersistentFlags().String("env-file", defaultEnvFile, "dotenv file with FEEDMERGE_* variables")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

func runMergePlain(ctx context.Context, w io.Writer, merger controller.Merger, cfg *Config, sub *controller.Submission) error {
	ctrl := controller.New(merger, newPlainView(w),
		controller.WithOutputDir(cfg.OutDir),
		controller.WithProgressOptions(progress.WithInterval(cfg.Interval)),
	)
	_, err := ctrl.HandleSubmit(ctx, sub)
	return err
}

func main() {
	closeLogs, err := setupLogging(defaultLogFilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLogs()

	// Setup root context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		closeLogs()
		os.Exit(1)
	}
}

// setupLogging sends records to stderr (tint) and to logFile. The returned
// func flushes and closes the file; calling it more than once is fine.
func setupLogging(logFile string) (func(), error) {
	if err := utils.EnsureParent(logFile); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	consoleLevel.Set(slog.LevelInfo)
	consoleHandler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      consoleLevel,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isTerminal(os.Stderr),
	})

	logInterceptor := utils.NewLogInterceptor(file)
	fileHandler := slog.NewTextHandler(logInterceptor, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		// time is added by the interceptor
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})

	slog.SetDefault(slog.New(utils.NewMultiLogHandler(consoleHandler, fileHandler)))

	closed := false
	return func() {
		if closed {
			return
		}
		closed = true
		logInterceptor.Close()
		file.Close()
	}, nil
}
