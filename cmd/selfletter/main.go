package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"SelfLetter/internal/app"
	"SelfLetter/internal/classify"
	"SelfLetter/internal/config"
	"SelfLetter/internal/logging"
)

var (
	configFile string
	logLevel   string
	dateFlag   string
	sendFlag   bool
	titleFlag  string
)

var rootCmd = &cobra.Command{
	Use:           "selfletter",
	Short:         "Summarize queued links into a daily newsletter",
	Long:          `Drains a link inbox (Notion or SQL), extracts each page, summarizes it with an LLM and writes the results to the configured sinks.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process one batch of pending links",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		application, err := newApplication(ctx)
		if err != nil {
			return err
		}
		defer application.Close()

		report, err := application.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "attempted=%d done=%d skipped=%d retryable=%d terminal=%d\n",
			report.Attempted, report.Done, report.Skipped, report.Retryable, report.Terminal)
		return nil
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run batches on the configured cron expression until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		application, err := newApplication(ctx)
		if err != nil {
			return err
		}
		defer application.Close()

		return application.Schedule(ctx)
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify <url>...",
	Short: "Print the source kind for each URL",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		classifier := classify.Classifier{DistinguishOther: cfg.Queue.DistinguishOther}
		for _, raw := range args {
			class := classifier.Classify(raw)
			if class.PaperID != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", class.Kind, class.PaperID, raw)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t-\t%s\n", class.Kind, raw)
		}
		return nil
	},
}

var newsletterCmd = &cobra.Command{
	Use:   "newsletter",
	Short: "Combine the markdown summaries of one day",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		application, err := newApplication(ctx)
		if err != nil {
			return err
		}
		defer application.Close()

		day := time.Now()
		if dateFlag != "" {
			day, err = time.Parse("2006-01-02", dateFlag)
			if err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}
		}
		path, err := application.Newsletter(ctx, day)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		if sendFlag {
			return application.MailNewsletter(ctx, day, path)
		}
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Queue a link in the SQL inbox",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		application, err := newApplication(ctx)
		if err != nil {
			return err
		}
		defer application.Close()

		id, err := application.Enqueue(ctx, args[0], titleFlag)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a YAML config file (defaults to $SELFLETTER_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the log level (debug, info, warn, error)")
	newsletterCmd.Flags().StringVar(&dateFlag, "date", "", "Day to combine as YYYY-MM-DD (defaults to today)")
	newsletterCmd.Flags().BoolVar(&sendFlag, "send", false, "Email the newsletter via SMTP after combining it")
	addCmd.Flags().StringVar(&titleFlag, "title", "", "Optional title for the link")

	rootCmd.AddCommand(runCmd, scheduleCmd, classifyCmd, newsletterCmd, addCmd)
}

func loadConfig() (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.LoadFile(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return config.Config{}, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

func newApplication(ctx context.Context) (*app.Application, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.NewWithFormat(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	return app.New(ctx, cfg, logger)
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
