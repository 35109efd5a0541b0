package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"arbiter/internal/app"
	"arbiter/internal/config"
	"arbiter/internal/logger"
	"arbiter/internal/session"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "arbiter",
	Short:         "Fan one question out to several LLM backends and normalize their answers",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $ARBITER_CONFIG or configs/config.yaml)")
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAskCmd())
	rootCmd.AddCommand(newModelsCmd())
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "arbiter: %v\n", err)
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a, closeLogs, err := bootstrap(true)
			if err != nil {
				return err
			}
			defer closeLogs()
			return a.Run(ctx)
		},
	}
}

func newAskCmd() *cobra.Command {
	var (
		question   string
		models     []string
		rounds     int
		formatFlag string
		promptID   string
		promptVer  string
	)
	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Run a single session and print the normalized responses",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(question) == "" && len(args) > 0 {
				question = strings.Join(args, " ")
			}
			a, closeLogs, err := bootstrap(false)
			if err != nil {
				return err
			}
			defer closeLogs()
			res, err := a.Sessions().Run(cmd.Context(), session.Request{
				Question:      question,
				ModelIDs:      models,
				MaxRounds:     rounds,
				PromptID:      promptID,
				PromptVersion: promptVer,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return writeResult(out, res, resolveFormat(formatFlag, out))
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&question, "question", "q", "", "question to send to every backend")
	flags.StringSliceVarP(&models, "models", "m", nil, "comma separated backend ids (default session.default_models)")
	flags.IntVar(&rounds, "rounds", 0, "number of rounds (only 1 is supported)")
	flags.StringVar(&formatFlag, "format", "", "output format: table or json (default table on a terminal)")
	flags.StringVar(&promptID, "prompt-id", "", "prompt template id")
	flags.StringVar(&promptVer, "prompt-version", "", "prompt template version")
	return cmd
}

func newModelsCmd() *cobra.Command {
	var formatFlag string
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the configured backends",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeLogs, err := bootstrap(false)
			if err != nil {
				return err
			}
			defer closeLogs()
			out := cmd.OutOrStdout()
			return writeModels(out, a.Backends().Describe(), a.Sessions().DefaultModels(), resolveFormat(formatFlag, out))
		},
	}
	cmd.Flags().StringVar(&formatFlag, "format", "", "output format: table or json")
	return cmd
}

// bootstrap loads config, wires log outputs and builds the app. One-shot commands keep
// the process log on stderr so stdout carries only the result.
func bootstrap(serve bool) (*app.App, func(), error) {
	path := config.DefaultPath(configPath)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}
	console := io.Writer(os.Stderr)
	if serve {
		console = os.Stdout
	}
	logFile, err := setupLogOutput(console, cfg.App.LogPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	if logFile != nil {
		closers = append(closers, logFile)
	}
	logger.SetLLMWriter(nil)
	if cfg.App.LLMDump {
		f, err := setupLLMLogOutput(cfg.App.LLMLog)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open llm log: %w", err)
		}
		if f != nil {
			closers = append(closers, f)
		}
	}
	logger.EnableLLMPayloadDump(cfg.App.LLMDump)
	logger.Infof("config loaded from %s (env=%s)", path, cfg.App.Env)

	a, err := app.NewApp(cfg)
	if err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("build app: %w", err)
	}
	return a, closeAll, nil
}

func setupLogOutput(console io.Writer, path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		log.SetOutput(console)
		logger.SetOutput(console)
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(console, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}

func setupLLMLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	logger.SetLLMWriter(f)
	return f, nil
}
