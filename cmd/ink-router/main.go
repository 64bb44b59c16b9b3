// Package main provides the ink-router binary: the studio's query-routing
// server plus a few operator commands.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/inkrouter/ink-router/internal/classify"
	"github.com/inkrouter/ink-router/internal/config"
	"github.com/inkrouter/ink-router/internal/knowledge"
	"github.com/inkrouter/ink-router/internal/pkg/logger"
	"github.com/inkrouter/ink-router/internal/retrieve"
	"github.com/inkrouter/ink-router/internal/router"
	"github.com/inkrouter/ink-router/internal/server"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ink-router",
		Short: "Ink Router - query routing for the studio chat front-end",
		Long: `Ink Router classifies free-text questions, retrieves matching knowledge
entries from topic pipelines, and returns confidence-scored answers.

Run 'ink-router serve' to start the HTTP server.
Run 'ink-router ask "when are you open"' to query the local corpus directly.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(
		serveCmd(),
		askCmd(),
		pipelinesCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, logger.New(cfg.Log.Level, cfg.Log.Format), nil
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if port, _ := cmd.Flags().GetInt("port"); port != 0 {
				cfg.Port = port
			}
			if host, _ := cmd.Flags().GetString("host"); host != "" {
				cfg.Host = host
			}

			log.Info("starting ink-router", "version", version)

			srv, err := server.New(cfg, version, log)
			if err != nil {
				return err
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				log.Info("received signal", "signal", sig.String())
				return srv.Stop(context.Background())
			}
		},
	}

	cmd.Flags().IntP("port", "p", 0, "HTTP server port (overrides config)")
	cmd.Flags().String("host", "", "HTTP server host (overrides config)")
	return cmd
}

func askCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [query]",
		Short: "Route one query against the local corpus and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			svc, err := localService(cfg, log)
			if err != nil {
				return err
			}
			defer svc.Close()

			resp := svc.Answer(cmd.Context(), "", strings.Join(args, " "))
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			fmt.Println(resp.Answer)
			if resp.IsFallback {
				fmt.Printf("(fallback: %s)\n", resp.Metadata["reason"])
			} else {
				fmt.Printf("(pipeline: %s, confidence: %.2f)\n", resp.Pipeline, resp.Confidence)
			}
			return nil
		},
	}

	cmd.Flags().Bool("json", false, "print the full response as JSON")
	return cmd
}

func pipelinesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pipelines",
		Short: "List loaded pipelines and their entry counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			reg, err := knowledge.Load(cfg.Knowledge.CorpusDir)
			if err != nil {
				return err
			}

			for _, p := range reg.Pipelines() {
				fmt.Printf("%-20s %3d entries  min_confidence %.2f\n",
					p.Name, len(p.Entries), p.MinConfidence)
			}
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ink-router %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}
}

// localService builds a minimal answer service with no cache, bus, or
// metrics, for one-shot CLI queries.
func localService(cfg *config.Config, log *logger.Logger) (*router.Service, error) {
	reg, err := knowledge.Load(cfg.Knowledge.CorpusDir)
	if err != nil {
		return nil, err
	}

	return router.New(router.Deps{
		Store: knowledge.NewStore(reg),
		Classifier: classify.New(classify.Config{
			ProbeMargin:     cfg.Classify.ProbeMargin,
			ContinuityBoost: cfg.Classify.ContinuityBoost,
			TriggerWeight:   cfg.Classify.TriggerWeight,
		}, log),
		Retriever: retrieve.New(retrieve.Config{
			ScoreFloor:        cfg.Retrieve.ScoreFloor,
			ShortQueryPenalty: cfg.Retrieve.ShortQueryPenalty,
		}, log),
		Logger:    log,
		CorpusDir: cfg.Knowledge.CorpusDir,
		Config:    cfg.Router,
	})
}
