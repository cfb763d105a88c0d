// Command goweaver researches a query with a planner/writer agent pair and
// writes a cited Markdown report plus a replayable run directory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hyperifyio/goweaver/internal/brief"
	"github.com/hyperifyio/goweaver/internal/config"
	"github.com/hyperifyio/goweaver/internal/report"
	"github.com/hyperifyio/goweaver/internal/runner"
)

func main() {
	// A .env in the working directory is a convenience, not a requirement.
	_ = godotenv.Load()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	root := &cobra.Command{
		Use:           "goweaver",
		Short:         "Agentic deep-research report generator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(log), newReplayCmd(log))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func newRunCmd(log zerolog.Logger) *cobra.Command {
	var (
		cfgFile   string
		queryFile string
		output    string
		pdfOut    string
		artifacts string
		verbose   bool
	)
	cmd := &cobra.Command{
		Use:   "run [query]",
		Short: "Research a query and write a cited report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				log = log.Level(zerolog.DebugLevel)
			} else {
				log = log.Level(zerolog.InfoLevel)
			}

			query, err := resolveQuery(args, queryFile)
			if err != nil {
				return err
			}

			var cfg config.Config
			cfg.ArtifactsDir = artifacts
			if cfgFile != "" {
				if err := config.LoadFile(cfgFile, &cfg); err != nil {
					return err
				}
			}
			config.ApplyEnv(&cfg)
			config.ApplyDefaults(&cfg)

			r, err := runner.New(cfg, log)
			if err != nil {
				return err
			}
			log.Info().Str("run_id", r.RunID()).Str("query", query).Msg("starting run")

			res, err := r.Run(cmd.Context(), query)
			if err != nil {
				return err
			}
			log.Info().
				Int("evidence_total", res.EvidenceCount).
				Int("evidence_used", res.UsedEvidence).
				Str("report", res.ReportPath).
				Msg("run complete")

			if output != "" {
				data, err := os.ReadFile(res.ReportPath)
				if err != nil {
					return err
				}
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", output, err)
				}
			}
			if pdfOut != "" {
				data, err := os.ReadFile(res.ReportPath)
				if err != nil {
					return err
				}
				if err := report.WritePDF(string(data), pdfOut); err != nil {
					return fmt.Errorf("write %s: %w", pdfOut, err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgFile, "config", "c", "", "YAML config file")
	cmd.Flags().StringVar(&queryFile, "query-file", "", "read the research query from a file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "copy the final report to this path")
	cmd.Flags().StringVar(&pdfOut, "pdf", "", "also render the report as PDF to this path")
	cmd.Flags().StringVar(&artifacts, "artifacts-dir", "", "directory for run_<id> artifact directories")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	return cmd
}

func resolveQuery(args []string, queryFile string) (string, error) {
	if queryFile != "" {
		data, err := os.ReadFile(queryFile)
		if err != nil {
			return "", fmt.Errorf("read query file: %w", err)
		}
		b := brief.Parse(string(data))
		if q := b.EffectiveQuery(); strings.TrimSpace(q) != "" {
			return q, nil
		}
		return "", fmt.Errorf("query file %s is empty", queryFile)
	}
	if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0]), nil
	}
	return "", fmt.Errorf("a research query is required (argument or --query-file)")
}

func newReplayCmd(log zerolog.Logger) *cobra.Command {
	var (
		redisAddr string
		artifacts string
	)
	cmd := &cobra.Command{
		Use:   "replay <run-dir|run-id>",
		Short: "Print a recorded run's event stream as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if redisAddr == "" {
				redisAddr = os.Getenv("WEAVER_REDIS_ADDR")
			}
			var client redis.UniversalClient
			if redisAddr != "" {
				rc := redis.NewClient(&redis.Options{Addr: redisAddr})
				defer rc.Close()
				client = rc
			}

			runDir := resolveRunDir(args[0], artifacts)
			n, err := runner.Replay(cmd.Context(), runDir, client, os.Stdout)
			if err != nil {
				return err
			}
			log.Info().Int("events", n).Str("run_dir", runDir).Msg("replay complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&redisAddr, "redis", "", "redis address host:port to read the stream from when the journal file is gone")
	cmd.Flags().StringVar(&artifacts, "artifacts-dir", ".", "directory holding run_<id> directories")
	return cmd
}

// resolveRunDir accepts either a run directory path or a bare run id living
// under the artifacts directory.
func resolveRunDir(arg, artifacts string) string {
	if info, err := os.Stat(arg); err == nil && info.IsDir() {
		return arg
	}
	id := strings.TrimPrefix(arg, "run_")
	return filepath.Join(artifacts, "run_"+id)
}
