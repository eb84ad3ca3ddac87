package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/lexcite/internal/adapters/corpus"
	"github.com/PabloGalante/lexcite/internal/app/research"
	"github.com/PabloGalante/lexcite/internal/config"
	"github.com/PabloGalante/lexcite/internal/domain"
	"github.com/PabloGalante/lexcite/internal/observability"
)

var version = "0.1.0"

type globalFlags struct {
	corpusFile string
	delay      time.Duration
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "lexcite",
		Short: "Legal research chat with cited answers",
		Long: `lexcite answers legal questions from a small embedded corpus and
cites the passage each answer relies on.

Usage modes:
  lexcite serve          Start the HTTP API
  lexcite ask "..."      Ask one question and print the answer
  lexcite chat           Interactive session in the terminal

Configuration comes from LEXCITE_* environment variables; the flags
below override them.`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.corpusFile, "corpus", "", "TOML corpus file (default: built-in corpus)")
	rootCmd.PersistentFlags().DurationVar(&flags.delay, "delay", 0, "artificial delay before an answer (default 1.5s)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(
		serveCmd(flags),
		askCmd(flags),
		chatCmd(flags),
	)

	return rootCmd
}

// loadConfig reads the environment and applies any flags the user set.
func loadConfig(cmd *cobra.Command, flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	pf := cmd.Flags()
	if pf.Changed("corpus") {
		cfg.CorpusFile = flags.corpusFile
	}
	if pf.Changed("delay") {
		cfg.ResponseDelay = flags.delay
	}
	if pf.Changed("log-level") {
		level, err := observability.ParseLevel(flags.logLevel)
		if err != nil {
			return nil, err
		}
		cfg.LogLevel = level
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	observability.SetLevel(cfg.LogLevel)
	return cfg, nil
}

func loadMatcher(cfg *config.Config) (domain.Corpus, *research.KeywordMatcher, error) {
	c, err := corpus.Load(cfg.CorpusFile)
	if err != nil {
		return domain.Corpus{}, nil, err
	}

	m, err := research.NewKeywordMatcher(c)
	if err != nil {
		return domain.Corpus{}, nil, fmt.Errorf("building matcher: %w", err)
	}
	return c, m, nil
}

// cliLogs keeps logs off stdout, which carries answers.
func cliLogs(w io.Writer) {
	observability.SetOutput(w)
}
