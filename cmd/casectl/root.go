package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"casework/internal/casestore"
	"casework/internal/platform/config"
	"casework/internal/platform/logger"
)

type globalFlags struct {
	dbPath     string
	policyFile string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "casectl",
		Short: "Evaluate social-support cases from local documents",
		Long: "casectl runs the case evaluation pipeline on local files, stores the\n" +
			"decided cases in a local SQLite database, and inspects them.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}
	f := root.PersistentFlags()
	f.StringVar(&g.dbPath, "db", "casework.db", "SQLite database for decided cases")
	f.StringVar(&g.policyFile, "policy", "", "YAML policy overlay (defaults to POLICY_FILE)")
	f.StringVar(&g.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	root.AddCommand(
		newEvaluateCmd(g),
		newExtractCmd(g),
		newPolicyCmd(g),
		newTokenCmd(),
		newCasesCmd(g),
	)
	return root
}

func (g *globalFlags) logger(cmd *cobra.Command) (*slog.Logger, error) {
	return logger.NewWithWriter(cmd.ErrOrStderr(), g.logLevel, "text")
}

func (g *globalFlags) config() (config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, err
	}
	if g.policyFile != "" {
		cfg.PolicyFile = g.policyFile
	}
	return cfg, nil
}

func (g *globalFlags) openStore(ctx context.Context) (*casestore.SQLStore, error) {
	return casestore.OpenSQLite(ctx, g.dbPath)
}
