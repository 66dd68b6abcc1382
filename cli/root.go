package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/compozy/molrag/pkg/config"
	"github.com/compozy/molrag/pkg/logger"
)

// flagPaths maps persistent and command flags to koanf paths. Only flags the
// user actually set are forwarded so file and env values survive.
var flagPaths = map[string]string{
	"log-level":      "runtime.log_level",
	"log-json":       "runtime.log_json",
	"timeout":        "runtime.request_timeout",
	"top-k":          "retrieval.top_k",
	"index-provider": "index.provider",
	"prompts":        "prompts.path",
	"metrics-addr":   "monitoring.addr",
}

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "molrag",
		Short:         "Answer questions from the Molecule knowledge base and trusted web sources",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return SetupGlobalConfig(cmd)
		},
	}

	root.PersistentFlags().String("config", "molrag.yaml", "Path to the config file")
	root.PersistentFlags().String("env-file", ".env", "Path to the environment variables file")
	root.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error, disabled)")
	root.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	root.PersistentFlags().Bool("log-source", false, "Include source file and line in logs")
	root.PersistentFlags().Duration("timeout", 0, "Timeout for a single question (0 uses the configured default)")
	root.PersistentFlags().String("index-provider", "", "Hybrid index backend (pgvector, local)")
	root.PersistentFlags().String("prompts", "", "YAML file overriding the built-in prompts")
	root.PersistentFlags().String("output", OutputFormatAuto, "Output format: text, json or auto")
	root.PersistentFlags().Bool("no-color", false, "Disable colored output")

	root.AddCommand(
		AskCmd(),
		ChatCmd(),
		RetrieveCmd(),
		EvaluateCmd(),
		VersionCmd(),
	)

	return root
}

// SetupGlobalConfig loads .env, the YAML file, environment and changed flags,
// then installs the logger and configuration in the command context.
func SetupGlobalConfig(cmd *cobra.Command) error {
	envFile, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return fmt.Errorf("failed to get env-file flag: %w", err)
	}
	if envFile != "" {
		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}
	}
	cfgPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	sources := []config.Source{config.NewCLIProvider(changedFlags(cmd))}
	if cfgPath != "" {
		sources = append([]config.Source{config.NewYAMLProvider(cfgPath)}, sources...)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.NewService().Load(ctx, sources...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logSource, err := cmd.Flags().GetBool("log-source")
	if err != nil {
		return fmt.Errorf("failed to get log-source flag: %w", err)
	}
	log := logger.SetupLogger(cfg.Runtime.LogLevel, cfg.Runtime.LogJSON, logSource)
	ctx = logger.ContextWithLogger(ctx, log)
	ctx = config.ContextWithConfig(ctx, cfg)
	cmd.SetContext(ctx)
	log.Debug("Configuration loaded", "config", cfgPath, "index", cfg.Index.Provider)
	return nil
}

func changedFlags(cmd *cobra.Command) map[string]any {
	out := make(map[string]any)
	for name, path := range flagPaths {
		flag := cmd.Flags().Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		out[path] = flag.Value.String()
	}
	if _, ok := out["monitoring.addr"]; ok {
		out["monitoring.enabled"] = true
	}
	return out
}
