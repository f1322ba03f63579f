package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/itturia/config"
	"github.com/mohammad-safakhou/itturia/internal/logging"
)

var version = "dev"

// app carries state resolved once by the root command.
type app struct {
	cfgPath string
	debug   bool
	cfg     *config.Config
	logger  *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "itturia",
		Short:         "Answer questions from a Hebrew source corpus with an iterative search loop",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			cfg, err := config.LoadConfig(a.cfgPath)
			if err != nil {
				return err
			}
			if a.debug {
				cfg.General.Debug = true
			}
			a.cfg = cfg
			a.logger = logging.New(cfg.General, cfg.Telemetry)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "config file (default is ./config/config.json)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "debug logging")

	root.AddCommand(
		serveCmd(a),
		askCmd(a),
		chatCmd(a),
		indexCmd(a),
		validateCmd(a),
		providersCmd(a),
		migrateCmd(a),
		mcpCmd(a),
		textCmd(a),
	)
	return root
}
