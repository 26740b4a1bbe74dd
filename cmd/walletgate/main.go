package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/you/walletgate/internal/app"
	"github.com/you/walletgate/internal/config"
	"github.com/you/walletgate/internal/logging"
)

type rootOptions struct {
	configPath string
	envFile    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "walletgate",
		Short:         "Transaction authorization and security gate for wallet transfers",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config/config.yml", "path to the YAML config file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the config")

	root.AddCommand(newServeCmd(opts), newMigrateCmd(opts), newUnblockCmd(opts))
	return root
}

// bootstrap loads configuration and builds the logger shared by every command
func bootstrap(opts *rootOptions) (*config.Config, *zap.Logger, error) {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap(opts)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.Run(ctx, cfg, logger)
		},
	}
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables and seed OTP policies and RBAC rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap(opts)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			return app.Migrate(cmd.Context(), cfg, logger)
		},
	}
}

func newUnblockCmd(opts *rootOptions) *cobra.Command {
	var userID uint
	var actor string
	cmd := &cobra.Command{
		Use:   "unblock",
		Short: "Clear a user's PIN lockout",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == 0 {
				return fmt.Errorf("--user is required")
			}
			cfg, logger, err := bootstrap(opts)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			return app.Unblock(cmd.Context(), cfg, logger, actor, userID)
		},
	}
	cmd.Flags().UintVar(&userID, "user", 0, "ID of the user to unblock")
	cmd.Flags().StringVar(&actor, "actor", "cli", "name recorded as the actor in the audit log")
	return cmd
}
