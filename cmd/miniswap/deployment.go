package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"miniswap/internal/config"
	"miniswap/internal/deployment"
	"miniswap/internal/model"
	"miniswap/internal/storage/postgres"
)

func newDeploymentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deployment",
		Short: "Manage the deployment registry",
	}

	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Copy the deployment file into the Postgres registry",
		RunE:  runDeploymentRegister,
	}
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the deployment registered for --network",
		RunE:  runDeploymentShow,
	}
	cmd.AddCommand(registerCmd, showCmd)
	return cmd
}

func openRegistry(cmd *cobra.Command) (config.Config, *zap.Logger, *postgres.Store, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return cfg, nil, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return cfg, nil, nil, err
	}
	if cfg.PGDSN == "" {
		return cfg, logger, nil, fmt.Errorf("pg dsn is required")
	}
	store, err := postgres.NewStore(cmd.Context(), cfg.PGDSN)
	if err != nil {
		return cfg, logger, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := store.EnsureSchema(cmd.Context()); err != nil {
		store.Close()
		return cfg, logger, nil, err
	}
	return cfg, logger, store, nil
}

func runDeploymentRegister(cmd *cobra.Command, _ []string) error {
	cfg, logger, store, err := openRegistry(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer store.Close()

	d, err := deployment.LoadFile(cfg.Deployment)
	if err != nil {
		return err
	}
	if cfg.Network != "" {
		d.Network = cfg.Network
	}
	if d.Network == "" {
		return fmt.Errorf("deployment has no network; pass --network")
	}
	if err := store.UpsertDeployments(cmd.Context(), []model.Deployment{d}); err != nil {
		return fmt.Errorf("register deployment: %w", err)
	}
	logger.Info("deployment registered",
		zap.String("network", d.Network),
		zap.Uint64("chain_id", d.ChainID),
		zap.String("pool", d.Pool),
	)
	return printJSON(cmd.OutOrStdout(), d)
}

func runDeploymentShow(cmd *cobra.Command, _ []string) error {
	cfg, logger, store, err := openRegistry(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer store.Close()

	if cfg.Network == "" {
		return fmt.Errorf("--network is required")
	}
	d, ok, err := store.LoadDeployment(cmd.Context(), cfg.Network)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no deployment registered for %s", cfg.Network)
	}
	return printJSON(cmd.OutOrStdout(), d)
}
