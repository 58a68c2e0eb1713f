package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/sceneswitch/internal/config"
	"github.com/kiranshivaraju/sceneswitch/internal/provider"
	"github.com/kiranshivaraju/sceneswitch/pkg/models"
)

// commandContext carries state shared by subcommands.
type commandContext struct {
	envFile     string
	cfg         *config.Config
	newProvider func(config.ProviderConfig) (models.TransformationProvider, error)
}

func newCommandContext() *commandContext {
	return &commandContext{newProvider: provider.NewProvider}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	if err := godotenv.Load(c.envFile); err != nil {
		if c.envFile != ".env" || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", c.envFile, err)
		}
	}
	cfg, err := config.LoadStandalone()
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	return newRootCommandWith(newCommandContext())
}

func newRootCommandWith(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sceneswitch",
		Short:         "Apply transformation effects to a batch of video clips",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVar(&ctx.envFile, "env-file", ".env", "Environment file to load before reading configuration")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newEffectsCommand(ctx))
	return rootCmd
}
