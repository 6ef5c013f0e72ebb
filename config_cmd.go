package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/classroom-go/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigInitCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		RunE:  runConfigShow,
	}
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a commented default config file",
		RunE:  runConfigInit,
	}
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if resolvedCfg == nil {
		return fmt.Errorf("no configuration loaded")
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), resolvedCfg)
	}

	return config.RenderEffective(resolvedCfg, cmd.OutOrStdout())
}

// runConfigInit writes the template to the path the other commands would
// read: --config, then CLASSROOM_GO_CONFIG, then the platform default.
func runConfigInit(_ *cobra.Command, _ []string) error {
	path := initConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory, pass --config")
	}

	if err := config.WriteDefault(path); err != nil {
		return err
	}

	statusf("Wrote %s\n", path)

	return nil
}

func initConfigPath() string {
	if flagConfigPath != "" {
		return flagConfigPath
	}

	if env := os.Getenv(config.EnvConfig); env != "" {
		return env
	}

	return config.DefaultConfigPath()
}
