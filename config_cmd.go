package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/expedientes-go/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		RunE:  runConfigShow,
	}
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	if cc.Cfg == nil {
		return fmt.Errorf("no configuration loaded")
	}

	out := cmd.OutOrStdout()

	if cc.Flags.JSON {
		return printJSON(out, cc.Cfg)
	}

	return config.RenderEffective(cc.Cfg, out)
}
