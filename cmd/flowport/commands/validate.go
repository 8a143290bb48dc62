package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/flowport/flowport/pkg/bpmn"
	"github.com/flowport/flowport/pkg/policy"
	"github.com/flowport/flowport/pkg/transform"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [file.bpmn ...]",
		Short: "Validate the configuration and optional BPMN files",
		Long: `Validate loads the configuration file, checks it against the schema,
compiles any configured policies and hooks, and parses each BPMN file
given as an argument. It makes no network calls and is safe to run in
CI.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			failed := false

			cfg, err := loadConfig()
			if err != nil {
				fmt.Fprintf(out, "config %s: %v\n", configPath, err)
				return fmt.Errorf("configuration is invalid")
			}
			fmt.Fprintf(out, "config %s: ok (vendor %s)\n", configPath, cfg.Vendor.Name)

			if len(cfg.Policy.Paths) > 0 {
				engine, err := policy.NewEngine(zerolog.Nop())
				if err == nil {
					err = engine.LoadPolicies(ctx, cfg.Policy.Paths)
				}
				if err != nil {
					fmt.Fprintf(out, "policies: %v\n", err)
					failed = true
				} else {
					fmt.Fprintf(out, "policies: ok (%d loaded)\n", len(engine.ListPolicies()))
				}
			}

			if cfg.Hooks.File != "" {
				if _, err := transform.LoadHooks(cfg.Hooks.File, cfg.Hooks.Timeout); err != nil {
					fmt.Fprintf(out, "hooks %s: %v\n", cfg.Hooks.File, err)
					failed = true
				} else {
					fmt.Fprintf(out, "hooks %s: ok\n", cfg.Hooks.File)
				}
			}

			for _, path := range args {
				if err := validateBPMN(path); err != nil {
					fmt.Fprintf(out, "%s: %v\n", path, err)
					failed = true
					continue
				}
				fmt.Fprintf(out, "%s: ok\n", path)
			}

			if failed {
				return fmt.Errorf("validation failed")
			}
			return nil
		},
	}
	return cmd
}

func validateBPMN(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = bpmn.Parse(data)
	return err
}
