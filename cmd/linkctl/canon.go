package main

import (
	"fmt"
	"strings"

	"github.com/couchcryptid/wildfire-linker/internal/config"
	"github.com/spf13/cobra"
)

func newCanonCmd() *cobra.Command {
	var profile string
	cmd := &cobra.Command{
		Use:   "canon NAME...",
		Short: "Print the canonical token set for each name",
		Long: `Print each name with the token set the matching engine scores it by.
Name rules come from --profile when given, so a profile can be checked
before a run.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadMatch(profile)
			if err != nil {
				return err
			}
			engine, err := newEngine(cfg, cliLogger(cmd))
			if err != nil {
				return err
			}
			canon := engine.Canonicalizer()
			out := cmd.OutOrStdout()
			for _, name := range args {
				fmt.Fprintf(out, "%s\t%s\n", name, strings.Join(canon.Canonicalize(name).Sorted(), " "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&profile, "profile", "", "YAML tuning profile")
	return cmd
}
