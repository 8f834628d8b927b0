package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bibbank/loginrisk/internal/domain/pipeline"
)

func newOverridesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overrides",
		Short: "Show which runtime kill switches are set in this environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o := pipeline.ReadOverrides(lookupEnv)
			w := cmd.OutOrStdout()
			for _, sw := range []struct {
				name string
				on   bool
			}{
				{pipeline.EnvForceRiskV1, o.ForceRiskV1},
				{pipeline.EnvDisableRemoteProvider, o.DisableRemoteProvider},
				{pipeline.EnvFailOpenMode, o.FailOpenMode},
			} {
				state := "off"
				if sw.on {
					state = "ON"
				}
				if _, err := fmt.Fprintf(w, "%-24s %s\n", sw.name, state); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
