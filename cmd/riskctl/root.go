package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// lookupEnv is swapped in tests.
var lookupEnv = os.LookupEnv

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "riskctl",
		Short:         "Operate the login risk service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newScoreCmd(),
		newOverridesCmd(),
		newRolloutCmd(),
		newGuardCmd(),
		newAuditCmd(),
		newTokenCmd(),
		newKeysCmd(),
		newCertsCmd(),
		newMigrateCmd(),
	)
	return root
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
