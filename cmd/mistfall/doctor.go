package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mistfall/mistfall/pkg/schemafile"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Validate that a schema document resolves cleanly",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagSchema == "" {
			return fmt.Errorf("--schema is required")
		}

		s, err := schemafile.Load(flagSchema)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "schema %q resolved: %d table(s), version %d\n", s.Name, len(s.Tables()), s.Version)
		fmt.Fprintf(out, "signature: %s\n", s.Signature())
		for _, t := range s.Tables() {
			fmt.Fprintf(out, "  %s (pk=%s, storage=%s)\n", t.Name, t.PrimaryKey().Name, t.StorageName())
		}
		return nil
	},
}
