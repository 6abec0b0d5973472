package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mistfall/mistfall/internal/sqlstore"
)

var flagDBName string

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print a persistent store's schema metadata and per-table row counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, err := resolveDataDir()
		if err != nil {
			return err
		}
		dbName := flagDBName
		if dbName == "" {
			dbName = "app"
		}
		dbPath := filepath.Join(dataDir, dbName+".db")

		result, err := sqlstore.Inspect(dbPath)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if result.Meta == nil {
			fmt.Fprintln(out, "no schema metadata recorded (store has never been opened by mistfall)")
		} else {
			fmt.Fprintf(out, "schema version: %d\n", result.Meta.Version)
			fmt.Fprintf(out, "schema signature: %s\n", result.Meta.Signature)
			fmt.Fprintf(out, "last upgraded at: %s\n", result.Meta.UpgradedAt)
		}
		for _, t := range result.Tables {
			fmt.Fprintf(out, "%s: %d rows\n", t.Name, t.Count)
		}
		return nil
	},
}

func init() {
	inspectCmd.Flags().StringVar(&flagDBName, "db", "", "database file name without extension (default: app)")
}
