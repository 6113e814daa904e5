package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var (
	statsDomain    string
	statsQueryType string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregated human-feedback statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("stats"); err != nil {
			return err
		}

		mem, ledger, err := initMemory(ctx)
		if err != nil {
			return err
		}
		defer ledger.Close()

		stats := mem.Stats(statsDomain, statsQueryType)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsDomain, "domain", "", "filter to entries whose sources contain this substring")
	statsCmd.Flags().StringVar(&statsQueryType, "query-type", "", "filter to one query category")
	rootCmd.AddCommand(statsCmd)
}
