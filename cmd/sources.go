package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/research-agent/internal/model"
)

var (
	sourcesQueryType string
	sourcesMin       float64
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List learned source reliability, best first",
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

		domains := mem.BestSources(sourcesQueryType, sourcesMin)
		out := make([]model.SourceReliability, 0, len(domains))
		for _, domain := range domains {
			if src, ok := mem.Reliability(domain); ok {
				out = append(out, src)
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	sourcesCmd.Flags().StringVar(&sourcesQueryType, "query-type", "general", "query category to rank by")
	sourcesCmd.Flags().Float64Var(&sourcesMin, "min", 0, "minimum reliability score")
	rootCmd.AddCommand(sourcesCmd)
}
