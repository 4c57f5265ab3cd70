package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List registered models",
	Long:  `Display every registered model with its table, pruning capabilities, and chunk size override.`,
	Run: func(cmd *cobra.Command, args []string) {
		reg, err := buildRegistry(cmd.Context())
		if err != nil {
			fmt.Printf("Error building model registry: %v\n", err)
			os.Exit(1)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.TabIndent)
		fmt.Fprintln(w, "Model\tTable\tCapabilities\tChunk")
		fmt.Fprintln(w, "-----\t-----\t------------\t-----")

		for _, d := range reg.All() {
			chunk := "-"
			if d.ChunkSize > 0 {
				chunk = strconv.Itoa(d.ChunkSize)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Name, d.Table, d.Capabilities, chunk)
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
