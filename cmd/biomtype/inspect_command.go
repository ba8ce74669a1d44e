package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"biomtype/internal/biom"
)

type tableSummary struct {
	ID           string             `json:"id"`
	Type         string             `json:"type"`
	GeneratedBy  string             `json:"generated_by"`
	Observations int                `json:"observations"`
	Samples      int                `json:"samples"`
	NonZero      int                `json:"nnz"`
	Density      float64            `json:"density"`
	SampleTotals map[string]float64 `json:"sample_totals"`
}

func newInspectCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:         "inspect <table.biom>",
		Short:       "Summarize a BIOM table",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := biom.Load(args[0])
			if err != nil {
				return err
			}
			summary := summarizeTable(table)
			if jsonOutput {
				return writeJSON(cmd, summary)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Table: %s (%s)\n", summary.ID, summary.Type)
			fmt.Fprintf(out, "Generated by: %s\n", summary.GeneratedBy)
			fmt.Fprintf(out, "Shape: %d observations x %d samples\n", summary.Observations, summary.Samples)
			fmt.Fprintf(out, "Non-zero: %d (density %.4f)\n", summary.NonZero, summary.Density)

			ids := table.IDs(biom.AxisSample)
			totals := table.SampleTotals()
			rows := make([][]string, 0, len(ids))
			for i, id := range ids {
				rows = append(rows, []string{id, strconv.FormatFloat(totals[i], 'f', -1, 64)})
			}
			fmt.Fprintln(out, renderTable([]string{"Sample", "Total"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the summary as JSON")
	return cmd
}

func summarizeTable(table *biom.Table) tableSummary {
	observations, samples := table.Shape()
	summary := tableSummary{
		ID:           table.ID,
		Type:         table.Type,
		GeneratedBy:  table.GeneratedBy,
		Observations: observations,
		Samples:      samples,
		NonZero:      table.NonZero(),
		SampleTotals: make(map[string]float64, samples),
	}
	if cells := observations * samples; cells > 0 {
		summary.Density = float64(summary.NonZero) / float64(cells)
	}
	totals := table.SampleTotals()
	for i, id := range table.IDs(biom.AxisSample) {
		summary.SampleTotals[id] = totals[i]
	}
	return summary
}
