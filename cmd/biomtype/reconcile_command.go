package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"biomtype/internal/biom"
	"biomtype/internal/reconcile"
	"biomtype/internal/validation"
)

type verdictView struct {
	Verdict string            `json:"verdict"`
	Problem string            `json:"problem,omitempty"`
	Reason  string            `json:"reason,omitempty"`
	Missing []string          `json:"missing,omitempty"`
	Mapping map[string]string `json:"mapping,omitempty"`
}

func newReconcileCommand() *cobra.Command {
	var prepPath, biomPath string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:         "reconcile",
		Short:       "Show how a table's sample ids match a prep file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(prepPath) == "" || strings.TrimSpace(biomPath) == "" {
				return errors.New("--prep and --biom are required")
			}
			metadata, err := validation.PrepFile{Path: prepPath}.PrepInformation(cmd.Context(), "")
			if err != nil {
				return err
			}
			table, err := biom.Load(biomPath)
			if err != nil {
				return err
			}
			verdict, err := reconcile.Reconcile(metadata, table.IDs(biom.AxisSample))
			if err != nil {
				return err
			}

			view := verdictView{
				Verdict: verdict.Kind.String(),
				Problem: string(verdict.Problem),
				Reason:  verdict.Reason,
				Missing: verdict.Missing,
				Mapping: verdict.Mapping,
			}
			if jsonOutput {
				return writeJSON(cmd, view)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Verdict: %s\n", view.Verdict)
			switch {
			case verdict.Rejected():
				fmt.Fprintf(out, "Problem: %s\n", view.Problem)
				fmt.Fprintf(out, "Reason: %s\n", view.Reason)
			case verdict.Remapped():
				fmt.Fprintln(out, renderTable([]string{"Table ID", "Prep ID"}, mappingRows(verdict.Mapping), nil))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&prepPath, "prep", "", "Prep information JSON file")
	cmd.Flags().StringVar(&biomPath, "biom", "", "BIOM table")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the verdict as JSON")
	return cmd
}

func mappingRows(mapping map[string]string) [][]string {
	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, mapping[k]})
	}
	return rows
}
