package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Angel-Nizama/web-operaciones-v2/pkg/matching"
)

func jsonOutput(cmd *cobra.Command) (bool, error) {
	format, _ := cmd.Flags().GetString("output")
	switch format {
	case "", "table":
		return false, nil
	case "json":
		return true, nil
	}
	return false, fmt.Errorf("unknown output format %q (table, json)", format)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
}

func printResults(w io.Writer, results []matching.MatchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No pairs to show.")
		return
	}
	t := newTable(w)
	fmt.Fprintln(t, "AFFILIATE 1\tAFFILIATE 2\tRISK\tAMOUNT\tDAYS\tDIVERSITY\tMIN OPS\t")
	for _, r := range results {
		fmt.Fprintf(t, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			r.AffiliateA, r.AffiliateB, formatNumber(r.Risk), formatNumber(r.AssignedAmount),
			r.DaysSinceLast, r.MinDiversity, r.MinIntermediateOps)
	}
	t.Flush()
}

func printMessage(msg, fallback string) {
	if msg == "" {
		msg = fallback
	}
	fmt.Fprintln(os.Stdout, msg)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
