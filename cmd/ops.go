package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Angel-Nizama/web-operaciones-v2/internal/utils"
	"github.com/Angel-Nizama/web-operaciones-v2/pkg/operations"
)

// opsCmd represents the ops command
var opsCmd = &cobra.Command{
	Use:   "ops",
	Short: "Browse and maintain the operation history",
}

var opsHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded operations",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, err := jsonOutput(cmd)
		if err != nil {
			return err
		}
		q := operations.HistoryQuery{}
		q.NameA, _ = cmd.Flags().GetString("name-a")
		q.NameB, _ = cmd.Flags().GetString("name-b")
		q.DateFrom, _ = cmd.Flags().GetString("from")
		q.DateTo, _ = cmd.Flags().GetString("to")
		q.Page, _ = cmd.Flags().GetInt("page")
		q.PerPage, _ = cmd.Flags().GetInt("per-page")

		page, err := operations.NewService(newClient()).History(cmd.Context(), q)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(os.Stdout, page)
		}

		w := newTable(os.Stdout)
		fmt.Fprintln(w, "ID\tDATE\tTIME\tAFFILIATE 1\tAFFILIATE 2\tAMOUNT\t")
		for _, op := range page.Operations {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t\n", op.ID, op.Date, op.Time, op.NameA, op.NameB, formatNumber(op.Amount))
		}
		w.Flush()
		fmt.Printf("\nPage %d of %d. %d operations, total amount %s\n", page.Page, page.Pages, page.Total, formatNumber(page.TotalAmount))
		return nil
	},
}

var opsUploadCmd = &cobra.Command{
	Use:   "upload FILE...",
	Short: "Upload operation spreadsheets (xlsx, xls, csv)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := operations.NewService(newClient()).Upload(cmd.Context(), args...)
		if err != nil {
			return err
		}
		utils.Log.Infof("Uploaded %d file(s), %d records processed", len(args), res.Processed)
		printMessage(res.Message, "Files processed")
		return nil
	},
}

var opsDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete one operation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid operation id %q", args[0])
		}
		msg, err := operations.NewService(newClient()).Delete(cmd.Context(), id)
		if err != nil {
			return err
		}
		printMessage(msg, "Operation deleted")
		return nil
	},
}

var opsDeleteAllCmd = &cobra.Command{
	Use:   "delete-all",
	Short: "Delete every operation",
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("refusing to delete all operations without --yes")
		}
		msg, err := operations.NewService(newClient()).DeleteAll(cmd.Context())
		if err != nil {
			return err
		}
		printMessage(msg, "All operations deleted")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(opsCmd)
	opsCmd.AddCommand(opsHistoryCmd, opsUploadCmd, opsDeleteCmd, opsDeleteAllCmd)

	opsHistoryCmd.Flags().String("name-a", "", "Filter by first affiliate")
	opsHistoryCmd.Flags().String("name-b", "", "Filter by second affiliate")
	opsHistoryCmd.Flags().String("from", "", "Start date (YYYY-MM-DD)")
	opsHistoryCmd.Flags().String("to", "", "End date (YYYY-MM-DD)")
	opsHistoryCmd.Flags().Int("page", 1, "Page number")
	opsHistoryCmd.Flags().Int("per-page", operations.DefaultPerPage, "Operations per page")

	opsDeleteAllCmd.Flags().Bool("yes", false, "Confirm deletion")
}
