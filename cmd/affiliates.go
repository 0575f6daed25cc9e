package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Angel-Nizama/web-operaciones-v2/pkg/affiliates"
)

// affiliatesCmd represents the affiliates command
var affiliatesCmd = &cobra.Command{
	Use:     "affiliates",
	Aliases: []string{"afiliados"},
	Short:   "Manage the affiliate registry",
}

var affiliatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List affiliates",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, err := jsonOutput(cmd)
		if err != nil {
			return err
		}
		q := affiliates.Query{}
		q.Number, _ = cmd.Flags().GetString("numero")
		q.Name, _ = cmd.Flags().GetString("nombre")
		q.DNI, _ = cmd.Flags().GetString("dni")
		q.Status, _ = cmd.Flags().GetString("estado")
		q.Page, _ = cmd.Flags().GetInt("page")
		q.PerPage, _ = cmd.Flags().GetInt("per-page")

		page, err := affiliates.NewService(newClient()).List(cmd.Context(), q)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(os.Stdout, page)
		}

		w := newTable(os.Stdout)
		fmt.Fprintln(w, "ID\tNUMBER\tNAME\tDNI\tEMAIL\tSTATUS\t")
		for _, a := range page.Affiliates {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t\n", a.ID, a.Number, a.FullName(), a.DNI, a.Email, a.Status)
		}
		w.Flush()
		fmt.Printf("\nPage %d of %d. %d affiliates, %d active\n", page.Page, page.Pages, page.Total, page.Active)
		return nil
	},
}

var affiliatesSearchCmd = &cobra.Command{
	Use:   "search TEXT",
	Short: "Search affiliates by name, number or DNI",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, err := jsonOutput(cmd)
		if err != nil {
			return err
		}
		kindStr, _ := cmd.Flags().GetString("tipo")
		kind, err := affiliates.ParseSearchKind(kindStr)
		if err != nil {
			return err
		}

		matches, err := affiliates.NewService(newClient()).Search(cmd.Context(), args[0], kind)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(os.Stdout, matches)
		}
		if len(matches) == 0 {
			fmt.Println("No affiliates found.")
			return nil
		}
		w := newTable(os.Stdout)
		fmt.Fprintln(w, "NUMBER\tNAME\tMATCHED\t")
		for _, m := range matches {
			fmt.Fprintf(w, "%s\t%s\t%s\t\n", m.Number, m.FullName, m.Matched)
		}
		w.Flush()
		return nil
	},
}

var affiliatesUploadCmd = &cobra.Command{
	Use:   "upload FILE",
	Short: "Upload an affiliate spreadsheet (xlsx, xls, csv)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		msg, n, err := affiliates.NewService(newClient()).Upload(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printMessage(msg, fmt.Sprintf("%d affiliates processed", n))
		return nil
	},
}

var affiliatesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a new affiliate",
	RunE: func(cmd *cobra.Command, args []string) error {
		msg, err := affiliates.NewService(newClient()).Create(cmd.Context(), affiliateFromFlags(cmd))
		if err != nil {
			return err
		}
		printMessage(msg, "Affiliate created")
		return nil
	},
}

var affiliatesUpdateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "Replace an affiliate's data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid affiliate id %q", args[0])
		}
		msg, err := affiliates.NewService(newClient()).Update(cmd.Context(), id, affiliateFromFlags(cmd))
		if err != nil {
			return err
		}
		printMessage(msg, "Affiliate updated")
		return nil
	},
}

var affiliatesDeleteAllCmd = &cobra.Command{
	Use:   "delete-all",
	Short: "Delete every affiliate",
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("refusing to delete all affiliates without --yes")
		}
		msg, err := affiliates.NewService(newClient()).DeleteAll(cmd.Context())
		if err != nil {
			return err
		}
		printMessage(msg, "All affiliates deleted")
		return nil
	},
}

var affiliatesRefreshCmd = &cobra.Command{
	Use:   "refresh-status",
	Short: "Recompute active and inactive statuses from recent operations",
	RunE: func(cmd *cobra.Command, args []string) error {
		msg, err := affiliates.NewService(newClient()).RefreshStatuses(cmd.Context())
		if err != nil {
			return err
		}
		printMessage(msg, "Statuses refreshed")
		return nil
	},
}

func addAffiliateFlags(cmd *cobra.Command) {
	cmd.Flags().String("numero", "", "Affiliate number (phone)")
	cmd.Flags().String("nombre", "", "First name")
	cmd.Flags().String("apellido-paterno", "", "Paternal surname")
	cmd.Flags().String("apellido-materno", "", "Maternal surname")
	cmd.Flags().String("dni", "", "National ID")
	cmd.Flags().String("email", "", "Email")
	cmd.Flags().String("estado", affiliates.StatusActive, "Status: Activo, Inactivo")
}

func affiliateFromFlags(cmd *cobra.Command) affiliates.Affiliate {
	var a affiliates.Affiliate
	a.Number, _ = cmd.Flags().GetString("numero")
	a.FirstName, _ = cmd.Flags().GetString("nombre")
	a.PaternalName, _ = cmd.Flags().GetString("apellido-paterno")
	a.MaternalName, _ = cmd.Flags().GetString("apellido-materno")
	a.DNI, _ = cmd.Flags().GetString("dni")
	a.Email, _ = cmd.Flags().GetString("email")
	a.Status, _ = cmd.Flags().GetString("estado")
	return a
}

func init() {
	rootCmd.AddCommand(affiliatesCmd)
	affiliatesCmd.AddCommand(affiliatesListCmd, affiliatesSearchCmd, affiliatesUploadCmd, affiliatesCreateCmd,
		affiliatesUpdateCmd, affiliatesDeleteAllCmd, affiliatesRefreshCmd)

	affiliatesListCmd.Flags().String("numero", "", "Filter by number")
	affiliatesListCmd.Flags().String("nombre", "", "Filter by name")
	affiliatesListCmd.Flags().String("dni", "", "Filter by DNI")
	affiliatesListCmd.Flags().String("estado", affiliates.StatusAll, "Filter by status: Activo, Inactivo, Todos")
	affiliatesListCmd.Flags().Int("page", 1, "Page number")
	affiliatesListCmd.Flags().Int("per-page", affiliates.DefaultPerPage, "Affiliates per page")

	affiliatesSearchCmd.Flags().String("tipo", string(affiliates.SearchByName), "Search by: nombre, numero, dni")

	addAffiliateFlags(affiliatesCreateCmd)
	addAffiliateFlags(affiliatesUpdateCmd)

	affiliatesDeleteAllCmd.Flags().Bool("yes", false, "Confirm deletion")
}
