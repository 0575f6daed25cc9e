package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Angel-Nizama/web-operaciones-v2/internal/storage"
	"github.com/Angel-Nizama/web-operaciones-v2/internal/utils"
	"github.com/Angel-Nizama/web-operaciones-v2/pkg/matching"
	"github.com/Angel-Nizama/web-operaciones-v2/pkg/pairing"
)

var (
	calcView pairView
	viewView pairView
)

// pairView couples the shared filter flags with the command-specific ones.
type pairView struct {
	viewOptions
	id int64
}

// pairCmd represents the pair command
var pairCmd = &cobra.Command{
	Use:     "pair",
	Aliases: []string{"emparejador"},
	Short:   "Register affiliates in ranges and calculate pairings",
}

var pairRangesCmd = &cobra.Command{
	Use:   "ranges",
	Short: "Manage range registrations",
}

var pairRangesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List affiliates registered in each range",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, err := jsonOutput(cmd)
		if err != nil {
			return err
		}
		svc := newPairingService(nil)

		var (
			listings []*pairing.RangeListing
			errs     []error
		)
		if rs, _ := cmd.Flags().GetString("range"); rs != "" {
			r, err := pairing.ParseRange(rs)
			if err != nil {
				return err
			}
			l, err := svc.RangeAffiliates(cmd.Context(), r)
			if err != nil {
				return err
			}
			listings = append(listings, l)
		} else {
			listings, errs = svc.LoadAllRanges(cmd.Context())
		}

		if asJSON {
			if err := printJSON(os.Stdout, listings); err != nil {
				return err
			}
		} else {
			for _, l := range listings {
				fmt.Printf("Range %s (%d affiliates)\n", l.Range.Key(), len(l.Affiliates))
				w := newTable(os.Stdout)
				fmt.Fprintln(w, "ID\tNUMBER\tNAME\tRECEIVES ON\tSENDS TO\t")
				for _, a := range l.Affiliates {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t\n", a.ID, a.Number, a.FullName, a.ReceivesOn, a.SendsTo)
				}
				w.Flush()
				fmt.Println()
			}
			if len(listings) > 0 {
				fmt.Printf("%d distinct affiliates registered\n", listings[0].Total)
			}
		}
		return errors.Join(errs...)
	},
}

var pairRangesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register an affiliate in a range",
	RunE: func(cmd *cobra.Command, args []string) error {
		rs, _ := cmd.Flags().GetString("range")
		r, err := pairing.ParseRange(rs)
		if err != nil {
			return err
		}
		a := pairing.RangeAssignment{Start: r.Start, End: r.End}
		a.Number, _ = cmd.Flags().GetString("numero")
		recv, _ := cmd.Flags().GetString("recibe-en")
		send, _ := cmd.Flags().GetString("envia-a")
		a.ReceivesOn, a.SendsTo = pairing.Channel(recv), pairing.Channel(send)

		msg, err := newPairingService(nil).AddRangeAffiliate(cmd.Context(), a)
		if err != nil {
			return err
		}
		printMessage(msg, "Affiliate added to range "+r.Key())
		return nil
	},
}

var pairRangesRemoveCmd = &cobra.Command{
	Use:   "remove ID",
	Short: "Remove one range registration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid registration id %q", args[0])
		}
		msg, err := newPairingService(nil).RemoveRangeAffiliate(cmd.Context(), id)
		if err != nil {
			return err
		}
		printMessage(msg, "Registration removed")
		return nil
	},
}

var pairRangesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every registration in a range",
	RunE: func(cmd *cobra.Command, args []string) error {
		rs, _ := cmd.Flags().GetString("range")
		r, err := pairing.ParseRange(rs)
		if err != nil {
			return err
		}
		msg, err := newPairingService(nil).ClearRange(cmd.Context(), r)
		if err != nil {
			return err
		}
		printMessage(msg, "Range "+r.Key()+" cleared")
		return nil
	},
}

var pairRangesClearAllCmd = &cobra.Command{
	Use:   "clear-all",
	Short: "Remove every registration in every range",
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("refusing to clear all ranges without --yes")
		}
		msg, err := newPairingService(nil).ClearAllRanges(cmd.Context())
		if err != nil {
			return err
		}
		printMessage(msg, "All ranges cleared")
		return nil
	},
}

var pairCalcCmd = &cobra.Command{
	Use:   "calc",
	Short: "Calculate pairings and archive the result",
	Long: `Calculate pairings with the configured scoring (scoring.* in the config file),
optionally overridden by flags. The result is archived in the local database and
shown through the local filter and sort flags.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, err := jsonOutput(cmd)
		if err != nil {
			return err
		}
		cfg := scoringFromConfig()
		applyScoringFlags(cmd, &cfg)
		mgr, err := newManager(cfg)
		if err != nil {
			return err
		}

		svc := newPairingService(mgr)
		snap, err := svc.Calculate(cmd.Context())
		if err != nil {
			if !asJSON {
				if serr := calcView.showArchived(cmd.Context(), cmd, os.Stdout); serr != nil {
					utils.Log.Debugf("No archived calculation to show: %v", serr)
				}
			}
			return err
		}
		utils.Log.Infof("Calculated %d pairs in %.2fs", snap.Len(), snap.ExecutionTime())

		if noSave, _ := cmd.Flags().GetBool("no-save"); !noSave {
			if err := archiveSnapshot(cmd, snap); err != nil {
				utils.Log.Warnf("Could not archive calculation: %v", err)
			}
		}

		view, err := calcView.render(cmd, svc.Store())
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(os.Stdout, view)
		}
		printResults(os.Stdout, view)
		fmt.Printf("\n%d of %d pairs shown\n", len(view), snap.Len())
		return nil
	},
}

var pairViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Filter and sort an archived calculation",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, err := jsonOutput(cmd)
		if err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		var snap *matching.Snapshot
		if cmd.Flags().Changed("id") {
			snap, err = db.GetSnapshot(cmd.Context(), viewView.id)
		} else {
			_, snap, err = db.LatestSnapshot(cmd.Context())
		}
		if errors.Is(err, storage.ErrNoSnapshot) {
			return fmt.Errorf("no archived calculation found, run 'pair calc' first")
		}
		if err != nil {
			return err
		}

		store := matching.NewStore()
		store.Complete(snap)
		view, err := viewView.render(cmd, store)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(os.Stdout, view)
		}
		printResults(os.Stdout, view)
		fmt.Printf("\n%d of %d pairs shown (calculated %s)\n", len(view), snap.Len(), snap.CreatedAt().Local().Format("2006-01-02 15:04:05"))
		return nil
	},
}

var pairSnapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List archived calculations",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, err := jsonOutput(cmd)
		if err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if cmd.Flags().Changed("prune") {
			keep, _ := cmd.Flags().GetInt("prune")
			n, err := db.PruneSnapshots(cmd.Context(), keep)
			if err != nil {
				return err
			}
			utils.Log.Infof("Pruned %d archived calculations", n)
		}

		limit, _ := cmd.Flags().GetInt("limit")
		infos, err := db.ListSnapshots(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(os.Stdout, infos)
		}
		if len(infos) == 0 {
			fmt.Println("No archived calculations.")
			return nil
		}
		w := newTable(os.Stdout)
		fmt.Fprintln(w, "ID\tCREATED\tPAIRS\tSECONDS\tMIN DAYS\tMAX RISK\t")
		for _, s := range infos {
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%d\t%s\t\n", s.ID, s.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				s.ResultCount, formatNumber(s.ExecutionTime), s.Config.MinimumDays, formatNumber(s.Config.MaximumRisk))
		}
		w.Flush()
		return nil
	},
}

var pairDetailsCmd = &cobra.Command{
	Use:   "details AFFILIATE1 AFFILIATE2",
	Short: "Show recent operations and suggested amounts for a pair",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, err := jsonOutput(cmd)
		if err != nil {
			return err
		}
		d, err := newPairingService(nil).PairDetails(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(os.Stdout, d)
		}

		fmt.Printf("%s <-> %s\n", d.AffiliateA, d.AffiliateB)
		if d.UsesIzipay {
			fmt.Println("Izipay in use: amounts capped at 800")
		}
		amounts := make([]string, 0, len(d.SuggestedAmounts))
		for _, a := range d.SuggestedAmounts {
			amounts = append(amounts, formatNumber(a))
		}
		fmt.Printf("Suggested amounts: %s\n\n", strings.Join(amounts, ", "))

		if len(d.History) == 0 {
			fmt.Println("No previous operations.")
			return nil
		}
		w := newTable(os.Stdout)
		fmt.Fprintln(w, "DATE\tTIME\tAMOUNT\t")
		for _, op := range d.History {
			fmt.Fprintf(w, "%s\t%s\t%s\t\n", op.Date, op.Time, formatNumber(op.Amount))
		}
		w.Flush()
		return nil
	},
}

func newPairingService(mgr *matching.Manager) *pairing.Service {
	if mgr == nil {
		// Range and details calls do not read the scoring configuration.
		mgr, _ = matching.NewManager(matching.DefaultConfiguration())
	}
	return pairing.NewService(newClient(), mgr,
		pairing.WithLimit(viper.GetInt("scoring.limit")),
		pairing.WithLogger(utils.Log),
	)
}

// addScoringFlags registers per-run overrides of the scoring.* config keys.
func addScoringFlags(cmd *cobra.Command) {
	cmd.Flags().Int("dias-minimos", 0, "Minimum days since the pair's last operation")
	cmd.Flags().Float64("riesgo-maximo", 0, "Maximum risk (0-100)")
	cmd.Flags().Float64("monto-minimo", 0, "Minimum amount")
	cmd.Flags().Float64("monto-maximo", 0, "Maximum amount (0 for no limit)")
	cmd.Flags().Float64("peso-dias", 0, "Weight of days since last operation")
	cmd.Flags().Float64("peso-diversidad", 0, "Weight of partner diversity")
	cmd.Flags().Float64("peso-operaciones", 0, "Weight of intermediate operation count")
	cmd.Flags().Float64("peso-patron", 0, "Weight of amount pattern")
}

func applyScoringFlags(cmd *cobra.Command, cfg *matching.ScoringConfiguration) {
	f := cmd.Flags()
	if f.Changed("dias-minimos") {
		cfg.MinimumDays, _ = f.GetInt("dias-minimos")
	}
	if f.Changed("riesgo-maximo") {
		cfg.MaximumRisk, _ = f.GetFloat64("riesgo-maximo")
	}
	if f.Changed("monto-minimo") {
		cfg.MinimumAmount, _ = f.GetFloat64("monto-minimo")
	}
	if f.Changed("monto-maximo") {
		cfg.MaximumAmount, _ = f.GetFloat64("monto-maximo")
	}
	if f.Changed("peso-dias") {
		cfg.Weights.Days, _ = f.GetFloat64("peso-dias")
	}
	if f.Changed("peso-diversidad") {
		cfg.Weights.Diversity, _ = f.GetFloat64("peso-diversidad")
	}
	if f.Changed("peso-operaciones") {
		cfg.Weights.OperationCount, _ = f.GetFloat64("peso-operaciones")
	}
	if f.Changed("peso-patron") {
		cfg.Weights.Pattern, _ = f.GetFloat64("peso-patron")
	}
}

func openDB() (*storage.DB, error) {
	path, err := utils.GetAbsDBPath(viper.GetString("storage.dbpath"))
	if err != nil {
		return nil, fmt.Errorf("could not get absolute db path: %w", err)
	}
	if err := utils.EnsureDir(path); err != nil {
		return nil, err
	}
	return storage.Open(path)
}

// showArchived prints the latest archived calculation, marked stale, so a
// failed run still leaves the last good result in view.
func (o *viewOptions) showArchived(ctx context.Context, cmd *cobra.Command, w io.Writer) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	id, snap, err := db.LatestSnapshot(ctx)
	if err != nil {
		return err
	}
	store := matching.NewStore()
	store.Complete(snap)
	view, err := o.render(cmd, store)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "STALE: showing archived calculation %d from %s\n\n", id, snap.CreatedAt().Local().Format("2006-01-02 15:04:05"))
	printResults(w, view)
	fmt.Fprintln(w)
	return nil
}

func archiveSnapshot(cmd *cobra.Command, snap *matching.Snapshot) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	id, err := db.SaveSnapshot(cmd.Context(), snap)
	if err != nil {
		return err
	}
	utils.Log.Debugf("Archived calculation as snapshot %d", id)
	return nil
}

func init() {
	rootCmd.AddCommand(pairCmd)
	pairCmd.AddCommand(pairRangesCmd, pairCalcCmd, pairViewCmd, pairSnapshotsCmd, pairDetailsCmd)
	pairRangesCmd.AddCommand(pairRangesListCmd, pairRangesAddCmd, pairRangesRemoveCmd, pairRangesClearCmd, pairRangesClearAllCmd)

	pairCmd.PersistentFlags().String("dbpath", "", "Path to SQLite DB file (default from storage.dbpath)")
	viper.BindPFlag("storage.dbpath", pairCmd.PersistentFlags().Lookup("dbpath"))

	pairRangesListCmd.Flags().String("range", "", "Only list this range (e.g. 500-700)")

	pairRangesAddCmd.Flags().String("numero", "", "Affiliate number")
	pairRangesAddCmd.Flags().String("range", "", "Range as start-end (e.g. 0-500)")
	pairRangesAddCmd.Flags().String("recibe-en", string(pairing.ChannelBoth), "Receives on: Izipay, Iziya, Ambos")
	pairRangesAddCmd.Flags().String("envia-a", string(pairing.ChannelBoth), "Sends to: Izipay, Iziya, Ambos")

	pairRangesClearCmd.Flags().String("range", "", "Range as start-end (e.g. 0-500)")
	pairRangesClearAllCmd.Flags().Bool("yes", false, "Confirm removal")

	addScoringFlags(pairCalcCmd)
	pairCalcCmd.Flags().Bool("no-save", false, "Do not archive the result")
	addViewFlags(pairCalcCmd, &calcView.viewOptions)

	pairViewCmd.Flags().Int64Var(&viewView.id, "id", 0, "Archived calculation id (default latest)")
	addViewFlags(pairViewCmd, &viewView.viewOptions)

	pairSnapshotsCmd.Flags().Int("limit", 20, "Number of calculations to list")
	pairSnapshotsCmd.Flags().Int("prune", 0, "Keep only the newest N calculations")
}
