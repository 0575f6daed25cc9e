package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Angel-Nizama/web-operaciones-v2/pkg/matching"
)

// viewOptions are the local filter and sort flags shared by pair calc and
// pair view.
type viewOptions struct {
	nameA     string
	nameB     string
	maxRisk   float64
	minAmount float64
	maxAmount float64
	sortField string
	desc      bool
	// configBounds starts from the thresholds the snapshot was calculated with.
	configBounds bool
}

func addViewFlags(cmd *cobra.Command, o *viewOptions) {
	cmd.Flags().StringVar(&o.nameA, "name-a", "", "Show pairs involving this affiliate (accent and case insensitive)")
	cmd.Flags().StringVar(&o.nameB, "name-b", "", "Show pairs involving this affiliate (combined with --name-a in either order)")
	cmd.Flags().Float64Var(&o.maxRisk, "max-risk", 0, "Hide pairs above this risk")
	cmd.Flags().Float64Var(&o.minAmount, "min-amount", 0, "Hide pairs below this assigned amount")
	cmd.Flags().Float64Var(&o.maxAmount, "max-amount", 0, "Hide pairs above this assigned amount")
	cmd.Flags().StringVar(&o.sortField, "sort", "", "Sort by field: afiliado1, afiliado2, riesgo, monto_asignado, dias_desde_ultima, diversidad_minima, operaciones_intermedias_minimas")
	cmd.Flags().BoolVar(&o.desc, "desc", false, "Sort descending")
	cmd.Flags().BoolVar(&o.configBounds, "config-bounds", false, "Apply the calculation's risk and amount thresholds; explicit bound flags take priority")
}

// criteria builds the filter on top of base. Numeric flags only constrain
// when given, so --max-risk 0 is a real bound.
func (o *viewOptions) criteria(cmd *cobra.Command, base matching.FilterCriteria) matching.FilterCriteria {
	c := base
	c.NameA, c.NameB = o.nameA, o.nameB
	if cmd.Flags().Changed("max-risk") {
		c.MaxRisk = matching.At(o.maxRisk)
	}
	if cmd.Flags().Changed("min-amount") {
		c.MinAmount = matching.At(o.minAmount)
	}
	if cmd.Flags().Changed("max-amount") {
		c.MaxAmount = matching.At(o.maxAmount)
	}
	return c
}

func (o *viewOptions) sortSpec() (matching.SortSpec, error) {
	if o.sortField == "" {
		return matching.SortSpec{}, nil
	}
	f, err := matching.ParseField(o.sortField)
	if err != nil {
		return matching.SortSpec{}, err
	}
	return matching.SortSpec{Field: f, Descending: o.desc}, nil
}

// render filters and sorts the store's snapshot.
func (o *viewOptions) render(cmd *cobra.Command, store *matching.Store) ([]matching.MatchResult, error) {
	spec, err := o.sortSpec()
	if err != nil {
		return nil, err
	}
	var base matching.FilterCriteria
	if snap := store.Snapshot(); o.configBounds && snap != nil {
		base = matching.CriteriaFromConfig(snap.Config())
	}
	view := store.View(o.criteria(cmd, base), spec)
	if view == nil {
		view = []matching.MatchResult{}
	}
	return view, nil
}
