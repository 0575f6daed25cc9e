package matching

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Field names a sortable MatchResult column, using the service's names.
type Field string

const (
	FieldAffiliateA         Field = "afiliado1"
	FieldAffiliateB         Field = "afiliado2"
	FieldRisk               Field = "riesgo"
	FieldAssignedAmount     Field = "monto_asignado"
	FieldDaysSinceLast      Field = "dias_desde_ultima"
	FieldMinDiversity       Field = "diversidad_minima"
	FieldMinIntermediateOps Field = "operaciones_intermedias_minimas"
)

// Fields lists every sortable field.
var Fields = []Field{
	FieldAffiliateA, FieldAffiliateB, FieldRisk, FieldAssignedAmount,
	FieldDaysSinceLast, FieldMinDiversity, FieldMinIntermediateOps,
}

// ParseField resolves a field name, case-insensitively.
func ParseField(s string) (Field, error) {
	for _, f := range Fields {
		if strings.EqualFold(string(f), strings.TrimSpace(s)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown sort field %q", s)
}

// SortSpec selects the ordering of a view.
type SortSpec struct {
	Field      Field
	Descending bool
}

// sortValue is either text or a number; text pairs are collated, anything
// else is compared numerically.
type sortValue struct {
	text   string
	num    float64
	isText bool
}

func valueOf(r MatchResult, f Field) sortValue {
	switch f {
	case FieldAffiliateA:
		return sortValue{text: r.AffiliateA, isText: true}
	case FieldAffiliateB:
		return sortValue{text: r.AffiliateB, isText: true}
	case FieldRisk:
		return sortValue{num: r.Risk}
	case FieldAssignedAmount:
		return sortValue{num: r.AssignedAmount}
	case FieldDaysSinceLast:
		return sortValue{num: r.DaysSinceLast.SortKey()}
	case FieldMinDiversity:
		return sortValue{text: string(r.MinDiversity), isText: true}
	case FieldMinIntermediateOps:
		return sortValue{text: string(r.MinIntermediateOps), isText: true}
	}
	return sortValue{}
}

// Sort returns a new slice ordered by spec. The sort is stable, so sorting
// an already sorted view returns it unchanged.
func Sort(results []MatchResult, spec SortSpec) []MatchResult {
	out := cloneResults(results)
	if out == nil {
		out = []MatchResult{}
	}
	// A Collator keeps internal buffers and must not be shared.
	coll := collate.New(language.Spanish)

	slices.SortStableFunc(out, func(x, y MatchResult) int {
		c := compareValues(coll, valueOf(x, spec.Field), valueOf(y, spec.Field))
		if spec.Descending {
			return -c
		}
		return c
	})
	return out
}

func compareValues(coll *collate.Collator, a, b sortValue) int {
	if a.isText && b.isText {
		return coll.CompareString(a.text, b.text)
	}
	return cmp.Compare(a.num, b.num)
}
