package matching

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Bound is an optional numeric limit. The zero Bound is unset, so a bound of
// exactly 0 is expressed as At(0) and still constrains.
type Bound struct {
	value float64
	set   bool
}

// At returns a Bound set to v.
func At(v float64) Bound { return Bound{value: v, set: true} }

// Get returns the bound and whether it is set.
func (b Bound) Get() (float64, bool) { return b.value, b.set }

func (b Bound) IsSet() bool { return b.set }

// FilterCriteria narrows a snapshot. Empty names and unset bounds do not
// constrain.
type FilterCriteria struct {
	NameA     string
	NameB     string
	MaxRisk   Bound
	MinAmount Bound
	MaxAmount Bound
}

// IsZero reports whether no criterion is active.
func (c FilterCriteria) IsZero() bool {
	return strings.TrimSpace(c.NameA) == "" && strings.TrimSpace(c.NameB) == "" &&
		!c.MaxRisk.set && !c.MinAmount.set && !c.MaxAmount.set
}

// CriteriaFromConfig carries the thresholds of cfg into local filtering. A
// zero MaximumAmount in cfg means no upper bound.
func CriteriaFromConfig(cfg ScoringConfiguration) FilterCriteria {
	c := FilterCriteria{
		MaxRisk:   At(cfg.MaximumRisk),
		MinAmount: At(cfg.MinimumAmount),
	}
	if cfg.MaximumAmount > 0 {
		c.MaxAmount = At(cfg.MaximumAmount)
	}
	return c
}

// Filter returns the results matching every active criterion, in their
// original relative order. The input is not modified and the output never
// aliases it.
func Filter(results []MatchResult, c FilterCriteria) []MatchResult {
	f := newNameFolder()
	nameA := f.fold(strings.TrimSpace(c.NameA))
	nameB := f.fold(strings.TrimSpace(c.NameB))

	out := make([]MatchResult, 0, len(results))
	for _, r := range results {
		if !c.matchesNumbers(r) {
			continue
		}
		if (nameA != "" || nameB != "") && !matchesNames(f.fold(r.AffiliateA), f.fold(r.AffiliateB), nameA, nameB) {
			continue
		}
		out = append(out, r)
	}
	return cloneResults(out)
}

func (c FilterCriteria) matchesNumbers(r MatchResult) bool {
	if v, ok := c.MaxRisk.Get(); ok && r.Risk > v {
		return false
	}
	if v, ok := c.MinAmount.Get(); ok && r.AssignedAmount < v {
		return false
	}
	if v, ok := c.MaxAmount.Get(); ok && r.AssignedAmount > v {
		return false
	}
	return true
}

// matchesNames applies the name filters symmetrically: one filter matches
// either affiliate, two filters match the pair in either orientation.
func matchesNames(a, b, f1, f2 string) bool {
	switch {
	case f1 != "" && f2 == "":
		return strings.Contains(a, f1) || strings.Contains(b, f1)
	case f1 == "" && f2 != "":
		return strings.Contains(a, f2) || strings.Contains(b, f2)
	default:
		return (strings.Contains(a, f1) && strings.Contains(b, f2)) ||
			(strings.Contains(a, f2) && strings.Contains(b, f1))
	}
}

// nameFolder lowercases and strips diacritics so "gomez" finds "Gómez".
// Transformers are stateful, so each Filter call builds its own.
type nameFolder struct {
	t transform.Transformer
}

func newNameFolder() *nameFolder {
	return &nameFolder{
		t: transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), cases.Fold(), norm.NFC),
	}
}

func (f *nameFolder) fold(s string) string {
	if s == "" {
		return ""
	}
	out, _, err := transform.String(f.t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}
