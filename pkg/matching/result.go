// Package matching holds the client-side side of affiliate pairing: the
// scoring configuration sent to the service, immutable snapshots of the
// results it returns, and the filter and sort engines that derive views
// from a snapshot without re-querying the server.
package matching

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// NoPriorOperations is the sentinel the service reports instead of a day
// count when two affiliates never operated together.
const NoPriorOperations = "Sin operaciones previas"

// Days is the number of days since a pair last operated, or the
// NoPriorOperations sentinel.
type Days struct {
	Value float64
	None  bool
}

// DaysOf returns a numeric Days.
func DaysOf(v float64) Days { return Days{Value: v} }

// NoDays returns the sentinel Days.
func NoDays() Days { return Days{None: true} }

// SortKey orders the sentinel after every real day count.
func (d Days) SortKey() float64 {
	if d.None {
		return math.MaxFloat64
	}
	return d.Value
}

func (d Days) String() string {
	if d.None {
		return NoPriorOperations
	}
	return strconv.FormatFloat(d.Value, 'f', -1, 64)
}

func (d Days) MarshalJSON() ([]byte, error) {
	if d.None {
		return json.Marshal(NoPriorOperations)
	}
	return json.Marshal(d.Value)
}

// UnmarshalJSON accepts a number, a numeric string, null, or any other
// string, which is read as the sentinel.
func (d *Days) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*d = NoDays()
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && !math.IsInf(v, 0) && !math.IsNaN(v) {
			*d = DaysOf(v)
			return nil
		}
		*d = NoDays()
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("dias_desde_ultima: %w", err)
	}
	*d = DaysOf(v)
	return nil
}

// Label is a free-form display value. The service sends some of these as
// numbers and some as strings.
type Label string

func (l *Label) UnmarshalJSON(b []byte) error {
	r := gjson.ParseBytes(b)
	if r.Type == gjson.Null {
		*l = ""
		return nil
	}
	*l = Label(r.String())
	return nil
}

// MatchResult is one scored pairing returned by the service.
type MatchResult struct {
	AffiliateA         string  `json:"afiliado1"`
	AffiliateB         string  `json:"afiliado2"`
	Risk               float64 `json:"riesgo"`
	AssignedAmount     float64 `json:"monto_asignado"`
	DaysSinceLast      Days    `json:"dias_desde_ultima"`
	MinDiversity       Label   `json:"diversidad_minima,omitempty"`
	MinIntermediateOps Label   `json:"operaciones_intermedias_minimas,omitempty"`
	Pair               []Label `json:"pareja,omitempty"`
}

// UnmarshalJSON reads a missing dias_desde_ultima the same way as null.
func (r *MatchResult) UnmarshalJSON(b []byte) error {
	type plain MatchResult
	p := plain{DaysSinceLast: NoDays()}
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = MatchResult(p)
	return nil
}
