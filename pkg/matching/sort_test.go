package matching

import (
	"encoding/json"
	"reflect"
	"testing"
)

func names(results []MatchResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.AffiliateA)
	}
	return out
}

func TestSortByDaysSentinel(t *testing.T) {
	results := []MatchResult{
		{AffiliateA: "nunca", DaysSinceLast: NoDays()},
		{AffiliateA: "diez", DaysSinceLast: DaysOf(10)},
		{AffiliateA: "dos", DaysSinceLast: DaysOf(2)},
	}

	asc := Sort(results, SortSpec{Field: FieldDaysSinceLast})
	if want := []string{"dos", "diez", "nunca"}; !reflect.DeepEqual(names(asc), want) {
		t.Fatalf("ascending: want %v, got %v", want, names(asc))
	}
	desc := Sort(results, SortSpec{Field: FieldDaysSinceLast, Descending: true})
	if want := []string{"nunca", "diez", "dos"}; !reflect.DeepEqual(names(desc), want) {
		t.Fatalf("descending: want %v, got %v", want, names(desc))
	}
}

func TestSortIdempotent(t *testing.T) {
	results := []MatchResult{
		{AffiliateA: "a", Risk: 30},
		{AffiliateA: "b", Risk: 10},
		{AffiliateA: "c", Risk: 30},
		{AffiliateA: "d", Risk: 20},
	}
	for _, spec := range []SortSpec{{Field: FieldRisk}, {Field: FieldRisk, Descending: true}, {Field: FieldAffiliateA}} {
		once := Sort(results, spec)
		twice := Sort(once, spec)
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("%+v: sorting twice changed order\n%v\n%v", spec, names(once), names(twice))
		}
	}
}

func TestSortStableForTies(t *testing.T) {
	results := []MatchResult{
		{AffiliateA: "first", Risk: 5},
		{AffiliateA: "second", Risk: 5},
	}
	got := Sort(results, SortSpec{Field: FieldRisk, Descending: true})
	if want := []string{"first", "second"}; !reflect.DeepEqual(names(got), want) {
		t.Fatalf("ties should keep input order, got %v", names(got))
	}
}

func TestSortTextUsesCollation(t *testing.T) {
	results := []MatchResult{
		{AffiliateA: "Zoila"},
		{AffiliateA: "Ñaupa"},
		{AffiliateA: "Nora"},
		{AffiliateA: "Álvaro"},
		{AffiliateA: "beto"},
	}
	got := Sort(results, SortSpec{Field: FieldAffiliateA})
	if want := []string{"Álvaro", "beto", "Nora", "Ñaupa", "Zoila"}; !reflect.DeepEqual(names(got), want) {
		t.Fatalf("want %v, got %v", want, names(got))
	}
}

func TestSortDoesNotMutateInput(t *testing.T) {
	results := []MatchResult{{AffiliateA: "b", Risk: 2}, {AffiliateA: "a", Risk: 1}}
	_ = Sort(results, SortSpec{Field: FieldRisk})
	if results[0].AffiliateA != "b" {
		t.Fatalf("input reordered: %v", names(results))
	}
}

func TestParseField(t *testing.T) {
	f, err := ParseField("Riesgo")
	if err != nil || f != FieldRisk {
		t.Fatalf("expected riesgo, got %q %v", f, err)
	}
	if _, err := ParseField("color"); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestMatchResultDecodesServerShapes(t *testing.T) {
	raw := `[
		{"afiliado1":"Ana","afiliado2":"Luis","riesgo":12.5,"monto_asignado":650,"dias_desde_ultima":"Sin operaciones previas","diversidad_minima":"3 (Ana)","operaciones_intermedias_minimas":4,"pareja":["A1","A2"]},
		{"afiliado1":"Eva","afiliado2":"Raúl","riesgo":40,"monto_asignado":300,"dias_desde_ultima":"15"},
		{"afiliado1":"Sol","afiliado2":"Teo","riesgo":7,"monto_asignado":120,"dias_desde_ultima":8}
	]`
	var results []MatchResult
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		t.Fatal(err)
	}
	if !results[0].DaysSinceLast.None {
		t.Fatalf("expected sentinel, got %+v", results[0].DaysSinceLast)
	}
	if results[0].MinIntermediateOps != "4" || results[0].MinDiversity != "3 (Ana)" {
		t.Fatalf("unexpected labels: %+v", results[0])
	}
	if d := results[1].DaysSinceLast; d.None || d.Value != 15 {
		t.Fatalf("numeric string should parse, got %+v", d)
	}
	if d := results[2].DaysSinceLast; d.None || d.Value != 8 {
		t.Fatalf("expected 8, got %+v", d)
	}

	out, err := json.Marshal(results[0].DaysSinceLast)
	if err != nil || string(out) != `"Sin operaciones previas"` {
		t.Fatalf("sentinel should round-trip, got %s %v", out, err)
	}
}

func TestMatchResultMissingDaysIsSentinel(t *testing.T) {
	raw := `[
		{"afiliado1":"Ana","afiliado2":"Luis","riesgo":10,"dias_desde_ultima":2},
		{"afiliado1":"Eva","afiliado2":"Raúl","riesgo":20}
	]`
	var results []MatchResult
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		t.Fatal(err)
	}
	if !results[1].DaysSinceLast.None {
		t.Fatalf("missing dias_desde_ultima should be the sentinel, got %+v", results[1].DaysSinceLast)
	}
	if results[1].Risk != 20 || results[1].AffiliateB != "Raúl" {
		t.Fatalf("other fields lost: %+v", results[1])
	}

	sorted := Sort(results, SortSpec{Field: FieldDaysSinceLast})
	if sorted[0].AffiliateA != "Ana" || sorted[1].AffiliateA != "Eva" {
		t.Fatalf("pair without history should sort last: %+v", sorted)
	}
}
