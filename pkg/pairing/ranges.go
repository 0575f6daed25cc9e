package pairing

import (
	"fmt"
	"strconv"
	"strings"
)

// Channel is a payment channel an affiliate receives on or sends to.
type Channel string

const (
	ChannelIzipay Channel = "Izipay"
	ChannelIziya  Channel = "Iziya"
	ChannelBoth   Channel = "Ambos"
)

// Range is an amount band affiliates are registered in.
type Range struct {
	Start float64 `json:"rango_inicio"`
	End   float64 `json:"rango_fin"`
}

// DefaultRanges are the bands the console works with.
var DefaultRanges = []Range{
	{Start: 0, End: 500},
	{Start: 500, End: 700},
	{Start: 700, End: 1000},
}

// Key renders the range as "start-end".
func (r Range) Key() string {
	return strconv.FormatFloat(r.Start, 'f', -1, 64) + "-" + strconv.FormatFloat(r.End, 'f', -1, 64)
}

// ParseRange accepts the "start-end" form produced by Key.
func ParseRange(s string) (Range, error) {
	start, end, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Range{}, fmt.Errorf("invalid range %q, expected start-end", s)
	}
	var r Range
	var err error
	if r.Start, err = strconv.ParseFloat(start, 64); err != nil {
		return Range{}, fmt.Errorf("invalid range start %q: %w", start, err)
	}
	if r.End, err = strconv.ParseFloat(end, 64); err != nil {
		return Range{}, fmt.Errorf("invalid range end %q: %w", end, err)
	}
	if r.End <= r.Start {
		return Range{}, fmt.Errorf("invalid range %q, end must be above start", s)
	}
	return r, nil
}

func (r Range) params() map[string]any {
	return map[string]any{"rango_inicio": r.Start, "rango_fin": r.End}
}

// RangeAffiliate is an affiliate registered in a range.
type RangeAffiliate struct {
	ID         int     `json:"id"`
	Number     string  `json:"numero"`
	FullName   string  `json:"nombre_completo"`
	ReceivesOn Channel `json:"recibe_en"`
	SendsTo    Channel `json:"envia_a"`
}

// RangeListing is one range with its registered affiliates. Total counts
// distinct affiliates across every range.
type RangeListing struct {
	Range      Range            `json:"range"`
	Affiliates []RangeAffiliate `json:"affiliates"`
	Total      int              `json:"total"`
}

// RangeAssignment registers an affiliate in a range.
type RangeAssignment struct {
	Number     string  `json:"numero" validate:"required"`
	Start      float64 `json:"rango_inicio" validate:"gte=0"`
	End        float64 `json:"rango_fin" validate:"gtfield=Start"`
	ReceivesOn Channel `json:"recibe_en" validate:"required,oneof=Izipay Iziya Ambos"`
	SendsTo    Channel `json:"envia_a" validate:"required,oneof=Izipay Iziya Ambos"`
}

// Range returns the band the assignment targets.
func (a RangeAssignment) Range() Range {
	return Range{Start: a.Start, End: a.End}
}
