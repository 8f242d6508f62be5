// Package aggregate turns the flat position list returned by the portfolio
// backend into the grouped view model the frontend renders: buckets per
// investment type with totals and percentage-of-portfolio, an optional
// sub-split per category, plus the duplicate-fund merge and earnings-row
// exclusion pre-passes.
//
// Everything here is a pure, single-pass transform over immutable input.
// Numeric fields are coerced through NormalizeAmount before any arithmetic,
// so malformed backend data degrades to zero instead of an error.
package aggregate

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/carteira-app/carteira-bfa-go/internal/domain"
)

// DefaultFundKeywords marks a position name as a fund entry eligible for
// duplicate merging. Matching is case-insensitive substring.
var DefaultFundKeywords = []string{
	"fii",
	"fundo",
	"fdo",
	"imobiliario",
	"imobiliário",
}

// DefaultEarningsKeywords marks a position name as an earnings distribution
// row rather than a holding. Matching is case-insensitive substring.
var DefaultEarningsKeywords = []string{
	"rendimento",
	"dividendo",
	"juros sobre capital",
	"jcp",
	"provento",
	"amortizacao",
	"amortização",
}

// Bucket is one group of positions sharing a category label, with its
// aggregate total and share of the whole portfolio.
type Bucket struct {
	Category   string            `json:"category"`
	Total      float64           `json:"total"`
	Percentage float64           `json:"percentage"`
	Positions  []domain.Position `json:"positions,omitempty"`
	SubBuckets []Bucket          `json:"sub_buckets,omitempty"`
}

// GroupOptions selects the optional steps of the aggregation pipeline.
// The zero value groups flat, with no pre-passes.
type GroupOptions struct {
	// MergeFunds enables the duplicate-fund merge pre-pass.
	MergeFunds bool
	// FundKeywords overrides DefaultFundKeywords when non-nil.
	FundKeywords []string
	// ExcludeEarnings enables the earnings-row exclusion pre-pass.
	ExcludeEarnings bool
	// EarningsKeywords overrides DefaultEarningsKeywords when non-nil.
	EarningsKeywords []string
	// SplitCategories lists category labels that explode into sub-buckets
	// keyed by the position sub-type before their aggregate is computed.
	SplitCategories map[string]bool
}

// NormalizeAmount coerces a backend-serialized numeric value to float64.
// It accepts numbers, decimal strings, json.Number, domain.Amount and nil;
// anything non-numeric, NaN or infinite maps to 0.
func NormalizeAmount(v any) float64 {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case domain.Amount:
		f = x.Float64()
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// MergeDuplicateFunds combines fund entries whose normalized names collide.
// Quantities and monetary values are summed; the most recent price/date pair
// wins. Non-fund entries and first occurrences pass through in input order.
// Running it on its own output is a no-op.
func MergeDuplicateFunds(positions []domain.Position, keywords []string) []domain.Position {
	if keywords == nil {
		keywords = DefaultFundKeywords
	}
	out := make([]domain.Position, 0, len(positions))
	seen := make(map[string]int)
	for _, p := range positions {
		name := normalizeName(p.AssetName)
		if !matchesAny(name, keywords) {
			out = append(out, p)
			continue
		}
		if i, ok := seen[name]; ok {
			kept := &out[i]
			kept.Quantity += p.Quantity
			kept.AppliedValue += p.AppliedValue
			kept.PositionValue += p.PositionValue
			kept.NetValue += p.NetValue
			if p.PriceDate > kept.PriceDate {
				kept.Price = p.Price
				kept.PriceDate = p.PriceDate
			}
			continue
		}
		seen[name] = len(out)
		out = append(out, p)
	}
	return out
}

// ExcludeEarnings drops rows whose name contains an earnings keyword.
func ExcludeEarnings(positions []domain.Position, keywords []string) []domain.Position {
	if keywords == nil {
		keywords = DefaultEarningsKeywords
	}
	out := make([]domain.Position, 0, len(positions))
	for _, p := range positions {
		if matchesAny(normalizeName(p.AssetName), keywords) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Group partitions positions into buckets by investment type, applying the
// pre-passes selected in opts. Positions without a category fall into
// "Outros". Split categories come first in the result, then the remaining
// buckets by descending total; members are sorted by descending net value.
func Group(positions []domain.Position, opts GroupOptions) []Bucket {
	if opts.MergeFunds {
		positions = MergeDuplicateFunds(positions, opts.FundKeywords)
	}
	if opts.ExcludeEarnings {
		positions = ExcludeEarnings(positions, opts.EarningsKeywords)
	}

	// Grand total is computed once over every position that reaches
	// grouping; every percentage below shares it.
	var grandTotal float64
	for _, p := range positions {
		grandTotal += NormalizeAmount(p.PositionValue)
	}

	byCategory := make(map[string][]domain.Position)
	order := make([]string, 0)
	for _, p := range positions {
		cat := p.InvestmentType
		if cat == "" {
			cat = domain.CategoryOther
		}
		if _, ok := byCategory[cat]; !ok {
			order = append(order, cat)
		}
		byCategory[cat] = append(byCategory[cat], p)
	}

	buckets := make([]Bucket, 0, len(order))
	for _, cat := range order {
		members := byCategory[cat]
		if opts.SplitCategories[cat] {
			buckets = append(buckets, splitBucket(cat, members, grandTotal))
			continue
		}
		buckets = append(buckets, flatBucket(cat, members, grandTotal))
	}

	sort.SliceStable(buckets, func(i, j int) bool {
		si, sj := opts.SplitCategories[buckets[i].Category], opts.SplitCategories[buckets[j].Category]
		if si != sj {
			return si
		}
		return buckets[i].Total > buckets[j].Total
	})
	return buckets
}

func flatBucket(category string, members []domain.Position, grandTotal float64) Bucket {
	sorted := make([]domain.Position, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool {
		return NormalizeAmount(sorted[i].NetValue) > NormalizeAmount(sorted[j].NetValue)
	})
	var total float64
	for _, p := range sorted {
		total += NormalizeAmount(p.PositionValue)
	}
	return Bucket{
		Category:   category,
		Total:      total,
		Percentage: percentage(total, grandTotal),
		Positions:  sorted,
	}
}

func splitBucket(category string, members []domain.Position, grandTotal float64) Bucket {
	bySub := make(map[string][]domain.Position)
	order := make([]string, 0)
	for _, p := range members {
		sub := p.SubType
		if sub == "" {
			sub = domain.CategoryOther
		}
		if _, ok := bySub[sub]; !ok {
			order = append(order, sub)
		}
		bySub[sub] = append(bySub[sub], p)
	}

	subs := make([]Bucket, 0, len(order))
	var total float64
	for _, sub := range order {
		b := flatBucket(sub, bySub[sub], grandTotal)
		total += b.Total
		subs = append(subs, b)
	}
	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].Total > subs[j].Total
	})
	return Bucket{
		Category:   category,
		Total:      total,
		Percentage: percentage(total, grandTotal),
		SubBuckets: subs,
	}
}

func percentage(total, grandTotal float64) float64 {
	if grandTotal == 0 {
		return 0
	}
	return total / grandTotal * 100
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

func matchesAny(name string, keywords []string) bool {
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(name, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
