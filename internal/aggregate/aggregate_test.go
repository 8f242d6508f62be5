package aggregate

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"

	"github.com/carteira-app/carteira-bfa-go/internal/domain"
)

func TestNormalizeAmount(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want float64
	}{
		{"nil", nil, 0},
		{"number", 150.5, 150.5},
		{"int", 42, 42},
		{"decimal string", "150.5", 150.5},
		{"padded string", "  99.90 ", 99.9},
		{"non-numeric string", "abc", 0},
		{"empty string", "", 0},
		{"NaN", math.NaN(), 0},
		{"Inf", math.Inf(1), 0},
		{"json.Number", json.Number("12.25"), 12.25},
		{"bad json.Number", json.Number("x"), 0},
		{"amount", domain.Amount(7.5), 7.5},
		{"unsupported type", struct{}{}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeAmount(tc.in); got != tc.want {
				t.Errorf("NormalizeAmount(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestGroup_TotalsAndPercentages(t *testing.T) {
	positions := []domain.Position{
		{InvestmentType: "A", AssetName: "a1", PositionValue: 100, NetValue: 50},
		{InvestmentType: "A", AssetName: "a2", PositionValue: 200, NetValue: 80},
		{InvestmentType: "B", AssetName: "b1", PositionValue: 100, NetValue: 10},
	}

	buckets := Group(positions, GroupOptions{})
	if len(buckets) != 2 {
		t.Fatalf("got %d buckets, want 2", len(buckets))
	}

	a := buckets[0]
	if a.Category != "A" || a.Total != 300 || a.Percentage != 75 {
		t.Errorf("bucket A = {%s %v %v}, want {A 300 75}", a.Category, a.Total, a.Percentage)
	}
	if a.Positions[0].AssetName != "a2" || a.Positions[1].AssetName != "a1" {
		t.Errorf("bucket A members not sorted by descending net value: %v, %v",
			a.Positions[0].AssetName, a.Positions[1].AssetName)
	}

	b := buckets[1]
	if b.Category != "B" || b.Total != 100 || b.Percentage != 25 {
		t.Errorf("bucket B = {%s %v %v}, want {B 100 25}", b.Category, b.Total, b.Percentage)
	}
}

func TestGroup_EmptyInput(t *testing.T) {
	buckets := Group(nil, GroupOptions{})
	if len(buckets) != 0 {
		t.Fatalf("got %d buckets for empty input, want 0", len(buckets))
	}
}

func TestGroup_ZeroGrandTotal(t *testing.T) {
	positions := []domain.Position{
		{InvestmentType: "A", AssetName: "a1", PositionValue: 0},
	}
	buckets := Group(positions, GroupOptions{})
	if buckets[0].Percentage != 0 {
		t.Errorf("percentage = %v with zero grand total, want 0", buckets[0].Percentage)
	}
}

func TestGroup_MissingCategoryFallsBack(t *testing.T) {
	positions := []domain.Position{
		{AssetName: "orphan", PositionValue: 10},
	}
	buckets := Group(positions, GroupOptions{})
	if buckets[0].Category != "Outros" {
		t.Errorf("category = %q, want %q", buckets[0].Category, "Outros")
	}
}

func TestGroup_SplitCategoryFirst(t *testing.T) {
	positions := []domain.Position{
		{InvestmentType: "Renda Variável", AssetName: "stock", PositionValue: 900, NetValue: 900},
		{InvestmentType: "Tesouro Direto", SubType: "Selic", AssetName: "selic 2029", PositionValue: 60, NetValue: 60},
		{InvestmentType: "Tesouro Direto", SubType: "IPCA+", AssetName: "ipca 2035", PositionValue: 40, NetValue: 40},
	}

	buckets := Group(positions, GroupOptions{
		SplitCategories: map[string]bool{"Tesouro Direto": true},
	})

	// Split category leads even though its total is smaller.
	td := buckets[0]
	if td.Category != "Tesouro Direto" {
		t.Fatalf("first bucket = %q, want Tesouro Direto", td.Category)
	}
	if td.Total != 100 || td.Percentage != 10 {
		t.Errorf("Tesouro Direto = {total %v pct %v}, want {100 10}", td.Total, td.Percentage)
	}
	if len(td.Positions) != 0 {
		t.Errorf("split bucket carries %d flat members, want 0", len(td.Positions))
	}
	if len(td.SubBuckets) != 2 {
		t.Fatalf("got %d sub-buckets, want 2", len(td.SubBuckets))
	}
	if td.SubBuckets[0].Category != "Selic" || td.SubBuckets[0].Total != 60 {
		t.Errorf("sub-bucket[0] = {%s %v}, want {Selic 60}", td.SubBuckets[0].Category, td.SubBuckets[0].Total)
	}
	// Sub-bucket percentages are against the whole portfolio.
	if td.SubBuckets[0].Percentage != 6 {
		t.Errorf("Selic percentage = %v, want 6", td.SubBuckets[0].Percentage)
	}

	if buckets[1].Category != "Renda Variável" || buckets[1].Percentage != 90 {
		t.Errorf("second bucket = {%s %v}, want {Renda Variável 90}", buckets[1].Category, buckets[1].Percentage)
	}
}

func TestGroup_StableOrderOnTies(t *testing.T) {
	positions := []domain.Position{
		{InvestmentType: "A", AssetName: "first", PositionValue: 10, NetValue: 5},
		{InvestmentType: "A", AssetName: "second", PositionValue: 10, NetValue: 5},
		{InvestmentType: "A", AssetName: "third", PositionValue: 10, NetValue: 5},
	}
	buckets := Group(positions, GroupOptions{})
	got := []string{
		buckets[0].Positions[0].AssetName,
		buckets[0].Positions[1].AssetName,
		buckets[0].Positions[2].AssetName,
	}
	want := []string{"first", "second", "third"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tied members reordered: got %v, want %v", got, want)
	}
}

func TestMergeDuplicateFunds(t *testing.T) {
	positions := []domain.Position{
		{AssetName: "FII Alpha Imobiliário", Quantity: 10, AppliedValue: 100, PositionValue: 110, NetValue: 105, Price: 11, PriceDate: "2026-01-10"},
		{AssetName: "PETR4", Quantity: 5, AppliedValue: 50, PositionValue: 60, NetValue: 55},
		{AssetName: "fii alpha imobiliário", Quantity: 20, AppliedValue: 200, PositionValue: 220, NetValue: 210, Price: 12, PriceDate: "2026-02-01"},
	}

	merged := MergeDuplicateFunds(positions, nil)
	if len(merged) != 2 {
		t.Fatalf("got %d positions after merge, want 2", len(merged))
	}

	fund := merged[0]
	if fund.Quantity != 30 || fund.AppliedValue != 300 || fund.PositionValue != 330 || fund.NetValue != 315 {
		t.Errorf("merged fund sums = {%v %v %v %v}, want {30 300 330 315}",
			fund.Quantity, fund.AppliedValue, fund.PositionValue, fund.NetValue)
	}
	if fund.Price != 12 || fund.PriceDate != "2026-02-01" {
		t.Errorf("merged fund kept price %v@%s, want 12@2026-02-01", fund.Price, fund.PriceDate)
	}
	if merged[1].AssetName != "PETR4" {
		t.Errorf("non-fund entry displaced: %q", merged[1].AssetName)
	}
}

func TestMergeDuplicateFunds_KeepsEarlierPriceWhenNewer(t *testing.T) {
	positions := []domain.Position{
		{AssetName: "Fundo Beta", Price: 9, PriceDate: "2026-03-01", PositionValue: 10},
		{AssetName: "Fundo Beta", Price: 7, PriceDate: "2025-12-01", PositionValue: 10},
	}
	merged := MergeDuplicateFunds(positions, nil)
	if merged[0].Price != 9 || merged[0].PriceDate != "2026-03-01" {
		t.Errorf("stale price won: %v@%s", merged[0].Price, merged[0].PriceDate)
	}
}

func TestMergeDuplicateFunds_IgnoresNonFundCollisions(t *testing.T) {
	positions := []domain.Position{
		{AssetName: "PETR4", Quantity: 5},
		{AssetName: "PETR4", Quantity: 5},
	}
	merged := MergeDuplicateFunds(positions, nil)
	if len(merged) != 2 {
		t.Errorf("non-fund duplicates merged: got %d positions, want 2", len(merged))
	}
}

func TestMergeDuplicateFunds_Idempotent(t *testing.T) {
	positions := []domain.Position{
		{AssetName: "FII Alpha", Quantity: 1, PositionValue: 10, PriceDate: "2026-01-01"},
		{AssetName: "FII Alpha", Quantity: 2, PositionValue: 20, PriceDate: "2026-01-02"},
		{AssetName: "Fundo Beta", Quantity: 3, PositionValue: 30},
		{AssetName: "VALE3", Quantity: 4, PositionValue: 40},
	}
	once := MergeDuplicateFunds(positions, nil)
	twice := MergeDuplicateFunds(once, nil)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("merge not idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestExcludeEarnings(t *testing.T) {
	positions := []domain.Position{
		{AssetName: "PETR4"},
		{AssetName: "Rendimento FII Alpha"},
		{AssetName: "DIVIDENDO VALE3"},
		{AssetName: "Juros Sobre Capital Próprio ITUB4"},
		{AssetName: "HGLG11"},
	}
	got := ExcludeEarnings(positions, nil)
	if len(got) != 2 {
		t.Fatalf("got %d positions, want 2", len(got))
	}
	if got[0].AssetName != "PETR4" || got[1].AssetName != "HGLG11" {
		t.Errorf("wrong survivors: %q, %q", got[0].AssetName, got[1].AssetName)
	}
}

func TestGroup_PipelineWithPrePasses(t *testing.T) {
	positions := []domain.Position{
		{InvestmentType: "FII", AssetName: "FII Alpha", PositionValue: 100, NetValue: 100},
		{InvestmentType: "FII", AssetName: "FII Alpha", PositionValue: 100, NetValue: 100},
		{InvestmentType: "FII", AssetName: "Rendimento FII Alpha", PositionValue: 999, NetValue: 999},
		{InvestmentType: "Ações", AssetName: "PETR4", PositionValue: 200, NetValue: 200},
	}
	buckets := Group(positions, GroupOptions{MergeFunds: true, ExcludeEarnings: true})
	if len(buckets) != 2 {
		t.Fatalf("got %d buckets, want 2", len(buckets))
	}
	// Earnings row excluded from the grand total, duplicates merged.
	for _, b := range buckets {
		switch b.Category {
		case "FII":
			if b.Total != 200 || b.Percentage != 50 || len(b.Positions) != 1 {
				t.Errorf("FII bucket = {total %v pct %v members %d}, want {200 50 1}",
					b.Total, b.Percentage, len(b.Positions))
			}
		case "Ações":
			if b.Total != 200 || b.Percentage != 50 {
				t.Errorf("Ações bucket = {total %v pct %v}, want {200 50}", b.Total, b.Percentage)
			}
		default:
			t.Errorf("unexpected bucket %q", b.Category)
		}
	}
}

func TestGroup_DoesNotMutateInput(t *testing.T) {
	positions := []domain.Position{
		{InvestmentType: "A", AssetName: "low", PositionValue: 10, NetValue: 1},
		{InvestmentType: "A", AssetName: "high", PositionValue: 10, NetValue: 2},
	}
	Group(positions, GroupOptions{})
	if positions[0].AssetName != "low" || positions[1].AssetName != "high" {
		t.Errorf("input slice mutated: %v", positions)
	}
}
