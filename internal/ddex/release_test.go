package ddex_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ddexer/internal/ddex"
)

func TestReleaseIDsKeyPrecedence(t *testing.T) {
	tests := []struct {
		name string
		ids  ddex.ReleaseIDs
		want string
	}{
		{"isrc wins", ddex.ReleaseIDs{ISRC: "USABC1", ICPN: "0001", GRid: "A1"}, "USABC1"},
		{"icpn before grid", ddex.ReleaseIDs{ICPN: "0001", GRid: "A1"}, "0001"},
		{"grid last", ddex.ReleaseIDs{GRid: "A1", ProprietaryID: "p"}, "A1"},
		{"blank isrc skipped", ddex.ReleaseIDs{ISRC: "  ", ICPN: "0002"}, "0002"},
		{"none", ddex.ReleaseIDs{ProprietaryID: "p"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ids.Key(); got != tt.want {
				t.Fatalf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestToGenre(t *testing.T) {
	tests := []struct {
		in   string
		want ddex.Genre
		ok   bool
	}{
		{"Electronic", "Electronic", true},
		{"  hip-hop/rap ", "Hip-Hop/Rap", true},
		{"Hip Hop", "Hip-Hop/Rap", true},
		{"R&B", "R&B/Soul", true},
		{"Dance", "Electronic", true},
		{"Polka", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ddex.ToGenre(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("ToGenre(%q) = %q,%v want %q,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}

	if g, ok := ddex.FirstGenre([]string{"Polka", "", "rock"}); !ok || g != "Rock" {
		t.Fatalf("FirstGenre = %q,%v", g, ok)
	}
}

func TestAddProblemDeduplicates(t *testing.T) {
	var r ddex.Release
	r.AddProblem(ddex.ProblemNoGenre)
	r.AddProblem(ddex.ProblemNoGenre)
	r.AddProblem(ddex.ProblemNoDeal)
	if len(r.Problems) != 2 {
		t.Fatalf("expected 2 problems, got %v", r.Problems)
	}
	if !r.HasProblem(ddex.ProblemNoDeal) || r.HasProblem(ddex.ProblemNoUser) {
		t.Fatalf("unexpected HasProblem results for %v", r.Problems)
	}
}

func TestDealActiveAtOpenBounds(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	d := ddex.Deal{Type: ddex.DealFree, ValidFrom: &start}
	if d.ActiveAt(start.Add(-time.Hour)) {
		t.Fatal("deal active before start")
	}
	if !d.ActiveAt(start.AddDate(5, 0, 0)) {
		t.Fatal("open end should stay active")
	}
	d.ValidUntil = &end
	if !d.ActiveAt(end.Add(12 * time.Hour)) {
		t.Fatal("deal should stay active through its end day")
	}
	if d.ActiveAt(end.AddDate(0, 0, 1)) {
		t.Fatal("deal active the day after end")
	}
}

func TestDealPriceCents(t *testing.T) {
	price := decimal.RequireFromString("4.00")
	d := ddex.Deal{Type: ddex.DealPayGated, PriceUSD: &price}
	if got := d.PriceCents(); got != 400 {
		t.Fatalf("PriceCents = %d, want 400", got)
	}
	if got := (ddex.Deal{}).PriceCents(); got != 0 {
		t.Fatalf("PriceCents without price = %d", got)
	}
}
