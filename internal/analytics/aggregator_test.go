package analytics

import (
	"testing"
	"time"

	"github.com/davrd/treelink/internal/repo"
)

func click(day int, country, city, deviceType, browser, os, referrer string) *repo.Click {
	ts := time.Date(2026, 8, day, 12, 0, 0, 0, time.UTC)
	return &repo.Click{
		TreeID:    "t1",
		LinkID:    "l1",
		Timestamp: repo.Date(ts),
		Device:    repo.Device{Type: deviceType, Browser: browser, OS: os},
		Location:  repo.Location{Country: country, City: city},
		Referrer:  referrer,
	}
}

func TestFoldConversionRate(t *testing.T) {
	tests := []struct {
		name   string
		total  int64
		unique int64
		want   string
	}{
		{"zero clicks", 0, 0, "0%"},
		{"half unique", 10, 5, "50.00%"},
		{"third unique", 3, 1, "33.33%"},
		{"all unique", 4, 4, "100.00%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := &repo.Tree{TotalClicks: tt.total, UniqueVisitors: tt.unique}
			metrics := Fold(tree, nil, nil)
			if metrics.Overview.ConversionRate != tt.want {
				t.Errorf("ConversionRate = %q, want %q", metrics.Overview.ConversionRate, tt.want)
			}
		})
	}
}

func TestFoldGroupsSumToWindowCount(t *testing.T) {
	clicks := []*repo.Click{
		click(1, "Netherlands", "Amsterdam", "desktop", "Chrome", "Windows", "direct"),
		click(1, "Netherlands", "Rotterdam", "mobile", "Safari", "iOS", "https://twitter.com"),
		click(2, "Germany", "Berlin", "desktop", "Firefox", "Linux", "direct"),
		click(2, "", "", "", "", "", ""),
	}

	metrics := Fold(&repo.Tree{TotalClicks: 4}, nil, clicks)

	sum := func(counts []TypeCount) int64 {
		var total int64
		for _, c := range counts {
			total += c.Count
		}
		return total
	}
	if got := sum(metrics.Devices.Types); got != int64(len(clicks)) {
		t.Errorf("device type counts sum to %d, want %d", got, len(clicks))
	}

	var countrySum int64
	for _, c := range metrics.Geography.Countries {
		countrySum += c.Count
	}
	if countrySum != int64(len(clicks)) {
		t.Errorf("country counts sum to %d, want %d", countrySum, len(clicks))
	}

	var referrerSum int64
	for _, r := range metrics.Referrers {
		referrerSum += r.Count
	}
	if referrerSum != int64(len(clicks)) {
		t.Errorf("referrer counts sum to %d, want %d", referrerSum, len(clicks))
	}
}

func TestFoldMissingFieldsLabeledUnknown(t *testing.T) {
	metrics := Fold(nil, nil, []*repo.Click{click(1, "", "", "", "", "", "")})

	if len(metrics.Geography.Countries) != 1 || metrics.Geography.Countries[0].Name != "Unknown" {
		t.Errorf("Countries = %+v, want one Unknown entry", metrics.Geography.Countries)
	}
	if len(metrics.Devices.Types) != 1 || metrics.Devices.Types[0].Type != "Unknown" {
		t.Errorf("Types = %+v, want one Unknown entry", metrics.Devices.Types)
	}
	if len(metrics.Referrers) != 1 || metrics.Referrers[0].Source != "direct" {
		t.Errorf("Referrers = %+v, want one direct entry", metrics.Referrers)
	}
}

func TestFoldOrdering(t *testing.T) {
	clicks := []*repo.Click{
		click(3, "Germany", "Berlin", "desktop", "Chrome", "Windows", "direct"),
		click(1, "Netherlands", "Amsterdam", "mobile", "Safari", "iOS", "direct"),
		click(1, "Netherlands", "Amsterdam", "mobile", "Safari", "iOS", "direct"),
		click(2, "Netherlands", "Utrecht", "mobile", "Chrome", "Android", "https://news.ycombinator.com"),
	}

	metrics := Fold(nil, nil, clicks)

	dates := metrics.TimeSeries.ClicksByDate
	if len(dates) != 3 {
		t.Fatalf("date buckets = %d, want 3", len(dates))
	}
	for i := 1; i < len(dates); i++ {
		if dates[i-1].Date >= dates[i].Date {
			t.Errorf("time series not ascending: %q before %q", dates[i-1].Date, dates[i].Date)
		}
	}
	if dates[0].Date != "2026-08-01" || dates[0].Count != 2 {
		t.Errorf("first bucket = %+v, want 2026-08-01 with 2 clicks", dates[0])
	}

	countries := metrics.Geography.Countries
	if countries[0].Name != "Netherlands" || countries[0].Count != 3 {
		t.Errorf("top country = %+v, want Netherlands with 3", countries[0])
	}

	types := metrics.Devices.Types
	if types[0].Type != "mobile" || types[0].Count != 3 {
		t.Errorf("top device type = %+v, want mobile with 3", types[0])
	}
}

func TestFoldLinkPerformanceFromCounters(t *testing.T) {
	links := []*repo.Link{
		{ID: "l1", Title: "Blog", ClickCount: 5, UniqueClickCount: 2},
		{ID: "l2", Title: "Shop", ClickCount: 12, UniqueClickCount: 8},
		{ID: "l3", Title: "Contact", ClickCount: 1, UniqueClickCount: 1},
	}

	metrics := Fold(nil, links, nil)

	if len(metrics.Links) != 3 {
		t.Fatalf("link entries = %d, want 3", len(metrics.Links))
	}
	if metrics.Links[0].ID != "l2" {
		t.Errorf("top link = %q, want l2 (most clicks)", metrics.Links[0].ID)
	}
	if metrics.Links[0].Clicks != 12 || metrics.Links[0].UniqueClicks != 8 {
		t.Errorf("top link counters = %+v, want stored counters 12/8", metrics.Links[0])
	}
}

func TestFoldEmptySnapshot(t *testing.T) {
	metrics := Fold(nil, nil, nil)

	if metrics.Overview.TotalClicks != 0 || metrics.Overview.ConversionRate != "0%" {
		t.Errorf("overview = %+v, want zeroed", metrics.Overview)
	}
	if len(metrics.TimeSeries.ClicksByDate) != 0 {
		t.Errorf("time series = %+v, want empty", metrics.TimeSeries.ClicksByDate)
	}
}
