package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/davrd/treelink/internal/analytics"
	"github.com/davrd/treelink/internal/enrich"
	"github.com/davrd/treelink/internal/ingest"
	"github.com/davrd/treelink/internal/repo"
)

func TestGetTreeAnalytics(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t, "handler_analytics")

	trees := repo.NewTreesRepo(conn)
	links := repo.NewLinksRepo(conn)
	clicks := repo.NewClicksRepo(conn)
	fingerprints := repo.NewFingerprintsRepo(conn)
	ledger := repo.NewLedger(conn)

	tree, err := trees.Create(ctx, "analytics-tree", "Analytics", repo.DefaultStyles())
	if err != nil {
		t.Fatalf("failed to create tree: %v", err)
	}
	link, err := links.Create(ctx, tree.ID, "Example", "https://example.com", "url")
	if err != nil {
		t.Fatalf("failed to create link: %v", err)
	}

	geo := enrich.NewGeoClient("http://invalid.invalid", 100*time.Millisecond)
	pipeline := ingest.NewPipeline(ingest.NewIdentityResolver(fingerprints), geo, ledger, time.Second)

	// Two clicks, one visitor: one unique, one repeat.
	request := ingest.Request{
		TreeID:      tree.ID,
		LinkID:      link.ID,
		IPAddress:   "127.0.0.1",
		UserAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		Fingerprint: &ingest.FingerprintPayload{VisitorID: "v1"},
	}
	for i := 0; i < 2; i++ {
		if err := pipeline.Record(ctx, link, request); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	e := echo.New()
	e.GET("/api/trees/:id/analytics", NewAnalyticsHandler(analytics.NewAggregator(trees, links, clicks)).GetTreeAnalytics)

	req := httptest.NewRequest(http.MethodGet, "/api/trees/"+tree.ID+"/analytics", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var metrics analytics.Metrics
	if err := json.Unmarshal(rec.Body.Bytes(), &metrics); err != nil {
		t.Fatalf("failed to decode metrics: %v", err)
	}

	if metrics.Overview.TotalClicks != 2 {
		t.Errorf("TotalClicks = %d, want 2", metrics.Overview.TotalClicks)
	}
	if metrics.Overview.UniqueVisitors != 1 {
		t.Errorf("UniqueVisitors = %d, want 1", metrics.Overview.UniqueVisitors)
	}
	if metrics.Overview.ConversionRate != "50.00%" {
		t.Errorf("ConversionRate = %q, want %q", metrics.Overview.ConversionRate, "50.00%")
	}
	if len(metrics.TimeSeries.ClicksByDate) != 1 || metrics.TimeSeries.ClicksByDate[0].Count != 2 {
		t.Errorf("ClicksByDate = %+v, want one bucket with 2 clicks", metrics.TimeSeries.ClicksByDate)
	}
	if len(metrics.Geography.Countries) != 1 || metrics.Geography.Countries[0].Name != "Development" {
		t.Errorf("Countries = %+v, want Development sentinel", metrics.Geography.Countries)
	}
	if len(metrics.Links) != 1 || metrics.Links[0].Clicks != 2 || metrics.Links[0].UniqueClicks != 1 {
		t.Errorf("Links = %+v, want one entry with 2/1", metrics.Links)
	}
}

func TestGetTreeAnalyticsUnknownTree(t *testing.T) {
	conn := newTestDB(t, "handler_analytics_empty")

	trees := repo.NewTreesRepo(conn)
	links := repo.NewLinksRepo(conn)
	clicks := repo.NewClicksRepo(conn)

	e := echo.New()
	e.GET("/api/trees/:id/analytics", NewAnalyticsHandler(analytics.NewAggregator(trees, links, clicks)).GetTreeAnalytics)

	req := httptest.NewRequest(http.MethodGet, "/api/trees/nonexistent/analytics", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with zeroed metrics", rec.Code)
	}

	var metrics analytics.Metrics
	if err := json.Unmarshal(rec.Body.Bytes(), &metrics); err != nil {
		t.Fatalf("failed to decode metrics: %v", err)
	}
	if metrics.Overview.TotalClicks != 0 || metrics.Overview.ConversionRate != "0%" {
		t.Errorf("overview = %+v, want zeroed", metrics.Overview)
	}
}
