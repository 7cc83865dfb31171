package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/davrd/treelink/internal"
	"github.com/davrd/treelink/internal/repo"
)

// WindowDays bounds how far back the aggregator reads raw click events.
// Link and tree totals come from stored counters instead, so they cover the
// full lifetime regardless of the window.
const WindowDays = 30

type Overview struct {
	TotalClicks    int64  `json:"totalClicks"`
	UniqueVisitors int64  `json:"uniqueVisitors"`
	ConversionRate string `json:"conversionRate"`
}

type DateCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type TimeSeries struct {
	ClicksByDate []DateCount `json:"clicksByDate"`
}

type NameCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

type Geography struct {
	Countries []NameCount `json:"countries"`
	Cities    []NameCount `json:"cities"`
}

type TypeCount struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

type BrowserCount struct {
	Browser string `json:"browser"`
	Count   int64  `json:"count"`
}

type OSCount struct {
	OS    string `json:"os"`
	Count int64  `json:"count"`
}

type Devices struct {
	Types            []TypeCount    `json:"types"`
	Browsers         []BrowserCount `json:"browsers"`
	OperatingSystems []OSCount      `json:"operatingSystems"`
}

type SourceCount struct {
	Source string `json:"source"`
	Count  int64  `json:"count"`
}

type LinkPerformance struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Clicks       int64  `json:"clicks"`
	UniqueClicks int64  `json:"uniqueClicks"`
}

type Metrics struct {
	Overview   Overview          `json:"overview"`
	TimeSeries TimeSeries        `json:"timeSeries"`
	Geography  Geography         `json:"geography"`
	Devices    Devices           `json:"devices"`
	Referrers  []SourceCount     `json:"referrers"`
	Links      []LinkPerformance `json:"links"`
}

// Aggregator folds stored counters and the recent event window into dashboard
// metrics. Reads only; safe to run at any time relative to writers.
type Aggregator struct {
	trees  *repo.TreesRepo
	links  *repo.LinksRepo
	clicks *repo.ClicksRepo
}

func NewAggregator(trees *repo.TreesRepo, links *repo.LinksRepo, clicks *repo.ClicksRepo) *Aggregator {
	return &Aggregator{trees: trees, links: links, clicks: clicks}
}

func (a *Aggregator) ForTree(ctx context.Context, treeID string) (*Metrics, error) {
	tree, err := a.trees.Get(ctx, treeID)
	if err != nil && !errors.Is(err, internal.ErrTreeNotFound) {
		return nil, err
	}

	links, err := a.links.ListByTree(ctx, treeID)
	if err != nil {
		return nil, err
	}

	since := repo.Date(time.Now().UTC().AddDate(0, 0, -WindowDays))
	clicks, err := a.clicks.ListByTreeSince(ctx, treeID, since)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("tree_id", treeID).
		Int("links", len(links)).
		Int("clicks", len(clicks)).
		Msg("aggregating analytics window")

	return Fold(tree, links, clicks), nil
}

// Fold is the pure aggregation over an already-loaded snapshot. A nil tree
// yields zeroed overview counters rather than an error.
func Fold(tree *repo.Tree, links []*repo.Link, clicks []*repo.Click) *Metrics {
	byDate := map[string]int64{}
	countries := map[string]int64{}
	cities := map[string]int64{}
	deviceTypes := map[string]int64{}
	browsers := map[string]int64{}
	operatingSystems := map[string]int64{}
	referrers := map[string]int64{}

	for _, click := range clicks {
		date := click.Timestamp.Time().UTC().Format("2006-01-02")
		byDate[date]++
		countries[label(click.Location.Country)]++
		cities[label(click.Location.City)]++
		deviceTypes[label(click.Device.Type)]++
		browsers[label(click.Device.Browser)]++
		operatingSystems[label(click.Device.OS)]++

		referrer := click.Referrer
		if referrer == "" {
			referrer = "direct"
		}
		referrers[referrer]++
	}

	var totalClicks, uniqueVisitors int64
	if tree != nil {
		totalClicks = tree.TotalClicks
		uniqueVisitors = tree.UniqueVisitors
	}

	performance := lo.Map(links, func(link *repo.Link, _ int) LinkPerformance {
		return LinkPerformance{
			ID:           link.ID,
			Title:        link.Title,
			Clicks:       link.ClickCount,
			UniqueClicks: link.UniqueClickCount,
		}
	})
	sort.SliceStable(performance, func(i, j int) bool {
		return performance[i].Clicks > performance[j].Clicks
	})

	return &Metrics{
		Overview: Overview{
			TotalClicks:    totalClicks,
			UniqueVisitors: uniqueVisitors,
			ConversionRate: conversionRate(uniqueVisitors, totalClicks),
		},
		TimeSeries: TimeSeries{ClicksByDate: dateSeries(byDate)},
		Geography: Geography{
			Countries: nameCounts(countries),
			Cities:    nameCounts(cities),
		},
		Devices: Devices{
			Types: mapCounts(deviceTypes, func(name string, count int64) TypeCount {
				return TypeCount{Type: name, Count: count}
			}),
			Browsers: mapCounts(browsers, func(name string, count int64) BrowserCount {
				return BrowserCount{Browser: name, Count: count}
			}),
			OperatingSystems: mapCounts(operatingSystems, func(name string, count int64) OSCount {
				return OSCount{OS: name, Count: count}
			}),
		},
		Referrers: mapCounts(referrers, func(name string, count int64) SourceCount {
			return SourceCount{Source: name, Count: count}
		}),
		Links: performance,
	}
}

func conversionRate(unique, total int64) string {
	if total == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", float64(unique)/float64(total)*100)
}

// label keeps every event countable: a missing sub-field still lands in a
// group, so group totals always sum to the window's event count.
func label(value string) string {
	if value == "" {
		return "Unknown"
	}
	return value
}

func dateSeries(byDate map[string]int64) []DateCount {
	series := lo.MapToSlice(byDate, func(date string, count int64) DateCount {
		return DateCount{Date: date, Count: count}
	})
	sort.Slice(series, func(i, j int) bool {
		return series[i].Date < series[j].Date
	})
	return series
}

func nameCounts(counts map[string]int64) []NameCount {
	return mapCounts(counts, func(name string, count int64) NameCount {
		return NameCount{Name: name, Count: count}
	})
}

type counted interface {
	NameCount | TypeCount | BrowserCount | OSCount | SourceCount
}

// mapCounts turns a counter map into a slice sorted descending by count, with
// the key as a stable tiebreaker.
func mapCounts[T counted](counts map[string]int64, build func(string, int64) T) []T {
	keys := lo.Keys(counts)
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return lo.Map(keys, func(key string, _ int) T {
		return build(key, counts[key])
	})
}
