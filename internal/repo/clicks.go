package repo

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/rs/zerolog/log"
)

// FingerprintFailed is stored as the event identity when the client payload
// was missing or carried an error. Events with this identity never count as
// unique, but stay distinguishable from known repeat visitors.
const FingerprintFailed = "failed"

type Device struct {
	Type    string `json:"type"`
	Browser string `json:"browser"`
	OS      string `json:"os"`
	Vendor  string `json:"vendor"`
	Model   string `json:"model"`
	CPU     string `json:"cpu"`
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Location struct {
	Country     string       `json:"country"`
	CountryCode string       `json:"countryCode"`
	Region      string       `json:"region"`
	City        string       `json:"city"`
	Zip         string       `json:"zip"`
	Coordinates *Coordinates `json:"coordinates"`
	Timezone    string       `json:"timezone"`
	ISP         string       `json:"isp"`
	Org         string       `json:"org"`
	ASN         string       `json:"as"`
}

type Network struct {
	Connection     string `json:"connection"`
	AcceptLanguage string `json:"acceptLanguage"`
	DoNotTrack     string `json:"doNotTrack"`
}

// Click is one immutable redirect occurrence with its attribution metadata.
type Click struct {
	ID            int64    `json:"id"`
	TreeID        string   `json:"treeId"`
	LinkID        string   `json:"linkId"`
	Timestamp     Date     `json:"timestamp"`
	IsUnique      bool     `json:"isUnique"`
	FingerprintID string   `json:"fingerprintId"`
	IPAddress     string   `json:"ipAddress"`
	UserAgent     string   `json:"userAgent"`
	Device        Device   `json:"device"`
	Location      Location `json:"location"`
	Network       Network  `json:"network"`
	LinkTitle     string   `json:"linkTitle"`
	LinkType      string   `json:"linkType"`
	Referrer      string   `json:"referrer"`
}

type clickRow struct {
	ID             int64           `db:"id"`
	TreeID         string          `db:"tree_id"`
	LinkID         string          `db:"link_id"`
	Timestamp      Date            `db:"timestamp"`
	IsUnique       bool            `db:"is_unique"`
	FingerprintID  string          `db:"fingerprint_id"`
	IPAddress      string          `db:"ip_address"`
	UserAgent      string          `db:"user_agent"`
	DeviceType     string          `db:"device_type"`
	Browser        string          `db:"browser"`
	OS             string          `db:"os"`
	Vendor         string          `db:"vendor"`
	Model          string          `db:"model"`
	CPU            string          `db:"cpu"`
	Country        string          `db:"country"`
	CountryCode    string          `db:"country_code"`
	Region         string          `db:"region"`
	City           string          `db:"city"`
	Zip            string          `db:"zip"`
	Latitude       sql.NullFloat64 `db:"latitude"`
	Longitude      sql.NullFloat64 `db:"longitude"`
	Timezone       string          `db:"timezone"`
	ISP            string          `db:"isp"`
	Org            string          `db:"org"`
	ASN            string          `db:"asn"`
	Connection     string          `db:"connection"`
	AcceptLanguage string          `db:"accept_language"`
	DoNotTrack     string          `db:"do_not_track"`
	LinkTitle      string          `db:"link_title"`
	LinkType       string          `db:"link_type"`
	Referrer       string          `db:"referrer"`
}

type ClicksRepo struct {
	db *sql.DB
}

func NewClicksRepo(db *sql.DB) *ClicksRepo {
	return &ClicksRepo{db: db}
}

// ListByTreeSince returns the tree's events with a timestamp at or after the
// lower bound, newest first.
func (r *ClicksRepo) ListByTreeSince(ctx context.Context, treeID string, since Date) ([]*Click, error) {
	executor := goqu.New("sqlite", r.db)

	var rows []clickRow
	err := executor.From("clicks").
		Where(goqu.Ex{"tree_id": treeID}, goqu.C("timestamp").Gte(since)).
		Order(goqu.C("timestamp").Desc()).
		ScanStructsContext(ctx, &rows)
	if err != nil {
		log.Error().Err(err).Str("tree_id", treeID).Msg("failed to fetch clicks")
		return nil, err
	}

	clicks := make([]*Click, len(rows))
	for i, row := range rows {
		clicks[i] = row.toDomain()
	}

	return clicks, nil
}

func (r *clickRow) toDomain() *Click {
	click := &Click{
		ID:            r.ID,
		TreeID:        r.TreeID,
		LinkID:        r.LinkID,
		Timestamp:     r.Timestamp,
		IsUnique:      r.IsUnique,
		FingerprintID: r.FingerprintID,
		IPAddress:     r.IPAddress,
		UserAgent:     r.UserAgent,
		Device: Device{
			Type:    r.DeviceType,
			Browser: r.Browser,
			OS:      r.OS,
			Vendor:  r.Vendor,
			Model:   r.Model,
			CPU:     r.CPU,
		},
		Location: Location{
			Country:     r.Country,
			CountryCode: r.CountryCode,
			Region:      r.Region,
			City:        r.City,
			Zip:         r.Zip,
			Timezone:    r.Timezone,
			ISP:         r.ISP,
			Org:         r.Org,
			ASN:         r.ASN,
		},
		Network: Network{
			Connection:     r.Connection,
			AcceptLanguage: r.AcceptLanguage,
			DoNotTrack:     r.DoNotTrack,
		},
		LinkTitle: r.LinkTitle,
		LinkType:  r.LinkType,
		Referrer:  r.Referrer,
	}

	if r.Latitude.Valid && r.Longitude.Valid {
		click.Location.Coordinates = &Coordinates{
			Latitude:  r.Latitude.Float64,
			Longitude: r.Longitude.Float64,
		}
	}

	return click
}
