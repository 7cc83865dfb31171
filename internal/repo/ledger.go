package repo

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/rs/zerolog/log"
)

// CounterDeltas are the relative increments one click implies. They are
// applied as SQL expressions so concurrent clicks never lose an increment.
type CounterDeltas struct {
	LinkClicks         int64
	LinkUniqueClicks   int64
	TreeClicks         int64
	TreeUniqueVisitors int64
}

// FingerprintOp describes the at-most-one fingerprint write that rides along
// with a click commit. Create inserts a fresh record; otherwise RecordID is
// touched (last seen + visit count).
type FingerprintOp struct {
	Create    bool
	RecordID  int64
	VisitorID string
	IPAddress string
	UserAgent string
	Seen      Date
}

// Ledger commits a click event, its optional fingerprint write, and the
// counter increments as one transaction. Either everything lands or nothing
// does.
type Ledger struct {
	db *sql.DB
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) Commit(ctx context.Context, click *Click, op *FingerprintOp, deltas CounterDeltas) error {
	executor := goqu.New("sqlite", l.db)

	tx, err := executor.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	err = tx.Wrap(func() error {
		if err := insertClick(ctx, tx, click); err != nil {
			return err
		}

		if op != nil {
			if err := applyFingerprintOp(ctx, tx, op); err != nil {
				return err
			}
		}

		linkUpdate := tx.Update("links").
			Set(goqu.Record{
				"click_count":        goqu.L("click_count + ?", deltas.LinkClicks),
				"unique_click_count": goqu.L("unique_click_count + ?", deltas.LinkUniqueClicks),
			}).
			Where(goqu.Ex{"id": click.LinkID, "tree_id": click.TreeID})
		if _, err := linkUpdate.Executor().ExecContext(ctx); err != nil {
			return err
		}

		treeUpdate := tx.Update("trees").
			Set(goqu.Record{
				"total_clicks":    goqu.L("total_clicks + ?", deltas.TreeClicks),
				"unique_visitors": goqu.L("unique_visitors + ?", deltas.TreeUniqueVisitors),
			}).
			Where(goqu.Ex{"id": click.TreeID})
		if _, err := treeUpdate.Executor().ExecContext(ctx); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		log.Error().Err(err).
			Str("tree_id", click.TreeID).
			Str("link_id", click.LinkID).
			Msg("ledger commit failed")
		return err
	}

	log.Debug().
		Str("tree_id", click.TreeID).
		Str("link_id", click.LinkID).
		Bool("unique", click.IsUnique).
		Msg("click committed")

	return nil
}

func insertClick(ctx context.Context, tx *goqu.TxDatabase, click *Click) error {
	record := goqu.Record{
		"tree_id":         click.TreeID,
		"link_id":         click.LinkID,
		"timestamp":       click.Timestamp,
		"is_unique":       click.IsUnique,
		"fingerprint_id":  click.FingerprintID,
		"ip_address":      click.IPAddress,
		"user_agent":      click.UserAgent,
		"device_type":     click.Device.Type,
		"browser":         click.Device.Browser,
		"os":              click.Device.OS,
		"vendor":          click.Device.Vendor,
		"model":           click.Device.Model,
		"cpu":             click.Device.CPU,
		"country":         click.Location.Country,
		"country_code":    click.Location.CountryCode,
		"region":          click.Location.Region,
		"city":            click.Location.City,
		"zip":             click.Location.Zip,
		"timezone":        click.Location.Timezone,
		"isp":             click.Location.ISP,
		"org":             click.Location.Org,
		"asn":             click.Location.ASN,
		"connection":      click.Network.Connection,
		"accept_language": click.Network.AcceptLanguage,
		"do_not_track":    click.Network.DoNotTrack,
		"link_title":      click.LinkTitle,
		"link_type":       click.LinkType,
		"referrer":        click.Referrer,
	}

	if click.Location.Coordinates != nil {
		record["latitude"] = click.Location.Coordinates.Latitude
		record["longitude"] = click.Location.Coordinates.Longitude
	}

	_, err := tx.Insert("clicks").Rows(record).Executor().ExecContext(ctx)
	return err
}

func applyFingerprintOp(ctx context.Context, tx *goqu.TxDatabase, op *FingerprintOp) error {
	if op.Create {
		insert := tx.Insert("fingerprints").Rows(goqu.Record{
			"visitor_id":  op.VisitorID,
			"first_seen":  op.Seen,
			"last_seen":   op.Seen,
			"visit_count": 1,
			"ip_address":  op.IPAddress,
			"user_agent":  op.UserAgent,
		})
		_, err := insert.Executor().ExecContext(ctx)
		return err
	}

	update := tx.Update("fingerprints").
		Set(goqu.Record{
			"last_seen":   op.Seen,
			"visit_count": goqu.L("visit_count + 1"),
			"ip_address":  op.IPAddress,
			"user_agent":  op.UserAgent,
		}).
		Where(goqu.Ex{"id": op.RecordID})
	_, err := update.Executor().ExecContext(ctx)
	return err
}
