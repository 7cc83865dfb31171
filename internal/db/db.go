package db

import (
	"context"
	"database/sql"
	"net/url"
	"sync"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

var (
	instance *sql.DB
	once     sync.Once
)

func Init(ctx context.Context, dbPath string) (*sql.DB, error) {
	dsn := formatDBPath(dbPath)
	var err error
	once.Do(func() {
		instance, err = sql.Open("sqlite", dsn)
		if err != nil {
			log.Error().Err(err).Msg("failed to open database")
			return
		}

		err = instance.PingContext(ctx)
		if err != nil {
			log.Error().Err(err).Msg("failed to ping database")
			return
		}

		log.Debug().Msg("database connection successful")

		err = Migrate(ctx, instance)
		if err != nil {
			log.Error().Err(err).Msg("failed to run migrations")
		} else {
			log.Info().Msg("migrations completed successfully")
		}
	})
	return instance, err
}

func formatDBPath(path string) string {
	// Add pragmas for better performance and safety
	// See: https://pkg.go.dev/modernc.org/sqlite#pkg-overview
	params := url.Values{}
	params.Set("cache", "shared")
	params.Set("mode", "rwc")
	params.Set("_time_format", "sqlite")
	params.Set("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "synchronous(NORMAL)")
	params.Set("_busy_timeout", "5000")

	return "file:" + path + "?" + params.Encode()
}

func Migrate(ctx context.Context, db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS trees (
		id TEXT PRIMARY KEY,
		slug TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		styles TEXT NOT NULL DEFAULT '{}',
		logo_url TEXT NOT NULL DEFAULT '',
		total_clicks INTEGER NOT NULL DEFAULT 0,
		unique_visitors INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS links (
		id TEXT PRIMARY KEY,
		tree_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		value TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT 'url',
		position INTEGER NOT NULL DEFAULT 0,
		click_count INTEGER NOT NULL DEFAULT 0,
		unique_click_count INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS fingerprints (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		visitor_id TEXT NOT NULL,
		first_seen TEXT NOT NULL,
		last_seen TEXT NOT NULL,
		visit_count INTEGER NOT NULL DEFAULT 1,
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS clicks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tree_id TEXT NOT NULL,
		link_id TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		is_unique INTEGER NOT NULL DEFAULT 0,
		fingerprint_id TEXT NOT NULL,
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		device_type TEXT NOT NULL DEFAULT 'desktop',
		browser TEXT NOT NULL DEFAULT 'Unknown',
		os TEXT NOT NULL DEFAULT 'Unknown',
		vendor TEXT NOT NULL DEFAULT 'Unknown',
		model TEXT NOT NULL DEFAULT 'Unknown',
		cpu TEXT NOT NULL DEFAULT 'Unknown',
		country TEXT NOT NULL DEFAULT 'Unknown',
		country_code TEXT NOT NULL DEFAULT 'XX',
		region TEXT NOT NULL DEFAULT 'Unknown',
		city TEXT NOT NULL DEFAULT 'Unknown',
		zip TEXT NOT NULL DEFAULT 'Unknown',
		latitude REAL,
		longitude REAL,
		timezone TEXT NOT NULL DEFAULT 'Unknown',
		isp TEXT NOT NULL DEFAULT 'Unknown',
		org TEXT NOT NULL DEFAULT 'Unknown',
		asn TEXT NOT NULL DEFAULT 'Unknown',
		connection TEXT NOT NULL DEFAULT '',
		accept_language TEXT NOT NULL DEFAULT '',
		do_not_track TEXT NOT NULL DEFAULT '0',
		link_title TEXT NOT NULL DEFAULT '',
		link_type TEXT NOT NULL DEFAULT 'url',
		referrer TEXT NOT NULL DEFAULT 'direct'
	);

	CREATE INDEX IF NOT EXISTS idx_trees_slug ON trees(slug);
	CREATE INDEX IF NOT EXISTS idx_links_tree_id ON links(tree_id, position);
	CREATE INDEX IF NOT EXISTS idx_fingerprints_visitor_id ON fingerprints(visitor_id);
	CREATE INDEX IF NOT EXISTS idx_clicks_tree_id ON clicks(tree_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_clicks_link_id ON clicks(link_id);
	`

	_, err := db.ExecContext(ctx, schema)
	return err
}
