package repo

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/rs/zerolog/log"
)

// Fingerprint is the durable record of one client-derived visitor identity.
// Records are only ever created or touched, never deleted.
type Fingerprint struct {
	ID         int64  `json:"id"`
	VisitorID  string `json:"visitorId"`
	FirstSeen  Date   `json:"firstSeen"`
	LastSeen   Date   `json:"lastSeen"`
	VisitCount int64  `json:"visitCount"`
	IPAddress  string `json:"ipAddress"`
	UserAgent  string `json:"userAgent"`
}

type fingerprintRow struct {
	ID         int64  `db:"id"`
	VisitorID  string `db:"visitor_id"`
	FirstSeen  Date   `db:"first_seen"`
	LastSeen   Date   `db:"last_seen"`
	VisitCount int64  `db:"visit_count"`
	IPAddress  string `db:"ip_address"`
	UserAgent  string `db:"user_agent"`
}

type FingerprintsRepo struct {
	db *sql.DB
}

func NewFingerprintsRepo(db *sql.DB) *FingerprintsRepo {
	return &FingerprintsRepo{db: db}
}

// GetByVisitorID returns the fingerprint for an identity value, or nil when
// the identity has never been seen.
func (r *FingerprintsRepo) GetByVisitorID(ctx context.Context, visitorID string) (*Fingerprint, error) {
	executor := goqu.New("sqlite", r.db)

	var row fingerprintRow
	found, err := executor.From("fingerprints").
		Where(goqu.Ex{"visitor_id": visitorID}).
		Limit(1).
		ScanStructContext(ctx, &row)
	if err != nil {
		log.Error().Err(err).Str("visitor_id", visitorID).Msg("failed to fetch fingerprint")
		return nil, err
	}

	if !found {
		return nil, nil
	}

	return row.toDomain(), nil
}

func (r *fingerprintRow) toDomain() *Fingerprint {
	return &Fingerprint{
		ID:         r.ID,
		VisitorID:  r.VisitorID,
		FirstSeen:  r.FirstSeen,
		LastSeen:   r.LastSeen,
		VisitCount: r.VisitCount,
		IPAddress:  r.IPAddress,
		UserAgent:  r.UserAgent,
	}
}
