package ingest

import (
	"context"

	"github.com/davrd/treelink/internal/repo"
)

// FingerprintPayload is the client-supplied identity blob. The client library
// producing it is opaque to us; we only care about the visitor id and whether
// generation failed on the client side.
type FingerprintPayload struct {
	VisitorID string `json:"visitorId"`
	Error     string `json:"error"`
}

type Outcome int

const (
	// OutcomeUnavailable means no usable identity: the event records the
	// "failed" sentinel and never counts as unique.
	OutcomeUnavailable Outcome = iota
	OutcomeNew
	OutcomeReturning
)

type Resolution struct {
	Outcome   Outcome
	VisitorID string
}

// IdentityResolver decides whether a click belongs to a new or returning
// visitor. It only reads; the fingerprint write it implies is returned as an
// op for the ledger to fold into the click's transaction.
type IdentityResolver struct {
	fingerprints *repo.FingerprintsRepo
}

func NewIdentityResolver(fingerprints *repo.FingerprintsRepo) *IdentityResolver {
	return &IdentityResolver{fingerprints: fingerprints}
}

func (r *IdentityResolver) Resolve(ctx context.Context, payload *FingerprintPayload, now repo.Date, ipAddress, userAgent string) (Resolution, *repo.FingerprintOp, error) {
	if payload == nil || payload.Error != "" || payload.VisitorID == "" {
		return Resolution{Outcome: OutcomeUnavailable}, nil, nil
	}

	existing, err := r.fingerprints.GetByVisitorID(ctx, payload.VisitorID)
	if err != nil {
		return Resolution{Outcome: OutcomeUnavailable}, nil, err
	}

	if existing == nil {
		op := &repo.FingerprintOp{
			Create:    true,
			VisitorID: payload.VisitorID,
			IPAddress: ipAddress,
			UserAgent: userAgent,
			Seen:      now,
		}
		return Resolution{Outcome: OutcomeNew, VisitorID: payload.VisitorID}, op, nil
	}

	op := &repo.FingerprintOp{
		RecordID:  existing.ID,
		VisitorID: payload.VisitorID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Seen:      now,
	}
	return Resolution{Outcome: OutcomeReturning, VisitorID: payload.VisitorID}, op, nil
}
