package ingest

import (
	"github.com/davrd/treelink/internal/repo"
)

// Request carries everything the pipeline needs from the inbound HTTP
// request, so the best-effort path never touches the echo context after the
// redirect response is written.
type Request struct {
	TreeID         string
	LinkID         string
	IPAddress      string
	UserAgent      string
	Referrer       string
	Connection     string
	AcceptLanguage string
	DoNotTrack     string
	Fingerprint    *FingerprintPayload
}

// BuildEvent composes the immutable click record and the counter deltas it
// implies. Pure: no I/O, no clock reads.
func BuildEvent(link *repo.Link, req Request, timestamp repo.Date, device repo.Device, location repo.Location, res Resolution) (*repo.Click, repo.CounterDeltas) {
	fingerprintID := repo.FingerprintFailed
	if res.Outcome != OutcomeUnavailable {
		fingerprintID = res.VisitorID
	}

	referrer := req.Referrer
	if referrer == "" {
		referrer = "direct"
	}

	doNotTrack := req.DoNotTrack
	if doNotTrack == "" {
		doNotTrack = "0"
	}

	click := &repo.Click{
		TreeID:        req.TreeID,
		LinkID:        link.ID,
		Timestamp:     timestamp,
		IsUnique:      res.Outcome == OutcomeNew,
		FingerprintID: fingerprintID,
		IPAddress:     req.IPAddress,
		UserAgent:     req.UserAgent,
		Device:        device,
		Location:      location,
		Network: repo.Network{
			Connection:     req.Connection,
			AcceptLanguage: req.AcceptLanguage,
			DoNotTrack:     doNotTrack,
		},
		LinkTitle: link.Title,
		LinkType:  link.Type,
		Referrer:  referrer,
	}

	deltas := repo.CounterDeltas{
		LinkClicks: 1,
		TreeClicks: 1,
	}
	if click.IsUnique {
		deltas.LinkUniqueClicks = 1
		deltas.TreeUniqueVisitors = 1
	}

	return click, deltas
}
