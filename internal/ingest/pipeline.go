package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/davrd/treelink/internal/enrich"
	"github.com/davrd/treelink/internal/repo"
)

// Pipeline is the best-effort attribution path: identity resolution,
// enrichment, event build, ledger commit. It runs after the redirect response
// is already decided; every failure in here is logged and swallowed.
type Pipeline struct {
	identity *IdentityResolver
	geo      *enrich.GeoClient
	ledger   *repo.Ledger
	timeout  time.Duration
}

func NewPipeline(identity *IdentityResolver, geo *enrich.GeoClient, ledger *repo.Ledger, timeout time.Duration) *Pipeline {
	return &Pipeline{
		identity: identity,
		geo:      geo,
		ledger:   ledger,
		timeout:  timeout,
	}
}

// Dispatch runs the pipeline in its own goroutine with its own deadline,
// detached from the request context. The caller does not wait: the visitor is
// already being redirected.
func (p *Pipeline) Dispatch(link *repo.Link, req Request) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		if err := p.Record(ctx, link, req); err != nil {
			log.Error().Err(err).
				Str("tree_id", req.TreeID).
				Str("link_id", req.LinkID).
				Msg("failed to record click")
		}
	}()
}

// Record runs the pipeline synchronously. Enrichment steps degrade on their
// own; the only error that can come back is a failed ledger commit or a
// fingerprint store read failure, and the caller treats both as loggable
// losses, never as request failures.
func (p *Pipeline) Record(ctx context.Context, link *repo.Link, req Request) error {
	now := repo.Date(time.Now().UTC())

	resolution, fingerprintOp, err := p.identity.Resolve(ctx, req.Fingerprint, now, req.IPAddress, req.UserAgent)
	if err != nil {
		// Identity degrades to "failed"; the click itself is still worth
		// keeping.
		log.Warn().Err(err).Str("tree_id", req.TreeID).Msg("identity resolution failed")
	}

	device := enrich.ParseUserAgent(req.UserAgent)
	location := p.geo.Lookup(ctx, req.IPAddress)

	click, deltas := BuildEvent(link, req, now, device, location, resolution)

	return p.ledger.Commit(ctx, click, fingerprintOp, deltas)
}
