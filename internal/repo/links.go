package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/davrd/treelink/internal"
)

type Link struct {
	ID               string `json:"id"`
	TreeID           string `json:"treeId"`
	Title            string `json:"title"`
	Value            string `json:"value"`
	Type             string `json:"type"`
	Position         int    `json:"position"`
	ClickCount       int64  `json:"clickCount"`
	UniqueClickCount int64  `json:"uniqueClickCount"`
	CreatedAt        Date   `json:"createdAt"`
	UpdatedAt        Date   `json:"updatedAt"`
}

type linkRow struct {
	ID               string `db:"id"`
	TreeID           string `db:"tree_id"`
	Title            string `db:"title"`
	Value            string `db:"value"`
	Type             string `db:"type"`
	Position         int    `db:"position"`
	ClickCount       int64  `db:"click_count"`
	UniqueClickCount int64  `db:"unique_click_count"`
	CreatedAt        Date   `db:"created_at"`
	UpdatedAt        Date   `db:"updated_at"`
}

type LinksRepo struct {
	db *sql.DB
}

func NewLinksRepo(db *sql.DB) *LinksRepo {
	return &LinksRepo{db: db}
}

func (r *LinksRepo) Create(ctx context.Context, treeID, title, value, linkType string) (*Link, error) {
	executor := goqu.New("sqlite", r.db)

	log.Debug().Str("tree_id", treeID).Str("title", title).Msg("creating link")

	if linkType == "" {
		linkType = "url"
	}

	// New links append to the end of the tree's ordering.
	var maxPos sql.NullInt64
	_, err := executor.From("links").Where(goqu.Ex{"tree_id": treeID}).
		Select(goqu.MAX("position").As("max_pos")).
		ScanValContext(ctx, &maxPos)
	if err != nil {
		return nil, err
	}

	position := 0
	if maxPos.Valid {
		position = int(maxPos.Int64) + 1
	}

	now := Date(time.Now().UTC())
	row := linkRow{
		ID:        uuid.NewString(),
		TreeID:    treeID,
		Title:     title,
		Value:     value,
		Type:      linkType,
		Position:  position,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := executor.Insert("links").
		Cols("id", "tree_id", "title", "value", "type", "position", "created_at", "updated_at").
		Vals([]any{row.ID, row.TreeID, row.Title, row.Value, row.Type, row.Position, row.CreatedAt, row.UpdatedAt})

	if _, err := query.Executor().ExecContext(ctx); err != nil {
		log.Error().Err(err).Str("tree_id", treeID).Msg("failed to create link")
		return nil, err
	}

	link := row.toDomain()
	log.Info().Str("id", link.ID).Str("tree_id", treeID).Int("position", position).Msg("link created successfully")

	return link, nil
}

func (r *LinksRepo) Get(ctx context.Context, treeID, linkID string) (*Link, error) {
	executor := goqu.New("sqlite", r.db)

	var row linkRow
	found, err := executor.From("links").
		Where(goqu.Ex{"id": linkID, "tree_id": treeID}).
		ScanStructContext(ctx, &row)
	if err != nil {
		log.Error().Err(err).Str("link_id", linkID).Msg("failed to fetch link")
		return nil, err
	}

	if !found {
		log.Debug().Str("tree_id", treeID).Str("link_id", linkID).Msg("link not found")
		return nil, internal.ErrLinkNotFound
	}

	return row.toDomain(), nil
}

func (r *LinksRepo) ListByTree(ctx context.Context, treeID string) ([]*Link, error) {
	executor := goqu.New("sqlite", r.db)

	var rows []linkRow
	err := executor.From("links").Where(goqu.Ex{"tree_id": treeID}).
		Order(goqu.C("position").Asc()).
		ScanStructsContext(ctx, &rows)
	if err != nil {
		return nil, err
	}

	links := make([]*Link, len(rows))
	for i, row := range rows {
		links[i] = row.toDomain()
	}

	return links, nil
}

func (r *LinksRepo) Update(ctx context.Context, treeID, linkID, title, value, linkType string) (*Link, error) {
	executor := goqu.New("sqlite", r.db)

	now := Date(time.Now().UTC())
	query := executor.Update("links").
		Set(goqu.Record{
			"title":      title,
			"value":      value,
			"type":       linkType,
			"updated_at": now,
		}).
		Where(goqu.Ex{"id": linkID, "tree_id": treeID})

	res, err := query.Executor().ExecContext(ctx)
	if err != nil {
		log.Error().Err(err).Str("link_id", linkID).Msg("failed to update link")
		return nil, err
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return nil, internal.ErrLinkNotFound
	}

	return r.Get(ctx, treeID, linkID)
}

func (r *LinksRepo) Delete(ctx context.Context, treeID, linkID string) error {
	executor := goqu.New("sqlite", r.db)

	res, err := executor.Delete("links").
		Where(goqu.Ex{"id": linkID, "tree_id": treeID}).
		Executor().ExecContext(ctx)
	if err != nil {
		log.Error().Err(err).Str("link_id", linkID).Msg("failed to delete link")
		return err
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return internal.ErrLinkNotFound
	}

	log.Info().Str("tree_id", treeID).Str("link_id", linkID).Msg("link deleted")
	return nil
}

// Reorder rewrites the position of every listed link in one transaction.
// Positions are a dense total order per tree, so a reorder is a bulk rewrite,
// not a pairwise swap.
func (r *LinksRepo) Reorder(ctx context.Context, treeID string, positions map[string]int) error {
	executor := goqu.New("sqlite", r.db)

	log.Debug().Str("tree_id", treeID).Int("links", len(positions)).Msg("reordering links")

	tx, err := executor.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	err = tx.Wrap(func() error {
		for linkID, position := range positions {
			query := tx.Update("links").
				Set(goqu.Record{"position": position}).
				Where(goqu.Ex{"id": linkID, "tree_id": treeID})

			if _, err := query.Executor().ExecContext(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("tree_id", treeID).Msg("failed to reorder links")
		return err
	}

	return nil
}

func (r *linkRow) toDomain() *Link {
	return &Link{
		ID:               r.ID,
		TreeID:           r.TreeID,
		Title:            r.Title,
		Value:            r.Value,
		Type:             r.Type,
		Position:         r.Position,
		ClickCount:       r.ClickCount,
		UniqueClickCount: r.UniqueClickCount,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}
