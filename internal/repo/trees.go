package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/davrd/treelink/internal"
)

// Styles is the page appearance config stored verbatim on the tree document.
type Styles struct {
	BackgroundColor       string `json:"backgroundColor"`
	TextColor             string `json:"textColor"`
	ButtonBackgroundColor string `json:"buttonBackgroundColor"`
	ButtonTextColor       string `json:"buttonTextColor"`
	FontFamily            string `json:"fontFamily"`
}

func DefaultStyles() Styles {
	return Styles{
		BackgroundColor:       "#ffffff",
		TextColor:             "#000000",
		ButtonBackgroundColor: "#4f46e5",
		ButtonTextColor:       "#ffffff",
		FontFamily:            "sans-serif",
	}
}

type Tree struct {
	ID             string `json:"id"`
	Slug           string `json:"slug"`
	Name           string `json:"name"`
	Styles         Styles `json:"styles"`
	LogoURL        string `json:"logoUrl"`
	TotalClicks    int64  `json:"totalClicks"`
	UniqueVisitors int64  `json:"uniqueVisitors"`
	CreatedAt      Date   `json:"createdAt"`
	UpdatedAt      Date   `json:"updatedAt"`
}

type treeRow struct {
	ID             string `db:"id"`
	Slug           string `db:"slug"`
	Name           string `db:"name"`
	Styles         string `db:"styles"`
	LogoURL        string `db:"logo_url"`
	TotalClicks    int64  `db:"total_clicks"`
	UniqueVisitors int64  `db:"unique_visitors"`
	CreatedAt      Date   `db:"created_at"`
	UpdatedAt      Date   `db:"updated_at"`
}

type TreesRepo struct {
	db *sql.DB
}

func NewTreesRepo(db *sql.DB) *TreesRepo {
	return &TreesRepo{db: db}
}

func (r *TreesRepo) Create(ctx context.Context, slug, name string, styles Styles) (*Tree, error) {
	executor := goqu.New("sqlite", r.db)

	log.Debug().Str("slug", slug).Msg("creating tree")

	now := Date(time.Now().UTC())
	stylesJSON, err := json.Marshal(styles)
	if err != nil {
		return nil, err
	}

	row := treeRow{
		ID:        uuid.NewString(),
		Slug:      slug,
		Name:      name,
		Styles:    string(stylesJSON),
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := executor.Insert("trees").
		Cols("id", "slug", "name", "styles", "logo_url", "created_at", "updated_at").
		Vals([]any{row.ID, row.Slug, row.Name, row.Styles, row.LogoURL, row.CreatedAt, row.UpdatedAt})

	if _, err := query.Executor().ExecContext(ctx); err != nil {
		log.Error().Err(err).Str("slug", slug).Msg("failed to create tree")
		return nil, err
	}

	tree := row.toDomain()
	log.Info().Str("id", tree.ID).Str("slug", tree.Slug).Msg("tree created successfully")

	return tree, nil
}

func (r *TreesRepo) Get(ctx context.Context, id string) (*Tree, error) {
	executor := goqu.New("sqlite", r.db)

	var row treeRow
	found, err := executor.From("trees").Where(goqu.Ex{"id": id}).
		ScanStructContext(ctx, &row)
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("failed to fetch tree")
		return nil, err
	}

	if !found {
		log.Debug().Str("id", id).Msg("tree not found")
		return nil, internal.ErrTreeNotFound
	}

	return row.toDomain(), nil
}

func (r *TreesRepo) ListAll(ctx context.Context) ([]*Tree, error) {
	executor := goqu.New("sqlite", r.db)

	var rows []treeRow
	err := executor.From("trees").Order(goqu.C("created_at").Desc()).
		ScanStructsContext(ctx, &rows)
	if err != nil {
		return nil, err
	}

	trees := make([]*Tree, len(rows))
	for i, row := range rows {
		trees[i] = row.toDomain()
	}

	return trees, nil
}

// Update rewrites the mutable tree fields. Counters are never touched here:
// they only move through the ledger's relative increments.
func (r *TreesRepo) Update(ctx context.Context, id string, name string, styles Styles, logoURL string) (*Tree, error) {
	executor := goqu.New("sqlite", r.db)

	stylesJSON, err := json.Marshal(styles)
	if err != nil {
		return nil, err
	}

	now := Date(time.Now().UTC())
	query := executor.Update("trees").
		Set(goqu.Record{
			"name":       name,
			"styles":     string(stylesJSON),
			"logo_url":   logoURL,
			"updated_at": now,
		}).
		Where(goqu.Ex{"id": id})

	res, err := query.Executor().ExecContext(ctx)
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("failed to update tree")
		return nil, err
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return nil, internal.ErrTreeNotFound
	}

	return r.Get(ctx, id)
}

func (r *TreesRepo) Delete(ctx context.Context, id string) error {
	executor := goqu.New("sqlite", r.db)

	res, err := executor.Delete("trees").Where(goqu.Ex{"id": id}).
		Executor().ExecContext(ctx)
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("failed to delete tree")
		return err
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return internal.ErrTreeNotFound
	}

	log.Info().Str("id", id).Msg("tree deleted")
	return nil
}

func (r *treeRow) toDomain() *Tree {
	styles := DefaultStyles()
	if r.Styles != "" {
		_ = json.Unmarshal([]byte(r.Styles), &styles)
	}

	return &Tree{
		ID:             r.ID,
		Slug:           r.Slug,
		Name:           r.Name,
		Styles:         styles,
		LogoURL:        r.LogoURL,
		TotalClicks:    r.TotalClicks,
		UniqueVisitors: r.UniqueVisitors,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}
