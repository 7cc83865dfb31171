package handler

import (
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/davrd/treelink/internal"
	"github.com/davrd/treelink/internal/repo"
)

type LinkHandler struct {
	trees *repo.TreesRepo
	links *repo.LinksRepo
}

func NewLinkHandler(trees *repo.TreesRepo, links *repo.LinksRepo) *LinkHandler {
	return &LinkHandler{trees: trees, links: links}
}

type CreateLinkRequest struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Type  string `json:"type"`
}

func (r *CreateLinkRequest) Validate() error {
	if r.Title == "" {
		return errors.New("title is required")
	}
	if r.Value == "" {
		return errors.New("value is required")
	}
	return nil
}

type UpdateLinkRequest struct {
	Title *string `json:"title"`
	Value *string `json:"value"`
	Type  *string `json:"type"`
}

type ReorderEntry struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
}

type ReorderLinksRequest struct {
	Links []ReorderEntry `json:"links"`
}

// Validate checks the new ordering is a dense permutation: every link listed
// once, positions covering 0..n-1.
func (r *ReorderLinksRequest) Validate() error {
	if len(r.Links) == 0 {
		return errors.New("links are required")
	}

	seen := map[string]bool{}
	positions := make([]int, 0, len(r.Links))
	for _, entry := range r.Links {
		if entry.ID == "" {
			return errors.New("link id is required")
		}
		if seen[entry.ID] {
			return fmt.Errorf("duplicate link id %q", entry.ID)
		}
		seen[entry.ID] = true
		positions = append(positions, entry.Position)
	}

	sort.Ints(positions)
	for i, position := range positions {
		if position != i {
			return errors.New("positions must form a dense order starting at 0")
		}
	}

	return nil
}

func (h *LinkHandler) ListLinks(c echo.Context) error {
	ctx := c.Request().Context()
	treeID := c.Param("id")

	links, err := h.links.ListByTree(ctx, treeID)
	if err != nil {
		log.Error().Err(err).Str("tree_id", treeID).Msg("failed to list links")
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]any{"links": links})
}

func (h *LinkHandler) CreateLink(c echo.Context) error {
	ctx := c.Request().Context()
	treeID := c.Param("id")

	var req CreateLinkRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	if err := req.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if _, err := h.trees.Get(ctx, treeID); err != nil {
		if errors.Is(err, internal.ErrTreeNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, internal.ErrTreeNotFound.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	link, err := h.links.Create(ctx, treeID, req.Title, req.Value, req.Type)
	if err != nil {
		log.Error().Err(err).Str("tree_id", treeID).Msg("failed to create link")
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, link)
}

func (h *LinkHandler) UpdateLink(c echo.Context) error {
	ctx := c.Request().Context()
	treeID := c.Param("id")
	linkID := c.Param("linkId")

	var req UpdateLinkRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	current, err := h.links.Get(ctx, treeID, linkID)
	if err != nil {
		if errors.Is(err, internal.ErrLinkNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, internal.ErrLinkNotFound.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	title := current.Title
	if req.Title != nil {
		title = *req.Title
	}
	value := current.Value
	if req.Value != nil {
		value = *req.Value
	}
	linkType := current.Type
	if req.Type != nil {
		linkType = *req.Type
	}

	link, err := h.links.Update(ctx, treeID, linkID, title, value, linkType)
	if err != nil {
		log.Error().Err(err).Str("link_id", linkID).Msg("failed to update link")
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, link)
}

func (h *LinkHandler) DeleteLink(c echo.Context) error {
	ctx := c.Request().Context()
	treeID := c.Param("id")
	linkID := c.Param("linkId")

	if err := h.links.Delete(ctx, treeID, linkID); err != nil {
		if errors.Is(err, internal.ErrLinkNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, internal.ErrLinkNotFound.Error())
		}
		log.Error().Err(err).Str("link_id", linkID).Msg("failed to delete link")
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *LinkHandler) ReorderLinks(c echo.Context) error {
	ctx := c.Request().Context()
	treeID := c.Param("id")

	var req ReorderLinksRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	if err := req.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	positions := lo.SliceToMap(req.Links, func(entry ReorderEntry) (string, int) {
		return entry.ID, entry.Position
	})

	if err := h.links.Reorder(ctx, treeID, positions); err != nil {
		log.Error().Err(err).Str("tree_id", treeID).Msg("failed to reorder links")
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	links, err := h.links.ListByTree(ctx, treeID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]any{"links": links})
}
