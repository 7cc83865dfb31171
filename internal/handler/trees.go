package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/davrd/treelink/internal"
	"github.com/davrd/treelink/internal/repo"
)

type TreeHandler struct {
	trees *repo.TreesRepo
}

func NewTreeHandler(trees *repo.TreesRepo) *TreeHandler {
	return &TreeHandler{trees: trees}
}

type CreateTreeRequest struct {
	Slug   string       `json:"slug"`
	Name   string       `json:"name"`
	Styles *repo.Styles `json:"styles"`
}

func (r *CreateTreeRequest) Validate() error {
	if r.Slug == "" {
		return errors.New("slug is required")
	}
	return nil
}

type UpdateTreeRequest struct {
	Name    *string      `json:"name"`
	Styles  *repo.Styles `json:"styles"`
	LogoURL *string      `json:"logoUrl"`
}

func (h *TreeHandler) CreateTree(c echo.Context) error {
	ctx := c.Request().Context()

	var req CreateTreeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	if err := req.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	styles := repo.DefaultStyles()
	if req.Styles != nil {
		styles = *req.Styles
	}

	tree, err := h.trees.Create(ctx, req.Slug, req.Name, styles)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return echo.NewHTTPError(http.StatusConflict, internal.ErrSlugExists.Error())
		}
		log.Error().Err(err).Str("slug", req.Slug).Msg("failed to create tree")
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, tree)
}

func (h *TreeHandler) ListTrees(c echo.Context) error {
	ctx := c.Request().Context()

	trees, err := h.trees.ListAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list trees")
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]any{"trees": trees})
}

func (h *TreeHandler) GetTree(c echo.Context) error {
	ctx := c.Request().Context()
	treeID := c.Param("id")

	tree, err := h.trees.Get(ctx, treeID)
	if err != nil {
		if errors.Is(err, internal.ErrTreeNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, internal.ErrTreeNotFound.Error())
		}
		log.Error().Err(err).Str("id", treeID).Msg("failed to fetch tree")
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, tree)
}

func (h *TreeHandler) UpdateTree(c echo.Context) error {
	ctx := c.Request().Context()
	treeID := c.Param("id")

	var req UpdateTreeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	current, err := h.trees.Get(ctx, treeID)
	if err != nil {
		if errors.Is(err, internal.ErrTreeNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, internal.ErrTreeNotFound.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	name := current.Name
	if req.Name != nil {
		name = *req.Name
	}
	styles := current.Styles
	if req.Styles != nil {
		styles = *req.Styles
	}
	logoURL := current.LogoURL
	if req.LogoURL != nil {
		logoURL = *req.LogoURL
	}

	tree, err := h.trees.Update(ctx, treeID, name, styles, logoURL)
	if err != nil {
		log.Error().Err(err).Str("id", treeID).Msg("failed to update tree")
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, tree)
}

func (h *TreeHandler) DeleteTree(c echo.Context) error {
	ctx := c.Request().Context()
	treeID := c.Param("id")

	if err := h.trees.Delete(ctx, treeID); err != nil {
		if errors.Is(err, internal.ErrTreeNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, internal.ErrTreeNotFound.Error())
		}
		log.Error().Err(err).Str("id", treeID).Msg("failed to delete tree")
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.NoContent(http.StatusNoContent)
}
