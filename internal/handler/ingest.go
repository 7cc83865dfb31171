package handler

import (
	"errors"
	"net"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/davrd/treelink/internal"
	"github.com/davrd/treelink/internal/ingest"
	"github.com/davrd/treelink/internal/repo"
)

// ClickHandler is the ingestion endpoint: resolve the redirect fast, then
// hand attribution to the best-effort pipeline without waiting on it.
type ClickHandler struct {
	links    *repo.LinksRepo
	pipeline *ingest.Pipeline
}

func NewClickHandler(links *repo.LinksRepo, pipeline *ingest.Pipeline) *ClickHandler {
	return &ClickHandler{links: links, pipeline: pipeline}
}

type ProcessClickRequest struct {
	TreeID          string                     `json:"treeId"`
	LinkID          string                     `json:"linkId"`
	FingerprintData *ingest.FingerprintPayload `json:"fingerprintData"`
}

func (h *ClickHandler) Process(c echo.Context) error {
	var req ProcessClickRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Missing required parameters"})
	}

	if req.TreeID == "" || req.LinkID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Missing required parameters"})
	}

	ctx := c.Request().Context()

	link, err := h.links.Get(ctx, req.TreeID, req.LinkID)
	if err != nil {
		if errors.Is(err, internal.ErrLinkNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Link not found"})
		}
		log.Error().Err(err).Str("tree_id", req.TreeID).Str("link_id", req.LinkID).Msg("failed to resolve link")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to process link"})
	}

	if link.Value == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid link destination"})
	}

	request := c.Request()
	h.pipeline.Dispatch(link, ingest.Request{
		TreeID:         req.TreeID,
		LinkID:         req.LinkID,
		IPAddress:      getClientIP(request),
		UserAgent:      request.UserAgent(),
		Referrer:       request.Referer(),
		Connection:     request.Header.Get("Connection"),
		AcceptLanguage: request.Header.Get("Accept-Language"),
		DoNotTrack:     request.Header.Get("DNT"),
		Fingerprint:    req.FingerprintData,
	})

	return c.JSON(http.StatusOK, map[string]string{"url": link.Value})
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	// Try X-Forwarded-For header first (for proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := net.ParseIP(xff); ip != nil {
			return xff
		}
	}

	// Try X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(xri); ip != nil {
			return xri
		}
	}

	// Fall back to RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}

	return r.RemoteAddr
}
