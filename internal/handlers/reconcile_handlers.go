package handlers

import (
	"errors"
	"net/http"

	"paygrid-api/internal/reconciler"

	"github.com/gin-gonic/gin"
)

// ReconcileHandler triggers registry sync and reverification batches.
type ReconcileHandler struct {
	common *CommonServices
}

func NewReconcileHandler(common *CommonServices) *ReconcileHandler {
	return &ReconcileHandler{common: common}
}

// SyncSource godoc
// @Summary      Sync one registry source into the catalog
// @Description  Pulls the named source and upserts its entries by service ID. Per-entry failures are reported in the result and never abort the batch. Curated fields of existing entries are never overwritten.
// @Tags         reconcile
// @Produce      json
// @Param        source  path      string  true  "Registry source name"
// @Success      200  {object}  reconciler.SyncResult  "Sync summary"
// @Failure      404  {object}  ErrorResponse  "Unknown source"
// @Failure      502  {object}  ErrorResponse  "Source unreachable"
// @Router       /reconcile/sync/{source} [post]
func (h *ReconcileHandler) SyncSource(c *gin.Context) {
	source := c.Param("source")

	result, err := h.common.reconciler.Sync(c.Request.Context(), source)
	if err != nil {
		if !isKnownSource(h.common.reconciler.Sources(), source) {
			sendError(c, http.StatusNotFound, "Unknown registry source", err)
			return
		}
		var recErr *reconciler.Error
		if errors.As(err, &recErr) && recErr.Kind == reconciler.ErrParse {
			sendError(c, http.StatusUnprocessableEntity, "Source returned an unparseable listing", err)
			return
		}
		sendError(c, http.StatusBadGateway, "Registry source unreachable", err)
		return
	}

	sendSuccess(c, http.StatusOK, result)
}

// SyncAll godoc
// @Summary      Sync every registered registry source
// @Description  Runs each source in turn. A failing source is reported in its own result slot and never blocks the others.
// @Tags         reconcile
// @Produce      json
// @Success      200  {object}  map[string]reconciler.SyncResult  "Per-source summaries"
// @Router       /reconcile/sync [post]
func (h *ReconcileHandler) SyncAll(c *gin.Context) {
	sendSuccess(c, http.StatusOK, h.common.reconciler.SyncAll(c.Request.Context()))
}

// Reverify godoc
// @Summary      Re-probe known catalog entries
// @Description  Re-runs the preflight probe against stored endpoints matching the filter, with bounded parallelism. Successful probes refresh quote-derived fields; failures only flip availability and bookkeeping.
// @Tags         reconcile
// @Accept       json
// @Produce      json
// @Param        filter  body      ReverifyRequest  false  "Batch filter and limit"
// @Success      200  {object}  reconciler.ReverifyResult  "Per-entry outcomes"
// @Failure      400  {object}  ErrorResponse  "Invalid request body"
// @Failure      500  {object}  ErrorResponse  "Catalog read failed"
// @Router       /reconcile/reverify [post]
func (h *ReconcileHandler) Reverify(c *gin.Context) {
	var req ReverifyRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			sendError(c, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	if req.Limit <= 0 {
		req.Limit = h.common.cfg.ReverifyLimit
	}

	result, err := h.common.reconciler.Reverify(c.Request.Context(), reconciler.ReverifyFilter{
		Network: req.Network,
		Source:  req.Source,
	}, req.Limit)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "Reverification failed", err)
		return
	}

	sendSuccess(c, http.StatusOK, result)
}

func isKnownSource(sources []string, name string) bool {
	for _, s := range sources {
		if s == name {
			return true
		}
	}
	return false
}
