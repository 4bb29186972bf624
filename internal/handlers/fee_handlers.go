package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// FeeHandler exposes the fee ledger for payout reconciliation. Records are
// written by the pay pipeline; operators sweep accumulated merchant amounts
// out of band and mark the rows transferred here.
type FeeHandler struct {
	common *CommonServices
}

func NewFeeHandler(common *CommonServices) *FeeHandler {
	return &FeeHandler{common: common}
}

// ListUntransferred godoc
// @Summary      List fee records awaiting payout
// @Tags         fees
// @Produce      json
// @Param        limit  query  int  false  "Max entries (default 100)"
// @Success      200  {object}  map[string]interface{}  "List of fee records"
// @Failure      500  {object}  ErrorResponse
// @Router       /fees/untransferred [get]
func (h *FeeHandler) ListUntransferred(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	records, err := h.common.store.ListUntransferredFeeRecords(c.Request.Context(), int32(limit))
	if err != nil {
		handleDBError(c, err, "No fee records found")
		return
	}

	sendList(c, records)
}

// MarkTransferred godoc
// @Summary      Mark a fee record as paid out
// @Description  Records that the merchant amount for this settlement has been swept. Idempotent; marking an already-transferred record is a no-op.
// @Tags         fees
// @Produce      json
// @Param        id  path  string  true  "Fee record ID"
// @Success      200  {object}  db.FeeRecord
// @Failure      400  {object}  ErrorResponse  "Malformed record ID"
// @Failure      404  {object}  ErrorResponse  "Unknown fee record"
// @Router       /fees/{id}/transferred [post]
func (h *FeeHandler) MarkTransferred(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		sendError(c, http.StatusBadRequest, "Invalid fee record ID", err)
		return
	}

	record, err := h.common.store.MarkFeeRecordTransferred(c.Request.Context(), id)
	if err != nil {
		handleDBError(c, err, "Fee record not found")
		return
	}

	sendSuccess(c, http.StatusOK, record)
}
