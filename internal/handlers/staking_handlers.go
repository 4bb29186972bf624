package handlers

import (
	"errors"
	"net/http"

	"paygrid-api/internal/staking"

	"github.com/gin-gonic/gin"
)

// StakingHandler exposes the stake/unstake lifecycle.
type StakingHandler struct {
	common *CommonServices
}

func NewStakingHandler(common *CommonServices) *StakingHandler {
	return &StakingHandler{common: common}
}

// Stake godoc
// @Summary      Stake tokens for an address
// @Description  Adds to the address's staked amount. Staking while an unstake cooldown is pending cancels the pending unstake.
// @Tags         staking
// @Accept       json
// @Produce      json
// @Param        stake  body      StakeRequest  true  "Address and integer amount"
// @Success      200  {object}  db.StakingRecord
// @Failure      400  {object}  ErrorResponse  "Invalid request body or amount"
// @Failure      500  {object}  ErrorResponse
// @Router       /staking/stake [post]
func (h *StakingHandler) Stake(c *gin.Context) {
	var req StakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	record, err := h.common.staking.Stake(c.Request.Context(), req.Address, req.Amount)
	if err != nil {
		sendStakingError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, record)
}

// InitiateUnstake godoc
// @Summary      Start the unstake cooldown
// @Description  Begins the fixed cooldown for the address. If a cooldown is already running the call is a no-op and the response reports the remaining milliseconds.
// @Tags         staking
// @Accept       json
// @Produce      json
// @Param        unstake  body      UnstakeRequest  true  "Address"
// @Success      200  {object}  staking.UnstakeResult
// @Failure      400  {object}  ErrorResponse  "Invalid request body"
// @Failure      404  {object}  ErrorResponse  "Address has no stake"
// @Failure      500  {object}  ErrorResponse
// @Router       /staking/unstake [post]
func (h *StakingHandler) InitiateUnstake(c *gin.Context) {
	var req UnstakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.common.staking.InitiateUnstake(c.Request.Context(), req.Address)
	if err != nil {
		sendStakingError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, result)
}

// CompleteUnstake godoc
// @Summary      Complete an elapsed unstake cooldown
// @Description  Releases the stake once the cooldown has elapsed. Calling early is rejected with the remaining milliseconds and changes nothing.
// @Tags         staking
// @Accept       json
// @Produce      json
// @Param        unstake  body      UnstakeRequest  true  "Address"
// @Success      200  {object}  db.StakingRecord
// @Failure      400  {object}  ErrorResponse  "Invalid request body"
// @Failure      404  {object}  ErrorResponse  "No pending unstake"
// @Failure      409  {object}  staking.UnstakeResult  "Cooldown still running"
// @Failure      500  {object}  ErrorResponse
// @Router       /staking/unstake/complete [post]
func (h *StakingHandler) CompleteUnstake(c *gin.Context) {
	var req UnstakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	record, pending, err := h.common.staking.CompleteUnstake(c.Request.Context(), req.Address)
	if err != nil {
		sendStakingError(c, err)
		return
	}
	if pending != nil {
		c.JSON(http.StatusConflict, pending)
		return
	}
	sendSuccess(c, http.StatusOK, record)
}

// StakingStatus godoc
// @Summary      Get an address's staking status
// @Description  Reports lifecycle state, staked amount and unstake eligibility. Unknown addresses report not_staked.
// @Tags         staking
// @Produce      json
// @Param        address  path      string  true  "Wallet address"
// @Success      200  {object}  staking.Status
// @Failure      500  {object}  ErrorResponse
// @Router       /staking/status/{address} [get]
func (h *StakingHandler) StakingStatus(c *gin.Context) {
	status, err := h.common.staking.Status(c.Request.Context(), c.Param("address"))
	if err != nil {
		sendStakingError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, status)
}

func sendStakingError(c *gin.Context, err error) {
	var stakeErr *staking.Error
	if !errors.As(err, &stakeErr) {
		sendError(c, http.StatusInternalServerError, "Staking operation failed", err)
		return
	}

	switch stakeErr.Kind {
	case staking.ErrNotFound:
		sendError(c, http.StatusNotFound, "No stake found for address", err)
	case staking.ErrInvalidAmount:
		sendError(c, http.StatusBadRequest, "Amount must be a positive integer string", err)
	default:
		sendError(c, http.StatusInternalServerError, "Staking operation failed", err)
	}
}
