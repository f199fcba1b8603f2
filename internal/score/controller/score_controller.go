package controller

import (
	"strconv"

	"acmdaily/internal/score/service"
	"acmdaily/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// ScoreController handles reconciliation and standings HTTP endpoints.
type ScoreController struct {
	reconcileService   *service.ReconcileService
	leaderboardService *service.LeaderboardService
}

// NewScoreController creates a new ScoreController.
func NewScoreController(reconcileService *service.ReconcileService, leaderboardService *service.LeaderboardService) *ScoreController {
	return &ScoreController{
		reconcileService:   reconcileService,
		leaderboardService: leaderboardService,
	}
}

// Reconcile handles the manual reconciliation trigger.
func (h *ScoreController) Reconcile(c *gin.Context) {
	if err := h.reconcileService.Reconcile(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, "Reconciliation complete", nil)
}

// Leaderboard handles the standings query.
func (h *ScoreController) Leaderboard(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	board, err := h.leaderboardService.Leaderboard(c.Request.Context(), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, LeaderboardResponse{
		Entries: board.Entries,
		Total:   board.Total,
		Page:    page,
		Size:    size,
		Today:   board.Today,
	})
}

// LeaderboardResponse is one page of standings with today's solve state.
type LeaderboardResponse struct {
	Entries []service.LeaderboardEntry `json:"entries"`
	Total   int64                      `json:"total"`
	Page    int                        `json:"page"`
	Size    int                        `json:"size"`
	Today   []service.ProblemStatus    `json:"today"`
}
