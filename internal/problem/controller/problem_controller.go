package controller

import (
	"acmdaily/internal/problem/repository"
	"acmdaily/internal/problem/service"
	"acmdaily/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// ProblemController handles daily problem HTTP endpoints.
type ProblemController struct {
	poolService    *service.PoolService
	problemService *service.ProblemService
}

// NewProblemController creates a new ProblemController.
func NewProblemController(poolService *service.PoolService, problemService *service.ProblemService) *ProblemController {
	return &ProblemController{poolService: poolService, problemService: problemService}
}

// Distribute handles the daily distribution trigger.
func (h *ProblemController) Distribute(c *gin.Context) {
	set, err := h.poolService.DistributeDaily(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, toDailySetResponse(set))
}

// Today handles today's problem set query.
func (h *ProblemController) Today(c *gin.Context) {
	set, err := h.poolService.TodayProblems(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, toDailySetResponse(set))
}

// Random handles the non-persisting practice set query.
func (h *ProblemController) Random(c *gin.Context) {
	set, err := h.poolService.RandomSet(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, toDailySetResponse(set))
}

// Emplace handles manual queueing of a specific problem.
func (h *ProblemController) Emplace(c *gin.Context) {
	var req EmplaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	problem, err := h.problemService.Emplace(c.Request.Context(), req.ChatID, req.Ref)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, toProblemView(problem))
}

// EmplaceRequest defines the manual queueing payload.
type EmplaceRequest struct {
	ChatID string `json:"chat_id" binding:"required"`
	Ref    string `json:"ref" binding:"required"`
}

// ProblemView is the wire shape of one daily problem.
type ProblemView struct {
	ContestID int64    `json:"contest_id"`
	Index     string   `json:"index"`
	Name      string   `json:"name"`
	Rating    int      `json:"rating"`
	Tier      string   `json:"tier"`
	Link      string   `json:"link"`
	Active    bool     `json:"active"`
	Date      string   `json:"date,omitempty"`
	Pusher    string   `json:"pusher,omitempty"`
	SolvedBy  []string `json:"solved_by"`
}

// DailySetResponse is one tiered set of daily problems.
type DailySetResponse struct {
	Easy *ProblemView `json:"easy,omitempty"`
	Mid  *ProblemView `json:"mid,omitempty"`
	Hard *ProblemView `json:"hard,omitempty"`
}

func toDailySetResponse(set *service.DailySet) DailySetResponse {
	return DailySetResponse{
		Easy: toProblemView(set.Easy),
		Mid:  toProblemView(set.Mid),
		Hard: toProblemView(set.Hard),
	}
}

func toProblemView(problem *repository.Problem) *ProblemView {
	if problem == nil {
		return nil
	}
	solved := problem.Solved
	if solved == nil {
		solved = []string{}
	}
	return &ProblemView{
		ContestID: problem.ContestID,
		Index:     problem.Index,
		Name:      problem.Name,
		Rating:    problem.Rating,
		Tier:      problem.Tier.String(),
		Link:      service.ProblemLink(problem),
		Active:    problem.Active,
		Date:      problem.ActivationDate,
		Pusher:    problem.Pusher,
		SolvedBy:  solved,
	}
}
