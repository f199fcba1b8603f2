package controller

import (
	"acmdaily/internal/target/service"
	"acmdaily/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// TargetController handles distribution target HTTP endpoints.
type TargetController struct {
	targetService *service.TargetService
}

// NewTargetController creates a new TargetController.
func NewTargetController(targetService *service.TargetService) *TargetController {
	return &TargetController{targetService: targetService}
}

// Subscribe handles enrolling a target for distributions.
func (h *TargetController) Subscribe(c *gin.Context) {
	var req SubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	if err := h.targetService.Subscribe(c.Request.Context(), req.TargetID); err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, "Subscribe success", nil)
}

// Unsubscribe handles removing a target from distributions.
func (h *TargetController) Unsubscribe(c *gin.Context) {
	var req SubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	if err := h.targetService.Unsubscribe(c.Request.Context(), req.TargetID); err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, "Unsubscribe success", nil)
}

// List handles the subscribed target query.
func (h *TargetController) List(c *gin.Context) {
	targets, err := h.targetService.Subscribed(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	ids := make([]string, 0, len(targets))
	for _, target := range targets {
		ids = append(ids, target.TargetID)
	}
	response.Success(c, TargetListResponse{Targets: ids})
}

// SubscriptionRequest defines the subscription toggle payload.
type SubscriptionRequest struct {
	TargetID string `json:"target_id" binding:"required"`
}

// TargetListResponse lists subscribed target ids.
type TargetListResponse struct {
	Targets []string `json:"targets"`
}
