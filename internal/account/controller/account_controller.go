package controller

import (
	"acmdaily/internal/account/service"
	"acmdaily/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// AccountController handles handle binding HTTP endpoints.
type AccountController struct {
	accountService *service.AccountService
}

// NewAccountController creates a new AccountController.
func NewAccountController(accountService *service.AccountService) *AccountController {
	return &AccountController{accountService: accountService}
}

// Bind handles binding a chat identity to a judge handle.
func (h *AccountController) Bind(c *gin.Context) {
	var req BindRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	account, err := h.accountService.Bind(c.Request.Context(), req.ChatID, req.Handle)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, AccountResponse{
		ChatID: account.ChatID,
		Handle: account.Handle,
		Score:  account.Score,
	})
}

// Unbind handles removing a chat identity's binding.
func (h *AccountController) Unbind(c *gin.Context) {
	var req UnbindRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	if err := h.accountService.Unbind(c.Request.Context(), req.ChatID); err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, "Unbind success", nil)
}

// Whoami handles the binding lookup for a chat identity.
func (h *AccountController) Whoami(c *gin.Context) {
	chatID := c.Param("chat_id")
	if chatID == "" {
		response.BadRequest(c, "Invalid chat id")
		return
	}

	account, err := h.accountService.Whoami(c.Request.Context(), chatID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, AccountResponse{
		ChatID: account.ChatID,
		Handle: account.Handle,
		Score:  account.Score,
	})
}

// BindRequest defines the binding payload.
type BindRequest struct {
	ChatID string `json:"chat_id" binding:"required"`
	Handle string `json:"handle" binding:"required"`
}

// UnbindRequest defines the unbinding payload.
type UnbindRequest struct {
	ChatID string `json:"chat_id" binding:"required"`
}

// AccountResponse is the wire shape of one binding.
type AccountResponse struct {
	ChatID string `json:"chat_id"`
	Handle string `json:"handle"`
	Score  int64  `json:"score"`
}
