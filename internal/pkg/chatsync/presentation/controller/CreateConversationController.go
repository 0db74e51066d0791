package controller

import (
	"net/http"

	chatsync "github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync"

	"github.com/gin-gonic/gin"
)

// CreateConversationController handles create-or-get of a conversation with
// another participant (one controller per endpoint).
type CreateConversationController struct {
	engine *chatsync.Engine
}

func NewCreateConversationController(engine *chatsync.Engine) *CreateConversationController {
	return &CreateConversationController{engine: engine}
}

type createConversationRequest struct {
	OtherParticipantID string `json:"other_participant_id" binding:"required"`
}

func (h *CreateConversationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createConversationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "detail": err.Error()})
			return
		}

		id, err := h.engine.Conversations().CreateOrGetConversation(c.Request.Context(), req.OtherParticipantID)
		if err != nil {
			status, code := statusFor(err)
			c.JSON(status, gin.H{"error": code, "detail": err.Error()})
			return
		}

		// Create-or-get is idempotent, so 200 rather than 201: the caller
		// cannot tell (and must not care) whether the row already existed.
		c.JSON(http.StatusOK, gin.H{"conversation_id": id})
	}
}
