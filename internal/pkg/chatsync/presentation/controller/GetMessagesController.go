package controller

import (
	"net/http"

	chatsync "github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync"

	"github.com/gin-gonic/gin"
)

// GetMessagesController serves the message log of one conversation (one
// controller per endpoint). The engine holds a single active conversation;
// asking for a different one switches the selection first.
type GetMessagesController struct {
	engine *chatsync.Engine
}

func NewGetMessagesController(engine *chatsync.Engine) *GetMessagesController {
	return &GetMessagesController{engine: engine}
}

func (h *GetMessagesController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID := c.Param("conversationId")
		if conversationID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "detail": "conversationId is required"})
			return
		}

		store := h.engine.Messages()
		if store.ConversationID() != conversationID {
			if err := store.Load(c.Request.Context(), conversationID); err != nil {
				status, code := statusFor(err)
				c.JSON(status, gin.H{"error": code, "detail": err.Error()})
				return
			}
		}

		msgs := store.Messages()
		c.JSON(http.StatusOK, gin.H{
			"conversation_id": conversationID,
			"messages":        msgs,
			"count":           len(msgs),
			"loading":         store.Loading(),
			"error":           errString(store.Err()),
		})
	}
}
