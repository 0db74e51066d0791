package controller

import (
	"net/http"

	chatsync "github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync"

	"github.com/gin-gonic/gin"
)

// ConversationListController serves the materialized conversation list
// (one controller per endpoint).
type ConversationListController struct {
	engine *chatsync.Engine
}

func NewConversationListController(engine *chatsync.Engine) *ConversationListController {
	return &ConversationListController{engine: engine}
}

func (h *ConversationListController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		list := h.engine.Conversations()

		// ?refresh=1 forces a rebuild before answering; otherwise the
		// current in-memory projection is served as-is.
		if c.Query("refresh") != "" {
			if err := list.Refresh(c.Request.Context()); err != nil {
				status, code := statusFor(err)
				c.JSON(status, gin.H{"error": code, "detail": err.Error()})
				return
			}
		}

		views := list.Conversations()
		c.JSON(http.StatusOK, gin.H{
			"conversations": views,
			"count":         len(views),
			"loading":       list.Loading(),
			"error":         errString(list.Err()),
		})
	}
}
