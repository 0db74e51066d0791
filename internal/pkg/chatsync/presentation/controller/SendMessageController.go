package controller

import (
	"log/slog"
	"net/http"

	qport "github.com/bdika645-rgb/lovewave-finder-sub000/internal/infrastructure/queue/port"
	pushport "github.com/bdika645-rgb/lovewave-finder-sub000/internal/infrastructure/push/port"
	chatsync "github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync"

	"github.com/gin-gonic/gin"
)

// SendMessageController handles the send-message endpoint only (one
// controller per endpoint). After a successful insert it enqueues a
// publish-change task so every other subscribed session sees the row.
type SendMessageController struct {
	engine *chatsync.Engine
	q      qport.Client
	log    *slog.Logger
}

func NewSendMessageController(engine *chatsync.Engine, q qport.Client, log *slog.Logger) *SendMessageController {
	if log == nil {
		log = slog.Default()
	}
	return &SendMessageController{engine: engine, q: q, log: log}
}

type sendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *SendMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID := c.Param("conversationId")
		if conversationID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "detail": "conversationId is required"})
			return
		}

		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "detail": err.Error()})
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

		msg, err := store.Send(c.Request.Context(), req.Content)
		if err != nil {
			status, code := statusFor(err)
			c.JSON(status, gin.H{"error": code, "detail": err.Error()})
			return
		}

		// The sender's own store picks the row up via the same change feed
		// as everyone else; no special-casing of the local session.
		enqueueMessageChange(c.Request.Context(), h.q, h.log, pushport.EventInsert, nil, msg)

		c.JSON(http.StatusCreated, gin.H{"message": msg})
	}
}
