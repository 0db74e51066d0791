package controller

import (
	"log/slog"
	"net/http"

	qport "github.com/bdika645-rgb/lovewave-finder-sub000/internal/infrastructure/queue/port"
	pushport "github.com/bdika645-rgb/lovewave-finder-sub000/internal/infrastructure/push/port"
	chatsync "github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync"
	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/domain"

	"github.com/gin-gonic/gin"
)

// MarkReadController marks every unread incoming message of one conversation
// as read (one controller per endpoint). For each flipped row it enqueues an
// update payload so other sessions can decrement their unread counters
// without a full refetch.
type MarkReadController struct {
	engine *chatsync.Engine
	q      qport.Client
	log    *slog.Logger
}

func NewMarkReadController(engine *chatsync.Engine, q qport.Client, log *slog.Logger) *MarkReadController {
	if log == nil {
		log = slog.Default()
	}
	return &MarkReadController{engine: engine, q: q, log: log}
}

func (h *MarkReadController) Handle() gin.HandlerFunc {
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

		selfID, err := h.engine.Resolver().Resolve(c.Request.Context())
		if err != nil {
			status, code := statusFor(err)
			c.JSON(status, gin.H{"error": code, "detail": err.Error()})
			return
		}

		// Snapshot the rows that will flip before mutating, so the update
		// payloads carry the correct old image.
		var flipped []domain.Message
		for _, m := range store.Messages() {
			if m.UnreadBy(selfID) {
				flipped = append(flipped, m)
			}
		}

		if err := store.MarkAsRead(c.Request.Context()); err != nil {
			status, code := statusFor(err)
			c.JSON(status, gin.H{"error": code, "detail": err.Error()})
			return
		}

		for _, old := range flipped {
			updated := old
			updated.IsRead = true
			o := old
			enqueueMessageChange(c.Request.Context(), h.q, h.log, pushport.EventUpdate, &o, &updated)
		}

		c.JSON(http.StatusOK, gin.H{
			"conversation_id": conversationID,
			"marked":          len(flipped),
		})
	}
}
