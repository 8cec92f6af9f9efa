package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"roomie-chat/internal/models"
	"roomie-chat/internal/repositories"
	"roomie-chat/internal/telemetry"
	"roomie-chat/internal/ws"
)

// MessageHandler serves the pull-style message endpoints.
type MessageHandler struct {
	messageRepo repositories.MessageRepository
	hub         *ws.Hub
	auditor     *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(messageRepo repositories.MessageRepository, hub *ws.Hub, auditor *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{messageRepo: messageRepo, hub: hub, auditor: auditor}
}

// GetMessages returns the full ordered conversation between two users. The
// ordering is identical to what loadHistory replays on the realtime channel.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	user1 := c.Query("user1")
	user2 := c.Query("user2")
	if user1 == "" || user2 == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Both user1 and user2 are required"})
		return
	}

	msgs, err := h.messageRepo.History(c.Request.Context(), user1, user2)
	if err != nil {
		h.auditor.Emit(c.Request.Context(), "ERROR", "failed to fetch messages: "+err.Error(), requestIDFromContext(c), userIDFromContext(c))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
		return
	}

	c.JSON(http.StatusOK, msgs)
}

// PostMessage stores a message sent over the REST surface and broadcasts it
// to the conversation room like a realtime send. The sender identity comes
// from the gateway header, never the body.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	var req struct {
		ToUserID string `json:"toUserId" binding:"required"`
		Content  string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	msg, err := h.messageRepo.Append(c.Request.Context(), userID, req.ToUserID, req.Content)
	if err != nil {
		if repositories.IsValidation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.auditor.Emit(c.Request.Context(), "ERROR", "failed to store message: "+err.Error(), requestIDFromContext(c), userIDFromContext(c))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
		return
	}

	h.hub.BroadcastToRoom(ws.RoomKey(msg.SenderID, msg.RecipientID), models.ServerEvent{
		Type:    models.EventReceiveMessage,
		Message: &msg,
	})
	c.JSON(http.StatusCreated, msg)
}

// MarkConversationRead flags every message the other user sent to the caller
// in this conversation as read.
func (h *MessageHandler) MarkConversationRead(c *gin.Context) {
	var req struct {
		OtherUserID string `json:"otherUserId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	if err := h.messageRepo.MarkConversationRead(c.Request.Context(), userID, req.OtherUserID); err != nil {
		if repositories.IsValidation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.auditor.Emit(c.Request.Context(), "ERROR", "failed to mark conversation read: "+err.Error(), requestIDFromContext(c), userIDFromContext(c))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update messages"})
		return
	}

	c.Status(http.StatusNoContent)
}
