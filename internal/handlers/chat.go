package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	chatsvc "tourchat-service/internal/chat"
	"tourchat-service/internal/models"
	"tourchat-service/internal/repositories"
	"tourchat-service/internal/telemetry"
)

// ChatHandler exposes the chat operations over REST.
type ChatHandler struct {
	svc   *chatsvc.Service
	audit *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(svc *chatsvc.Service, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{svc: svc, audit: audit}
}

// ListChats returns the chats visible to the authenticated user.
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID := c.GetInt("userID")

	chats, err := h.svc.ListChats(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}

	summaries := make([]models.ChatSummary, 0, len(chats))
	for _, chat := range chats {
		partnerID := chat.TouristID
		if partnerID == userID {
			partnerID = chat.GuideID
		}
		summaries = append(summaries, models.ChatSummary{
			ChatID:    chat.ID,
			PartnerID: partnerID,
			BookingID: chat.BookingID,
			Status:    chat.Status,
			Created:   chat.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"chats": summaries})
}

// OpenDirectChat returns (creating on first access) the direct chat between
// a tourist and a guide, with the first page of history.
func (h *ChatHandler) OpenDirectChat(c *gin.Context) {
	touristID, err := strconv.Atoi(c.Param("tourist_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tourist id"})
		return
	}
	guideID, err := strconv.Atoi(c.Param("guide_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid guide id"})
		return
	}

	userID := c.GetInt("userID")
	chat, err := h.svc.OpenDirectChat(c.Request.Context(), userID, touristID, guideID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	h.respondWithChat(c, userID, chat)
}

// OpenBookingChat returns (creating on first access) the chat tied to a
// booking, with the first page of history. The chat's status is recomputed
// from the booking on every access.
func (h *ChatHandler) OpenBookingChat(c *gin.Context) {
	bookingID, err := strconv.Atoi(c.Param("booking_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}

	userID := c.GetInt("userID")
	chat, err := h.svc.OpenBookingChat(c.Request.Context(), userID, bookingID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	h.respondWithChat(c, userID, chat)
}

func (h *ChatHandler) respondWithChat(c *gin.Context, userID int, chat models.Chat) {
	msgs, err := h.svc.ListMessages(c.Request.Context(), userID, chat.ID, 1, chatsvc.DefaultPageSize)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"chat": chat, "status": chat.Status, "messages": msgs})
}

// GetChatMessages returns one page of a chat's history, oldest first.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}
	h.listMessages(c, chatID)
}

// GetBookingMessages returns one page of a booking chat's history,
// resolving (and lazily creating) the chat first.
func (h *ChatHandler) GetBookingMessages(c *gin.Context) {
	bookingID, err := strconv.Atoi(c.Param("booking_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}

	userID := c.GetInt("userID")
	chat, err := h.svc.OpenBookingChat(c.Request.Context(), userID, bookingID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	h.listMessages(c, chat.ID)
}

func (h *ChatHandler) listMessages(c *gin.Context, chatID int) {
	userID := c.GetInt("userID")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	msgs, err := h.svc.ListMessages(c.Request.Context(), userID, chatID, page, limit)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

type postMessageRequest struct {
	Content     string `json:"content" binding:"required"`
	MessageType string `json:"message_type"`
}

// PostChatMessage gates, stores and broadcasts a message addressed by chat
// id.
func (h *ChatHandler) PostChatMessage(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	msg, err := h.svc.PostMessage(c.Request.Context(), userID, chatID, req.MessageType, req.Content)
	if err != nil {
		h.auditRejection(c, err)
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// PostBookingMessage gates, stores and broadcasts a message addressed by
// booking id, creating the chat on first write.
func (h *ChatHandler) PostBookingMessage(c *gin.Context) {
	bookingID, err := strconv.Atoi(c.Param("booking_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}

	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	msg, err := h.svc.PostBookingMessage(c.Request.Context(), userID, bookingID, req.MessageType, req.Content)
	if err != nil {
		h.auditRejection(c, err)
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// auditRejection records filter and throttle hits; they are the signals the
// trust-and-safety dashboard watches.
func (h *ChatHandler) auditRejection(c *gin.Context, err error) {
	if h.audit == nil {
		return
	}
	switch {
	case errors.Is(err, chatsvc.ErrPersonalInfo):
		h.audit.Emit(c.Request.Context(), "WARN", "message rejected: personal info", requestIDFromContext(c), userIDFromContext(c))
	case errors.Is(err, chatsvc.ErrRateLimited):
		h.audit.Emit(c.Request.Context(), "WARN", "message rejected: rate limited", requestIDFromContext(c), userIDFromContext(c))
	}
}

func (h *ChatHandler) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repositories.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
	case errors.Is(err, repositories.ErrChatNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
	case errors.Is(err, chatsvc.ErrAccessDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a party to this chat"})
	case errors.Is(err, chatsvc.ErrChatInactive):
		c.JSON(http.StatusForbidden, gin.H{"error": "conversation closed"})
	case errors.Is(err, chatsvc.ErrPersonalInfo):
		c.JSON(http.StatusBadRequest, gin.H{"error": "message contains personal contact details"})
	case errors.Is(err, chatsvc.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many messages, slow down"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
