package chat

import (
	"context"
	"errors"
	"log"
	"time"

	"tourchat-service/internal/models"
	"tourchat-service/internal/moderation"
	"tourchat-service/internal/observability"
	"tourchat-service/internal/ratelimit"
	"tourchat-service/internal/repositories"
)

// Failure taxonomy surfaced to the API layer. ErrChatInactive is distinct
// from ErrAccessDenied so clients can render "conversation closed" instead
// of "forbidden".
var (
	ErrAccessDenied = errors.New("caller is not a party to this chat")
	ErrChatInactive = errors.New("chat is not accepting messages")
	ErrPersonalInfo = errors.New("message contains personal contact details")
	ErrRateLimited  = errors.New("too many messages")
)

// Pagination bounds for message history.
const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// Broadcaster fans an accepted message out to the chat's connected room.
type Broadcaster interface {
	BroadcastNewMessage(chatID int, msg models.Message)
}

// Service composes the chat store, the booking reader, the content filter
// and the rate limiter behind the operations the API exposes. Both the REST
// handlers and the websocket ingest path go through here, so every message
// is gated identically.
type Service struct {
	bookings repositories.BookingRepository
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
	limiter  ratelimit.Limiter
	rooms    Broadcaster
	now      func() time.Time
}

// NewService builds a Service.
func NewService(bookings repositories.BookingRepository, chats repositories.ChatRepository, messages repositories.MessageRepository, limiter ratelimit.Limiter, rooms Broadcaster) *Service {
	return &Service{
		bookings: bookings,
		chats:    chats,
		messages: messages,
		limiter:  limiter,
		rooms:    rooms,
		now:      time.Now,
	}
}

// ListChats returns every chat the caller is a party to.
func (s *Service) ListChats(ctx context.Context, callerID int) ([]models.Chat, error) {
	return s.chats.ListChats(ctx, callerID)
}

// OpenDirectChat returns the direct chat for the pair, creating it on first
// access. Direct chats have no booking to derive temporal gating from and
// are always ACTIVE.
func (s *Service) OpenDirectChat(ctx context.Context, callerID, touristID, guideID int) (models.Chat, error) {
	if callerID != touristID && callerID != guideID {
		return models.Chat{}, ErrAccessDenied
	}
	chat, err := s.chats.GetOrCreateDirectChat(ctx, touristID, guideID)
	if err != nil {
		return models.Chat{}, err
	}
	chat.Status = models.ChatActive
	return chat, nil
}

// OpenBookingChat returns the chat tied to the booking, creating it on
// first access, and refreshes the cached status from the booking on the way
// out.
func (s *Service) OpenBookingChat(ctx context.Context, callerID, bookingID int) (models.Chat, error) {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return models.Chat{}, err
	}
	if callerID != booking.TouristID && callerID != booking.GuideID {
		return models.Chat{}, ErrAccessDenied
	}
	chat, err := s.chats.GetOrCreateBookingChat(ctx, booking)
	if err != nil {
		return models.Chat{}, err
	}
	return s.refreshStatus(ctx, chat, booking), nil
}

// ListMessages returns one page of history, oldest first, and marks the
// counterpart's messages as read. The chat's cached status is refreshed on
// the way through like every other access; a failed refresh costs freshness
// only and never blocks the read.
func (s *Service) ListMessages(ctx context.Context, callerID, chatID, page, limit int) ([]models.Message, error) {
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !isParticipant(chat, callerID) {
		return nil, ErrAccessDenied
	}
	if _, err := s.currentStatus(ctx, chat); err != nil {
		log.Printf("chat status refresh failed chat_id=%d: %v", chatID, err)
	}

	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if page < 1 {
		page = 1
	}

	msgs, err := s.messages.ListMessages(ctx, chatID, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	if err := s.messages.MarkRead(ctx, chatID, callerID); err != nil {
		log.Printf("mark read failed chat_id=%d: %v", chatID, err)
	}
	return msgs, nil
}

// PostMessage gates and persists a message addressed by chat id.
func (s *Service) PostMessage(ctx context.Context, callerID, chatID int, messageType, content string) (models.Message, error) {
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return models.Message{}, err
	}
	return s.post(ctx, chat, callerID, messageType, content)
}

// PostBookingMessage resolves the booking's chat, creating it on first
// write, then posts into it.
func (s *Service) PostBookingMessage(ctx context.Context, callerID, bookingID int, messageType, content string) (models.Message, error) {
	chat, err := s.OpenBookingChat(ctx, callerID, bookingID)
	if err != nil {
		return models.Message{}, err
	}
	return s.post(ctx, chat, callerID, messageType, content)
}

// CanJoin reports whether the user may be admitted to the chat's websocket
// room. Mirrors the REST access check so rooms cannot be joined on trust.
func (s *Service) CanJoin(ctx context.Context, chatID, userID int) (bool, error) {
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, repositories.ErrChatNotFound) {
			return false, nil
		}
		return false, err
	}
	return isParticipant(chat, userID), nil
}

// post runs the full gate sequence: access, status, content filter, rate
// limit, persist, fan out. A failure at any gate persists nothing and fans
// nothing out.
func (s *Service) post(ctx context.Context, chat models.Chat, senderID int, messageType, content string) (models.Message, error) {
	if !isParticipant(chat, senderID) {
		return models.Message{}, ErrAccessDenied
	}

	chat, err := s.currentStatus(ctx, chat)
	if err != nil {
		return models.Message{}, err
	}
	if chat.Status == models.ChatClosed || chat.Status == models.ChatLocked {
		observability.IncMessageRejected("inactive")
		return models.Message{}, ErrChatInactive
	}

	if moderation.ContainsPersonalInfo(content) {
		observability.IncMessageRejected("personal_info")
		return models.Message{}, ErrPersonalInfo
	}

	allowed, err := s.limiter.Allow(ctx, chat.ID, senderID)
	if err != nil {
		return models.Message{}, err
	}
	if !allowed {
		observability.IncMessageRejected("rate_limited")
		return models.Message{}, ErrRateLimited
	}

	if messageType == "" {
		messageType = models.MessageTypeText
	}
	role := models.RoleGuide
	if senderID == chat.TouristID {
		role = models.RoleTourist
	}

	msg, err := s.messages.CreateMessage(ctx, chat.ID, senderID, role, messageType, content)
	if err != nil {
		return models.Message{}, err
	}

	// Charge the window only for messages that actually landed.
	if err := s.limiter.Record(ctx, chat.ID, senderID); err != nil {
		log.Printf("rate limit record failed chat_id=%d: %v", chat.ID, err)
	}

	if s.rooms != nil {
		s.rooms.BroadcastNewMessage(chat.ID, msg)
	}
	return msg, nil
}

// currentStatus resolves the chat's status as of now. Direct chats are
// always ACTIVE; booking chats re-read the booking.
func (s *Service) currentStatus(ctx context.Context, chat models.Chat) (models.Chat, error) {
	if chat.BookingID == nil {
		chat.Status = models.ChatActive
		return chat, nil
	}
	booking, err := s.bookings.GetBooking(ctx, *chat.BookingID)
	if err != nil {
		return chat, err
	}
	return s.refreshStatus(ctx, chat, booking), nil
}

// refreshStatus recomputes the derived status and writes it back when the
// cached value drifted. A failed write-back only costs freshness on the
// next uncached read, so it is logged and swallowed.
func (s *Service) refreshStatus(ctx context.Context, chat models.Chat, booking models.Booking) models.Chat {
	status := ResolveStatus(booking.Status, booking.PostTourExpiry, s.now())
	if status != chat.Status || !equalExpiry(chat.PostTourExpiry, booking.PostTourExpiry) {
		if err := s.chats.UpdateCachedStatus(ctx, chat.ID, status, booking.PostTourExpiry); err != nil {
			log.Printf("chat status write-back failed chat_id=%d: %v", chat.ID, err)
		}
	}
	chat.Status = status
	chat.PostTourExpiry = booking.PostTourExpiry
	return chat
}

func isParticipant(chat models.Chat, userID int) bool {
	return chat.TouristID == userID || chat.GuideID == userID
}

func equalExpiry(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
