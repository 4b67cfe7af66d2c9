package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	chatsvc "tourchat-service/internal/chat"
	"tourchat-service/internal/events"
	"tourchat-service/internal/models"
	"tourchat-service/internal/ratelimit"
	"tourchat-service/internal/repositories"
)

type BookingRepositoryMock struct {
	mock.Mock
}

func (m *BookingRepositoryMock) GetBooking(ctx context.Context, bookingID int) (models.Booking, error) {
	args := m.Called(ctx, bookingID)
	var booking models.Booking
	if val := args.Get(0); val != nil {
		booking = val.(models.Booking)
	}
	return booking, args.Error(1)
}

func (m *BookingRepositoryMock) ApplyStatus(ctx context.Context, bookingID int, status string, postTourExpiry *time.Time) error {
	args := m.Called(ctx, bookingID, status, postTourExpiry)
	return args.Error(0)
}

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) GetOrCreateDirectChat(ctx context.Context, touristID, guideID int) (models.Chat, error) {
	args := m.Called(ctx, touristID, guideID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) GetOrCreateBookingChat(ctx context.Context, booking models.Booking) (models.Chat, error) {
	args := m.Called(ctx, booking)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) GetChatByBooking(ctx context.Context, bookingID int) (models.Chat, error) {
	args := m.Called(ctx, bookingID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) ListChats(ctx context.Context, userID int) ([]models.Chat, error) {
	args := m.Called(ctx, userID)
	var list []models.Chat
	if val := args.Get(0); val != nil {
		list = val.([]models.Chat)
	}
	return list, args.Error(1)
}

func (m *ChatRepositoryMock) UpdateCachedStatus(ctx context.Context, chatID int, status string, postTourExpiry *time.Time) error {
	args := m.Called(ctx, chatID, status, postTourExpiry)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, chatID, senderID int, senderRole, messageType, content string) (models.Message, error) {
	args := m.Called(ctx, chatID, senderID, senderRole, messageType, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, chatID, offset, limit int) ([]models.Message, error) {
	args := m.Called(ctx, chatID, offset, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) CountRecentFromSender(ctx context.Context, chatID, senderID int, since time.Time) (int, error) {
	args := m.Called(ctx, chatID, senderID, since)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, chatID, readerID int) error {
	args := m.Called(ctx, chatID, readerID)
	return args.Error(0)
}

type NotificationRepositoryMock struct {
	mock.Mock
}

func (m *NotificationRepositoryMock) Create(ctx context.Context, recipientID int, kind string, bookingID *int, body string) (models.Notification, error) {
	args := m.Called(ctx, recipientID, kind, bookingID, body)
	var n models.Notification
	if val := args.Get(0); val != nil {
		n = val.(models.Notification)
	}
	return n, args.Error(1)
}

func (m *NotificationRepositoryMock) ListForRecipient(ctx context.Context, recipientID, limit int) ([]models.Notification, error) {
	args := m.Called(ctx, recipientID, limit)
	var list []models.Notification
	if val := args.Get(0); val != nil {
		list = val.([]models.Notification)
	}
	return list, args.Error(1)
}

func (m *NotificationRepositoryMock) MarkRead(ctx context.Context, notificationID, recipientID int) error {
	args := m.Called(ctx, notificationID, recipientID)
	return args.Error(0)
}

type LimiterMock struct {
	mock.Mock
}

func (m *LimiterMock) Allow(ctx context.Context, chatID, senderID int) (bool, error) {
	args := m.Called(ctx, chatID, senderID)
	return args.Bool(0), args.Error(1)
}

func (m *LimiterMock) Record(ctx context.Context, chatID, senderID int) error {
	args := m.Called(ctx, chatID, senderID)
	return args.Error(0)
}

type BroadcasterMock struct {
	mock.Mock
}

func (m *BroadcasterMock) BroadcastNewMessage(chatID int, msg models.Message) {
	m.Called(chatID, msg)
}

type PersonalBroadcasterMock struct {
	mock.Mock
}

func (m *PersonalBroadcasterMock) BroadcastBookingUpdate(userID int, booking models.Booking) {
	m.Called(userID, booking)
}

var _ repositories.BookingRepository = (*BookingRepositoryMock)(nil)
var _ repositories.ChatRepository = (*ChatRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.NotificationRepository = (*NotificationRepositoryMock)(nil)
var _ ratelimit.Limiter = (*LimiterMock)(nil)
var _ chatsvc.Broadcaster = (*BroadcasterMock)(nil)
var _ events.PersonalBroadcaster = (*PersonalBroadcasterMock)(nil)
