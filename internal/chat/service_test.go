package chat_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tourchat-service/internal/chat"
	"tourchat-service/internal/mocks"
	"tourchat-service/internal/models"
	"tourchat-service/internal/repositories"
)

type serviceFixture struct {
	bookings *mocks.BookingRepositoryMock
	chats    *mocks.ChatRepositoryMock
	messages *mocks.MessageRepositoryMock
	limiter  *mocks.LimiterMock
	rooms    *mocks.BroadcasterMock
	svc      *chat.Service
}

func newFixture() *serviceFixture {
	f := &serviceFixture{
		bookings: new(mocks.BookingRepositoryMock),
		chats:    new(mocks.ChatRepositoryMock),
		messages: new(mocks.MessageRepositoryMock),
		limiter:  new(mocks.LimiterMock),
		rooms:    new(mocks.BroadcasterMock),
	}
	f.svc = chat.NewService(f.bookings, f.chats, f.messages, f.limiter, f.rooms)
	return f
}

func (f *serviceFixture) assertExpectations(t *testing.T) {
	t.Helper()
	f.bookings.AssertExpectations(t)
	f.chats.AssertExpectations(t)
	f.messages.AssertExpectations(t)
	f.limiter.AssertExpectations(t)
	f.rooms.AssertExpectations(t)
}

func directChat() models.Chat {
	return models.Chat{ID: 10, TouristID: 1, GuideID: 2, Status: models.ChatActive}
}

func bookingChat(bookingID int, status string) models.Chat {
	return models.Chat{ID: 10, TouristID: 1, GuideID: 2, BookingID: &bookingID, Status: status}
}

func TestPostMessageDirectChatSuccess(t *testing.T) {
	f := newFixture()
	ch := directChat()
	stored := models.Message{ID: 99, ChatID: 10, SenderID: 1, Content: "hi"}

	f.chats.On("GetChat", mock.Anything, 10).Return(ch, nil).Once()
	f.limiter.On("Allow", mock.Anything, 10, 1).Return(true, nil).Once()
	f.messages.On("CreateMessage", mock.Anything, 10, 1, models.RoleTourist, models.MessageTypeText, "hi").Return(stored, nil).Once()
	f.limiter.On("Record", mock.Anything, 10, 1).Return(nil).Once()
	f.rooms.On("BroadcastNewMessage", 10, stored).Once()

	msg, err := f.svc.PostMessage(context.Background(), 1, 10, "", "hi")
	require.NoError(t, err)
	assert.Equal(t, 99, msg.ID)
	f.assertExpectations(t)
}

func TestPostMessageGuideRole(t *testing.T) {
	f := newFixture()
	ch := directChat()
	stored := models.Message{ID: 100, ChatID: 10, SenderID: 2}

	f.chats.On("GetChat", mock.Anything, 10).Return(ch, nil).Once()
	f.limiter.On("Allow", mock.Anything, 10, 2).Return(true, nil).Once()
	f.messages.On("CreateMessage", mock.Anything, 10, 2, models.RoleGuide, models.MessageTypeText, "hello").Return(stored, nil).Once()
	f.limiter.On("Record", mock.Anything, 10, 2).Return(nil).Once()
	f.rooms.On("BroadcastNewMessage", 10, stored).Once()

	_, err := f.svc.PostMessage(context.Background(), 2, 10, "", "hello")
	require.NoError(t, err)
	f.assertExpectations(t)
}

func TestPostMessageAccessDenied(t *testing.T) {
	f := newFixture()
	f.chats.On("GetChat", mock.Anything, 10).Return(directChat(), nil).Once()

	_, err := f.svc.PostMessage(context.Background(), 42, 10, "", "hi")
	assert.ErrorIs(t, err, chat.ErrAccessDenied)
	f.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.rooms.AssertNotCalled(t, "BroadcastNewMessage", mock.Anything, mock.Anything)
}

func TestPostMessageClosedChatRejected(t *testing.T) {
	f := newFixture()
	expired := time.Now().Add(-time.Hour)
	ch := bookingChat(7, models.ChatPostTour)
	booking := models.Booking{ID: 7, TouristID: 1, GuideID: 2, Status: models.BookingCompleted, PostTourExpiry: &expired}

	f.chats.On("GetChat", mock.Anything, 10).Return(ch, nil).Once()
	f.bookings.On("GetBooking", mock.Anything, 7).Return(booking, nil).Once()
	f.chats.On("UpdateCachedStatus", mock.Anything, 10, models.ChatClosed, &expired).Return(nil).Once()

	_, err := f.svc.PostMessage(context.Background(), 1, 10, "", "hi")
	assert.ErrorIs(t, err, chat.ErrChatInactive)
	f.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.rooms.AssertNotCalled(t, "BroadcastNewMessage", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestPostMessageLockedChatRejected(t *testing.T) {
	f := newFixture()
	ch := bookingChat(7, models.ChatActive)
	booking := models.Booking{ID: 7, TouristID: 1, GuideID: 2, Status: models.BookingDisputed}

	f.chats.On("GetChat", mock.Anything, 10).Return(ch, nil).Once()
	f.bookings.On("GetBooking", mock.Anything, 7).Return(booking, nil).Once()
	f.chats.On("UpdateCachedStatus", mock.Anything, 10, models.ChatLocked, (*time.Time)(nil)).Return(nil).Once()

	_, err := f.svc.PostMessage(context.Background(), 1, 10, "", "hi")
	assert.ErrorIs(t, err, chat.ErrChatInactive)
	f.assertExpectations(t)
}

func TestPostMessagePersonalInfoRejected(t *testing.T) {
	f := newFixture()
	f.chats.On("GetChat", mock.Anything, 10).Return(directChat(), nil).Once()

	_, err := f.svc.PostMessage(context.Background(), 1, 10, "", "mail me at x@y.com")
	assert.ErrorIs(t, err, chat.ErrPersonalInfo)
	f.limiter.AssertNotCalled(t, "Allow", mock.Anything, mock.Anything, mock.Anything)
	f.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPostMessageRateLimited(t *testing.T) {
	f := newFixture()
	f.chats.On("GetChat", mock.Anything, 10).Return(directChat(), nil).Once()
	f.limiter.On("Allow", mock.Anything, 10, 1).Return(false, nil).Once()

	_, err := f.svc.PostMessage(context.Background(), 1, 10, "", "hi")
	assert.ErrorIs(t, err, chat.ErrRateLimited)
	f.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.rooms.AssertNotCalled(t, "BroadcastNewMessage", mock.Anything, mock.Anything)
}

func TestPostMessagePersistFailureDoesNotChargeWindow(t *testing.T) {
	f := newFixture()
	f.chats.On("GetChat", mock.Anything, 10).Return(directChat(), nil).Once()
	f.limiter.On("Allow", mock.Anything, 10, 1).Return(true, nil).Once()
	f.messages.On("CreateMessage", mock.Anything, 10, 1, models.RoleTourist, models.MessageTypeText, "hi").Return(models.Message{}, assert.AnError).Once()

	_, err := f.svc.PostMessage(context.Background(), 1, 10, "", "hi")
	assert.Error(t, err)
	f.limiter.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything)
	f.rooms.AssertNotCalled(t, "BroadcastNewMessage", mock.Anything, mock.Anything)
}

func TestOpenDirectChatAlwaysActive(t *testing.T) {
	f := newFixture()
	stale := models.Chat{ID: 10, TouristID: 1, GuideID: 2, Status: models.ChatClosed}
	f.chats.On("GetOrCreateDirectChat", mock.Anything, 1, 2).Return(stale, nil).Once()

	ch, err := f.svc.OpenDirectChat(context.Background(), 1, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, models.ChatActive, ch.Status)
	f.assertExpectations(t)
}

func TestOpenDirectChatThirdPartyDenied(t *testing.T) {
	f := newFixture()

	_, err := f.svc.OpenDirectChat(context.Background(), 5, 1, 2)
	assert.ErrorIs(t, err, chat.ErrAccessDenied)
	f.chats.AssertNotCalled(t, "GetOrCreateDirectChat", mock.Anything, mock.Anything, mock.Anything)
}

func TestOpenBookingChatRefreshesStatus(t *testing.T) {
	f := newFixture()
	expiry := time.Now().Add(48 * time.Hour)
	booking := models.Booking{ID: 7, TouristID: 1, GuideID: 2, Status: models.BookingCompleted, PostTourExpiry: &expiry}
	stale := bookingChat(7, models.ChatActive)

	f.bookings.On("GetBooking", mock.Anything, 7).Return(booking, nil).Once()
	f.chats.On("GetOrCreateBookingChat", mock.Anything, booking).Return(stale, nil).Once()
	f.chats.On("UpdateCachedStatus", mock.Anything, 10, models.ChatPostTour, &expiry).Return(nil).Once()

	ch, err := f.svc.OpenBookingChat(context.Background(), 1, 7)
	require.NoError(t, err)
	assert.Equal(t, models.ChatPostTour, ch.Status)
	f.assertExpectations(t)
}

func TestOpenBookingChatWriteBackFailureIsSwallowed(t *testing.T) {
	f := newFixture()
	booking := models.Booking{ID: 7, TouristID: 1, GuideID: 2, Status: models.BookingConfirmed}
	stale := bookingChat(7, models.ChatClosed)

	f.bookings.On("GetBooking", mock.Anything, 7).Return(booking, nil).Once()
	f.chats.On("GetOrCreateBookingChat", mock.Anything, booking).Return(stale, nil).Once()
	f.chats.On("UpdateCachedStatus", mock.Anything, 10, models.ChatActive, (*time.Time)(nil)).Return(assert.AnError).Once()

	ch, err := f.svc.OpenBookingChat(context.Background(), 1, 7)
	require.NoError(t, err)
	assert.Equal(t, models.ChatActive, ch.Status)
}

func TestOpenBookingChatUnknownBooking(t *testing.T) {
	f := newFixture()
	f.bookings.On("GetBooking", mock.Anything, 99).Return(models.Booking{}, repositories.ErrBookingNotFound).Once()

	_, err := f.svc.OpenBookingChat(context.Background(), 1, 99)
	assert.ErrorIs(t, err, repositories.ErrBookingNotFound)
}

func TestOpenBookingChatStrangerDenied(t *testing.T) {
	f := newFixture()
	booking := models.Booking{ID: 7, TouristID: 1, GuideID: 2, Status: models.BookingConfirmed}
	f.bookings.On("GetBooking", mock.Anything, 7).Return(booking, nil).Once()

	_, err := f.svc.OpenBookingChat(context.Background(), 9, 7)
	assert.ErrorIs(t, err, chat.ErrAccessDenied)
	f.chats.AssertNotCalled(t, "GetOrCreateBookingChat", mock.Anything, mock.Anything)
}

func TestListMessagesClampsPagination(t *testing.T) {
	f := newFixture()
	f.chats.On("GetChat", mock.Anything, 10).Return(directChat(), nil).Once()
	f.messages.On("ListMessages", mock.Anything, 10, 0, chat.MaxPageSize).Return([]models.Message{}, nil).Once()
	f.messages.On("MarkRead", mock.Anything, 10, 1).Return(nil).Once()

	_, err := f.svc.ListMessages(context.Background(), 1, 10, 0, 500)
	require.NoError(t, err)
	f.assertExpectations(t)
}

func TestListMessagesRefreshesBookingChatStatus(t *testing.T) {
	f := newFixture()
	ch := bookingChat(7, models.ChatActive)
	booking := models.Booking{ID: 7, TouristID: 1, GuideID: 2, Status: models.BookingCancelled}

	f.chats.On("GetChat", mock.Anything, 10).Return(ch, nil).Once()
	f.bookings.On("GetBooking", mock.Anything, 7).Return(booking, nil).Once()
	f.chats.On("UpdateCachedStatus", mock.Anything, 10, models.ChatClosed, (*time.Time)(nil)).Return(nil).Once()
	f.messages.On("ListMessages", mock.Anything, 10, 0, chat.DefaultPageSize).Return([]models.Message{}, nil).Once()
	f.messages.On("MarkRead", mock.Anything, 10, 1).Return(nil).Once()

	_, err := f.svc.ListMessages(context.Background(), 1, 10, 1, 0)
	require.NoError(t, err)
	f.assertExpectations(t)
}

func TestListMessagesMarkReadFailureIsSwallowed(t *testing.T) {
	f := newFixture()
	f.chats.On("GetChat", mock.Anything, 10).Return(directChat(), nil).Once()
	f.messages.On("ListMessages", mock.Anything, 10, 0, chat.DefaultPageSize).Return([]models.Message{{ID: 1}}, nil).Once()
	f.messages.On("MarkRead", mock.Anything, 10, 2).Return(assert.AnError).Once()

	msgs, err := f.svc.ListMessages(context.Background(), 2, 10, 1, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestCanJoin(t *testing.T) {
	f := newFixture()
	f.chats.On("GetChat", mock.Anything, 10).Return(directChat(), nil).Twice()
	f.chats.On("GetChat", mock.Anything, 11).Return(models.Chat{}, repositories.ErrChatNotFound).Once()

	ok, err := f.svc.CanJoin(context.Background(), 10, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.CanJoin(context.Background(), 10, 9)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.svc.CanJoin(context.Background(), 11, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}
