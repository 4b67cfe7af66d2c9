package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tourchat-service/internal/events"
	"tourchat-service/internal/mocks"
	"tourchat-service/internal/models"
	"tourchat-service/internal/repositories"
)

type processorFixture struct {
	bookings      *mocks.BookingRepositoryMock
	chats         *mocks.ChatRepositoryMock
	notifications *mocks.NotificationRepositoryMock
	rooms         *mocks.PersonalBroadcasterMock
	processor     *events.BookingProcessor
}

func newProcessorFixture() *processorFixture {
	f := &processorFixture{
		bookings:      new(mocks.BookingRepositoryMock),
		chats:         new(mocks.ChatRepositoryMock),
		notifications: new(mocks.NotificationRepositoryMock),
		rooms:         new(mocks.PersonalBroadcasterMock),
	}
	f.processor = events.NewBookingProcessor(f.bookings, f.chats, f.notifications, f.rooms)
	return f
}

func eventBody(t *testing.T, ev models.BookingEvent) []byte {
	t.Helper()
	body, err := json.Marshal(ev)
	require.NoError(t, err)
	return body
}

func TestProcessAppliesStatusAndNotifiesBothParties(t *testing.T) {
	f := newProcessorFixture()
	bookingID := 7
	booking := models.Booking{ID: 7, TouristID: 1, GuideID: 2, Destination: "Lisbon", Status: models.BookingCancelled}
	linked := models.Chat{ID: 3, TouristID: 1, GuideID: 2, BookingID: &bookingID, Status: models.ChatActive}

	f.bookings.On("ApplyStatus", mock.Anything, 7, models.BookingCancelled, (*time.Time)(nil)).Return(nil).Once()
	f.bookings.On("GetBooking", mock.Anything, 7).Return(booking, nil).Once()
	f.chats.On("GetChatByBooking", mock.Anything, 7).Return(linked, nil).Once()
	f.chats.On("UpdateCachedStatus", mock.Anything, 3, models.ChatClosed, (*time.Time)(nil)).Return(nil).Once()
	f.notifications.On("Create", mock.Anything, 1, models.NotificationBookingStatus, &booking.ID, mock.AnythingOfType("string")).Return(models.Notification{ID: 1}, nil).Once()
	f.notifications.On("Create", mock.Anything, 2, models.NotificationBookingStatus, &booking.ID, mock.AnythingOfType("string")).Return(models.Notification{ID: 2}, nil).Once()
	f.rooms.On("BroadcastBookingUpdate", 1, booking).Once()
	f.rooms.On("BroadcastBookingUpdate", 2, booking).Once()

	err := f.processor.Process(context.Background(), eventBody(t, models.BookingEvent{BookingID: 7, Status: models.BookingCancelled}))
	require.NoError(t, err)

	f.bookings.AssertExpectations(t)
	f.chats.AssertExpectations(t)
	f.notifications.AssertExpectations(t)
	f.rooms.AssertExpectations(t)
}

func TestProcessSkipsChatRefreshWhenNoChatExists(t *testing.T) {
	f := newProcessorFixture()
	booking := models.Booking{ID: 7, TouristID: 1, GuideID: 2, Status: models.BookingConfirmed}

	f.bookings.On("ApplyStatus", mock.Anything, 7, models.BookingConfirmed, (*time.Time)(nil)).Return(nil).Once()
	f.bookings.On("GetBooking", mock.Anything, 7).Return(booking, nil).Once()
	f.chats.On("GetChatByBooking", mock.Anything, 7).Return(models.Chat{}, repositories.ErrChatNotFound).Once()
	f.notifications.On("Create", mock.Anything, mock.Anything, models.NotificationBookingStatus, mock.Anything, mock.AnythingOfType("string")).Return(models.Notification{}, nil).Twice()
	f.rooms.On("BroadcastBookingUpdate", mock.Anything, booking).Twice()

	err := f.processor.Process(context.Background(), eventBody(t, models.BookingEvent{BookingID: 7, Status: models.BookingConfirmed}))
	require.NoError(t, err)
	f.chats.AssertNotCalled(t, "UpdateCachedStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessDropsUnknownBooking(t *testing.T) {
	f := newProcessorFixture()

	f.bookings.On("ApplyStatus", mock.Anything, 99, models.BookingConfirmed, (*time.Time)(nil)).Return(nil).Once()
	f.bookings.On("GetBooking", mock.Anything, 99).Return(models.Booking{}, repositories.ErrBookingNotFound).Once()

	err := f.processor.Process(context.Background(), eventBody(t, models.BookingEvent{BookingID: 99, Status: models.BookingConfirmed}))
	require.NoError(t, err)
	f.notifications.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.rooms.AssertNotCalled(t, "BroadcastBookingUpdate", mock.Anything, mock.Anything)
}

func TestProcessRejectsMalformedBody(t *testing.T) {
	f := newProcessorFixture()

	err := f.processor.Process(context.Background(), []byte("not json"))
	assert.Error(t, err)
	f.bookings.AssertNotCalled(t, "ApplyStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessLeavesCacheWhenStatusUnchanged(t *testing.T) {
	f := newProcessorFixture()
	bookingID := 7
	booking := models.Booking{ID: 7, TouristID: 1, GuideID: 2, Status: models.BookingConfirmed}
	linked := models.Chat{ID: 3, TouristID: 1, GuideID: 2, BookingID: &bookingID, Status: models.ChatActive}

	f.bookings.On("ApplyStatus", mock.Anything, 7, models.BookingConfirmed, (*time.Time)(nil)).Return(nil).Once()
	f.bookings.On("GetBooking", mock.Anything, 7).Return(booking, nil).Once()
	f.chats.On("GetChatByBooking", mock.Anything, 7).Return(linked, nil).Once()
	f.notifications.On("Create", mock.Anything, mock.Anything, models.NotificationBookingStatus, mock.Anything, mock.AnythingOfType("string")).Return(models.Notification{}, nil).Twice()
	f.rooms.On("BroadcastBookingUpdate", mock.Anything, booking).Twice()

	err := f.processor.Process(context.Background(), eventBody(t, models.BookingEvent{BookingID: 7, Status: models.BookingConfirmed}))
	require.NoError(t, err)
	f.chats.AssertNotCalled(t, "UpdateCachedStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
