package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"tourchat-service/internal/chat"
	"tourchat-service/internal/models"
	"tourchat-service/internal/observability"
	"tourchat-service/internal/repositories"
)

// PersonalBroadcaster pushes booking updates to a user's personal room.
type PersonalBroadcaster interface {
	BroadcastBookingUpdate(userID int, booking models.Booking)
}

// BookingProcessor applies one booking lifecycle event: records the status
// change, refreshes the linked chat's cached status, writes a notification
// for each party and pushes the update to their personal rooms.
type BookingProcessor struct {
	bookings      repositories.BookingRepository
	chats         repositories.ChatRepository
	notifications repositories.NotificationRepository
	rooms         PersonalBroadcaster
	now           func() time.Time
}

// NewBookingProcessor constructs a BookingProcessor.
func NewBookingProcessor(bookings repositories.BookingRepository, chats repositories.ChatRepository, notifications repositories.NotificationRepository, rooms PersonalBroadcaster) *BookingProcessor {
	return &BookingProcessor{
		bookings:      bookings,
		chats:         chats,
		notifications: notifications,
		rooms:         rooms,
		now:           time.Now,
	}
}

// Process handles one raw event body. Events for bookings this service has
// never seen are logged and dropped rather than retried.
func (p *BookingProcessor) Process(ctx context.Context, body []byte) error {
	var ev models.BookingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		observability.IncBookingEvent("malformed")
		return fmt.Errorf("decode booking event: %w", err)
	}

	if err := p.bookings.ApplyStatus(ctx, ev.BookingID, ev.Status, ev.PostTourExpiry); err != nil {
		observability.IncBookingEvent("error")
		return fmt.Errorf("apply booking status: %w", err)
	}

	booking, err := p.bookings.GetBooking(ctx, ev.BookingID)
	if err != nil {
		if errors.Is(err, repositories.ErrBookingNotFound) {
			log.Printf("booking event for unknown booking_id=%d dropped", ev.BookingID)
			observability.IncBookingEvent("unknown_booking")
			return nil
		}
		observability.IncBookingEvent("error")
		return err
	}

	if err := p.refreshChat(ctx, booking); err != nil {
		observability.IncBookingEvent("error")
		return err
	}

	text := fmt.Sprintf("Booking for %s is now %s", booking.Destination, booking.Status)
	for _, recipient := range []int{booking.TouristID, booking.GuideID} {
		if _, err := p.notifications.Create(ctx, recipient, models.NotificationBookingStatus, &booking.ID, text); err != nil {
			observability.IncBookingEvent("error")
			return fmt.Errorf("create notification: %w", err)
		}
		if p.rooms != nil {
			p.rooms.BroadcastBookingUpdate(recipient, booking)
		}
	}

	observability.IncBookingEvent("applied")
	return nil
}

// refreshChat keeps the chat's cached status current so the next read does
// not pay for the recompute. No chat yet means nobody has opened the
// conversation; nothing to refresh.
func (p *BookingProcessor) refreshChat(ctx context.Context, booking models.Booking) error {
	linked, err := p.chats.GetChatByBooking(ctx, booking.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrChatNotFound) {
			return nil
		}
		return err
	}

	status := chat.ResolveStatus(booking.Status, booking.PostTourExpiry, p.now())
	if status == linked.Status {
		return nil
	}
	return p.chats.UpdateCachedStatus(ctx, linked.ID, status, booking.PostTourExpiry)
}

// BookingConsumer binds a queue to the booking subsystem's status events
// and feeds them through a BookingProcessor.
type BookingConsumer struct {
	conn      *amqp.Connection
	ch        *amqp.Channel
	queue     string
	processor *BookingProcessor
}

// NewBookingConsumer dials AMQP, declares the topology and returns a
// consumer ready to Run.
func NewBookingConsumer(amqpURL, exchange, queue string, processor *BookingProcessor) (*BookingConsumer, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	if err := ch.QueueBind(queue, "booking.status.*", exchange, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &BookingConsumer{conn: conn, ch: ch, queue: queue, processor: processor}, nil
}

// Run consumes until the context is cancelled or the channel closes.
// Failed events are dead-lettered via nack; retry policy belongs to the
// broker topology, not this loop.
func (c *BookingConsumer) Run(ctx context.Context) error {
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	log.Printf("booking event consumer started queue=%s", c.queue)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("amqp deliveries channel closed")
			}
			if err := c.processor.Process(ctx, d.Body); err != nil {
				log.Printf("booking event rejected: %v", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Close releases the channel and connection.
func (c *BookingConsumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
