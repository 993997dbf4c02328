// Package notify records operational events raised by the register, such as
// submitted orders and stock running low.
package notify

import (
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"pos-backend/internal/models"
)

const (
	EventOrderSubmitted = "order.submitted"
	EventStockLow       = "stock.low"
)

type Event struct {
	Type    string
	Message string
	Data    map[string]interface{}
}

type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// MongoNotifier stores events in the notifications collection.
type MongoNotifier struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoNotifier(db *mongo.Database) *MongoNotifier {
	return &MongoNotifier{
		collection: db.Collection("notifications"),
		now:        time.Now,
	}
}

func (n *MongoNotifier) Notify(ctx context.Context, event Event) error {
	doc := toNotification(event, n.now())
	if _, err := n.collection.InsertOne(ctx, doc); err != nil {
		log.Println("[NOTIFY] [ERROR] insert failed:", err)
		return err
	}
	return nil
}

func toNotification(event Event, at time.Time) models.Notification {
	return models.Notification{
		Type:      event.Type,
		Message:   event.Message,
		Data:      event.Data,
		Read:      false,
		CreatedAt: at.UTC(),
	}
}

type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, event Event) error {
	log.Printf("[NOTIFY] [INFO] %s: %s", event.Type, event.Message)
	return nil
}

// Multi delivers every event to each notifier in turn. A failing notifier
// does not stop the others; the errors are joined.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }
