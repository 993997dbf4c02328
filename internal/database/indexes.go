package database

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func EnsureProductIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("products").Indexes()

	codeIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "code", Value: 1}},
		Options: options.Index().
			SetName("code_unique").
			SetUnique(true).
			SetPartialFilterExpression(bson.M{
				"code": bson.M{
					"$exists": true,
				},
			}),
	}
	comboIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "isCombo", Value: 1}, {Key: "name", Value: 1}},
		Options: options.Index().SetName("isCombo_name"),
	}

	log.Println("EnsureProductIndexes: creating code_unique, isCombo_name indexes")
	if _, err := indexes.CreateMany(ctx, []mongo.IndexModel{codeIndex, comboIndex}); err != nil {
		log.Println("EnsureProductIndexes: index error:", err)
		return err
	}
	log.Println("EnsureProductIndexes: product indexes created")
	return nil
}

func EnsureOperatorIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("operators").Indexes()

	emailIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
		Options: options.Index().
			SetName("email_unique").
			SetUnique(true),
	}

	log.Println("EnsureOperatorIndexes: creating email_unique index")
	_, err := indexes.CreateOne(ctx, emailIndex)
	if err != nil {
		log.Println("EnsureOperatorIndexes: email index error:", err)
		return err
	}
	log.Println("EnsureOperatorIndexes: email_unique index created")
	return nil
}

func EnsureOrderIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("orders").Indexes()

	createdIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "kind", Value: 1}, {Key: "createdAt", Value: -1}},
		Options: options.Index().SetName("kind_createdAt"),
	}

	log.Println("EnsureOrderIndexes: creating kind_createdAt index")
	_, err := indexes.CreateOne(ctx, createdIndex)
	if err != nil {
		log.Println("EnsureOrderIndexes: kind_createdAt index error:", err)
		return err
	}
	log.Println("EnsureOrderIndexes: kind_createdAt index created")
	return nil
}

// EnsureDraftIndexes expires drafts nobody touched for ttl.
func EnsureDraftIndexes(db *mongo.Database, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("drafts").Indexes()

	ttlIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "updatedAt", Value: 1}},
		Options: options.Index().
			SetName("updatedAt_ttl").
			SetExpireAfterSeconds(int32(ttl.Seconds())),
	}

	log.Printf("EnsureDraftIndexes: creating updatedAt_ttl index (%s)", ttl)
	_, err := indexes.CreateOne(ctx, ttlIndex)
	if err != nil {
		log.Println("EnsureDraftIndexes: ttl index error:", err)
		return err
	}
	log.Println("EnsureDraftIndexes: updatedAt_ttl index created")
	return nil
}

func EnsureNotificationIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("notifications").Indexes()

	readIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "read", Value: 1}, {Key: "createdAt", Value: -1}},
		Options: options.Index().SetName("read_createdAt"),
	}

	log.Println("EnsureNotificationIndexes: creating read_createdAt index")
	_, err := indexes.CreateOne(ctx, readIndex)
	if err != nil {
		log.Println("EnsureNotificationIndexes: read_createdAt index error:", err)
		return err
	}
	log.Println("EnsureNotificationIndexes: read_createdAt index created")
	return nil
}
