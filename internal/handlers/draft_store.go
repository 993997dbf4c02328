package handlers

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"pos-backend/internal/models"
)

var errDraftNotFound = errors.New("draft not found")

// draftConflictError means somebody saved the draft after it was read.
type draftConflictError struct {
	DraftID primitive.ObjectID
	Version int64
}

func (e draftConflictError) Error() string {
	return "draft was modified concurrently"
}

// draftFilter scopes a draft lookup to its owner unless the caller is an
// admin.
func draftFilter(id primitive.ObjectID, operatorID, role string) bson.M {
	filter := bson.M{"_id": id}
	if role != models.RoleAdmin {
		filter["operatorId"] = operatorID
	}
	return filter
}

func loadDraft(ctx context.Context, db *mongo.Database, filter bson.M) (*models.Draft, error) {
	var draft models.Draft
	err := db.Collection("drafts").FindOne(ctx, filter).Decode(&draft)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errDraftNotFound
	}
	if err != nil {
		return nil, err
	}
	return &draft, nil
}

// saveDraft replaces the draft only if nobody saved it since it was read, and
// bumps its version.
func saveDraft(ctx context.Context, db *mongo.Database, draft *models.Draft) error {
	prev := draft.Version
	draft.Version = prev + 1
	draft.UpdatedAt = time.Now().UTC()

	res, err := db.Collection("drafts").ReplaceOne(ctx, bson.M{"_id": draft.ID, "version": prev}, draft)
	if err != nil {
		draft.Version = prev
		return err
	}
	if res.MatchedCount == 0 {
		draft.Version = prev
		return draftConflictError{DraftID: draft.ID, Version: prev}
	}
	return nil
}
