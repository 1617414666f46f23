package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"stillmind/internal/model"
)

// mongoUserRepo is the document-store UserRepo.
type mongoUserRepo struct {
	collection *mongo.Collection
}

// NewMongoUserRepo creates a UserRepo over the "users" collection.
func NewMongoUserRepo(db *mongo.Database) UserRepo {
	return &mongoUserRepo{collection: db.Collection("users")}
}

func (r *mongoUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.collection.InsertOne(ctx, user)
	return err
}

func (r *mongoUserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *mongoUserRepo) GetByIDs(ctx context.Context, ids []string) (map[string]*model.User, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := make(map[string]*model.User)
	for cursor.Next(ctx) {
		var u model.User
		if err := cursor.Decode(&u); err != nil {
			continue
		}
		users[u.ID] = &u
	}
	return users, cursor.Err()
}

func (r *mongoUserRepo) SetDisplayName(ctx context.Context, id, name string) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"displayName": name}})
	return err
}

func (r *mongoUserRepo) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"lastSeenAt": at}})
	return err
}

func (r *mongoUserRepo) IncrementStats(ctx context.Context, id string, delta model.StatsDelta, at time.Time) (int, error) {
	update := bson.M{
		"$inc": bson.M{
			"totalSeconds":  delta.SecondsDelta,
			"sessionsCount": delta.SessionDelta,
		},
	}
	if delta.TouchLastSeen {
		update["$set"] = bson.M{"lastSeenAt": at}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user model.User
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return 0, fmt.Errorf("user %s not found", id)
		}
		return 0, err
	}
	return user.TotalSeconds, nil
}

func (r *mongoUserRepo) Count(ctx context.Context) (int, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{})
	return int(n), err
}

func (r *mongoUserRepo) CountActiveSince(ctx context.Context, since time.Time) (int, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"lastSeenAt": bson.M{"$gte": since}})
	return int(n), err
}

func (r *mongoUserRepo) CountWithGreaterTotal(ctx context.Context, seconds int) (int, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"totalSeconds": bson.M{"$gt": seconds}})
	return int(n), err
}

func (r *mongoUserRepo) TopByTotalSeconds(ctx context.Context, limit int) ([]*model.User, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "totalSeconds", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []*model.User
	for cursor.Next(ctx) {
		var u model.User
		if err := cursor.Decode(&u); err != nil {
			continue
		}
		users = append(users, &u)
	}
	return users, cursor.Err()
}

// mongoSessionRepo is the document-store SessionRepo.
type mongoSessionRepo struct {
	collection *mongo.Collection
}

// NewMongoSessionRepo creates a SessionRepo over the "sessions" collection.
func NewMongoSessionRepo(db *mongo.Database) SessionRepo {
	return &mongoSessionRepo{collection: db.Collection("sessions")}
}

func (r *mongoSessionRepo) Create(ctx context.Context, session *model.Session) error {
	_, err := r.collection.InsertOne(ctx, session)
	return err
}

func (r *mongoSessionRepo) GetByID(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *mongoSessionRepo) Close(ctx context.Context, id string, durationSeconds int, endedAt time.Time) error {
	// Matching only active sessions makes a repeated close a no-op.
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "isActive": true},
		bson.M{"$set": bson.M{
			"endedAt":         endedAt,
			"durationSeconds": durationSeconds,
			"isActive":        false,
		}})
	return err
}
