package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"chat-backend/internal/models"
	"chat-backend/internal/repositories"
)

// UserRepo stores users as single documents with embedded sets.
type UserRepo struct {
	coll *mongo.Collection
}

func (r *UserRepo) Create(ctx context.Context, u models.User) (models.User, error) {
	u = normalizeUser(u)
	if _, err := r.coll.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.User{}, repositories.ErrDuplicate
		}
		return models.User{}, err
	}
	noteWrite(ctx)
	return u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (models.User, error) {
	return decodeUser(r.coll.FindOne(ctx, bson.M{"_id": id}))
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return decodeUser(r.coll.FindOne(ctx, bson.M{"email": email}))
}

func (r *UserRepo) ListByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	users, err := r.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	return repositories.OrderByIDs(ids, users, func(u models.User) string { return u.ID }), nil
}

func (r *UserRepo) ListByEmails(ctx context.Context, emails []string) ([]models.User, error) {
	if len(emails) == 0 {
		return []models.User{}, nil
	}
	return r.find(ctx, bson.M{"email": bson.M{"$in": emails}}, options.Find().SetSort(bson.D{{Key: "email", Value: 1}}))
}

func (r *UserRepo) find(ctx context.Context, filter bson.M, opts ...options.Lister[options.FindOptions]) ([]models.User, error) {
	cur, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	out := make([]models.User, 0, len(users))
	for _, u := range users {
		out = append(out, normalizeUser(u))
	}
	return out, nil
}

func (r *UserRepo) Delete(ctx context.Context, id string) (models.User, error) {
	u, err := decodeUser(r.coll.FindOneAndDelete(ctx, bson.M{"_id": id}))
	if err == nil {
		noteWrite(ctx)
	}
	return u, err
}

func (r *UserRepo) AddToSet(ctx context.Context, userID string, set repositories.UserSet, value string) error {
	return r.update(ctx, userID, bson.M{"$addToSet": bson.M{string(set): value}})
}

func (r *UserRepo) Pull(ctx context.Context, userID string, set repositories.UserSet, value string) error {
	return r.update(ctx, userID, bson.M{"$pull": bson.M{string(set): value}})
}

func (r *UserRepo) PullFromAll(ctx context.Context, set repositories.UserSet, value string) error {
	res, err := r.coll.UpdateMany(ctx, bson.M{string(set): value}, bson.M{"$pull": bson.M{string(set): value}})
	if err != nil {
		return err
	}
	if res.ModifiedCount > 0 {
		noteWrite(ctx)
	}
	return nil
}

func (r *UserRepo) SetProfile(ctx context.Context, userID string, profile models.Profile) error {
	return r.update(ctx, userID, bson.M{"$set": bson.M{"profile": profile}})
}

func (r *UserRepo) SetToken(ctx context.Context, userID string, token string) error {
	return r.update(ctx, userID, bson.M{"$set": bson.M{"token": token}})
}

func (r *UserRepo) update(ctx context.Context, userID string, update bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	noteWrite(ctx)
	return nil
}

func decodeUser(res *mongo.SingleResult) (models.User, error) {
	var u models.User
	if err := res.Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, repositories.ErrNotFound
		}
		return models.User{}, err
	}
	return normalizeUser(u), nil
}

// normalizeUser replaces nil sets, which would be stored as null and
// reject $addToSet.
func normalizeUser(u models.User) models.User {
	u.Chats = emptyIfNil(u.Chats)
	u.ChatRequests = emptyIfNil(u.ChatRequests)
	u.Friends = emptyIfNil(u.Friends)
	u.IncomingFriendRequests = emptyIfNil(u.IncomingFriendRequests)
	u.OutgoingFriendRequests = emptyIfNil(u.OutgoingFriendRequests)
	return u
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
