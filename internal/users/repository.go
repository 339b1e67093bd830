package users

import (
	"context"
	"errors"
	"time"

	"github.com/imaginify/imaginify/backend/go-services/internal/apperror"
	"github.com/imaginify/imaginify/backend/go-services/internal/cache"
	"github.com/imaginify/imaginify/backend/go-services/internal/models"
	"github.com/imaginify/imaginify/backend/go-services/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the MongoDB collection holding user records.
const CollectionName = "users"

// Messages reported for missing records.
const (
	MsgNotFound            = "User not found"
	MsgUpdateFailed        = "User update failed"
	MsgCreditsUpdateFailed = "User credits update failed"
)

// CreateParams is the draft built from an account-created notification.
type CreateParams struct {
	ClerkID   string
	Email     string
	Username  string
	FirstName string
	LastName  string
	Photo     string
}

// UpdateParams holds the only fields an account-updated notification may change.
type UpdateParams struct {
	FirstName string
	LastName  string
	Username  string
	Photo     string
}

// UserRepository defines persistence operations for users. Failures are
// returned as *apperror.AppError: ErrNotFound for missing records and
// ErrRepository for anything the storage layer raised.
type UserRepository interface {
	Create(ctx context.Context, p CreateParams) (*models.User, error)
	FindByExternalID(ctx context.Context, clerkID string) (*models.User, error)
	Update(ctx context.Context, clerkID string, p UpdateParams) (*models.User, error)
	Delete(ctx context.Context, clerkID string) (*models.User, error)
	AdjustCredits(ctx context.Context, userID string, delta int64) (*models.User, error)
	MarkMetadataSynced(ctx context.Context, id primitive.ObjectID) error
	ListUnsynced(ctx context.Context, createdBefore time.Time, limit int64) ([]*models.User, error)
}

// CollectionProvider hands out a collection, connecting first if needed.
// *database.Connector satisfies it.
type CollectionProvider interface {
	Collection(ctx context.Context, name string) (*mongo.Collection, error)
}

// MongoUserRepository implements UserRepository using MongoDB. The
// collection is acquired on every call so the connection is established
// lazily and shared through the provider.
type MongoUserRepository struct {
	cols        CollectionProvider
	invalidator cache.Invalidator
	now         func() time.Time
}

// NewMongoUserRepository creates a repository. A nil invalidator disables
// cache invalidation on delete.
func NewMongoUserRepository(cols CollectionProvider, inv cache.Invalidator) *MongoUserRepository {
	if inv == nil {
		inv = cache.NoopInvalidator{}
	}
	return &MongoUserRepository{cols: cols, invalidator: inv, now: func() time.Time { return time.Now().UTC() }}
}

func (r *MongoUserRepository) col(ctx context.Context) (*mongo.Collection, error) {
	return r.cols.Collection(ctx, CollectionName)
}

// EnsureIndexes creates the unique clerkId index.
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	col, err := r.col(ctx)
	if err != nil {
		return apperror.Repository("ensure indexes", err)
	}
	idx := mongo.IndexModel{Keys: bson.D{{Key: "clerkId", Value: 1}}, Options: options.Index().SetUnique(true)}
	if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
		return apperror.Repository("ensure indexes", err)
	}
	return nil
}

// Create inserts the user unless a record with the same clerkId exists, in
// which case the existing record is returned untouched. Redelivered
// notifications therefore never produce duplicates.
func (r *MongoUserRepository) Create(ctx context.Context, p CreateParams) (*models.User, error) {
	col, err := r.col(ctx)
	if err != nil {
		return nil, apperror.Repository("create user", err)
	}
	now := r.now()
	filter := bson.M{"clerkId": p.ClerkID}
	upd := bson.M{"$setOnInsert": bson.M{
		"email":          p.Email,
		"username":       p.Username,
		"firstName":      p.FirstName,
		"lastName":       p.LastName,
		"photo":          p.Photo,
		"planId":         models.DefaultPlanID,
		"creditBalance":  int64(models.DefaultCreditBalance),
		"metadataSynced": false,
		"createdAt":      now,
		"updatedAt":      now,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var u models.User
	if err := col.FindOneAndUpdate(ctx, filter, upd, opts).Decode(&u); err != nil {
		return nil, apperror.Repository("create user", err)
	}
	return &u, nil
}

func (r *MongoUserRepository) FindByExternalID(ctx context.Context, clerkID string) (*models.User, error) {
	col, err := r.col(ctx)
	if err != nil {
		return nil, apperror.Repository("find user", err)
	}
	var u models.User
	if err := col.FindOne(ctx, bson.M{"clerkId": clerkID}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound(MsgNotFound)
		}
		return nil, apperror.Repository("find user", err)
	}
	return &u, nil
}

func (r *MongoUserRepository) Update(ctx context.Context, clerkID string, p UpdateParams) (*models.User, error) {
	col, err := r.col(ctx)
	if err != nil {
		return nil, apperror.Repository("update user", err)
	}
	upd := bson.M{"$set": bson.M{
		"firstName": p.FirstName,
		"lastName":  p.LastName,
		"username":  p.Username,
		"photo":     p.Photo,
		"updatedAt": r.now(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	if err := col.FindOneAndUpdate(ctx, bson.M{"clerkId": clerkID}, upd, opts).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound(MsgUpdateFailed)
		}
		return nil, apperror.Repository("update user", err)
	}
	if err := r.invalidator.Invalidate(ctx, UserPath(clerkID)); err != nil {
		logger.Warnf("cache invalidation after updating %s failed: %v", clerkID, err)
	}
	return &u, nil
}

// Delete looks the user up by clerkId, removes it by local id and
// invalidates cached pages. The returned user is nil when the record
// disappeared between lookup and delete.
func (r *MongoUserRepository) Delete(ctx context.Context, clerkID string) (*models.User, error) {
	existing, err := r.FindByExternalID(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	col, err := r.col(ctx)
	if err != nil {
		return nil, apperror.Repository("delete user", err)
	}
	var deleted models.User
	var out *models.User
	err = col.FindOneAndDelete(ctx, bson.M{"_id": existing.ID}).Decode(&deleted)
	switch {
	case err == nil:
		out = &deleted
	case errors.Is(err, mongo.ErrNoDocuments):
	default:
		return nil, apperror.Repository("delete user", err)
	}
	if err := r.invalidator.Invalidate(ctx, "/"); err != nil {
		logger.Warnf("cache invalidation after deleting %s failed: %v", clerkID, err)
	}
	return out, nil
}

// AdjustCredits atomically adds delta (may be negative) to the balance of
// the user with the given local id.
func (r *MongoUserRepository) AdjustCredits(ctx context.Context, userID string, delta int64) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, apperror.NotFound(MsgCreditsUpdateFailed)
	}
	col, err := r.col(ctx)
	if err != nil {
		return nil, apperror.Repository("adjust credits", err)
	}
	upd := bson.M{
		"$inc": bson.M{"creditBalance": delta},
		"$set": bson.M{"updatedAt": r.now()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	if err := col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, upd, opts).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound(MsgCreditsUpdateFailed)
		}
		return nil, apperror.Repository("adjust credits", err)
	}
	return &u, nil
}

func (r *MongoUserRepository) MarkMetadataSynced(ctx context.Context, id primitive.ObjectID) error {
	col, err := r.col(ctx)
	if err != nil {
		return apperror.Repository("mark metadata synced", err)
	}
	res, err := col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"metadataSynced": true}})
	if err != nil {
		return apperror.Repository("mark metadata synced", err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound(MsgNotFound)
	}
	return nil
}

// ListUnsynced returns users whose metadata write-back has not completed
// and that were created before the given time.
func (r *MongoUserRepository) ListUnsynced(ctx context.Context, createdBefore time.Time, limit int64) ([]*models.User, error) {
	col, err := r.col(ctx)
	if err != nil {
		return nil, apperror.Repository("list unsynced users", err)
	}
	filter := bson.M{"metadataSynced": false, "createdAt": bson.M{"$lt": createdBefore}}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, apperror.Repository("list unsynced users", err)
	}
	defer cur.Close(ctx)
	out := []*models.User{}
	for cur.Next(ctx) {
		var u models.User
		if err := cur.Decode(&u); err != nil {
			return nil, apperror.Repository("list unsynced users", err)
		}
		out = append(out, &u)
	}
	if err := cur.Err(); err != nil {
		return nil, apperror.Repository("list unsynced users", err)
	}
	return out, nil
}
