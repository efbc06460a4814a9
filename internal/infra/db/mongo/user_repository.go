package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"convo/internal/domain/user"
)

// UserRepository is the directory projection. It is written outside conversation units
// by the directory consumer.
type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection(usersCollection)}
}

func (r *UserRepository) ByID(ctx context.Context, id user.ID) (*user.User, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *UserRepository) ByHandle(ctx context.Context, handle string) (*user.User, error) {
	handle = user.NormalizeHandle(handle)
	if handle == "" {
		return nil, user.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"handle": handle})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*user.User, error) {
	var doc userDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, user.ErrNotFound
		}
		return nil, err
	}
	u := doc.toUser()
	return &u, nil
}

func (r *UserRepository) ByIDs(ctx context.Context, ids []user.ID) (map[user.ID]user.User, error) {
	out := make(map[user.ID]user.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := r.col.Find(ctx, bson.M{"_id": bson.M{"$in": toStrings(ids)}})
	if err != nil {
		return nil, err
	}
	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	for _, doc := range docs {
		u := doc.toUser()
		out[u.ID] = u
	}
	return out, nil
}

func (r *UserRepository) Upsert(ctx context.Context, u user.User) error {
	doc := newUserDocument(u)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return user.ErrHandleUsed
	}
	return err
}

var _ user.Store = (*UserRepository)(nil)
