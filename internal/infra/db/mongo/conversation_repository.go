package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"convo/internal/domain/conversation"
	"convo/internal/domain/user"
)

type ConversationRepository struct {
	col *mongo.Collection
}

func NewConversationRepository(db *mongo.Database) *ConversationRepository {
	return &ConversationRepository{col: db.Collection(conversationsCollection)}
}

func (r *ConversationRepository) ByID(ctx context.Context, id conversation.ID) (*conversation.Conversation, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *ConversationRepository) ByDirectKey(ctx context.Context, key string) (*conversation.Conversation, error) {
	return r.findOne(ctx, bson.M{"direct_key": key})
}

func (r *ConversationRepository) findOne(ctx context.Context, filter bson.M) (*conversation.Conversation, error) {
	var doc conversationDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, conversation.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *ConversationRepository) Create(ctx context.Context, c *conversation.Conversation) error {
	doc := newConversationDocument(c)
	doc.Version = 1
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return mapCreateError(err)
	}
	c.Version = doc.Version
	return nil
}

func (r *ConversationRepository) Save(ctx context.Context, c *conversation.Conversation) error {
	doc := newConversationDocument(c)
	doc.Version = c.Version + 1
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID, "version": c.Version}, doc)
	if err != nil {
		return mapWriteError(err, conversation.ErrConcurrentUpdate)
	}
	if res.MatchedCount == 0 {
		if _, err := r.ByID(ctx, c.ID); err != nil {
			return err
		}
		return conversation.ErrConcurrentUpdate
	}
	c.Version = doc.Version
	return nil
}

func (r *ConversationRepository) Delete(ctx context.Context, id conversation.ID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return mapWriteError(err, conversation.ErrConcurrentUpdate)
	}
	if res.DeletedCount == 0 {
		return conversation.ErrNotFound
	}
	return nil
}

// GroupsWithin matches groups having no participant outside members.
func (r *ConversationRepository) GroupsWithin(ctx context.Context, members []user.ID) ([]*conversation.Conversation, error) {
	ids := toStrings(members)
	filter := bson.M{
		"kind":         string(conversation.KindGroup),
		"participants": bson.M{"$not": bson.M{"$elemMatch": bson.M{"$nin": ids}}},
	}
	return r.find(ctx, filter, 0)
}

func (r *ConversationRepository) ListForParticipant(ctx context.Context, userID user.ID, limit int) ([]*conversation.Conversation, error) {
	return r.find(ctx, bson.M{"participants": string(userID)}, limit)
}

func (r *ConversationRepository) find(ctx context.Context, filter bson.M, limit int) ([]*conversation.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []conversationDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*conversation.Conversation, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toAggregate())
	}
	return out, nil
}

func toStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

var _ conversation.Repository = (*ConversationRepository)(nil)
