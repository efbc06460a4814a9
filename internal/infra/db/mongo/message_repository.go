package mongo

import (
	"context"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"convo/internal/domain/conversation"
	"convo/internal/domain/user"
)

type MessageRepository struct {
	col *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) *MessageRepository {
	return &MessageRepository{col: db.Collection(messagesCollection)}
}

func (r *MessageRepository) Append(ctx context.Context, m conversation.Message) error {
	_, err := r.col.InsertOne(ctx, newMessageDocument(m))
	return mapWriteError(err, conversation.ErrConcurrentUpdate)
}

// List reads ascending after a forward cursor, otherwise descending from the newest
// end, and always returns the page oldest first.
func (r *MessageRepository) List(ctx context.Context, conversationID conversation.ID, page conversation.Page) ([]conversation.Message, error) {
	filter := bson.M{"conversation_id": string(conversationID)}
	window := bson.M{}
	if !page.After.IsZero() {
		window["$gt"] = toMicros(page.After)
	}
	if !page.Before.IsZero() {
		window["$lt"] = toMicros(page.Before)
	}
	if len(window) > 0 {
		filter["created_at"] = window
	}
	direction := -1
	if !page.After.IsZero() {
		direction = 1
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: direction}, {Key: "_id", Value: direction}})
	if page.Limit > 0 {
		opts.SetLimit(int64(page.Limit))
	}
	docs, err := r.find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	out := make([]conversation.Message, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toMessage())
	}
	if direction < 0 {
		slices.Reverse(out)
	}
	return out, nil
}

func (r *MessageRepository) MarkRead(ctx context.Context, conversationID conversation.ID, reader user.ID, at time.Time) (int, error) {
	res, err := r.col.UpdateMany(ctx, unreadFilter([]string{string(conversationID)}, reader), bson.M{
		"$set": bson.M{"read_at": toMicros(at)},
	})
	if err != nil {
		return 0, mapWriteError(err, conversation.ErrConcurrentUpdate)
	}
	return int(res.ModifiedCount), nil
}

func (r *MessageRepository) Latest(ctx context.Context, conversationIDs []conversation.ID) (map[conversation.ID]conversation.Message, error) {
	out := make(map[conversation.ID]conversation.Message, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return out, nil
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"conversation_id": bson.M{"$in": toStrings(conversationIDs)}}}},
		{{Key: "$sort", Value: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$group", Value: bson.M{"_id": "$conversation_id", "doc": bson.M{"$first": "$$ROOT"}}}},
	}
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Doc messageDocument `bson:"doc"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	for _, row := range rows {
		m := row.Doc.toMessage()
		out[m.ConversationID] = m
	}
	return out, nil
}

func (r *MessageRepository) UnreadCounts(ctx context.Context, conversationIDs []conversation.ID, reader user.ID) (map[conversation.ID]int, error) {
	out := make(map[conversation.ID]int, len(conversationIDs))
	for _, id := range conversationIDs {
		out[id] = 0
	}
	if len(conversationIDs) == 0 {
		return out, nil
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: unreadFilter(toStrings(conversationIDs), reader)}},
		{{Key: "$group", Value: bson.M{"_id": "$conversation_id", "count": bson.M{"$sum": 1}}}},
	}
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID    string `bson:"_id"`
		Count int    `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[conversation.ID(row.ID)] = row.Count
	}
	return out, nil
}

func (r *MessageRepository) DeleteByConversation(ctx context.Context, conversationID conversation.ID) error {
	_, err := r.col.DeleteMany(ctx, bson.M{"conversation_id": string(conversationID)})
	return mapWriteError(err, conversation.ErrConcurrentUpdate)
}

func (r *MessageRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]messageDocument, error) {
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []messageDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func unreadFilter(conversationIDs []string, reader user.ID) bson.M {
	return bson.M{
		"conversation_id": bson.M{"$in": conversationIDs},
		"read_at":         nil,
		"sender_id":       bson.M{"$ne": string(reader)},
	}
}

var _ conversation.MessageRepository = (*MessageRepository)(nil)
