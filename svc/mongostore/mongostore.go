// Package mongostore keeps the analytics event log in MongoDB.
package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/libraryops/svc/analytics"
)

// DefaultCollection holds one document per analytics event.
const DefaultCollection = "notification_events"

// EventStore implements analytics.Store.
type EventStore struct {
	coll *mongo.Collection
}

// NewEventStore creates an analytics store over collection in db.
func NewEventStore(db *mongo.Database, collection string) *EventStore {
	if collection == "" {
		collection = DefaultCollection
	}
	return &EventStore{coll: db.Collection(collection)}
}

// EnsureIndexes creates the indexes used by Count and per-notification lookups.
func (s *EventStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "notification_id", Value: 1}}},
		{Keys: bson.D{{Key: "occurred_at", Value: 1}, {Key: "type", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create event indexes: %w", err)
	}
	return nil
}

// Append inserts e. Re-inserting an event id is a no-op.
func (s *EventStore) Append(ctx context.Context, e analytics.Event) error {
	_, err := s.coll.InsertOne(ctx, e)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Count aggregates matching events per type.
func (s *EventStore) Count(ctx context.Context, q analytics.Query) (analytics.Counts, error) {
	cur, err := s.coll.Aggregate(ctx, countPipeline(q), options.Aggregate().SetAllowDiskUse(true))
	if err != nil {
		return nil, fmt.Errorf("aggregate events: %w", err)
	}

	var rows []struct {
		Type  analytics.EventType `bson:"_id"`
		Count int                 `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode event counts: %w", err)
	}

	counts := make(analytics.Counts, len(rows))
	for _, r := range rows {
		counts[r.Type] = r.Count
	}
	return counts, nil
}

// countPipeline groups the events matched by q by type.
func countPipeline(q analytics.Query) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: matchFilter(q)}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$type"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
}

// matchFilter mirrors analytics.Query.Match: the window is [From, To).
func matchFilter(q analytics.Query) bson.D {
	filter := bson.D{}

	window := bson.D{}
	if !q.From.IsZero() {
		window = append(window, bson.E{Key: "$gte", Value: q.From})
	}
	if !q.To.IsZero() {
		window = append(window, bson.E{Key: "$lt", Value: q.To})
	}
	if len(window) > 0 {
		filter = append(filter, bson.E{Key: "occurred_at", Value: window})
	}
	if q.Channel != "" {
		filter = append(filter, bson.E{Key: "channel", Value: q.Channel})
	}
	if q.Category != "" {
		filter = append(filter, bson.E{Key: "category", Value: q.Category})
	}
	return filter
}
