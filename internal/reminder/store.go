package reminder

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store interface {
	// Save inserts r unless a reminder with the same task and time exists.
	// created is false for duplicates.
	Save(ctx context.Context, r *Reminder) (created bool, err error)
	List(ctx context.Context) ([]Reminder, error)
}

const collectionName = "reminders"

type mongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore uses the reminders collection of db and makes sure the
// (task, time) unique index exists.
func NewMongoStore(ctx context.Context, db *mongo.Database) (Store, error) {
	coll := db.Collection(collectionName)

	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "task", Value: 1}, {Key: "time", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("task_time"),
	})
	if err != nil {
		return nil, fmt.Errorf("create reminder index: %w", err)
	}

	return &mongoStore{collection: coll}, nil
}

func (s *mongoStore) Save(ctx context.Context, r *Reminder) (bool, error) {
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}

	filter := bson.M{"task": r.Task, "time": r.Time}
	update := bson.M{"$setOnInsert": r}

	res, err := s.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		// a concurrent upsert of the same pair lost the race on the index
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("save reminder: %w", err)
	}

	return res.UpsertedCount == 1, nil
}

func (s *mongoStore) List(ctx context.Context) ([]Reminder, error) {
	cur, err := s.collection.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer cur.Close(ctx)

	out := []Reminder{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode reminders: %w", err)
	}
	return out, nil
}

type memoryStore struct {
	mu        sync.Mutex
	reminders []Reminder
}

// NewMemoryStore keeps reminders in process memory; they are lost on exit.
func NewMemoryStore() Store {
	return &memoryStore{}
}

func (s *memoryStore) Save(_ context.Context, r *Reminder) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, have := range s.reminders {
		if have.Task == r.Task && have.Time == r.Time {
			return false, nil
		}
	}

	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	s.reminders = append(s.reminders, *r)
	return true, nil
}

func (s *memoryStore) List(context.Context) ([]Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Reminder{}, s.reminders...), nil
}
