package acquisition

import (
	"context"
	"fmt"

	"github.com/slidescope/core/api/dbCollections"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// What List can narrow results down by. Zero values mean "don't care"
type ListFilter struct {
	MicroscopeId string
	SlideId      string
	States       []State
}

// Store - where acquisition records live. Mongo in production, in-memory for
// tests, same idea as fileaccess swapping S3 for local files
type Store interface {
	Insert(summary AcquisitionSummary) error
	Update(summary AcquisitionSummary) error
	Get(id string) (AcquisitionSummary, bool, error)
	List(filter ListFilter) ([]AcquisitionSummary, error)

	// Runs left in a non-terminal state, eg by a daemon crash
	NonTerminal() ([]AcquisitionSummary, error)
}

////////////////////////////////////////////////////////////////////////////////////////////////////////////

type MongoStore struct {
	db *mongo.Database
}

func MakeMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) coll() *mongo.Collection {
	return s.db.Collection(dbCollections.AcquisitionsName)
}

func (s *MongoStore) Insert(summary AcquisitionSummary) error {
	ctx := context.TODO()
	result, err := s.coll().InsertOne(ctx, summary, options.InsertOne())
	if err != nil {
		return err
	}
	if result.InsertedID != summary.Id {
		return fmt.Errorf("inserted acquisition %v doesn't match db id %v", summary.Id, result.InsertedID)
	}
	return nil
}

func (s *MongoStore) Update(summary AcquisitionSummary) error {
	ctx := context.TODO()
	filter := bson.D{{Key: "_id", Value: summary.Id}}

	result, err := s.coll().ReplaceOne(ctx, filter, summary, options.Replace())
	if err != nil {
		return err
	}
	if result.MatchedCount != 1 {
		return fmt.Errorf("acquisition %v not found for update", summary.Id)
	}
	return nil
}

func (s *MongoStore) Get(id string) (AcquisitionSummary, bool, error) {
	ctx := context.TODO()

	summary := AcquisitionSummary{}
	err := s.coll().FindOne(ctx, bson.M{"_id": id}).Decode(&summary)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return summary, false, nil
		}
		return summary, false, err
	}
	return summary, true, nil
}

func (s *MongoStore) List(filter ListFilter) ([]AcquisitionSummary, error) {
	ctx := context.TODO()

	query := bson.M{}
	if len(filter.MicroscopeId) > 0 {
		query["microscopeId"] = filter.MicroscopeId
	}
	if len(filter.SlideId) > 0 {
		query["slideId"] = filter.SlideId
	}
	if len(filter.States) > 0 {
		query["state"] = bson.M{"$in": filter.States}
	}

	// Newest first, most callers want the latest runs
	opts := options.Find().SetSort(bson.D{{Key: "startUnixSec", Value: -1}})
	cursor, err := s.coll().Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	result := []AcquisitionSummary{}
	if err := cursor.All(ctx, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *MongoStore) NonTerminal() ([]AcquisitionSummary, error) {
	ctx := context.TODO()

	query := bson.M{"state": bson.M{"$nin": []State{StateDone, StateError, StateCancelled}}}
	cursor, err := s.coll().Find(ctx, query, options.Find())
	if err != nil {
		return nil, err
	}

	result := []AcquisitionSummary{}
	if err := cursor.All(ctx, &result); err != nil {
		return nil, err
	}
	return result, nil
}
