package mongodb

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/trezcool/tutorcenter/core"
)

const (
	centerCollection = "centers"
	entityCollection = "entities"
)

// Open connects to MongoDB and waits for the primary to answer.
func Open(ctx context.Context, conf *core.Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, conf.Mongo.Timeout)
	defer cancel()

	opts := options.Client().ApplyURI(conf.Mongo.URI).SetTimeout(conf.Mongo.Timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongo")
	}
	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "pinging mongo")
	}
	return client, nil
}

// EnsureIndexes creates the indexes the repository queries rely on. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(entityCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "type", Value: 1}, {Key: "center_id", Value: 1}}},
		{Keys: bson.D{{Key: "_id", Value: 1}, {Key: "attendance.date", Value: 1}}},
	})
	if err != nil {
		return errors.Wrap(err, "creating entity indexes")
	}
	_, err = db.Collection(centerCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "location", Value: "2dsphere"}},
	})
	if err != nil {
		return errors.Wrap(err, "creating center indexes")
	}
	return nil
}
