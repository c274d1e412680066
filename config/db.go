package config

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// ConnectDB opens a MongoDB connection and returns the named database
func ConnectDB(ctx context.Context, mongoURI, dbName string) (*mongo.Database, *mongo.Client, error) {
	if mongoURI == "" {
		return nil, nil, goerr.New("Please define the MONGODB_URI environment variable")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to connect to MongoDB")
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, goerr.Wrap(err, "failed to ping MongoDB")
	}

	log.Info().Str("database", dbName).Msg("Connected to MongoDB!")
	return client.Database(dbName), client, nil
}
