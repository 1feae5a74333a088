package db

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var client *mongo.Client

func Connect(uri string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		log.Fatalf("MongoDB connection failed: %v", err)
	}
	if err := c.Ping(ctx, nil); err != nil {
		log.Fatalf("MongoDB ping failed: %v", err)
	}

	client = c
	log.Println("Connected to MongoDB")
}

func GetCollection(dbName, name string) *mongo.Collection {
	return client.Database(dbName).Collection(name)
}

func Disconnect(ctx context.Context) error {
	return client.Disconnect(ctx)
}
