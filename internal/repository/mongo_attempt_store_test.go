package repository

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// TestMongoAttemptStoreContract runs against a real server when
// MONGO_TEST_URI is set, e.g. mongodb://localhost:27017.
func TestMongoAttemptStoreContract(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Ping(ctx, nil))

	db := client.Database("assessment_test")
	runAttemptStoreContract(t, func(t *testing.T) attemptStore {
		name := "attempts_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		store := NewMongoAttemptStore(db, name)
		require.NoError(t, store.EnsureIndexes(context.Background()))
		t.Cleanup(func() { _ = db.Collection(name).Drop(context.Background()) })
		return store
	})
}
