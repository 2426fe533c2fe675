package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/gin-blog/config"
)

func mongoConfig(policy string) *config.Config {
	return &config.Config{Mongo: config.MongoConfig{
		URI:        "mongodb://localhost:27017",
		Database:   "test_blogDB",
		Collection: "posts",
		Policy:     policy,
	}}
}

func TestNewMongoProviderPolicies(t *testing.T) {
	p, err := NewMongoProvider(mongoConfig(config.PolicyLongLived))
	require.NoError(t, err)
	assert.IsType(t, &LongLivedMongo{}, p)

	p, err = NewMongoProvider(mongoConfig(config.PolicyPerRequest))
	require.NoError(t, err)
	assert.IsType(t, &PerRequestMongo{}, p)

	_, err = NewMongoProvider(mongoConfig("sometimes"))
	assert.Error(t, err)

	cfg := mongoConfig(config.PolicyLongLived)
	cfg.Mongo.URI = ""
	_, err = NewMongoProvider(cfg)
	assert.Error(t, err)
}

func TestLongLivedMongoConnectsLazily(t *testing.T) {
	m := NewLongLivedMongo(MongoOptions{URI: "mongodb://localhost:27017", Database: "db", Collection: "posts"})
	assert.False(t, m.Connected())

	// mongo.Connect 不会主动拨号，这里只验证客户端被创建并复用
	ctx := context.Background()
	c1, release, err := m.Collection(ctx)
	require.NoError(t, err)
	release(ctx)
	assert.True(t, m.Connected())

	c2, _, err := m.Collection(ctx)
	require.NoError(t, err)
	assert.Same(t, c1.Database().Client(), c2.Database().Client())
	assert.Equal(t, "posts", c2.Name())

	require.NoError(t, m.Close(ctx))
	_, _, err = m.Collection(ctx)
	assert.Error(t, err)
}

func TestLongLivedMongoDoesNotCacheFailure(t *testing.T) {
	m := NewLongLivedMongo(MongoOptions{URI: "not-a-uri", Database: "db", Collection: "posts"})

	_, _, err := m.Collection(context.Background())
	assert.Error(t, err)
	assert.False(t, m.Connected())

	m.opts.URI = "mongodb://localhost:27017"
	_, _, err = m.Collection(context.Background())
	assert.NoError(t, err)
	assert.True(t, m.Connected())
	_ = m.Close(context.Background())
}

func TestPerRequestMongoReleases(t *testing.T) {
	m := NewPerRequestMongo(MongoOptions{URI: "mongodb://localhost:27017", Database: "db", Collection: "posts"})
	ctx := context.Background()

	coll, release, err := m.Collection(ctx)
	require.NoError(t, err)
	assert.Equal(t, "db", coll.Database().Name())
	release(ctx)

	_, _, err = NewPerRequestMongo(MongoOptions{URI: "bogus://"}).Collection(ctx)
	assert.Error(t, err)
}
