package database

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/d60-Lab/gin-blog/config"
	"github.com/d60-Lab/gin-blog/pkg/logger"
)

// ReleaseFunc 归还 MongoProvider 给出的集合
type ReleaseFunc func(ctx context.Context)

// MongoProvider 按连接生命周期策略提供 posts 集合，操作结束后必须调用 ReleaseFunc
type MongoProvider interface {
	Collection(ctx context.Context) (*mongo.Collection, ReleaseFunc, error)
	Close(ctx context.Context) error
}

// MongoOptions 连接串、库名与集合名
type MongoOptions struct {
	URI        string
	Database   string
	Collection string
}

func (o MongoOptions) validate() error {
	if o.URI == "" {
		return errors.New("mongo: URI is required")
	}
	if o.Database == "" || o.Collection == "" {
		return errors.New("mongo: database and collection are required")
	}
	return nil
}

// NewMongoProvider 按 mongo.policy 构建，此处不建立连接
func NewMongoProvider(cfg *config.Config) (MongoProvider, error) {
	opts := MongoOptions{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database, Collection: cfg.Mongo.Collection}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	switch cfg.Mongo.Policy {
	case config.PolicyLongLived:
		return NewLongLivedMongo(opts), nil
	case config.PolicyPerRequest:
		return NewPerRequestMongo(opts), nil
	default:
		return nil, fmt.Errorf("mongo: unknown connection policy %q", cfg.Mongo.Policy)
	}
}

// LongLivedMongo 首次使用时连接，进程内复用到 Close
//
// 并发的首次调用共用同一次连接；连接失败不缓存，下次调用重新连接。
type LongLivedMongo struct {
	opts MongoOptions

	mu     sync.Mutex
	client *mongo.Client
	closed bool
}

func NewLongLivedMongo(opts MongoOptions) *LongLivedMongo {
	return &LongLivedMongo{opts: opts}
}

// UseMongoClient 包装已连接的客户端，Close 时断开
func UseMongoClient(client *mongo.Client, database, collection string) *LongLivedMongo {
	return &LongLivedMongo{
		opts:   MongoOptions{Database: database, Collection: collection},
		client: client,
	}
}

func (m *LongLivedMongo) Collection(ctx context.Context) (*mongo.Collection, ReleaseFunc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, nil, errors.New("mongo: provider is closed")
	}
	if m.client == nil {
		logger.Info("initial database connection", zap.String("database", m.opts.Database))
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(m.opts.URI))
		if err != nil {
			return nil, nil, fmt.Errorf("mongo connect: %w", err)
		}
		m.client = client
	}
	coll := m.client.Database(m.opts.Database).Collection(m.opts.Collection)
	return coll, func(context.Context) {}, nil
}

// Connected 客户端是否已创建
func (m *LongLivedMongo) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client != nil
}

func (m *LongLivedMongo) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	if m.client == nil {
		return nil
	}
	err := m.client.Disconnect(ctx)
	m.client = nil
	if err != nil {
		return fmt.Errorf("mongo disconnect: %w", err)
	}
	logger.Info("MongoDB connection closed")
	return nil
}

// PerRequestMongo 每次操作单独连接，release 时断开
type PerRequestMongo struct {
	opts MongoOptions
}

func NewPerRequestMongo(opts MongoOptions) *PerRequestMongo {
	return &PerRequestMongo{opts: opts}
}

func (m *PerRequestMongo) Collection(ctx context.Context) (*mongo.Collection, ReleaseFunc, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(m.opts.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	release := func(ctx context.Context) {
		if err := client.Disconnect(ctx); err != nil {
			logger.Warn("mongo disconnect failed", zap.Error(err))
		}
	}
	return client.Database(m.opts.Database).Collection(m.opts.Collection), release, nil
}

func (m *PerRequestMongo) Close(context.Context) error { return nil }
