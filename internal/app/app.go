package app

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/d60-Lab/gin-blog/config"
	"github.com/d60-Lab/gin-blog/internal/repository"
	"github.com/d60-Lab/gin-blog/pkg/database"
	"github.com/d60-Lab/gin-blog/pkg/logger"
)

// CloseFunc 释放仓储持有的连接
type CloseFunc func(ctx context.Context) error

func closeNothing(context.Context) error { return nil }

// NewPostRepository 按 store.backend 打开存储，文件后端使用本地文件系统
func NewPostRepository(ctx context.Context, cfg *config.Config) (repository.PostRepository, CloseFunc, error) {
	return NewPostRepositoryFs(ctx, cfg, afero.NewOsFs())
}

// NewPostRepositoryFs 同 NewPostRepository，文件后端落在 fsys 上
func NewPostRepositoryFs(ctx context.Context, cfg *config.Config, fsys afero.Fs) (repository.PostRepository, CloseFunc, error) {
	switch cfg.Store.Backend {
	case config.BackendFile:
		repo, err := repository.NewFilePostRepository(fsys, cfg.Store.File.Dir)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("file store ready", zap.String("dir", cfg.Store.File.Dir))
		return repo, closeNothing, nil

	case config.BackendDocument:
		conn, err := database.NewMongoProvider(cfg)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("document store configured",
			zap.String("database", cfg.Mongo.Database),
			zap.String("collection", cfg.Mongo.Collection),
			zap.String("policy", cfg.Mongo.Policy),
		)
		return repository.NewDocumentPostRepository(conn), conn.Close, nil

	case config.BackendSQL:
		db, err := database.InitDB(cfg)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("sql store ready", zap.String("driver", cfg.Database.Driver))
		return repository.NewSQLPostRepository(db), func(context.Context) error {
			return database.CloseDB(db)
		}, nil

	case config.BackendRedis:
		client, err := database.InitRedis(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("redis store ready", zap.String("addr", cfg.Redis.Addr), zap.Int("db", cfg.Redis.DB))
		return repository.NewRedisPostRepository(client), func(context.Context) error {
			return client.Close()
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}
