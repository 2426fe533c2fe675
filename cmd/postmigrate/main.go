package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/d60-Lab/gin-blog/config"
	"github.com/d60-Lab/gin-blog/internal/app"
	"github.com/d60-Lab/gin-blog/internal/model"
	"github.com/d60-Lab/gin-blog/internal/repository"
	"github.com/d60-Lab/gin-blog/pkg/logger"
)

func must[T any](v T, err error) T {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return v
}

// 将文件存储中的文章逐篇写入 store.backend 指定的后端
func main() {
	cfg := must(config.Load())
	if err := logger.Init(cfg.Log.Level, "console"); err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	srcDir := os.Getenv("MIGRATE_SOURCE_DIR")
	if srcDir == "" {
		srcDir = cfg.Store.File.Dir
	}
	if cfg.Store.Backend == config.BackendFile && filepath.Clean(srcDir) == filepath.Clean(cfg.Store.File.Dir) {
		must(0, fmt.Errorf("target backend is the source directory %s; set STORE_BACKEND", srcDir))
	}

	ctx := context.Background()
	osFs := afero.NewOsFs()
	if ok, err := afero.DirExists(osFs, srcDir); err != nil || !ok {
		must(0, fmt.Errorf("source directory %s not found", srcDir))
	}
	src := must(repository.NewFilePostRepository(osFs, srcDir))
	dst, closeDst := mustRepo(app.NewPostRepository(ctx, cfg))

	migrated, failed, err := migrate(ctx, src, dst)
	// os.Exit 不执行 defer，先关闭目标连接
	if cerr := closeDst(ctx); cerr != nil {
		logger.Warn("close target store failed", zap.Error(cerr))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exit(1)
	}
	fmt.Printf("source=%s target=%s migrated=%d failed=%d\n", srcDir, dst.Name(), migrated, failed)
	if failed > 0 {
		exit(1)
	}
}

// migrate 逐篇写入目标后端，单篇失败记日志后继续；读取源目录失败直接返回
func migrate(ctx context.Context, src, dst repository.PostRepository) (migrated, failed int, err error) {
	posts, err := src.List(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, p := range posts {
		created, err := dst.Create(ctx, model.PostInput{
			Title:    p.Title,
			Content:  p.Content,
			Category: p.Category,
			Tags:     p.Tags,
		})
		if err != nil {
			failed++
			logger.Warn("skip post", zap.String("id", p.ID.String()), zap.Error(err))
			continue
		}
		migrated++
		logger.Info("post migrated",
			zap.String("old_id", p.ID.String()),
			zap.String("new_id", created.ID.String()),
			zap.String("backend", dst.Name()),
		)
	}
	return migrated, failed, nil
}

func exit(code int) {
	_ = logger.Sync()
	os.Exit(code)
}

func mustRepo(repo repository.PostRepository, closeFn app.CloseFunc, err error) (repository.PostRepository, app.CloseFunc) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return repo, closeFn
}
