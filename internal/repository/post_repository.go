package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/d60-Lab/gin-blog/internal/model"
)

// PostRepository 文章存储接口，各后端实现互斥，由配置选择
//
// 错误约定：参数缺失或非法包装 model.ErrBadRequest，目标不存在包装
// model.ErrNotFound，其余为内部错误。
type PostRepository interface {
	// List 返回全部文章
	List(ctx context.Context) ([]*model.Post, error)

	// Get 根据 id 查询
	Get(ctx context.Context, id string) (*model.Post, error)

	// FilterByTag 返回包含 tag 的文章，结果为空时返回 ErrNotFound
	FilterByTag(ctx context.Context, tag string) ([]*model.Post, error)

	// Create 校验必填字段，分配 id 并写入
	Create(ctx context.Context, in model.PostInput) (*model.Post, error)

	// Update 合并出现的字段并刷新 updatedOn
	Update(ctx context.Context, id string, patch model.PostPatch) (*model.Post, error)

	// Delete 删除文章
	Delete(ctx context.Context, id string) error

	// Name 后端名称
	Name() string
}

func notFound(id string) error {
	return fmt.Errorf("%w: post with id %s not found", model.ErrNotFound, id)
}

func invalidID(id string) error {
	return fmt.Errorf("%w: invalid post id %q", model.ErrBadRequest, id)
}

// requireTag 过滤参数必须非空
func requireTag(tag string) error {
	if strings.TrimSpace(tag) == "" {
		return fmt.Errorf("%w: tag required to filter by tag", model.ErrBadRequest)
	}
	return nil
}

func noTagMatch(tag string) error {
	return fmt.Errorf("%w: no posts found with tag %s", model.ErrNotFound, tag)
}

var (
	_ PostRepository = (*FilePostRepository)(nil)
	_ PostRepository = (*DocumentPostRepository)(nil)
	_ PostRepository = (*SQLPostRepository)(nil)
	_ PostRepository = (*RedisPostRepository)(nil)
)
