package service

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/d60-Lab/gin-blog/internal/model"
	"github.com/d60-Lab/gin-blog/internal/repository"
	"github.com/d60-Lab/gin-blog/pkg/logger"
)

const tracerName = "github.com/d60-Lab/gin-blog/internal/service"

// PostService 文章服务
type PostService interface {
	List(ctx context.Context) ([]*model.Post, error)
	Get(ctx context.Context, id string) (*model.Post, error)
	FilterByTag(ctx context.Context, tag string) ([]*model.Post, error)
	Create(ctx context.Context, in model.PostInput) (*model.Post, error)
	Update(ctx context.Context, id string, patch model.PostPatch) (*model.Post, error)
	Delete(ctx context.Context, id string) error
	Backend() string
}

type postService struct {
	repo   repository.PostRepository
	tracer trace.Tracer
}

func NewPostService(repo repository.PostRepository) PostService {
	return &postService{repo: repo, tracer: otel.Tracer(tracerName)}
}

func (s *postService) Backend() string { return s.repo.Name() }

func (s *postService) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("post.backend", s.repo.Name()))
	return s.tracer.Start(ctx, "PostService."+op, trace.WithAttributes(attrs...))
}

// finish 记录错误；参数错误与不存在属于正常结果，不标记 span 失败
func (s *postService) finish(span trace.Span, op string, err error) {
	defer span.End()
	if err == nil {
		return
	}
	span.RecordError(err)
	if isClientError(err) {
		return
	}
	span.SetStatus(codes.Error, err.Error())
	logger.Error("post store failed",
		zap.String("op", op),
		zap.String("backend", s.repo.Name()),
		zap.Error(err),
	)
}

func isClientError(err error) bool {
	return errors.Is(err, model.ErrBadRequest) || errors.Is(err, model.ErrNotFound)
}

func (s *postService) List(ctx context.Context) (posts []*model.Post, err error) {
	ctx, span := s.start(ctx, "List")
	defer func() { s.finish(span, "list", err) }()

	posts, err = s.repo.List(ctx)
	if err == nil {
		span.SetAttributes(attribute.Int("post.count", len(posts)))
	}
	return posts, err
}

func (s *postService) Get(ctx context.Context, id string) (post *model.Post, err error) {
	ctx, span := s.start(ctx, "Get", attribute.String("post.id", id))
	defer func() { s.finish(span, "get", err) }()

	return s.repo.Get(ctx, id)
}

func (s *postService) FilterByTag(ctx context.Context, tag string) (posts []*model.Post, err error) {
	tag = strings.TrimSpace(tag)
	ctx, span := s.start(ctx, "FilterByTag", attribute.String("post.tag", tag))
	defer func() { s.finish(span, "filter", err) }()

	posts, err = s.repo.FilterByTag(ctx, tag)
	if err == nil {
		span.SetAttributes(attribute.Int("post.count", len(posts)))
	}
	return posts, err
}

func (s *postService) Create(ctx context.Context, in model.PostInput) (post *model.Post, err error) {
	ctx, span := s.start(ctx, "Create")
	defer func() { s.finish(span, "create", err) }()

	post, err = s.repo.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("post.id", post.ID.String()))
	logger.Info("post created",
		zap.String("id", post.ID.String()),
		zap.String("backend", s.repo.Name()),
		zap.Strings("tags", post.Tags),
	)
	return post, nil
}

func (s *postService) Update(ctx context.Context, id string, patch model.PostPatch) (post *model.Post, err error) {
	ctx, span := s.start(ctx, "Update", attribute.String("post.id", id))
	defer func() { s.finish(span, "update", err) }()

	post, err = s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	logger.Info("post updated",
		zap.String("id", id),
		zap.String("backend", s.repo.Name()),
		zap.Strings("fields", patch.FieldNames()),
	)
	return post, nil
}

func (s *postService) Delete(ctx context.Context, id string) (err error) {
	ctx, span := s.start(ctx, "Delete", attribute.String("post.id", id))
	defer func() { s.finish(span, "delete", err) }()

	if err = s.repo.Delete(ctx, id); err != nil {
		return err
	}
	logger.Info("post deleted", zap.String("id", id), zap.String("backend", s.repo.Name()))
	return nil
}
