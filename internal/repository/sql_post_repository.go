package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/d60-Lab/gin-blog/internal/model"
)

// SQLPostRepository gorm 实现，posts 表见 model.PostRecord
type SQLPostRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSQLPostRepository(db *gorm.DB) *SQLPostRepository {
	return &SQLPostRepository{db: db, now: time.Now}
}

func (r *SQLPostRepository) Name() string { return "sql" }

func parseRecordID(id string) (uint, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil || n == 0 || strconv.FormatUint(n, 10) != id {
		return 0, invalidID(id)
	}
	return uint(n), nil
}

// likeEscaper 转义 LIKE 通配符与转义符本身；JSON 文本中的 \" 与 \u0026 需按字面匹配
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func toPosts(records []model.PostRecord) []*model.Post {
	return lo.Map(records, func(rec model.PostRecord, _ int) *model.Post { return rec.ToPost() })
}

func (r *SQLPostRepository) List(ctx context.Context) ([]*model.Post, error) {
	var records []model.PostRecord
	if err := r.db.WithContext(ctx).Order("id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return toPosts(records), nil
}

func (r *SQLPostRepository) first(ctx context.Context, id string) (*model.PostRecord, error) {
	n, err := parseRecordID(id)
	if err != nil {
		return nil, err
	}
	var rec model.PostRecord
	err = r.db.WithContext(ctx).Where("id = ?", n).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("find post %s: %w", id, err)
	}
	return &rec, nil
}

func (r *SQLPostRepository) Get(ctx context.Context, id string) (*model.Post, error) {
	rec, err := r.first(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.ToPost(), nil
}

// FilterByTag 先用 LIKE 在 JSON 文本上粗筛，再在内存中精确匹配
func (r *SQLPostRepository) FilterByTag(ctx context.Context, tag string) ([]*model.Post, error) {
	if err := requireTag(tag); err != nil {
		return nil, err
	}
	quoted, err := json.Marshal(tag)
	if err != nil {
		return nil, err
	}

	var records []model.PostRecord
	if err := r.db.WithContext(ctx).
		Where(`tags LIKE ? ESCAPE '\'`, "%"+likeEscaper.Replace(string(quoted))+"%").
		Order("id").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("filter posts: %w", err)
	}

	matched := lo.Filter(records, func(rec model.PostRecord, _ int) bool { return lo.Contains(rec.Tags, tag) })
	if len(matched) == 0 {
		return nil, noTagMatch(tag)
	}
	return toPosts(matched), nil
}

func (r *SQLPostRepository) Create(ctx context.Context, in model.PostInput) (*model.Post, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	now := r.now().UTC()
	rec := &model.PostRecord{
		Title:     in.Title,
		Content:   in.Content,
		Category:  in.Category,
		Tags:      in.Tags,
		CreatedOn: now,
		UpdatedOn: now,
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}
	return rec.ToPost(), nil
}

func (r *SQLPostRepository) Update(ctx context.Context, id string, patch model.PostPatch) (*model.Post, error) {
	rec, err := r.first(ctx, id)
	if err != nil {
		return nil, err
	}

	post := rec.ToPost()
	patch.Apply(post)
	rec.Title, rec.Content, rec.Category, rec.Tags = post.Title, post.Content, post.Category, post.Tags
	rec.UpdatedOn = r.now().UTC()

	res := r.db.WithContext(ctx).Save(rec)
	if res.Error != nil {
		return nil, fmt.Errorf("update post %s: %w", id, res.Error)
	}
	return rec.ToPost(), nil
}

func (r *SQLPostRepository) Delete(ctx context.Context, id string) error {
	n, err := parseRecordID(id)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Delete(&model.PostRecord{}, n)
	if res.Error != nil {
		return fmt.Errorf("delete post %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound(id)
	}
	return nil
}
