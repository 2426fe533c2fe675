package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"

	"github.com/d60-Lab/gin-blog/internal/model"
)

const (
	redisPostsKey = "posts"
	redisSeqKey   = "posts:seq"
)

func redisPostKey(id string) string { return "post:" + id }

func redisTagKey(tag string) string { return "posts:tag:" + tag }

// RedisPostRepository 文章以 JSON 存于 post:<id>，posts 与 posts:tag:<tag> 为 id 集合
type RedisPostRepository struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisPostRepository(client *redis.Client) *RedisPostRepository {
	return &RedisPostRepository{client: client, now: time.Now}
}

func (r *RedisPostRepository) Name() string { return "redis" }

func (r *RedisPostRepository) save(ctx context.Context, post *model.Post, staleTags []string) error {
	data, err := json.Marshal(post)
	if err != nil {
		return err
	}
	id := post.ID.String()
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, redisPostKey(id), data, 0)
	pipe.SAdd(ctx, redisPostsKey, id)
	for _, tag := range staleTags {
		pipe.SRem(ctx, redisTagKey(tag), id)
	}
	for _, tag := range lo.Uniq(post.Tags) {
		pipe.SAdd(ctx, redisTagKey(tag), id)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisPostRepository) load(ctx context.Context, id string) (*model.Post, error) {
	if _, ok := model.PostID(id).Int(); !ok {
		return nil, notFound(id)
	}
	data, err := r.client.Get(ctx, redisPostKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get post %s: %w", id, err)
	}
	var post model.Post
	if err := json.Unmarshal(data, &post); err != nil {
		return nil, fmt.Errorf("decode post %s: %w", id, err)
	}
	return &post, nil
}

// loadMany 通过 pipeline 批量读取，集合中残留的 id 会被跳过
func (r *RedisPostRepository) loadMany(ctx context.Context, setKey string) ([]*model.Post, error) {
	ids, err := r.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", setKey, err)
	}
	posts := make([]*model.Post, 0, len(ids))
	if len(ids) == 0 {
		return posts, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, redisPostKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var post model.Post
		if err := json.Unmarshal(data, &post); err != nil {
			return nil, err
		}
		posts = append(posts, &post)
	}
	sort.Slice(posts, func(i, j int) bool {
		a, _ := posts[i].ID.Int()
		b, _ := posts[j].ID.Int()
		return a < b
	})
	return posts, nil
}

func (r *RedisPostRepository) List(ctx context.Context) ([]*model.Post, error) {
	return r.loadMany(ctx, redisPostsKey)
}

func (r *RedisPostRepository) Get(ctx context.Context, id string) (*model.Post, error) {
	return r.load(ctx, id)
}

func (r *RedisPostRepository) FilterByTag(ctx context.Context, tag string) ([]*model.Post, error) {
	if err := requireTag(tag); err != nil {
		return nil, err
	}
	posts, err := r.loadMany(ctx, redisTagKey(tag))
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, noTagMatch(tag)
	}
	return posts, nil
}

func (r *RedisPostRepository) Create(ctx context.Context, in model.PostInput) (*model.Post, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	// INCR 保证 id 单调且删除后不复用
	seq, err := r.client.Incr(ctx, redisSeqKey).Result()
	if err != nil {
		return nil, fmt.Errorf("allocate post id: %w", err)
	}

	now := model.Instant(r.now().UTC())
	post := in.NewPost()
	post.ID = model.PostID(strconv.FormatInt(seq, 10))
	post.CreatedOn = &now
	post.UpdatedOn = now

	if err := r.save(ctx, post, nil); err != nil {
		return nil, fmt.Errorf("save post %d: %w", seq, err)
	}
	return post, nil
}

func (r *RedisPostRepository) Update(ctx context.Context, id string, patch model.PostPatch) (*model.Post, error) {
	post, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	oldTags := post.Tags
	patch.Apply(post)
	post.UpdatedOn = model.Instant(r.now().UTC())

	stale, _ := lo.Difference(oldTags, post.Tags)
	if err := r.save(ctx, post, stale); err != nil {
		return nil, fmt.Errorf("save post %s: %w", id, err)
	}
	return post, nil
}

func (r *RedisPostRepository) Delete(ctx context.Context, id string) error {
	post, err := r.load(ctx, id)
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, redisPostKey(id))
	pipe.SRem(ctx, redisPostsKey, id)
	for _, tag := range post.Tags {
		pipe.SRem(ctx, redisTagKey(tag), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete post %s: %w", id, err)
	}
	return nil
}
