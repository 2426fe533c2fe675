package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/d60-Lab/gin-blog/internal/model"
	"github.com/d60-Lab/gin-blog/pkg/database"
)

// postDocument posts 集合中的文档
type postDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Title     string             `bson:"title"`
	Content   string             `bson:"content"`
	Category  string             `bson:"category"`
	Tags      []string           `bson:"tags"`
	CreatedOn time.Time          `bson:"createdOn"`
	UpdatedOn time.Time          `bson:"updatedOn"`
}

func (d *postDocument) toPost() *model.Post {
	created := model.Instant(d.CreatedOn)
	return &model.Post{
		ID:        model.PostID(d.ID.Hex()),
		Title:     d.Title,
		Content:   d.Content,
		Category:  d.Category,
		Tags:      d.Tags,
		CreatedOn: &created,
		UpdatedOn: model.Instant(d.UpdatedOn),
	}
}

// DocumentPostRepository MongoDB 存储，id 为驱动生成的 ObjectID
type DocumentPostRepository struct {
	conn database.MongoProvider
	now  func() time.Time
}

// NewDocumentPostRepository 连接由 conn 持有，仓储不负责关闭
func NewDocumentPostRepository(conn database.MongoProvider) *DocumentPostRepository {
	return &DocumentPostRepository{conn: conn, now: time.Now}
}

func (r *DocumentPostRepository) Name() string { return "document" }

func (r *DocumentPostRepository) stamp() time.Time {
	// BSON 日期精度为毫秒
	return r.now().UTC().Truncate(time.Millisecond)
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, invalidID(id)
	}
	return oid, nil
}

func (r *DocumentPostRepository) find(ctx context.Context, filter bson.D) ([]*model.Post, error) {
	coll, release, err := r.conn.Collection(ctx)
	if err != nil {
		return nil, err
	}
	defer release(ctx)

	cur, err := coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find posts: %w", err)
	}
	var docs []postDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}
	posts := make([]*model.Post, 0, len(docs))
	for i := range docs {
		posts = append(posts, docs[i].toPost())
	}
	return posts, nil
}

func (r *DocumentPostRepository) List(ctx context.Context) ([]*model.Post, error) {
	return r.find(ctx, bson.D{})
}

func (r *DocumentPostRepository) Get(ctx context.Context, id string) (*model.Post, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	coll, release, err := r.conn.Collection(ctx)
	if err != nil {
		return nil, err
	}
	defer release(ctx)

	var doc postDocument
	err = coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("find post %s: %w", id, err)
	}
	return doc.toPost(), nil
}

func (r *DocumentPostRepository) FilterByTag(ctx context.Context, tag string) ([]*model.Post, error) {
	if err := requireTag(tag); err != nil {
		return nil, err
	}
	// 数组字段等值匹配即成员判断
	posts, err := r.find(ctx, bson.D{{Key: "tags", Value: tag}})
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, noTagMatch(tag)
	}
	return posts, nil
}

func (r *DocumentPostRepository) Create(ctx context.Context, in model.PostInput) (*model.Post, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	coll, release, err := r.conn.Collection(ctx)
	if err != nil {
		return nil, err
	}
	defer release(ctx)

	now := r.stamp()
	doc := postDocument{
		ID:        primitive.NewObjectID(),
		Title:     in.Title,
		Content:   in.Content,
		Category:  in.Category,
		Tags:      in.Tags,
		CreatedOn: now,
		UpdatedOn: now,
	}
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}
	return doc.toPost(), nil
}

// Update 只 $set 请求中出现的字段；目标不存在时返回 ErrNotFound
func (r *DocumentPostRepository) Update(ctx context.Context, id string, patch model.PostPatch) (*model.Post, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	coll, release, err := r.conn.Collection(ctx)
	if err != nil {
		return nil, err
	}
	defer release(ctx)

	set := bson.M{"updatedOn": r.stamp()}
	for k, v := range patch.Fields() {
		set[k] = v
	}

	var doc postDocument
	err = coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("update post %s: %w", id, err)
	}
	return doc.toPost(), nil
}

func (r *DocumentPostRepository) Delete(ctx context.Context, id string) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}
	coll, release, err := r.conn.Collection(ctx)
	if err != nil {
		return err
	}
	defer release(ctx)

	res, err := coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("delete post %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return notFound(id)
	}
	return nil
}
