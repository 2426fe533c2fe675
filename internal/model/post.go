package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/samber/lo"
)

// DayLayout 文件存储使用的日期格式 MM/DD/YYYY
const DayLayout = "01/02/2006"

// PostID 文章标识：文件/SQL/Redis 为自增整数，文档库为 ObjectID 十六进制串
type PostID string

// MarshalJSON 纯数字 id 输出为 JSON number，其余输出为字符串
func (id PostID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return strconv.AppendInt(nil, n, 10), nil
	}
	return json.Marshal(string(id))
}

func (id *PostID) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*id = PostID(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("post id must be a number or a string: %w", err)
	}
	*id = PostID(s)
	return nil
}

// Int 将数字 id 解析为正整数；只接受规范写法，"01"、"+1" 不是合法 id
func (id PostID) Int() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil || n <= 0 || strconv.FormatInt(n, 10) != string(id) {
		return 0, false
	}
	return n, true
}

func (id PostID) String() string { return string(id) }

// Timestamp 时间戳，DayOnly 为 true 时按 MM/DD/YYYY 序列化
type Timestamp struct {
	time.Time
	DayOnly bool
}

// Day 截断到日，用于文件存储
func Day(t time.Time) Timestamp {
	y, m, d := t.Date()
	return Timestamp{Time: time.Date(y, m, d, 0, 0, 0, 0, t.Location()), DayOnly: true}
}

// Instant 精确时间点，用于数据库存储
func Instant(t time.Time) Timestamp { return Timestamp{Time: t} }

func (ts Timestamp) String() string {
	if ts.DayOnly {
		return ts.Time.Format(DayLayout)
	}
	return ts.Time.Format(time.RFC3339Nano)
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(ts.String())
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if t, err := time.ParseInLocation(DayLayout, s, time.Local); err == nil {
		*ts = Timestamp{Time: t, DayOnly: true}
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("timestamp %q is neither %s nor RFC 3339", s, DayLayout)
	}
	*ts = Timestamp{Time: t}
	return nil
}

// Post 博客文章
type Post struct {
	ID       PostID   `json:"id"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
	// Date 文件存储的创建日期；CreatedOn 数据库存储的创建时间，二者只出现其一
	Date      *Timestamp `json:"date,omitempty"`
	CreatedOn *Timestamp `json:"createdOn,omitempty"`
	UpdatedOn Timestamp  `json:"updatedOn"`
}

// Created 返回创建时间，与存储后端无关
func (p *Post) Created() time.Time {
	switch {
	case p.Date != nil:
		return p.Date.Time
	case p.CreatedOn != nil:
		return p.CreatedOn.Time
	}
	return time.Time{}
}

// HasTag 判断是否包含某个标签
func (p *Post) HasTag(tag string) bool {
	return lo.Contains(p.Tags, tag)
}

// PostInput 创建文章请求
type PostInput struct {
	Title    string   `json:"title" binding:"required,notblank"`
	Content  string   `json:"content" binding:"required,notblank"`
	Category string   `json:"category" binding:"required,notblank"`
	Tags     []string `json:"tags" binding:"required,min=1"`
}

// PostPatch 部分更新请求，只应用出现的字段
type PostPatch struct {
	Title    *string   `json:"title"`
	Content  *string   `json:"content"`
	Category *string   `json:"category"`
	Tags     *[]string `json:"tags"`
}

// Apply 将请求字段合并到已有文章（请求字段优先）
func (p PostPatch) Apply(post *Post) {
	if p.Title != nil {
		post.Title = *p.Title
	}
	if p.Content != nil {
		post.Content = *p.Content
	}
	if p.Category != nil {
		post.Category = *p.Category
	}
	if p.Tags != nil {
		post.Tags = append([]string(nil), (*p.Tags)...)
	}
}

// Fields 返回出现的字段，key 为存储列名
func (p PostPatch) Fields() map[string]any {
	fields := make(map[string]any, 4)
	if p.Title != nil {
		fields["title"] = *p.Title
	}
	if p.Content != nil {
		fields["content"] = *p.Content
	}
	if p.Category != nil {
		fields["category"] = *p.Category
	}
	if p.Tags != nil {
		fields["tags"] = *p.Tags
	}
	return fields
}

// FieldNames 出现的字段名，按字母序
func (p PostPatch) FieldNames() []string {
	names := lo.Keys(p.Fields())
	sort.Strings(names)
	return names
}
