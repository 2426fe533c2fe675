package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/afero"

	"github.com/d60-Lab/gin-blog/internal/model"
)

const sequenceFile = ".sequence"

var postFilePattern = regexp.MustCompile(`^post([1-9][0-9]*)\.json$`)

// FilePostRepository 每篇文章一个 JSON 文件：<dir>/post<id>.json
type FilePostRepository struct {
	fs  afero.Fs
	dir string
	now func() time.Time

	// 仅串行化 id 分配，读写本身不加锁
	createMu sync.Mutex
}

// NewFilePostRepository 创建文件存储，目录不存在时自动创建
func NewFilePostRepository(fsys afero.Fs, dir string) (*FilePostRepository, error) {
	if dir == "" {
		return nil, errors.New("file store: dir is required")
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file store: create %s: %w", dir, err)
	}
	return &FilePostRepository{fs: fsys, dir: dir, now: time.Now}, nil
}

func (r *FilePostRepository) Name() string { return "file" }

func (r *FilePostRepository) postPath(id int64) string {
	return filepath.Join(r.dir, "post"+strconv.FormatInt(id, 10)+".json")
}

// readAll 读取目录下全部文章，按 id 升序
func (r *FilePostRepository) readAll() ([]*model.Post, error) {
	entries, err := afero.ReadDir(r.fs, r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read blog posts directory: %w", err)
	}

	posts := make([]*model.Post, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !postFilePattern.MatchString(e.Name()) {
			continue
		}
		file, err := r.readFile(filepath.Join(r.dir, e.Name()))
		if err != nil {
			return nil, err
		}
		posts = append(posts, file.post)
	}
	sort.Slice(posts, func(i, j int) bool {
		a, _ := posts[i].ID.Int()
		b, _ := posts[j].ID.Int()
		return a < b
	})
	return posts, nil
}

// postFile 文件内容：已知字段解析进 Post，其余字段原样保留并在重写时写回
type postFile struct {
	post  *model.Post
	extra map[string]json.RawMessage
}

var postFileFields = []string{"id", "title", "content", "category", "tags", "date", "createdOn", "updatedOn"}

func decodePostFile(data []byte) (*postFile, error) {
	var post model.Post
	if err := json.Unmarshal(data, &post); err != nil {
		return nil, err
	}
	var extra map[string]json.RawMessage
	if err := json.Unmarshal(data, &extra); err != nil {
		return nil, err
	}
	for _, k := range postFileFields {
		delete(extra, k)
	}

	if post.UpdatedOn.IsZero() {
		// 早期文件用 updated 记录修改日期
		var legacy model.Timestamp
		if raw, ok := extra["updated"]; ok && json.Unmarshal(raw, &legacy) == nil {
			post.UpdatedOn = legacy
			delete(extra, "updated")
		} else if post.Date != nil {
			post.UpdatedOn = *post.Date
		}
	}
	return &postFile{post: &post, extra: extra}, nil
}

func (f *postFile) encode() ([]byte, error) {
	if len(f.extra) == 0 {
		return json.MarshalIndent(f.post, "", "  ")
	}
	data, err := json.Marshal(f.post)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]json.RawMessage, len(postFileFields)+len(f.extra))
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for k, v := range f.extra {
		if _, ok := fields[k]; !ok {
			fields[k] = v
		}
	}
	return json.MarshalIndent(fields, "", "  ")
}

func (r *FilePostRepository) readFile(path string) (*postFile, error) {
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return nil, err
	}
	file, err := decodePostFile(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return file, nil
}

func (r *FilePostRepository) writeFile(path string, file *postFile, flag int) error {
	data, err := file.encode()
	if err != nil {
		return err
	}
	f, err := r.fs.OpenFile(path, flag, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// load 按 id 读取单篇；id 必须是规范的正整数写法，否则不可能对应文件，直接视为不存在
func (r *FilePostRepository) load(id string) (*postFile, string, error) {
	n, ok := model.PostID(id).Int()
	if !ok {
		return nil, "", notFound(id)
	}
	path := r.postPath(n)
	file, err := r.readFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", notFound(id)
	}
	if err != nil {
		return nil, "", err
	}
	return file, path, nil
}

func (r *FilePostRepository) List(_ context.Context) ([]*model.Post, error) {
	return r.readAll()
}

func (r *FilePostRepository) Get(_ context.Context, id string) (*model.Post, error) {
	file, _, err := r.load(id)
	if err != nil {
		return nil, err
	}
	return file.post, nil
}

func (r *FilePostRepository) FilterByTag(_ context.Context, tag string) ([]*model.Post, error) {
	if err := requireTag(tag); err != nil {
		return nil, err
	}
	posts, err := r.readAll()
	if err != nil {
		return nil, err
	}
	matched := lo.Filter(posts, func(p *model.Post, _ int) bool { return p.HasTag(tag) })
	if len(matched) == 0 {
		return nil, noTagMatch(tag)
	}
	return matched, nil
}

// nextID 取已存文章最大 id 与持久化序号中的较大者 + 1
func (r *FilePostRepository) nextID() (int64, error) {
	posts, err := r.readAll()
	if err != nil {
		return 0, fmt.Errorf("failed to find previous blog post ID: %w", err)
	}
	last := lo.Reduce(posts, func(hi int64, p *model.Post, _ int) int64 {
		if n, ok := p.ID.Int(); ok && n > hi {
			return n
		}
		return hi
	}, 0)

	seq, err := r.readSequence()
	if err != nil {
		return 0, err
	}
	if seq > last {
		last = seq
	}
	return last + 1, nil
}

func (r *FilePostRepository) readSequence() (int64, error) {
	data, err := afero.ReadFile(r.fs, filepath.Join(r.dir, sequenceFile))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt %s: %w", sequenceFile, err)
	}
	return n, nil
}

func (r *FilePostRepository) Create(_ context.Context, in model.PostInput) (*model.Post, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	r.createMu.Lock()
	defer r.createMu.Unlock()

	id, err := r.nextID()
	if err != nil {
		return nil, err
	}

	today := model.Day(r.now())
	post := in.NewPost()
	post.ID = model.PostID(strconv.FormatInt(id, 10))
	post.Date = &today
	post.UpdatedOn = today

	// 先推进序号：写文章失败只会跳过一个 id，不会出现已落盘却报错的文章
	seq := []byte(strconv.FormatInt(id, 10) + "\n")
	if err := afero.WriteFile(r.fs, filepath.Join(r.dir, sequenceFile), seq, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", sequenceFile, err)
	}
	if err := r.writeFile(r.postPath(id), &postFile{post: post}, os.O_WRONLY|os.O_CREATE|os.O_EXCL); err != nil {
		return nil, fmt.Errorf("write post %d: %w", id, err)
	}
	return post, nil
}

func (r *FilePostRepository) Update(_ context.Context, id string, patch model.PostPatch) (*model.Post, error) {
	file, path, err := r.load(id)
	if err != nil {
		return nil, err
	}
	patch.Apply(file.post)
	file.post.UpdatedOn = model.Day(r.now())

	if err := r.writeFile(path, file, os.O_WRONLY|os.O_CREATE|os.O_TRUNC); err != nil {
		return nil, fmt.Errorf("write post %s: %w", id, err)
	}
	return file.post, nil
}

func (r *FilePostRepository) Delete(_ context.Context, id string) error {
	_, path, err := r.load(id)
	if err != nil {
		return err
	}
	if err := r.fs.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return notFound(id)
		}
		return fmt.Errorf("remove post %s: %w", id, err)
	}
	return nil
}
