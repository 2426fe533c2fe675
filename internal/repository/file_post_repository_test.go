package repository

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/gin-blog/internal/model"
)

const postsDir = "public/exPosts"

func newFileRepo(t *testing.T) (*FilePostRepository, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	repo, err := NewFilePostRepository(fsys, postsDir)
	require.NoError(t, err)
	return repo, fsys
}

func sampleInput(title string, tags ...string) model.PostInput {
	return model.PostInput{Title: title, Content: "B", Category: "C", Tags: tags}
}

func TestFilePostRepository_CreateFirstPost(t *testing.T) {
	repo, fsys := newFileRepo(t)
	repo.now = func() time.Time { return time.Date(2024, time.July, 4, 15, 0, 0, 0, time.Local) }

	post, err := repo.Create(context.Background(), sampleInput("A", "x"))
	require.NoError(t, err)

	assert.Equal(t, model.PostID("1"), post.ID)
	require.NotNil(t, post.Date)
	assert.Equal(t, "07/04/2024", post.Date.String())
	assert.Equal(t, post.Date.String(), post.UpdatedOn.String())

	data, err := afero.ReadFile(fsys, postsDir+"/post1.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"title":"A","content":"B","category":"C","tags":["x"],"date":"07/04/2024","updatedOn":"07/04/2024"}`, string(data))
}

func TestFilePostRepository_CreateStampsToday(t *testing.T) {
	repo, _ := newFileRepo(t)

	post, err := repo.Create(context.Background(), sampleInput("A", "x"))
	require.NoError(t, err)
	assert.Equal(t, time.Now().Format(model.DayLayout), post.Date.String())
}

func TestFilePostRepository_CreateRequiresFields(t *testing.T) {
	repo, fsys := newFileRepo(t)

	inputs := []model.PostInput{
		{Content: "B", Category: "C", Tags: []string{"x"}},
		{Title: "A", Category: "C", Tags: []string{"x"}},
		{Title: "A", Content: "B", Tags: []string{"x"}},
		{Title: "A", Content: "B", Category: "C"},
	}
	for _, in := range inputs {
		_, err := repo.Create(context.Background(), in)
		assert.True(t, errors.Is(err, model.ErrBadRequest), "got %v", err)
	}

	entries, err := afero.ReadDir(fsys, postsDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing must be persisted")
}

func TestFilePostRepository_NextIDIgnoresListingOrder(t *testing.T) {
	repo, fsys := newFileRepo(t)
	// post10.json 在字典序中排在 post2.json 之前
	require.NoError(t, afero.WriteFile(fsys, postsDir+"/post10.json", []byte(`{"id":10,"title":"t","content":"c","category":"k","tags":["a"],"date":"01/01/2024","updatedOn":"01/01/2024"}`), 0o644))
	require.NoError(t, afero.WriteFile(fsys, postsDir+"/post2.json", []byte(`{"id":2,"title":"t","content":"c","category":"k","tags":["a"],"date":"01/01/2024","updatedOn":"01/01/2024"}`), 0o644))

	post, err := repo.Create(context.Background(), sampleInput("A", "x"))
	require.NoError(t, err)
	assert.Equal(t, model.PostID("11"), post.ID)

	posts, err := repo.List(context.Background())
	require.NoError(t, err)
	ids := make([]model.PostID, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []model.PostID{"2", "10", "11"}, ids)
}

func TestFilePostRepository_IDNotReusedAfterDelete(t *testing.T) {
	repo, _ := newFileRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, sampleInput("A", "x"))
	require.NoError(t, err)
	second, err := repo.Create(ctx, sampleInput("B", "x"))
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, second.ID.String()))

	third, err := repo.Create(ctx, sampleInput("C", "x"))
	require.NoError(t, err)
	assert.Equal(t, model.PostID("3"), third.ID)
}

func TestFilePostRepository_CreateCorruptPostIsInternal(t *testing.T) {
	repo, fsys := newFileRepo(t)
	require.NoError(t, afero.WriteFile(fsys, postsDir+"/post1.json", []byte(`{"id":`), 0o644))

	_, err := repo.Create(context.Background(), sampleInput("A", "x"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, model.ErrBadRequest))
	assert.False(t, errors.Is(err, model.ErrNotFound))
}

func TestFilePostRepository_ListSkipsForeignFiles(t *testing.T) {
	repo, fsys := newFileRepo(t)
	require.NoError(t, afero.WriteFile(fsys, postsDir+"/README.md", []byte("notes"), 0o644))

	posts, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
}

func TestFilePostRepository_ListFailsWithoutDirectory(t *testing.T) {
	repo, fsys := newFileRepo(t)
	require.NoError(t, fsys.RemoveAll(postsDir))

	_, err := repo.List(context.Background())
	assert.Error(t, err)
}

func TestFilePostRepository_Get(t *testing.T) {
	repo, _ := newFileRepo(t)
	ctx := context.Background()
	created, err := repo.Create(ctx, sampleInput("A", "x"))
	require.NoError(t, err)

	got, err := repo.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, created.Title, got.Title)

	for _, id := range []string{"2", "abc", "0", "../../etc/passwd"} {
		_, err := repo.Get(ctx, id)
		assert.True(t, errors.Is(err, model.ErrNotFound), "id %q: %v", id, err)
	}
}

func TestFilePostRepository_FilterByTag(t *testing.T) {
	repo, _ := newFileRepo(t)
	ctx := context.Background()
	_, err := repo.Create(ctx, sampleInput("first", "x"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, sampleInput("second", "y"))
	require.NoError(t, err)

	posts, err := repo.FilterByTag(ctx, "x")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "first", posts[0].Title)

	_, err = repo.FilterByTag(ctx, "z")
	assert.True(t, errors.Is(err, model.ErrNotFound))

	_, err = repo.FilterByTag(ctx, "")
	assert.True(t, errors.Is(err, model.ErrBadRequest))
}

func TestFilePostRepository_UpdateMergesFields(t *testing.T) {
	repo, _ := newFileRepo(t)
	ctx := context.Background()
	day := time.Date(2024, time.January, 1, 9, 0, 0, 0, time.Local)
	repo.now = func() time.Time { return day }

	created, err := repo.Create(ctx, model.PostInput{Title: "old", Content: "body", Category: "go", Tags: []string{"a", "b"}})
	require.NoError(t, err)

	repo.now = func() time.Time { return day.AddDate(0, 0, 1) }
	title := "new"
	updated, err := repo.Update(ctx, created.ID.String(), model.PostPatch{Title: &title})
	require.NoError(t, err)

	assert.Equal(t, "new", updated.Title)
	assert.Equal(t, "body", updated.Content)
	assert.Equal(t, "go", updated.Category)
	assert.Equal(t, []string{"a", "b"}, updated.Tags)
	assert.Equal(t, "01/01/2024", updated.Date.String())
	assert.Equal(t, "01/02/2024", updated.UpdatedOn.String())
	assert.True(t, updated.UpdatedOn.After(updated.Created()))

	reread, err := repo.Get(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, updated, reread)
}

func TestFilePostRepository_UpdateMissing(t *testing.T) {
	repo, _ := newFileRepo(t)
	title := "new"
	_, err := repo.Update(context.Background(), "9", model.PostPatch{Title: &title})
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestFilePostRepository_DeleteTwice(t *testing.T) {
	repo, _ := newFileRepo(t)
	ctx := context.Background()
	created, err := repo.Create(ctx, sampleInput("A", "x"))
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, created.ID.String()))

	_, err = repo.Get(ctx, created.ID.String())
	assert.True(t, errors.Is(err, model.ErrNotFound))

	err = repo.Delete(ctx, created.ID.String())
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestFilePostRepository_NonCanonicalIDsAreNotFound(t *testing.T) {
	repo, fsys := newFileRepo(t)
	ctx := context.Background()
	_, err := repo.Create(ctx, sampleInput("A", "x"))
	require.NoError(t, err)

	title := "t"
	for _, id := range []string{"01", "+1", "0001", "1 "} {
		_, err := repo.Get(ctx, id)
		assert.True(t, errors.Is(err, model.ErrNotFound), "get %q: %v", id, err)
		_, err = repo.Update(ctx, id, model.PostPatch{Title: &title})
		assert.True(t, errors.Is(err, model.ErrNotFound), "update %q: %v", id, err)
		assert.True(t, errors.Is(repo.Delete(ctx, id), model.ErrNotFound), "delete %q", id)
	}

	exists, err := afero.Exists(fsys, postsDir+"/post1.json")
	require.NoError(t, err)
	assert.True(t, exists)
	got, err := repo.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "A", got.Title)
}

func TestFilePostRepository_LegacyFiles(t *testing.T) {
	repo, fsys := newFileRepo(t)
	ctx := context.Background()
	repo.now = func() time.Time { return time.Date(2024, time.June, 1, 12, 0, 0, 0, time.Local) }

	require.NoError(t, afero.WriteFile(fsys, postsDir+"/post1.json",
		[]byte(`{"id":1,"title":"t","content":"c","category":"k","tags":["a"],"date":"01/02/2023","author":"ann"}`), 0o644))
	require.NoError(t, afero.WriteFile(fsys, postsDir+"/post2.json",
		[]byte(`{"id":2,"title":"t","content":"c","category":"k","tags":["a"],"date":"01/02/2023","updated":"03/04/2023"}`), 0o644))

	first, err := repo.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "01/02/2023", first.UpdatedOn.String())

	second, err := repo.Get(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "03/04/2023", second.UpdatedOn.String())

	title := "new"
	_, err = repo.Update(ctx, "1", model.PostPatch{Title: &title})
	require.NoError(t, err)

	data, err := afero.ReadFile(fsys, postsDir+"/post1.json")
	require.NoError(t, err)
	var stored map[string]any
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, "ann", stored["author"])
	assert.Equal(t, "new", stored["title"])
	assert.Equal(t, "01/02/2023", stored["date"])
	assert.Equal(t, "06/01/2024", stored["updatedOn"])
}

// sequenceFailFs 写 .sequence 时失败
type sequenceFailFs struct{ afero.Fs }

func (f sequenceFailFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if filepath.Base(name) == sequenceFile && flag&(os.O_WRONLY|os.O_RDWR) != 0 {
		return nil, errors.New("disk full")
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func TestFilePostRepository_SequenceFailureLeavesNoPost(t *testing.T) {
	fsys := sequenceFailFs{afero.NewMemMapFs()}
	repo, err := NewFilePostRepository(fsys, postsDir)
	require.NoError(t, err)

	_, err = repo.Create(context.Background(), sampleInput("A", "x"))
	require.Error(t, err)

	posts, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, posts)
}
