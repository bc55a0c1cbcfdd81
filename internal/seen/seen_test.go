package seen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iabetor/dailynews/internal/database"
	"github.com/iabetor/dailynews/internal/rss"
)

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("Model X released")
	assert.Len(t, fp, 32)
	assert.Equal(t, fp, Fingerprint("Model X released"))
	assert.Equal(t, fp, Fingerprint("  Model X released \n"))
	assert.NotEqual(t, fp, Fingerprint("model x released"))
	// 与历史记录文件兼容：md5("") 的十六进制
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", Fingerprint("   "))
}

func TestSetKeepsInsertionOrder(t *testing.T) {
	s := NewSet("a", "b", "a", "c")
	assert.Equal(t, []string{"a", "b", "c"}, s.List())
	assert.False(t, s.Add("b"), "重复加入应返回 false")
	assert.True(t, s.Add("d"))
	assert.Equal(t, []string{"a", "b", "c", "d"}, s.List())
}

func TestSetTruncateEvictsOldestFirst(t *testing.T) {
	s := NewSet()
	for i := 0; i < 10; i++ {
		s.Add(fmt.Sprintf("fp-%d", i))
	}
	s.Truncate(4)

	assert.Equal(t, []string{"fp-6", "fp-7", "fp-8", "fp-9"}, s.List())
	assert.False(t, s.Contains("fp-5"))
	assert.True(t, s.Contains("fp-6"))

	// 截断后再次加入被淘汰的指纹应排到最后
	s.Add("fp-0")
	s.Truncate(4)
	assert.Equal(t, []string{"fp-7", "fp-8", "fp-9", "fp-0"}, s.List())
}

func TestFilterAndMark(t *testing.T) {
	items := []rss.Item{{Title: "A"}, {Title: "B"}, {Title: " C "}}
	s := NewSet(Fingerprint("B"))

	got := Filter(items, s)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Title)
	assert.Equal(t, " C ", got[1].Title)

	Mark(got, s)
	assert.Equal(t, []string{Fingerprint("B"), Fingerprint("A"), Fingerprint("C")}, s.List())
	assert.Empty(t, Filter(items, s))
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache", "seen_titles.json")
	store := NewFileStore(path)

	fps, err := store.Load(ctx)
	require.NoError(t, err, "文件不存在时不应报错")
	assert.Empty(t, fps)

	require.NoError(t, store.Save(ctx, []string{"x", "y"}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `["x","y"]`, string(data))

	fps, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, fps)

	require.NoError(t, store.Reset(ctx))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, store.Reset(ctx), "重复 Reset 不应报错")
}

func TestFileStoreCorrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen_titles.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := NewFileStore(path).Load(context.Background())
	assert.Error(t, err)
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "dailynews.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate())

	ctx := context.Background()
	store := NewSQLiteStore(db)

	fps, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, fps)

	require.NoError(t, store.Save(ctx, []string{"c", "a", "b"}))
	require.NoError(t, store.Save(ctx, []string{"a", "b", "d"}))

	fps, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "d"}, fps)

	require.NoError(t, store.Reset(ctx))
	fps, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, fps)
}

type failingStore struct{}

func (failingStore) Load(context.Context) ([]string, error) { return nil, errors.New("disk gone") }
func (failingStore) Save(context.Context, []string) error   { return errors.New("disk gone") }
func (failingStore) Reset(context.Context) error            { return errors.New("disk gone") }

func TestDeduplicatorLoadSoftFailure(t *testing.T) {
	d := NewDeduplicator(failingStore{}, 10)
	s := d.Load(context.Background())
	require.NotNil(t, s)
	assert.Equal(t, 0, s.Len())
	assert.Error(t, d.Save(context.Background(), s))
}

func TestDeduplicatorSaveRespectsLimit(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "seen_titles.json")
	d := NewDeduplicator(NewFileStore(path), 500)

	s := d.Load(ctx)
	for i := 0; i < 520; i++ {
		Mark([]rss.Item{{Title: fmt.Sprintf("title %d", i)}}, s)
	}
	require.NoError(t, d.Save(ctx, s))

	reloaded := d.Load(ctx)
	assert.Equal(t, 500, reloaded.Len())
	assert.False(t, reloaded.Contains(Fingerprint("title 19")), "最早的 20 个应被淘汰")
	assert.True(t, reloaded.Contains(Fingerprint("title 20")))
	assert.True(t, reloaded.Contains(Fingerprint("title 519")))
}

func TestDeduplicatorDefaultLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NewDeduplicator(NewFileStore("x"), 0).Limit())
}
