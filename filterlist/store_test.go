package filterlist_test

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/abpkit/contentfilter/filterlist"
	"github.com/abpkit/contentfilter/internal/lookup"
	"github.com/abpkit/contentfilter/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newStore is a helper that returns a store in a temporary directory.
func newStore(tb testing.TB) (s *filterlist.Store, dir string) {
	tb.Helper()

	dir = tb.TempDir()
	s, err := filterlist.NewStore(&filterlist.StoreConfig{
		Logger: slogutil.NewDiscardLogger(),
		Dir:    dir,
	})
	require.NoError(tb, err)

	return s, dir
}

// writeList is a helper that decodes text and writes it to s as list id.
func writeList(tb testing.TB, s *filterlist.Store, id, text string) (res *filterlist.Result) {
	tb.Helper()

	res = decode(tb, text)
	require.NoError(tb, s.Write(id, res))

	return res
}

func TestStore_Write(t *testing.T) {
	t.Parallel()

	s, _ := newStore(t)
	res := writeList(t, s, "test", testList)

	got, err := s.ListFilters("test")
	require.NoError(t, err)

	for _, c := range filterlist.NetworkClasses {
		assert.Equal(t, filterTexts(res.Sets[c]), filterTexts(got[c]), "class %s", c)
	}

	assert.Equal(t, filterTexts(res.Sets[filterlist.ClassBlock.Bad()]), filterTexts(got[filterlist.ClassBlock.Bad()]))

	t.Run("elements", func(t *testing.T) {
		t.Parallel()

		ec := lookup.NewElementContainer()
		n, loadErr := s.LoadElements(context.Background(), []string{"test"}, ec)
		require.NoError(t, loadErr)

		assert.Equal(t, len(res.Elements), n)
		assert.Equal(t, len(res.Elements), ec.Len())
	})
}

func TestStore_Write_roundTrip(t *testing.T) {
	t.Parallel()

	const list = "/^https?:\\/\\/ads\\.[a-z]+\\//$script,domain=a.example|~b.a.example\n" +
		"||Tracker.example/Path$match-case,3p\n" +
		"$removeparam=/^utm_/\n" +
		"||cdn.example^$image,redirect=1x1.gif:5\n" +
		"||page.example^$csp=default-src 'self'\n" +
		"example.*,~sub.example.org##.ad\n"

	s, _ := newStore(t)
	res := writeList(t, s, "rt", list)
	require.Empty(t, res.Errors)

	got, err := s.ListFilters("rt")
	require.NoError(t, err)

	for c, want := range res.Sets {
		require.Len(t, got[c], len(want), "class %s", c)

		for i, w := range want {
			g := got[c][i]
			assert.Equal(t, w.Text, g.Text)
			assert.Equal(t, w.Pattern, g.Pattern)
			assert.Equal(t, w.Kind, g.Kind)
			assert.Equal(t, w.ContentType, g.ContentType)
			assert.Equal(t, w.Party, g.Party)
			assert.Equal(t, w.MatchCase, g.MatchCase)
			assert.Equal(t, w.Domains == nil, g.Domains == nil)
			if w.Domains != nil {
				assert.Equal(t, w.Domains.String(), g.Domains.String())
			}

			if w.Modify == nil {
				assert.Nil(t, g.Modify)
			} else {
				require.NotNil(t, g.Modify)
				assert.Equal(t, w.Modify.Kind(), g.Modify.Kind())
				assert.Equal(t, w.Modify.Value(), g.Modify.Value())
			}
		}
	}

	sc := s.NewElementScanner([]string{"rt"})
	testutil.CleanupAndRequireSuccess(t, sc.Close)

	require.True(t, sc.Scan())
	assert.Equal(t, "example.*|~sub.example.org", sc.Element().Domains.String())
	assert.False(t, sc.Scan())
	assert.NoError(t, sc.Err())
}

func TestStore_Load_badfilter(t *testing.T) {
	t.Parallel()

	s, _ := newStore(t)
	writeList(t, s, "list1", "||bad.example^\n||good.example^\n||bad.example^$script\n")
	writeList(t, s, "list2", "||bad.example^$badfilter\n")

	fc := lookup.NewFilterContainer()
	n, err := s.Load(context.Background(), filterlist.ClassBlock, []string{"list1", "list2"}, fc)
	require.NoError(t, err)

	assert.Equal(t, 2, n)

	testCases := []struct {
		name string
		url  string
		want string
	}{{
		name: "cancelled",
		url:  "https://bad.example/img.png",
		want: "",
	}, {
		name: "other_options_kept",
		url:  "https://bad.example/app.js",
		want: "||bad.example^$script",
	}, {
		name: "kept",
		url:  "https://good.example/",
		want: "||good.example^",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			typ := rules.TypeImage
			if filepath.Ext(tc.url) == ".js" {
				typ = rules.TypeScript
			}

			f := fc.Get(rules.NewRequest(tc.url, "", typ))
			if tc.want == "" {
				assert.Nil(t, f)
			} else {
				require.NotNil(t, f)
				assert.Equal(t, tc.want, f.Text)
			}
		})
	}
}

func TestStore_Load_cancelled(t *testing.T) {
	t.Parallel()

	s, _ := newStore(t)
	writeList(t, s, "list", "||a.example^\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Load(ctx, filterlist.ClassBlock, []string{"list"}, lookup.NewFilterContainer())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_Write_failedReplace(t *testing.T) {
	t.Parallel()

	s, dir := newStore(t)
	writeList(t, s, "list", "||old.example^\n@@||old.example^$script\n")

	// A directory in place of the block file makes its replacement fail.
	blockPath := filepath.Join(dir, string(filterlist.ClassBlock)+"list")
	require.NoError(t, os.Remove(blockPath))
	require.NoError(t, os.MkdirAll(filepath.Join(blockPath, "sub"), 0o755))

	res := decode(t, "||new.example^\n@@||new.example^$script\n")
	err := s.Write("list", res)
	require.Error(t, err)

	sc := s.NewScanner(filterlist.ClassAllow, []string{"list"})
	testutil.CleanupAndRequireSuccess(t, sc.Close)

	require.True(t, sc.Scan())
	assert.Equal(t, "@@||old.example^$script", sc.Filter().Text)
	assert.False(t, sc.Scan())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-")
	}
}

func TestStoreScanner_corrupt(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		corrupt func(data []byte) (res []byte)
		wantErr error
		name    string
	}{{
		corrupt: func(data []byte) (res []byte) {
			data[8] ^= 0xFF

			return data
		},
		wantErr: filterlist.ErrBadChecksum,
		name:    "flipped_byte",
	}, {
		corrupt: func(data []byte) (res []byte) {
			return data[:len(data)-5]
		},
		wantErr: filterlist.ErrBadMagic,
		name:    "truncated",
	}, {
		corrupt: func(data []byte) (res []byte) {
			copy(data, "XXXX")

			return data
		},
		wantErr: filterlist.ErrBadChecksum,
		name:    "bad_header",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s, dir := newStore(t)
			writeList(t, s, "bad", "||a.example^\n||b.example^\n")
			writeList(t, s, "good", "||c.example^\n")

			path := filepath.Join(dir, string(filterlist.ClassBlock)+"bad")
			data, err := os.ReadFile(path)
			require.NoError(t, err)

			err = os.WriteFile(path, tc.corrupt(data), 0o644)
			require.NoError(t, err)

			sc := s.NewScanner(filterlist.ClassBlock, []string{"bad", "good"})
			testutil.CleanupAndRequireSuccess(t, sc.Close)

			var texts []string
			for sc.Scan() {
				texts = append(texts, sc.Filter().Text)
			}

			assert.Equal(t, []string{"||c.example^"}, texts)
			assert.ErrorIs(t, sc.Err(), tc.wantErr)
		})
	}
}

func TestStore_Remove(t *testing.T) {
	t.Parallel()

	s, dir := newStore(t)
	writeList(t, s, "list", "||a.example^\n@@||b.example^\n")

	allowPath := filepath.Join(dir, string(filterlist.ClassAllow)+"list")
	require.FileExists(t, allowPath)

	// Rewriting without exceptions removes the stale class file.
	writeList(t, s, "list", "||a.example^\n")
	_, err := os.Stat(allowPath)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	require.NoError(t, s.Remove("list"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	assert.Empty(t, entries)

	sc := s.NewScanner(filterlist.ClassBlock, []string{"list"})
	assert.False(t, sc.Scan())
	assert.NoError(t, sc.Err())
}

func TestStore_badID(t *testing.T) {
	t.Parallel()

	s, _ := newStore(t)

	for _, id := range []string{"", "../x", ".hidden", "a/b"} {
		assert.ErrorIs(t, s.Write(id, &filterlist.Result{}), filterlist.ErrBadListID)
		assert.ErrorIs(t, s.Remove(id), filterlist.ErrBadListID)
	}
}

func BenchmarkStore_Load(b *testing.B) {
	s, _ := newStore(b)
	writeList(b, s, "bench", testList)

	ctx := context.Background()
	ids := []string{"bench"}

	var n int
	var err error

	b.ReportAllocs()
	for b.Loop() {
		n, err = s.Load(ctx, filterlist.ClassBlock, ids, lookup.NewFilterContainer())
	}

	require.NoError(b, err)
	assert.Positive(b, n)
}
