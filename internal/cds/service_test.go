package cds

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mantonx/upnpcds/internal/catalog"
	cdserrors "github.com/mantonx/upnpcds/internal/errors"
)

type staticMime map[string]string

func (m staticMime) MimeType(path string) (string, error) {
	if v, ok := m[filepath.Ext(path)]; ok {
		return v, nil
	}
	return "", errors.New("unknown extension")
}

func newTestService() *Service {
	logger := hclog.NewNullLogger()
	return NewService(catalog.NewStore(logger), staticMime{".mp3": "audio/mpeg"}, logger)
}

// fakeRepository records its lifecycle calls.
type fakeRepository struct {
	mount    string
	real     bool
	order    *[]string
	orderMu  *sync.Mutex
	node     *catalog.Item
	created  []string
	delay    time.Duration
	err      error
	updated  []catalog.ID
	updateMu sync.Mutex
	svc      *Service
}

func (r *fakeRepository) MountPath() string { return r.mount }

func (r *fakeRepository) Initialize(ctx context.Context, svc *Service) error {
	r.orderMu.Lock()
	*r.order = append(*r.order, r.mount)
	r.orderMu.Unlock()

	r.svc = svc
	if r.real {
		node, err := svc.NewContainer(svc.Store().Root(), r.mount[1:])
		if err != nil {
			return err
		}
		r.node = node
		return nil
	}
	node, err := svc.AllocateItemsForPath(r.mount)
	r.node = node
	return err
}

func (r *fakeRepository) Browse(ctx context.Context, item *catalog.Item) ([]*catalog.Item, error) {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if r.err != nil {
		return nil, r.err
	}
	var out []*catalog.Item
	for _, name := range r.created {
		it, err := r.svc.NewContainer(r.node, name)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

func (r *fakeRepository) Update(ctx context.Context, item *catalog.Item) error {
	if r.err != nil {
		return r.err
	}
	r.updateMu.Lock()
	r.updated = append(r.updated, item.ID())
	r.updateMu.Unlock()
	return nil
}

func newFakeRepos(mounts ...string) ([]*fakeRepository, *[]string) {
	order := &[]string{}
	mu := &sync.Mutex{}
	repos := make([]*fakeRepository, len(mounts))
	for i, m := range mounts {
		repos[i] = &fakeRepository{mount: m, order: order, orderMu: mu}
	}
	return repos, order
}

func asRepositories(repos []*fakeRepository) []Repository {
	out := make([]Repository, len(repos))
	for i, r := range repos {
		out[i] = r
	}
	return out
}

func populate(t *testing.T, svc *Service, parent *catalog.Item, names ...string) {
	t.Helper()
	for _, name := range names {
		_, err := svc.NewContainer(parent, name)
		require.NoError(t, err)
	}
}

func TestBrowse_DirectChildrenWindowing(t *testing.T) {
	svc := newTestService()
	root := svc.Store().Root()
	populate(t, svc, root, "a", "b", "c", "d", "e")

	tests := []struct {
		name     string
		start    int
		count    int
		returned int
	}{
		{"absent window returns all", -1, -1, 5},
		{"zero values return all", 0, 0, 5},
		{"start beyond total", 9, -1, 0},
		{"start at total", 5, -1, 0},
		{"count truncates", -1, 2, 2},
		{"count larger than remaining", 3, 10, 2},
		{"start and count", 1, 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Browse(context.Background(), BrowseRequest{
				ObjectID:       0,
				BrowseFlag:     BrowseDirectChildren,
				StartingIndex:  tt.start,
				RequestedCount: tt.count,
				ContentURL:     "http://127.0.0.1:10293/content",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.returned, res.NumberReturned)
			assert.Equal(t, 5, res.TotalMatches)
			assert.Equal(t, root.UpdateID(), res.UpdateID)
		})
	}
}

func TestBrowse_SortCriteria(t *testing.T) {
	svc := newTestService()
	root := svc.Store().Root()
	populate(t, svc, root, "delta", "alpha", "charlie")
	_, err := svc.NewContainer(root, "zulu", catalog.WithTitle("bravo"))
	require.NoError(t, err)

	res, err := svc.Browse(context.Background(), BrowseRequest{
		BrowseFlag:     BrowseDirectChildren,
		StartingIndex:  -1,
		RequestedCount: -1,
		SortCriteria:   "+dc:title",
	})
	require.NoError(t, err)

	var positions []int
	for _, title := range []string{"alpha", "bravo", "charlie", "delta"} {
		idx := strings.Index(res.Result, "<dc:title>"+title+"</dc:title>")
		require.GreaterOrEqual(t, idx, 0, title)
		positions = append(positions, idx)
	}
	assert.IsIncreasing(t, positions)

	// Stored order is unchanged without sort criteria.
	res, err = svc.Browse(context.Background(), BrowseRequest{BrowseFlag: BrowseDirectChildren, StartingIndex: -1, RequestedCount: -1})
	require.NoError(t, err)
	assert.Less(t, strings.Index(res.Result, "delta"), strings.Index(res.Result, "alpha"))
}

func TestBrowse_Metadata(t *testing.T) {
	svc := newTestService()
	node, err := svc.AllocateItemsForPath("/music")
	require.NoError(t, err)

	res, err := svc.Browse(context.Background(), BrowseRequest{ObjectID: node.ID(), BrowseFlag: BrowseMetadata})
	require.NoError(t, err)
	assert.Equal(t, 1, res.NumberReturned)
	assert.Equal(t, 1, res.TotalMatches)
	assert.Equal(t, node.UpdateID(), res.UpdateID)
	assert.Contains(t, res.Result, `<container id="`+node.ID().String()+`" parentID="0"`)

	_, err = svc.Browse(context.Background(), BrowseRequest{ObjectID: 4242, BrowseFlag: BrowseMetadata})
	require.Error(t, err)
	assert.True(t, errors.Is(err, cdserrors.ErrNotFound))
	assert.Equal(t, cdserrors.CodeNoSuchObject, cdserrors.UPnPCode(err))
}

func TestBrowse_ErrorCases(t *testing.T) {
	svc := newTestService()

	_, err := svc.Browse(context.Background(), BrowseRequest{BrowseFlag: "BrowseEverything"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, cdserrors.ErrInvalidArgument))
	var cErr *cdserrors.CDSError
	require.True(t, errors.As(err, &cErr))
	assert.Equal(t, "BrowseEverything", cErr.Value)

	_, err = svc.Browse(context.Background(), BrowseRequest{ObjectID: 999, BrowseFlag: BrowseDirectChildren})
	assert.True(t, errors.Is(err, cdserrors.ErrNotFound))

	dir := t.TempDir()
	path := filepath.Join(dir, "a.mp3")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))
	leaf, err := svc.NewAudio(svc.Store().Root(), "", path)
	require.NoError(t, err)

	_, err = svc.Browse(context.Background(), BrowseRequest{ObjectID: leaf.ID(), BrowseFlag: BrowseDirectChildren})
	assert.Equal(t, cdserrors.CodeNoSuchContainer, cdserrors.UPnPCode(err))
}

func TestSearch_NotSupported(t *testing.T) {
	svc := newTestService()
	_, err := svc.Search(context.Background(), SearchRequest{SearchCriteria: "*"})
	assert.True(t, errors.Is(err, cdserrors.ErrNotSupported))
	assert.Equal(t, "", svc.GetSearchCapabilities())
	assert.Equal(t, "", svc.GetSortCapabilities())
}

func TestNewFile_Attributes(t *testing.T) {
	svc := newTestService()
	dir := t.TempDir()
	mp3 := filepath.Join(dir, "Intro__remaster.mp3")
	bin := filepath.Join(dir, "blob.xyz")
	require.NoError(t, os.WriteFile(mp3, []byte("12345678"), 0644))
	require.NoError(t, os.WriteFile(bin, []byte("1"), 0644))

	root := svc.Store().Root()
	track, err := svc.NewAudio(root, "", mp3)
	require.NoError(t, err)
	assert.Equal(t, "Intro__remaster.mp3", track.Name())
	assert.Equal(t, "Intro", track.Title())
	assert.Equal(t, mp3, track.BackingPath())
	require.NotNil(t, track.Resource())
	assert.Equal(t, "http-get:*:audio/mpeg:*", track.Resource().ProtocolInfo)
	assert.Equal(t, int64(8), track.Resource().Size)
	assert.False(t, track.Modified().IsZero())

	other, err := svc.NewFile(root, "", bin, catalog.ClassAudioFile)
	require.NoError(t, err)
	assert.Equal(t, "http-get:*:application/octet-stream:*", other.Resource().ProtocolInfo)

	_, err = svc.NewPhoto(root, "", filepath.Join(dir, "missing.jpg"))
	assert.True(t, errors.Is(err, cdserrors.ErrIO))

	folder, err := svc.NewFolder(root, "", dir)
	require.NoError(t, err)
	assert.Equal(t, catalog.ClassStorageFolder, folder.Class())
	assert.Equal(t, dir, folder.BackingPath())

	_, err = svc.NewFolder(root, "x", mp3)
	assert.True(t, errors.Is(err, cdserrors.ErrIO))
}

func TestSetRepositories_OrderAndMountResolution(t *testing.T) {
	svc := newTestService()
	repos, order := newFakeRepos("/music/favorites", "/music")
	favorites, music := repos[0], repos[1]
	music.real = true

	require.NoError(t, svc.SetRepositories(context.Background(), asRepositories(repos)))

	assert.Equal(t, []string{"/music", "/music/favorites"}, *order)
	assert.Equal(t, []Repository{music, favorites}, svc.Repositories())

	assert.Same(t, music.node, favorites.node.Parent())
	assert.False(t, music.node.Virtual())

	x, err := svc.AllocateItemsForPath("/music/favorites/x")
	require.NoError(t, err)
	assert.Same(t, favorites.node, x.Parent())
}

func TestSetRepositories_InitFailure(t *testing.T) {
	svc := newTestService()
	repos, _ := newFakeRepos("/a")
	repos[0].real = true
	_, err := svc.NewContainer(svc.Store().Root(), "a")
	require.NoError(t, err)

	err = svc.SetRepositories(context.Background(), asRepositories(repos))
	assert.True(t, errors.Is(err, cdserrors.ErrUpstream))
	assert.True(t, errors.Is(err, cdserrors.ErrNameTaken))
}

func TestRouteBrowse_OrderedConcatenation(t *testing.T) {
	svc := newTestService()
	repos, _ := newFakeRepos("/music", "/music/favorites", "/video")
	repos[0].created = []string{"m1", "m2"}
	repos[0].delay = 30 * time.Millisecond
	repos[1].created = []string{"f1"}
	repos[2].created = []string{"v1"}
	require.NoError(t, svc.SetRepositories(context.Background(), asRepositories(repos)))

	target, err := svc.AllocateItemsForPath("/music/favorites")
	require.NoError(t, err)

	items, err := svc.RouteBrowse(context.Background(), target)
	require.NoError(t, err)

	var names []string
	for _, it := range items {
		names = append(names, it.Name())
	}
	assert.Equal(t, []string{"m1", "m2", "f1"}, names)
}

func TestRouteBrowse_FailureAborts(t *testing.T) {
	svc := newTestService()
	repos, _ := newFakeRepos("/music", "/music/favorites")
	repos[0].created = []string{"m1"}
	repos[1].err = fmt.Errorf("disk gone")
	require.NoError(t, svc.SetRepositories(context.Background(), asRepositories(repos)))

	target, err := svc.AllocateItemsForPath("/music/favorites/deep")
	require.NoError(t, err)

	items, err := svc.RouteBrowse(context.Background(), target)
	assert.Nil(t, items)
	require.Error(t, err)
	assert.True(t, errors.Is(err, cdserrors.ErrUpstream))
	assert.Contains(t, err.Error(), "/music/favorites")
}

func TestRouteUpdate(t *testing.T) {
	svc := newTestService()
	repos, _ := newFakeRepos("/music", "/musicals")
	require.NoError(t, svc.SetRepositories(context.Background(), asRepositories(repos)))

	target, err := svc.AllocateItemsForPath("/music/a")
	require.NoError(t, err)

	require.NoError(t, svc.RouteUpdate(context.Background(), target))
	assert.Equal(t, []catalog.ID{target.ID()}, repos[0].updated)
	assert.Empty(t, repos[1].updated)

	repos[0].err = errors.New("boom")
	err = svc.RouteUpdate(context.Background(), target)
	assert.True(t, errors.Is(err, cdserrors.ErrUpstream))
}

func TestWindow(t *testing.T) {
	items := make([]*catalog.Item, 4)
	assert.Len(t, Window(items, -1, -1), 4)
	assert.Len(t, Window(items, 2, -1), 2)
	assert.Len(t, Window(items, 5, 1), 0)
	assert.Len(t, Window(items, 0, 3), 3)
	assert.Len(t, Window(nil, 1, 1), 0)
}
