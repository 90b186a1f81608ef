package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/mantonx/upnpcds/internal/catalog"
	"github.com/mantonx/upnpcds/internal/cds"
)

func newTestService() *cds.Service {
	logger := hclog.NewNullLogger()
	return cds.NewService(catalog.NewStore(logger), NewMimeResolver(), logger)
}

// writeFile creates dir/rel with content and returns its path.
func writeFile(t *testing.T, dir, rel string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

// fakeExtractor returns canned tags by base name.
type fakeExtractor struct {
	mu    sync.Mutex
	tags  map[string]Tags
	fail  map[string]error
	calls atomic.Int32
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{tags: map[string]Tags{}, fail: map[string]error{}}
}

func (f *fakeExtractor) set(name string, tags Tags) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tags[name] = tags
}

func (f *fakeExtractor) Extract(path string) (Tags, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	name := filepath.Base(path)
	if err, ok := f.fail[name]; ok {
		return Tags{}, err
	}
	if tags, ok := f.tags[name]; ok {
		return tags, nil
	}
	return Tags{}, nil
}

func lookup(t *testing.T, svc *cds.Service, path string) *catalog.Item {
	t.Helper()
	item, err := svc.Store().Lookup(path)
	require.NoError(t, err, path)
	return item
}

func childNames(svc *cds.Service, parent *catalog.Item) []string {
	var names []string
	for _, c := range svc.Store().Children(parent) {
		names = append(names, c.Name())
	}
	return names
}

func id3Frame(id, text string) []byte {
	body := append([]byte{0}, []byte(text)...)
	n := len(body)
	frame := []byte(id)
	frame = append(frame, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	frame = append(frame, 0, 0)
	return append(frame, body...)
}

// id3v23 builds a minimal ID3v2.3 tagged file followed by filler bytes.
func id3v23(frames ...[]byte) []byte {
	var body []byte
	for _, f := range frames {
		body = append(body, f...)
	}
	n := len(body)
	out := []byte{'I', 'D', '3', 3, 0, 0, byte(n>>21&0x7f), byte(n>>14&0x7f), byte(n>>7&0x7f), byte(n&0x7f)}
	out = append(out, body...)
	return append(out, make([]byte, 128)...)
}

func trackFile(i int) string {
	return fmt.Sprintf("track-%02d.mp3", i)
}
