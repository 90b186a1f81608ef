package catalog

import (
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ID identifies a catalog node for the lifetime of the process.
type ID uint32

// RootID is the reserved id of the tree root.
const RootID ID = 0

// String formats the id the way it appears in ObjectID arguments.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseID parses an ObjectID argument.
func ParseID(s string) (ID, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, err
	}
	return ID(v), nil
}

// Resource describes the playable representation of a leaf.
type Resource struct {
	ProtocolInfo string
	Size         int64
}

// Item is one node of the catalog tree. Identity fields are fixed at
// allocation; everything else is guarded by mu.
type Item struct {
	id        ID
	parent    *Item
	name      string
	class     Class
	container bool

	mu          sync.RWMutex
	title       string
	virtual     bool
	restricted  bool
	backingPath string
	res         *Resource
	modified    time.Time
	updateID    uint32
	metadata    map[string]string
	children    []*Item
	byName      map[string]*Item
}

// ItemOption sets a mutable attribute on an item.
type ItemOption func(*Item)

// WithTitle sets the display title.
func WithTitle(title string) ItemOption {
	return func(it *Item) { it.title = title }
}

// WithVirtual marks the node as synthesized rather than scanned.
func WithVirtual(virtual bool) ItemOption {
	return func(it *Item) { it.virtual = virtual }
}

// WithBackingPath records the source path the node was built from.
func WithBackingPath(path string) ItemOption {
	return func(it *Item) { it.backingPath = path }
}

// WithResource attaches protocol info and size.
func WithResource(res Resource) ItemOption {
	return func(it *Item) {
		r := res
		it.res = &r
	}
}

// WithModified sets the source modification time.
func WithModified(t time.Time) ItemOption {
	return func(it *Item) { it.modified = t }
}

// WithMetadata replaces the extra metadata bag.
func WithMetadata(md map[string]string) ItemOption {
	return func(it *Item) {
		it.metadata = make(map[string]string, len(md))
		for k, v := range md {
			it.metadata[k] = v
		}
	}
}

// WithRestricted sets the DIDL restricted flag.
func WithRestricted(restricted bool) ItemOption {
	return func(it *Item) { it.restricted = restricted }
}

func newItem(id ID, parent *Item, name string, class Class, container bool) *Item {
	it := &Item{
		id:         id,
		parent:     parent,
		name:       name,
		class:      class,
		container:  container,
		restricted: true,
	}
	if container {
		it.byName = make(map[string]*Item)
	}
	return it
}

// ID returns the item's object id.
func (it *Item) ID() ID { return it.id }

// Parent returns the parent container, nil for the root.
func (it *Item) Parent() *Item { return it.parent }

// Name returns the path segment naming the item under its parent.
func (it *Item) Name() string { return it.name }

// Class returns the UPnP class.
func (it *Item) Class() Class { return it.class }

// IsContainer reports whether the item can hold children.
func (it *Item) IsContainer() bool { return it.container }

// ParentID returns the DIDL parentID attribute; the root reports -1.
func (it *Item) ParentID() string {
	if it.parent == nil {
		return "-1"
	}
	return it.parent.id.String()
}

// Title returns the explicit title, or one derived from the name.
func (it *Item) Title() string {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.titleLocked()
}

func (it *Item) titleLocked() string {
	if it.title != "" {
		return it.title
	}
	if it.container {
		return it.name
	}
	return CleanTitle(it.name)
}

// SortKey is the value children are ordered by when a sort is requested.
func (it *Item) SortKey() string {
	it.mu.RLock()
	defer it.mu.RUnlock()
	if it.title != "" {
		return it.title
	}
	return it.name
}

// Virtual reports whether the container was created only to complete a path.
func (it *Item) Virtual() bool {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.virtual
}

// Restricted reports the DIDL restricted flag.
func (it *Item) Restricted() bool {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.restricted
}

// BackingPath returns the file or directory behind the item, if any.
func (it *Item) BackingPath() string {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.backingPath
}

// Resource returns a copy of the resource attributes, or nil.
func (it *Item) Resource() *Resource {
	it.mu.RLock()
	defer it.mu.RUnlock()
	if it.res == nil {
		return nil
	}
	r := *it.res
	return &r
}

// Modified returns the last modification time.
func (it *Item) Modified() time.Time {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.modified
}

// UpdateID returns the node's version counter.
func (it *Item) UpdateID() uint32 {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.updateID
}

// Metadata returns a copy of the extra metadata bag.
func (it *Item) Metadata() map[string]string {
	it.mu.RLock()
	defer it.mu.RUnlock()
	md := make(map[string]string, len(it.metadata))
	for k, v := range it.metadata {
		md[k] = v
	}
	return md
}

// ChildCount returns the number of direct children.
func (it *Item) ChildCount() int {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return len(it.children)
}

// Path returns the materialized path, "/" for the root.
func (it *Item) Path() string {
	if it.parent == nil {
		return "/"
	}
	var segments []string
	for n := it; n.parent != nil; n = n.parent {
		segments = append(segments, n.name)
	}
	var b strings.Builder
	for i := len(segments) - 1; i >= 0; i-- {
		b.WriteByte('/')
		b.WriteString(segments[i])
	}
	return b.String()
}

// CleanTitle derives a display title from a file name: the extension is
// dropped, as is anything after a "__" marker.
func CleanTitle(name string) string {
	title := strings.TrimSuffix(name, filepath.Ext(name))
	if i := strings.Index(title, "__"); i >= 0 {
		title = title[:i]
	}
	if title == "" {
		return name
	}
	return title
}
