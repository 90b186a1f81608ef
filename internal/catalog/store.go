// Package catalog holds the in-memory item tree served by the content
// directory: id allocation, parent/child linking, lookup by id and by path,
// and DIDL-Lite serialization of nodes.
package catalog

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-hclog"

	cdserrors "github.com/mantonx/upnpcds/internal/errors"
)

// Store owns the item tree. All structural mutation goes through it so that
// sibling-name uniqueness is checked and applied under the parent's lock.
type Store struct {
	logger hclog.Logger

	mu   sync.RWMutex
	byID map[ID]*Item
	root *Item

	nextID         atomic.Uint32
	systemUpdateID atomic.Uint32
}

// NewStore creates a store holding only the root container.
func NewStore(logger hclog.Logger) *Store {
	root := newItem(RootID, nil, "", ClassContainer, true)
	root.title = "root"

	return &Store{
		logger: logger.Named("catalog"),
		byID:   map[ID]*Item{RootID: root},
		root:   root,
	}
}

// Root returns the root container.
func (s *Store) Root() *Item {
	return s.root
}

// SystemUpdateID returns the store-wide change counter.
func (s *Store) SystemUpdateID() uint32 {
	return s.systemUpdateID.Load()
}

// Len returns the number of registered items, root included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Allocate creates a child of parent with a fresh id, links it and registers
// it. It fails with ErrNameTaken when a sibling already uses name.
func (s *Store) Allocate(parent *Item, name string, class Class, container bool, opts ...ItemOption) (*Item, error) {
	if err := checkParent(parent, name); err != nil {
		return nil, err
	}

	parent.mu.Lock()
	defer parent.mu.Unlock()

	if _, exists := parent.byName[name]; exists {
		return nil, cdserrors.New(cdserrors.ErrorTypeInvalidArgument, "allocate", cdserrors.ErrNameTaken).
			WithPath(joinPath(parent.Path(), name))
	}

	return s.linkLocked(parent, name, class, container, opts), nil
}

// EnsureChild returns the child of parent called name, creating a virtual
// node of the given class when there is none. The lookup and the creation
// happen under one lock, so concurrent callers always agree on the node.
func (s *Store) EnsureChild(parent *Item, name string, class Class, opts ...ItemOption) (*Item, bool, error) {
	if err := checkParent(parent, name); err != nil {
		return nil, false, err
	}

	parent.mu.RLock()
	existing, ok := parent.byName[name]
	parent.mu.RUnlock()
	if ok {
		return existing, false, nil
	}

	parent.mu.Lock()
	defer parent.mu.Unlock()

	if existing, ok := parent.byName[name]; ok {
		return existing, false, nil
	}

	opts = append([]ItemOption{WithVirtual(true)}, opts...)
	return s.linkLocked(parent, name, class, class.IsContainer(), opts), true, nil
}

// linkLocked must be called with parent.mu held for writing.
func (s *Store) linkLocked(parent *Item, name string, class Class, container bool, opts []ItemOption) *Item {
	id := ID(s.nextID.Add(1))
	item := newItem(id, parent, name, class, container)
	for _, opt := range opts {
		opt(item)
	}

	s.mu.Lock()
	s.byID[id] = item
	s.mu.Unlock()

	parent.children = append(parent.children, item)
	parent.byName[name] = item
	parent.updateID++
	s.systemUpdateID.Add(1)

	s.logger.Trace("item allocated", "id", id, "parent_id", parent.id, "name", name, "class", class.String())
	return item
}

func checkParent(parent *Item, name string) error {
	if parent == nil {
		return cdserrors.InvalidArgument("allocate", name, fmt.Errorf("nil parent"))
	}
	if !parent.container {
		return cdserrors.NotFound("allocate", cdserrors.ErrNotContainer).WithObject(parent.id.String())
	}
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return cdserrors.InvalidArgument("allocate", name, fmt.Errorf("invalid item name"))
	}
	return nil
}

// Get returns the item registered under id.
func (s *Store) Get(id ID) (*Item, error) {
	s.mu.RLock()
	item, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return nil, cdserrors.NotFound("get_item", nil).WithObject(id.String())
	}
	return item, nil
}

// ChildByName returns the named child of parent, or nil.
func (s *Store) ChildByName(parent *Item, name string) *Item {
	if parent == nil || !parent.container {
		return nil
	}
	parent.mu.RLock()
	defer parent.mu.RUnlock()
	return parent.byName[name]
}

// Children returns a snapshot of parent's children in insertion order.
func (s *Store) Children(parent *Item) []*Item {
	parent.mu.RLock()
	defer parent.mu.RUnlock()
	out := make([]*Item, len(parent.children))
	copy(out, parent.children)
	return out
}

// ResolvePath walks path from the root, creating virtual containers for
// missing segments, and returns the final node. Nodes that already exist are
// returned untouched.
func (s *Store) ResolvePath(path string) (*Item, error) {
	current := s.root
	for _, segment := range SplitPath(path) {
		if !current.container {
			return nil, cdserrors.NotFound("resolve_path", cdserrors.ErrNotContainer).WithPath(path)
		}
		child, created, err := s.EnsureChild(current, segment, ClassContainer)
		if err != nil {
			return nil, err
		}
		if created {
			s.logger.Debug("virtual container created", "path", child.Path(), "id", child.id)
		}
		current = child
	}
	return current, nil
}

// Lookup walks path from the root without creating anything.
func (s *Store) Lookup(path string) (*Item, error) {
	current := s.root
	for _, segment := range SplitPath(path) {
		child := s.ChildByName(current, segment)
		if child == nil {
			return nil, cdserrors.NotFound("lookup", nil).WithPath(path)
		}
		current = child
	}
	return current, nil
}

// Update applies opts to item and bumps its update counter.
func (s *Store) Update(item *Item, opts ...ItemOption) {
	item.mu.Lock()
	for _, opt := range opts {
		opt(item)
	}
	item.updateID++
	item.mu.Unlock()
	s.systemUpdateID.Add(1)
}

// Walk visits item and its descendants depth-first in child order. Returning
// false from fn skips the node's children.
func (s *Store) Walk(item *Item, fn func(item *Item, depth int) bool) {
	s.walk(item, 0, fn)
}

func (s *Store) walk(item *Item, depth int, fn func(*Item, int) bool) {
	if !fn(item, depth) || !item.container {
		return
	}
	for _, child := range s.Children(item) {
		s.walk(child, depth+1, fn)
	}
}

// SplitPath returns the non-empty segments of a slash separated path.
func SplitPath(path string) []string {
	parts := strings.Split(path, "/")
	segments := parts[:0]
	for _, p := range parts {
		if p != "" && p != "." {
			segments = append(segments, p)
		}
	}
	return segments
}

func joinPath(dir, name string) string {
	if strings.HasSuffix(dir, "/") {
		return dir + name
	}
	return dir + "/" + name
}
