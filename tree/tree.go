package tree

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/brettbedarf/ussfs"
	"github.com/brettbedarf/ussfs/internal/util"
	"github.com/puzpuzpuz/xsync/v4"
)

// Tree is the ordered collection of session roots. It adapts the Node hierarchy
// to a pull-based host: hosts ask for children, parents and items, and subscribe
// to change notifications with [Tree.OnDidChange].
type Tree struct {
	profiles ussfs.ProfileLoader
	sessions ussfs.SessionFactory
	lister   ussfs.Lister

	mu    sync.RWMutex // Protects roots
	roots []*Node      // Session roots in insertion order

	listeners      *xsync.Map[uint64, func()]
	lastListenerID atomic.Uint64
}

// New creates an empty Tree. Sessions added later resolve profiles with
// profiles, open sessions with sessions and list directories with lister.
func New(profiles ussfs.ProfileLoader, sessions ussfs.SessionFactory, lister ussfs.Lister) *Tree {
	return &Tree{
		profiles:  profiles,
		sessions:  sessions,
		lister:    lister,
		roots:     []*Node{},
		listeners: xsync.NewMap[uint64, func()](),
	}
}

// Roots returns the session roots
func (t *Tree) Roots() []*Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.roots
}

// Children returns the session roots when node is nil, otherwise the node's children.
func (t *Tree) Children(ctx context.Context, node *Node) ([]*Node, error) {
	if node == nil {
		return t.Roots(), nil
	}
	return node.ListChildren(ctx)
}

// Parent returns the node's parent; nil for session roots
func (t *Tree) Parent(node *Node) *Node {
	return node.Parent()
}

// TreeItem returns the displayable item for node, which is the node itself
func (t *Tree) TreeItem(node *Node) ussfs.NodeInfo {
	return node
}

// OnDidChange registers fn to be called whenever the tree's visual
// representation is stale. Call the returned func to unsubscribe.
func (t *Tree) OnDidChange(fn func()) (unsubscribe func()) {
	id := t.lastListenerID.Add(1)
	t.listeners.Store(id, fn)
	return func() { t.listeners.Delete(id) }
}

// Refresh notifies all listeners that the tree changed
func (t *Tree) Refresh() {
	t.listeners.Range(func(_ uint64, fn func()) bool {
		fn()
		return true
	})
}

// RefreshAll invalidates every session root and notifies listeners
func (t *Tree) RefreshAll() {
	for _, root := range t.Roots() {
		root.MarkDirty()
	}
	t.Refresh()
}

// FindSession returns the root whose session key equals key, or nil
func (t *Tree) FindSession(key string) *Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.findSessionLocked(key)
}

func (t *Tree) findSessionLocked(key string) *Node {
	for _, root := range t.roots {
		if root.key == key {
			return root
		}
	}
	return nil
}

// AddSession loads the named profile, or the default profile when name is empty,
// opens a session with it and appends a new session root. Adding a profile that
// is already in the tree is a no-op. Profile load errors are returned unmodified.
func (t *Tree) AddSession(ctx context.Context, name string) error {
	logger := util.GetLogger("Tree.AddSession")

	opts := ussfs.LoadOptions{Name: name}
	if name == "" {
		opts = ussfs.LoadOptions{LoadDefault: true}
	}
	profile, err := t.profiles.Load(ctx, opts)
	if err != nil {
		return err
	}

	if t.FindSession(profile.Name) != nil {
		logger.Debug().Str("profile", profile.Name).Msg("Session already in tree")
		return nil
	}

	session, err := t.sessions.CreateSession(profile)
	if err != nil {
		return fmt.Errorf("failed to create session for profile %s: %w", profile.Name, err)
	}

	node := NewSessionNode(profile.Name, session, t.lister)

	t.mu.Lock()
	// another AddSession may have won while the session was being created
	if t.findSessionLocked(profile.Name) != nil {
		t.mu.Unlock()
		return nil
	}
	t.roots = append(t.roots, node)
	t.mu.Unlock()

	logger.Info().Str("profile", profile.Name).Msg("Added session")
	t.Refresh()
	return nil
}

// DeleteSession removes every root sharing node's session key and notifies listeners.
func (t *Tree) DeleteSession(node *Node) {
	logger := util.GetLogger("Tree.DeleteSession")
	key := node.SessionKey()

	t.mu.Lock()
	kept := make([]*Node, 0, len(t.roots))
	for _, root := range t.roots {
		if root.key != key {
			kept = append(kept, root)
		}
	}
	removed := len(t.roots) - len(kept)
	t.roots = kept
	t.mu.Unlock()

	logger.Debug().Str("session", key).Int("removed", removed).Msg("Removed session")
	t.Refresh()
}
