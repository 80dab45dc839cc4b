package tree

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/brettbedarf/ussfs"
	"github.com/brettbedarf/ussfs/internal/metrics"
	"github.com/brettbedarf/ussfs/internal/util"
	"github.com/puzpuzpuz/xsync/v4"
)

// Node is a single entry of the remote hierarchy: a session root, a directory or a file.
//
// A Node lists its children lazily. While dirty, the next [Node.ListChildren] call
// fetches the remote directory and rebuilds the children wholesale.
type Node struct {
	label  string          // Display name; last path component or profile name
	parent *Node           // Navigation only; nil for session roots
	root   *Node           // Owning session root (self for roots); nil if detached
	entry  ussfs.FileEntry // Listing attributes the node was built from

	// Session root only
	session  ussfs.Session
	lister   ussfs.Lister
	key      string                        // session identity; the resolved profile name
	inflight *xsync.Map[*Node, *listCall] // in-flight listings of this session's nodes

	mu       sync.RWMutex // Protects the fields below
	kind     Kind
	collapse CollapseState
	fullPath string
	tooltip  string
	command  *ussfs.Command
	dirty    bool
	gen      uint64 // bumped on every invalidation so stale fetches don't commit
	children []*Node
}

// listCall is a listing shared by every caller that arrives while it is in flight
type listCall struct {
	gen      uint64 // generation of the node when the listing started
	done     chan struct{}
	children []*Node
	err      error
}

// NewNode creates a Node. Kind is derived from collapse (CollapseNone is a file,
// anything else a directory). If parentPath is non-empty the full path becomes
// parentPath + "/" + label, otherwise it stays empty until a path is entered.
//
// A non-nil session makes the node the root of that session and requires a nil
// parent. Otherwise the node resolves its session through parent.
func NewNode(label string, collapse CollapseState, parent *Node, session ussfs.Session, parentPath string) *Node {
	if session != nil && parent != nil {
		panic("tree: a session root cannot have a parent")
	}
	n := &Node{
		label:    label,
		parent:   parent,
		kind:     kindFromCollapse(collapse),
		collapse: collapse,
		dirty:    true,
		children: []*Node{},
	}
	if parentPath != "" {
		n.fullPath = childPath(parentPath, label)
		n.tooltip = n.fullPath
	}

	if parent != nil {
		n.root = parent.root
	}
	if session != nil {
		n.session = session
		n.root = n
		n.inflight = xsync.NewMap[*Node, *listCall]()
	}
	return n
}

// NewSessionNode creates a session root for the profile name. Its path is
// empty until [Node.EnterPath] is called.
func NewSessionNode(name string, session ussfs.Session, lister ussfs.Lister) *Node {
	n := NewNode(name, Collapsed, nil, session, "")
	n.kind = KindSession
	n.lister = lister
	n.key = name
	return n
}

// childPath joins a listed directory path and a child name
func childPath(parentPath, name string) string {
	if parentPath == "/" {
		return "/" + name
	}
	return parentPath + "/" + name
}

// Label returns the node's display name
func (n *Node) Label() string {
	return n.label
}

// Parent returns the parent node; nil for session roots
func (n *Node) Parent() *Node {
	return n.parent
}

// Entry returns the listing attributes the node was built from.
// Zero value for session roots.
func (n *Node) Entry() ussfs.FileEntry {
	return n.entry
}

func (n *Node) Kind() Kind {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.kind
}

// ContextValue returns "session", "directory" or "file"
func (n *Node) ContextValue() string {
	return n.Kind().String()
}

func (n *Node) CollapseState() CollapseState {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.collapse
}

// FullPath returns the absolute remote path; empty for a session without a path
func (n *Node) FullPath() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.fullPath
}

func (n *Node) Tooltip() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.tooltip
}

// Command returns the open command for file nodes, nil otherwise
func (n *Node) Command() *ussfs.Command {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.command
}

// Dirty reports whether the cached children must be refreshed before use
func (n *Node) Dirty() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.dirty
}

// MarkDirty invalidates the cached children
func (n *Node) MarkDirty() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.markDirtyLocked()
}

func (n *Node) markDirtyLocked() {
	n.dirty = true
	n.gen++
}

// Children returns the cached children without any remote I/O.
// Only meaningful when the node is not dirty.
func (n *Node) Children() []*Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.children
}

// SessionKey returns the identity of the session the node belongs to
func (n *Node) SessionKey() string {
	if n.root == nil {
		return ""
	}
	return n.root.key
}

// SessionRoot returns the session root this node belongs to
func (n *Node) SessionRoot() (*Node, error) {
	if n.root == nil {
		return nil, ErrNoSession
	}
	return n.root, nil
}

// Session returns the session handle owned by this node's session root
func (n *Node) Session() (ussfs.Session, error) {
	root, err := n.SessionRoot()
	if err != nil {
		return nil, err
	}
	return root.session, nil
}

// EnterPath points a session root at a new remote path. The node is expanded
// and its children invalidated.
func (n *Node) EnterPath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.kind != KindSession {
		return ErrNotSession
	}
	n.fullPath = path
	n.tooltip = path
	n.collapse = Expanded
	n.markDirtyLocked()
	return nil
}

// ListChildren returns the node's children, listing the remote directory first
// when the node is dirty. Files and sessions without a path have no children.
//
// Concurrent calls on the same dirty node share one remote request.
func (n *Node) ListChildren(ctx context.Context) ([]*Node, error) {
	logger := util.GetLogger("Node.ListChildren")

	n.mu.RLock()
	kind, path, dirty, gen, cached := n.kind, n.fullPath, n.dirty, n.gen, n.children
	n.mu.RUnlock()

	if (kind == KindSession && path == "") || kind == KindFile {
		return []*Node{}, nil
	}
	if !dirty {
		return cached, nil
	}
	if strings.TrimSpace(n.label) == "" {
		return nil, &InvalidNodeError{Label: n.label}
	}

	root, err := n.SessionRoot()
	if err != nil {
		return nil, err
	}
	if root.lister == nil {
		return nil, ErrNoLister
	}

	// Only join a listing of the same generation; one started before an
	// invalidation may be for a different path.
	fresh := &listCall{gen: gen, done: make(chan struct{})}
	var call *listCall
	root.inflight.Compute(n, func(old *listCall, loaded bool) (*listCall, xsync.ComputeOp) {
		if loaded && old.gen == gen {
			call = old
			return old, xsync.CancelOp
		}
		call = fresh
		return fresh, xsync.UpdateOp
	})
	if call != fresh {
		logger.Trace().Str("path", path).Msg("Joining in-flight listing")
		metrics.RecordListCoalesced()
		select {
		case <-call.done:
			return call.children, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	defer func() {
		root.inflight.Compute(n, func(old *listCall, loaded bool) (*listCall, xsync.ComputeOp) {
			if loaded && old == call {
				return old, xsync.DeleteOp
			}
			return old, xsync.CancelOp
		})
		close(call.done)
	}()

	logger.Debug().Str("session", root.key).Str("path", path).Msg("Listing remote directory")
	call.children, call.err = n.fetch(ctx, root, path)
	if call.err != nil {
		logger.Debug().Err(call.err).Str("path", path).Msg("Listing failed")
		return nil, call.err
	}

	n.mu.Lock()
	if n.gen == gen {
		n.children = call.children
		n.dirty = false
	} else {
		logger.Debug().Str("path", path).Msg("Node invalidated during listing; not caching result")
	}
	n.mu.Unlock()

	return call.children, nil
}

// fetch lists path and builds new child nodes without touching n's state
func (n *Node) fetch(ctx context.Context, root *Node, path string) ([]*Node, error) {
	resp, err := root.lister.List(ctx, root.session, path)
	if err != nil {
		return nil, &RemoteListError{Path: path, Err: err}
	}
	if resp == nil || !resp.Success {
		msg := ""
		if resp != nil {
			msg = resp.Message
		}
		return nil, &UnsuccessfulResponseError{Path: path, Message: msg}
	}

	var items []ussfs.FileEntry
	if resp.APIResponse != nil {
		items = resp.APIResponse.Items
	}

	// Keyed by label so duplicate names collapse (last one wins)
	byLabel := make(map[string]*Node, len(items))
	for _, item := range items {
		if item.Name == "." || item.Name == ".." {
			continue
		}
		collapse := CollapseNone
		if item.IsDir() {
			collapse = Collapsed
		}
		child := NewNode(item.Name, collapse, n, nil, path)
		child.entry = item
		if child.kind == KindFile {
			child.command = &ussfs.Command{ID: ussfs.OpenCommandID, Title: "Open", Args: []any{child}}
		}
		byLabel[child.label] = child
	}

	children := make([]*Node, 0, len(byLabel))
	for _, label := range slices.Sorted(maps.Keys(byLabel)) {
		children = append(children, byLabel[label])
	}
	return children, nil
}

var _ ussfs.NodeInfo = (*Node)(nil)
