package ussfs

// Command describes a host action bound to a tree item, i.e. opening a file
type Command struct {
	ID    string
	Title string
	Args  []any
}

// OpenCommandID is the command attached to file nodes
const OpenCommandID = "ussfs.node.open"

// NodeInfo provides read-only access to tree node information for hosts
type NodeInfo interface {
	// Label returns the node's display name (last path component or profile name)
	Label() string

	// FullPath returns the absolute remote path; empty for a session without a path
	FullPath() string

	// Tooltip returns the hover text for the node
	Tooltip() string

	// ContextValue returns "session", "directory" or "file"
	ContextValue() string

	// Command returns the action bound to the node, or nil
	Command() *Command
}
