package tree

// Kind is the mutually exclusive role of a [Node] in the hierarchy
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
	KindSession
)

// String returns the host context value for the kind
func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindSession:
		return "session"
	default:
		return "unknown"
	}
}

// CollapseState is the host's expansion hint for a node.
// CollapseNone marks a leaf (file).
type CollapseState int

const (
	CollapseNone CollapseState = iota
	Collapsed
	Expanded
)

func kindFromCollapse(c CollapseState) Kind {
	if c == CollapseNone {
		return KindFile
	}
	return KindDirectory
}
