package ussfs

// EntryType valid types are FileEntryType "file", DirEntryType "directory"
type EntryType string

const (
	FileEntryType EntryType = "file"
	DirEntryType  EntryType = "directory"
)

// FileEntry is a single item of a remote directory listing
type FileEntry struct {
	Name  string `json:"name"`
	Mode  string `json:"mode"` // i.e. "drwxr-xr-x"
	Size  int64  `json:"size"`
	UID   int    `json:"uid"`
	User  string `json:"user"`
	GID   int    `json:"gid"`
	Group string `json:"group"`
	Mtime string `json:"mtime"` // remote local time i.e. "2015-11-24T02:12:04"
}

// IsDir reports whether the entry's mode string denotes a directory
func (e FileEntry) IsDir() bool {
	return len(e.Mode) > 0 && e.Mode[0] == 'd'
}

// ListResult is the decoded body of a successful listing
type ListResult struct {
	Items        []FileEntry `json:"items"`
	ReturnedRows int         `json:"returnedRows"`
	TotalRows    int         `json:"totalRows"`
	JSONVersion  int         `json:"JSONversion"`
}

// ListResponse wraps a listing with its success flag
type ListResponse struct {
	Success     bool
	Message     string      // failure detail from the remote system, if any
	APIResponse *ListResult // nil unless Success
}

// LoadOptions selects a profile by Name or the default profile
type LoadOptions struct {
	Name        string
	LoadDefault bool
}

// Profile is a named bundle of connection settings
type Profile struct {
	Name string
	Type string // i.e. "zosmf"

	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	Protocol           string `yaml:"protocol,omitempty"` // Default "https"
	BasePath           string `yaml:"basePath,omitempty"`
	RejectUnauthorized *bool  `yaml:"rejectUnauthorized,omitempty"` // Default true
}
