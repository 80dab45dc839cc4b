package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/brettbedarf/ussfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memHost is an in-memory z/OSMF files API
type memHost struct {
	mu    sync.Mutex
	dirs  map[string]bool
	files map[string]string
}

func newMemHost() *memHost {
	return &memHost{
		dirs:  map[string]bool{"/": true, "/u": true, "/u/aDir": true},
		files: map[string]string{"/u/myFile.txt": "hello from z/OS\n"},
	}
}

func (h *memHost) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	const prefix = "/zosmf/restfiles/fs"
	if r.Header.Get("X-CSRF-ZOSMF-HEADER") == "" {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	if r.URL.Path == prefix && r.Method == http.MethodGet {
		h.list(w, r.URL.Query().Get("path"))
		return
	}
	p := path.Clean(strings.TrimPrefix(r.URL.Path, prefix))

	switch r.Method {
	case http.MethodGet:
		content, ok := h.files[p]
		if !ok {
			notFound(w)
			return
		}
		_, _ = io.WriteString(w, content)
	case http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		h.files[p] = string(data)
		w.WriteHeader(http.StatusNoContent)
	case http.MethodPost:
		var body struct{ Type string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Type == "directory" {
			h.dirs[p] = true
		} else {
			h.files[p] = ""
		}
		w.WriteHeader(http.StatusCreated)
	case http.MethodDelete:
		delete(h.files, p)
		delete(h.dirs, p)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *memHost) list(w http.ResponseWriter, dir string) {
	if !h.dirs[dir] {
		notFound(w)
		return
	}
	items := []ussfs.FileEntry{{Name: ".", Mode: "drwxr-xr-x"}, {Name: "..", Mode: "drwxr-xr-x"}}
	for d := range h.dirs {
		if d != "/" && path.Dir(d) == dir {
			items = append(items, ussfs.FileEntry{Name: path.Base(d), Mode: "drwxr-xr-x", User: "IBMUSER", Group: "SYS1", Mtime: "2015-11-24T02:12:04"})
		}
	}
	for f, content := range h.files {
		if path.Dir(f) == dir {
			items = append(items, ussfs.FileEntry{Name: path.Base(f), Mode: "-rw-r--r--", Size: int64(len(content)), User: "IBMUSER", Group: "SYS1", Mtime: "2013-05-07T11:23:08"})
		}
	}
	_ = json.NewEncoder(w).Encode(ussfs.ListResult{Items: items, ReturnedRows: len(items), TotalRows: len(items), JSONVersion: 1})
}

func notFound(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNotFound)
	_, _ = io.WriteString(w, `{"category":1,"rc":4,"reason":8,"message":"not found"}`)
}

type cliEnv struct {
	host       *memHost
	profileDir string
	workDir    string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	host := newMemHost()
	srv := httptest.NewServer(host)
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	profileDir := t.TempDir()
	typeDir := filepath.Join(profileDir, "zosmf")
	require.NoError(t, os.MkdirAll(typeDir, 0o755))
	profile := fmt.Sprintf("host: %s\nport: %s\nuser: ibmuser\npassword: secret\nprotocol: http\n", u.Hostname(), u.Port())
	require.NoError(t, os.WriteFile(filepath.Join(typeDir, "sestest.yaml"), []byte(profile), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(typeDir, "other.yaml"), []byte(profile), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(typeDir, "zosmf_meta.yaml"), []byte("defaultProfile: sestest\n"), 0o600))

	return &cliEnv{host: host, profileDir: profileDir, workDir: filepath.Join(t.TempDir(), "work")}
}

func (e *cliEnv) run(args ...string) (code int, stdout, stderr string) {
	var out, errOut bytes.Buffer
	base := []string{"-profile-dir", e.profileDir, "-work-dir", e.workDir, "-v", "1"}
	code = run(context.Background(), append(base, args...), &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun_Usage(t *testing.T) {
	env := newCLIEnv(t)

	code, _, stderr := env.run()
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "usage: ussfs")

	code, _, stderr = env.run("frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, `unknown command "frobnicate"`)

	code, _, _ = env.run("ls")
	assert.Equal(t, 2, code)
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	code := run(context.Background(), []string{"-version"}, &out, io.Discard)

	assert.Equal(t, 0, code)
	assert.Equal(t, "ussfs "+ussfs.Version+"\n", out.String())
}

func TestRun_Profiles(t *testing.T) {
	env := newCLIEnv(t)

	code, stdout, _ := env.run("profiles")

	assert.Equal(t, 0, code)
	assert.Equal(t, "other\nsestest\n", stdout)
}

func TestRun_Ls(t *testing.T) {
	env := newCLIEnv(t)

	code, stdout, stderr := env.run("ls", "/u")

	require.Equal(t, 0, code, stderr)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "drwxr-xr-x"))
	assert.True(t, strings.HasSuffix(lines[0], " aDir"))
	assert.True(t, strings.HasSuffix(lines[1], " myFile.txt"))
}

func TestRun_Ls_NamedProfile(t *testing.T) {
	env := newCLIEnv(t)

	code, stdout, _ := env.run("-p", "other", "ls", "/u")

	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "myFile.txt")
}

func TestRun_Ls_Missing(t *testing.T) {
	env := newCLIEnv(t)

	code, _, _ := env.run("ls", "/nope")
	assert.Equal(t, 1, code)

	code, _, _ = env.run("-p", "ghost", "ls", "/u")
	assert.Equal(t, 1, code)
}

func TestRun_Tree(t *testing.T) {
	env := newCLIEnv(t)
	env.host.files["/u/aDir/inner.txt"] = "x"

	code, stdout, stderr := env.run("tree", "/u")

	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "/u\n├── aDir/\n│   └── inner.txt\n└── myFile.txt\n", stdout)
}

func TestRun_CatAndGet(t *testing.T) {
	env := newCLIEnv(t)

	code, stdout, _ := env.run("cat", "/u/myFile.txt")
	require.Equal(t, 0, code)
	assert.Equal(t, "hello from z/OS\n", stdout)

	dst := filepath.Join(t.TempDir(), "copy.txt")
	code, _, _ = env.run("get", "/u/myFile.txt", dst)
	require.Equal(t, 0, code)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hello from z/OS\n", string(data))

	code, _, _ = env.run("cat", "/u/aDir")
	assert.Equal(t, 1, code, "directories can't be printed")
	code, _, _ = env.run("cat", "/u/missing.txt")
	assert.Equal(t, 1, code)
}

func TestRun_Put(t *testing.T) {
	env := newCLIEnv(t)
	src := filepath.Join(t.TempDir(), "src.txt")
	require.NoError(t, os.WriteFile(src, []byte("uploaded"), 0o600))

	// Existing file
	code, _, stderr := env.run("put", src, "/u/myFile.txt")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "uploaded", env.host.files["/u/myFile.txt"])

	// New file is created first
	code, _, stderr = env.run("put", src, "/u/aDir/new.txt")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "uploaded", env.host.files["/u/aDir/new.txt"])
}

func TestRun_MkdirTouchRm(t *testing.T) {
	env := newCLIEnv(t)

	code, _, _ := env.run("mkdir", "/u/newDir")
	require.Equal(t, 0, code)
	assert.True(t, env.host.dirs["/u/newDir"])

	code, _, _ = env.run("touch", "/u/empty.txt")
	require.Equal(t, 0, code)
	_, ok := env.host.files["/u/empty.txt"]
	assert.True(t, ok)

	code, _, _ = env.run("rm", "/u/newDir")
	assert.Equal(t, 1, code, "directories need -r")
	assert.True(t, env.host.dirs["/u/newDir"])

	code, _, _ = env.run("rm", "-r", "/u/newDir")
	require.Equal(t, 0, code)
	assert.False(t, env.host.dirs["/u/newDir"])

	code, _, _ = env.run("rm", "/u/empty.txt")
	require.Equal(t, 0, code)
	_, ok = env.host.files["/u/empty.txt"]
	assert.False(t, ok)
}

func TestRun_ConfigFile(t *testing.T) {
	env := newCLIEnv(t)
	cfgPath := filepath.Join(t.TempDir(), "ussfs.yaml")
	cfgData := fmt.Sprintf("profile_dir: %s\nwork_dir: %s\n", env.profileDir, env.workDir)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgData), 0o600))

	var out bytes.Buffer
	code := run(context.Background(), []string{"-config", cfgPath, "-v", "1", "profiles"}, &out, io.Discard)

	assert.Equal(t, 0, code)
	names := strings.Fields(out.String())
	assert.True(t, slices.Contains(names, "sestest"))

	code = run(context.Background(), []string{"-config", filepath.Join(t.TempDir(), "missing.yaml"), "profiles"}, io.Discard, io.Discard)
	assert.Equal(t, 1, code)
}

func TestRun_WorkspacePurgedOnExit(t *testing.T) {
	env := newCLIEnv(t)

	code, _, _ := env.run("cat", "/u/myFile.txt")
	require.Equal(t, 0, code)

	entries, err := os.ReadDir(env.workDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_WorkDirKeepsUserFiles(t *testing.T) {
	env := newCLIEnv(t)
	require.NoError(t, os.MkdirAll(env.workDir, 0o755))
	mine := filepath.Join(env.workDir, "thesis.tex")
	require.NoError(t, os.WriteFile(mine, []byte("draft"), 0o600))

	code, _, _ := env.run("cat", "/u/myFile.txt")
	require.Equal(t, 0, code)

	data, err := os.ReadFile(mine)
	require.NoError(t, err)
	assert.Equal(t, "draft", string(data))
}
