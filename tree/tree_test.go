package tree

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/brettbedarf/ussfs"
	"github.com/brettbedarf/ussfs/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type treeFixture struct {
	tree     *Tree
	profiles *mocks.MockProfileLoader
	sessions *mocks.MockSessionFactory
	remote   *mocks.MockRemoteFiles
}

func newTreeFixture(t *testing.T) *treeFixture {
	t.Helper()
	f := &treeFixture{
		profiles: &mocks.MockProfileLoader{},
		sessions: &mocks.MockSessionFactory{},
		remote:   &mocks.MockRemoteFiles{},
	}
	f.tree = New(f.profiles, f.sessions, f.remote)
	return f
}

// expectProfile wires a loadable profile and a session for it
func (f *treeFixture) expectProfile(opts ussfs.LoadOptions, name string) {
	p := &ussfs.Profile{Name: name, Type: "zosmf", Host: "example.com", Port: 443}
	f.profiles.On("Load", mock.Anything, opts).Return(p, nil)
	f.sessions.On("CreateSession", p).Return(&mocks.FakeSession{SessionID: name + "-session"}, nil)
}

func TestTree_Empty(t *testing.T) {
	f := newTreeFixture(t)

	roots, err := f.tree.Children(context.Background(), nil)

	require.NoError(t, err)
	assert.NotNil(t, roots)
	assert.Empty(t, roots)
}

func TestTree_AddSession(t *testing.T) {
	f := newTreeFixture(t)
	f.expectProfile(ussfs.LoadOptions{Name: "sestest"}, "sestest")

	require.NoError(t, f.tree.AddSession(context.Background(), "sestest"))

	roots := f.tree.Roots()
	require.Len(t, roots, 1)
	assert.Equal(t, "sestest", roots[0].Label())
	assert.Equal(t, KindSession, roots[0].Kind())
	assert.Equal(t, "sestest", roots[0].SessionKey())
	s, err := roots[0].Session()
	require.NoError(t, err)
	assert.Equal(t, "sestest-session", s.ID())
}

func TestTree_AddSession_Default(t *testing.T) {
	f := newTreeFixture(t)
	f.expectProfile(ussfs.LoadOptions{LoadDefault: true}, "main")

	require.NoError(t, f.tree.AddSession(context.Background(), ""))

	require.Len(t, f.tree.Roots(), 1)
	assert.Equal(t, "main", f.tree.Roots()[0].Label())
}

func TestTree_AddSession_Idempotent(t *testing.T) {
	f := newTreeFixture(t)
	f.expectProfile(ussfs.LoadOptions{Name: "sestest"}, "sestest")

	require.NoError(t, f.tree.AddSession(context.Background(), "sestest"))
	require.NoError(t, f.tree.AddSession(context.Background(), "sestest"))

	assert.Len(t, f.tree.Roots(), 1)
	f.sessions.AssertNumberOfCalls(t, "CreateSession", 1)
}

func TestTree_AddSession_PreservesOrder(t *testing.T) {
	f := newTreeFixture(t)
	f.expectProfile(ussfs.LoadOptions{Name: "b"}, "b")
	f.expectProfile(ussfs.LoadOptions{Name: "a"}, "a")

	require.NoError(t, f.tree.AddSession(context.Background(), "b"))
	require.NoError(t, f.tree.AddSession(context.Background(), "a"))

	assert.Equal(t, []string{"b", "a"}, labels(f.tree.Roots()))
}

func TestTree_AddSession_ProfileError(t *testing.T) {
	f := newTreeFixture(t)
	loadErr := errors.New("no such profile")
	f.profiles.On("Load", mock.Anything, ussfs.LoadOptions{Name: "missing"}).Return(nil, loadErr)

	err := f.tree.AddSession(context.Background(), "missing")

	assert.Same(t, loadErr, err, "profile errors propagate unmodified")
	assert.Empty(t, f.tree.Roots())
	f.sessions.AssertNotCalled(t, "CreateSession", mock.Anything)
}

func TestTree_AddSession_SessionError(t *testing.T) {
	f := newTreeFixture(t)
	p := &ussfs.Profile{Name: "bad"}
	f.profiles.On("Load", mock.Anything, ussfs.LoadOptions{Name: "bad"}).Return(p, nil)
	f.sessions.On("CreateSession", p).Return(nil, errors.New("bad host"))

	err := f.tree.AddSession(context.Background(), "bad")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad host")
	assert.Empty(t, f.tree.Roots())
}

func TestTree_DeleteSession(t *testing.T) {
	f := newTreeFixture(t)
	f.expectProfile(ussfs.LoadOptions{Name: "a"}, "a")
	f.expectProfile(ussfs.LoadOptions{Name: "b"}, "b")
	require.NoError(t, f.tree.AddSession(context.Background(), "a"))
	require.NoError(t, f.tree.AddSession(context.Background(), "b"))

	f.tree.DeleteSession(f.tree.FindSession("a"))

	assert.Equal(t, []string{"b"}, labels(f.tree.Roots()))
	assert.Nil(t, f.tree.FindSession("a"))
}

func TestTree_DeleteSession_AllWithKey(t *testing.T) {
	f := newTreeFixture(t)
	session := &mocks.FakeSession{SessionID: "dup"}
	// Roots sharing a key can only be constructed directly
	f.tree.roots = []*Node{
		NewSessionNode("dup", session, f.remote),
		NewSessionNode("other", session, f.remote),
		NewSessionNode("dup", session, f.remote),
	}

	f.tree.DeleteSession(f.tree.roots[2])

	assert.Equal(t, []string{"other"}, labels(f.tree.Roots()))
}

func TestTree_DeleteSession_ViaDescendant(t *testing.T) {
	f := newTreeFixture(t)
	f.expectProfile(ussfs.LoadOptions{Name: "a"}, "a")
	require.NoError(t, f.tree.AddSession(context.Background(), "a"))
	root := f.tree.Roots()[0]
	child := NewNode("aDir", Collapsed, root, nil, "/u")

	f.tree.DeleteSession(child)

	assert.Empty(t, f.tree.Roots())
}

func TestTree_Parent(t *testing.T) {
	f := newTreeFixture(t)
	root := createSessionRoot(t, f.remote, "/u")
	child := NewNode("aDir", Collapsed, root, nil, "/u")

	assert.Nil(t, f.tree.Parent(root))
	assert.Same(t, root, f.tree.Parent(child))
	assert.Same(t, child, f.tree.TreeItem(child))
}

func TestTree_EndToEnd(t *testing.T) {
	f := newTreeFixture(t)
	f.expectProfile(ussfs.LoadOptions{Name: "sestest"}, "sestest")
	f.remote.On("List", mock.Anything, mock.Anything, "/u").
		Return(mocks.ListOK(mocks.Dir("aDir"), mocks.File("myFile.txt")), nil).Once()

	require.NoError(t, f.tree.AddSession(context.Background(), "sestest"))
	root := f.tree.FindSession("sestest")
	require.NotNil(t, root)

	// No path entered yet
	children, err := f.tree.Children(context.Background(), root)
	require.NoError(t, err)
	assert.Empty(t, children)

	require.NoError(t, root.EnterPath("/u"))
	children, err = f.tree.Children(context.Background(), root)
	require.NoError(t, err)

	require.Len(t, children, 2)
	assert.Equal(t, "aDir", children[0].Label())
	assert.Equal(t, "directory", children[0].ContextValue())
	assert.Equal(t, "/u/aDir", children[0].FullPath())
	assert.Equal(t, "myFile.txt", children[1].Label())
	assert.Equal(t, "file", children[1].ContextValue())
	assert.Equal(t, "/u/myFile.txt", children[1].FullPath())
	f.remote.AssertExpectations(t)
}

func TestTree_RefreshAll(t *testing.T) {
	f := newTreeFixture(t)
	f.expectProfile(ussfs.LoadOptions{Name: "a"}, "a")
	f.remote.On("List", mock.Anything, mock.Anything, "/u").Return(mocks.ListOK(mocks.File("x")), nil)
	require.NoError(t, f.tree.AddSession(context.Background(), "a"))
	root := f.tree.Roots()[0]
	require.NoError(t, root.EnterPath("/u"))
	_, err := root.ListChildren(context.Background())
	require.NoError(t, err)
	require.False(t, root.Dirty())

	var notified atomic.Int32
	f.tree.OnDidChange(func() { notified.Add(1) })
	f.tree.RefreshAll()

	assert.True(t, root.Dirty())
	assert.Equal(t, int32(1), notified.Load())
}

func TestTree_OnDidChange(t *testing.T) {
	f := newTreeFixture(t)
	f.expectProfile(ussfs.LoadOptions{Name: "a"}, "a")

	var first, second atomic.Int32
	unsubscribe := f.tree.OnDidChange(func() { first.Add(1) })
	f.tree.OnDidChange(func() { second.Add(1) })

	require.NoError(t, f.tree.AddSession(context.Background(), "a"))
	assert.Equal(t, int32(1), first.Load())
	assert.Equal(t, int32(1), second.Load())

	unsubscribe()
	f.tree.DeleteSession(f.tree.Roots()[0])
	assert.Equal(t, int32(1), first.Load(), "unsubscribed listener must not fire")
	assert.Equal(t, int32(2), second.Load())
}
