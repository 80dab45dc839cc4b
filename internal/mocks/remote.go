package mocks

import (
	"context"
	"io"

	"github.com/brettbedarf/ussfs"
	"github.com/stretchr/testify/mock"
)

// FakeSession is a minimal [ussfs.Session] for tests
type FakeSession struct {
	SessionID string
}

func (s *FakeSession) ID() string { return s.SessionID }

var _ ussfs.Session = (*FakeSession)(nil)

// MockRemoteFiles implements ussfs.Lister and ussfs.FileTransferer for testing across packages
type MockRemoteFiles struct {
	mock.Mock
}

func (m *MockRemoteFiles) List(ctx context.Context, s ussfs.Session, path string) (*ussfs.ListResponse, error) {
	args := m.Called(ctx, s, path)

	// Handle function return types (for complex tests)
	if fn, ok := args.Get(0).(func(context.Context, ussfs.Session, string) *ussfs.ListResponse); ok {
		return fn(ctx, s, path), args.Error(1)
	}

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ussfs.ListResponse), args.Error(1)
}

func (m *MockRemoteFiles) Download(ctx context.Context, s ussfs.Session, path string, w io.Writer) error {
	args := m.Called(ctx, s, path, w)

	// Optional content to write before returning
	if data, ok := args.Get(0).(string); ok {
		if _, err := io.WriteString(w, data); err != nil {
			return err
		}
	}
	return args.Error(1)
}

func (m *MockRemoteFiles) Upload(ctx context.Context, s ussfs.Session, path string, r io.Reader) error {
	args := m.Called(ctx, s, path, r)
	return args.Error(0)
}

func (m *MockRemoteFiles) Create(ctx context.Context, s ussfs.Session, path string, typ ussfs.EntryType, mode string) error {
	args := m.Called(ctx, s, path, typ, mode)
	return args.Error(0)
}

func (m *MockRemoteFiles) Delete(ctx context.Context, s ussfs.Session, path string, recursive bool) error {
	args := m.Called(ctx, s, path, recursive)
	return args.Error(0)
}

var _ ussfs.RemoteFiles = (*MockRemoteFiles)(nil)

// MockProfileLoader implements ussfs.ProfileLoader for testing across packages
type MockProfileLoader struct {
	mock.Mock
}

func (m *MockProfileLoader) Load(ctx context.Context, opts ussfs.LoadOptions) (*ussfs.Profile, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ussfs.Profile), args.Error(1)
}

func (m *MockProfileLoader) AllProfileNames() ([]string, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

var _ ussfs.ProfileLoader = (*MockProfileLoader)(nil)

// MockSessionFactory implements ussfs.SessionFactory for testing across packages
type MockSessionFactory struct {
	mock.Mock
}

func (m *MockSessionFactory) CreateSession(p *ussfs.Profile) (ussfs.Session, error) {
	args := m.Called(p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ussfs.Session), args.Error(1)
}

var _ ussfs.SessionFactory = (*MockSessionFactory)(nil)

// ListOK builds a successful listing response of items
func ListOK(items ...ussfs.FileEntry) *ussfs.ListResponse {
	return &ussfs.ListResponse{
		Success: true,
		APIResponse: &ussfs.ListResult{
			Items:        items,
			ReturnedRows: len(items),
			TotalRows:    len(items),
			JSONVersion:  1,
		},
	}
}

// Dir and File build listing entries
func Dir(name string) ussfs.FileEntry {
	return ussfs.FileEntry{Name: name, Mode: "drwxrwxrwx", Size: 888, User: "ADMIN", GID: 1, Group: "OMVSGRP", Mtime: "2015-11-24T02:12:04"}
}

func File(name string) ussfs.FileEntry {
	return ussfs.FileEntry{Name: name, Mode: "-rw-r--r--", Size: 20, User: "ADMIN", GID: 1, Group: "OMVSGRP", Mtime: "2013-05-07T11:23:08"}
}
