// Package profile reads connection profiles stored in the Zowe CLI layout:
// {dir}/{type}/{name}.yaml plus {dir}/{type}/{type}_meta.yaml naming the default.
package profile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/brettbedarf/ussfs"
	"github.com/brettbedarf/ussfs/internal/util"
	"gopkg.in/yaml.v3"
)

const (
	profileExt = ".yaml"
	metaSuffix = "_meta"
)

var (
	// ErrNoDefault is returned when the meta file names no default profile
	ErrNoDefault = errors.New("no default profile set")

	// ErrInvalidName is returned for names that can't be a profile file name
	ErrInvalidName = errors.New("invalid profile name")
)

// LoadError is returned for any failure to resolve a profile
type LoadError struct {
	Name string // Empty when loading the default
	Type string
	Err  error
}

// Error is an implementation of the error interface.
func (e *LoadError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("failed to load default %s profile: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("failed to load %s profile %q: %v", e.Type, e.Name, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// meta is the contents of {type}_meta.yaml
type meta struct {
	DefaultProfile string `yaml:"defaultProfile"`
}

// Manager implements [ussfs.ProfileLoader] over one profile type directory.
// It never writes profile storage.
type Manager struct {
	dir         string
	profileType string
}

func NewManager(profileDir, profileType string) *Manager {
	return &Manager{dir: profileDir, profileType: profileType}
}

// TypeDir returns the directory holding profiles of the manager's type
func (m *Manager) TypeDir() string {
	return filepath.Join(m.dir, m.profileType)
}

func (m *Manager) Load(ctx context.Context, opts ussfs.LoadOptions) (*ussfs.Profile, error) {
	logger := util.GetLogger("profile.Load")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := opts.Name
	if opts.LoadDefault {
		def, err := m.defaultName()
		if err != nil {
			return nil, &LoadError{Type: m.profileType, Err: err}
		}
		name = def
	}
	if err := validateName(name); err != nil {
		return nil, &LoadError{Name: name, Type: m.profileType, Err: err}
	}

	path := filepath.Join(m.TypeDir(), name+profileExt)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Name: name, Type: m.profileType, Err: err}
	}

	var p ussfs.Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, &LoadError{Name: name, Type: m.profileType, Err: fmt.Errorf("failed to unmarshal %s: %w", path, err)}
	}
	p.Name = name
	p.Type = m.profileType

	logger.Debug().Str("profile", name).Str("path", path).Msg("Loaded profile")
	return &p, nil
}

// AllProfileNames returns the sorted profile names of the manager's type.
// It returns nil without error when none are stored.
func (m *Manager) AllProfileNames() ([]string, error) {
	entries, err := os.ReadDir(m.TypeDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	metaFile := m.profileType + metaSuffix + profileExt
	for _, e := range entries {
		if e.IsDir() || e.Name() == metaFile || filepath.Ext(e.Name()) != profileExt {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), profileExt))
	}
	slices.Sort(names)
	return names, nil
}

func (m *Manager) defaultName() (string, error) {
	path := filepath.Join(m.TypeDir(), m.profileType+metaSuffix+profileExt)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoDefault
		}
		return "", err
	}

	var md meta
	if err := yaml.Unmarshal(data, &md); err != nil {
		return "", fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}
	if md.DefaultProfile == "" {
		return "", ErrNoDefault
	}
	return md.DefaultProfile, nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return ErrInvalidName
	}
	return nil
}

var _ ussfs.ProfileLoader = (*Manager)(nil)
