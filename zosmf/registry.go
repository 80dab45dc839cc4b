package zosmf

import (
	"fmt"
	"sync"

	"github.com/brettbedarf/ussfs"
	"github.com/brettbedarf/ussfs/config"
)

// Constructor opens a session for a profile of one type
type Constructor func(p *ussfs.Profile, opts Options) (ussfs.Session, error)

// Registry maps profile types to session constructors
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register ties a constructor to a profile type. The first registration for a
// type wins.
func (r *Registry) Register(profileType string, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.constructors[profileType]; exists {
		return
	}
	r.constructors[profileType] = c
}

// Get returns the constructor registered for profileType
func (r *Registry) Get(profileType string) (Constructor, error) {
	r.mu.RLock()
	c, ok := r.constructors[profileType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no session constructor for profile type %q", profileType)
	}
	return c, nil
}

type BuiltInProfileType = string

const (
	ZOSMFProfileType BuiltInProfileType = "zosmf"
)

// RegisterBuiltins registers all built-in profile types by default
// or only the specific ones if keys are provided
func (r *Registry) RegisterBuiltins(types ...BuiltInProfileType) {
	if len(types) == 0 {
		types = append(types, ZOSMFProfileType)
	}

	for _, key := range types {
		switch key {
		case ZOSMFProfileType:
			r.Register(ZOSMFProfileType, func(p *ussfs.Profile, opts Options) (ussfs.Session, error) {
				return NewSession(p, opts)
			})
		}
	}
}

// SessionFactory implements [ussfs.SessionFactory] by dispatching on profile type
type SessionFactory struct {
	registry    *Registry
	opts        Options
	defaultType string
}

// NewSessionFactory creates a factory with the built-in profile types registered
func NewSessionFactory(cfg *config.Config) *SessionFactory {
	r := NewRegistry()
	r.RegisterBuiltins()
	return NewSessionFactoryWithRegistry(r, cfg)
}

func NewSessionFactoryWithRegistry(r *Registry, cfg *config.Config) *SessionFactory {
	return &SessionFactory{
		registry:    r,
		opts:        Options{Timeout: cfg.RequestTimeoutDuration()},
		defaultType: cfg.ProfileType,
	}
}

func (f *SessionFactory) CreateSession(p *ussfs.Profile) (ussfs.Session, error) {
	profileType := p.Type
	if profileType == "" {
		profileType = f.defaultType
	}
	c, err := f.registry.Get(profileType)
	if err != nil {
		return nil, err
	}
	return c(p, f.opts)
}

var _ ussfs.SessionFactory = (*SessionFactory)(nil)
