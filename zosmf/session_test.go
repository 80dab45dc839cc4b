package zosmf

import (
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/brettbedarf/ussfs"
	"github.com/brettbedarf/ussfs/config"
	"github.com/brettbedarf/ussfs/internal/mocks"
	"github.com/brettbedarf/ussfs/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession(t *testing.T) {
	t.Parallel()

	tests := []struct {
		desc    string
		profile *ussfs.Profile
		wantURL string
		wantErr bool
	}{
		{"defaults", &ussfs.Profile{Name: "p", Host: "mf.example.com"}, "https://mf.example.com:443/", false},
		{"explicit", &ussfs.Profile{Name: "p", Host: "mf", Port: 10443, Protocol: "HTTP", BasePath: "/api/v1/"}, "http://mf:10443/api/v1", false},
		{"host whitespace trimmed", &ussfs.Profile{Name: "p", Host: "  mf  "}, "https://mf:443/", false},
		{"nil profile", nil, "", true},
		{"missing host", &ussfs.Profile{Name: "p"}, "", true},
		{"bad protocol", &ussfs.Profile{Name: "p", Host: "mf", Protocol: "ftp"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			t.Parallel()
			sess, err := NewSession(tt.profile, Options{})

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, sess)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, sess.BaseURL())
			assert.Equal(t, "p", sess.Profile())
			assert.NotEmpty(t, sess.ID())
		})
	}
}

func TestNewSession_UniqueIDs(t *testing.T) {
	t.Parallel()

	p := &ussfs.Profile{Name: "p", Host: "mf"}
	a, err := NewSession(p, Options{})
	require.NoError(t, err)
	b, err := NewSession(p, Options{})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID(), b.ID())
}

func TestNewSession_ClientConfig(t *testing.T) {
	t.Parallel()

	p := &ussfs.Profile{Name: "p", Host: "mf", RejectUnauthorized: util.Pointer(false)}
	sess, err := NewSession(p, Options{Timeout: 5 * time.Second})
	require.NoError(t, err)

	client, ok := sess.client.(*http.Client)
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, client.Timeout)
	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	require.NotNil(t, transport.TLSClientConfig)
	assert.True(t, transport.TLSClientConfig.InsecureSkipVerify)

	custom := &http.Client{}
	sess, err = NewSession(p, Options{Client: custom})
	require.NoError(t, err)
	assert.Same(t, custom, sess.client)
}

func TestRegistry_Register(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	first := func(p *ussfs.Profile, opts Options) (ussfs.Session, error) {
		return &mocks.FakeSession{SessionID: "first"}, nil
	}
	second := func(p *ussfs.Profile, opts Options) (ussfs.Session, error) {
		return &mocks.FakeSession{SessionID: "second"}, nil
	}

	r.Register("test", first)
	r.Register("test", second)

	c, err := r.Get("test")
	require.NoError(t, err)
	s, err := c(&ussfs.Profile{}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "first", s.ID(), "first registration wins")

	_, err = r.Get("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no session constructor")
}

func TestRegistry_Concurrent(t *testing.T) {
	t.Parallel()
	var wg sync.WaitGroup
	r := NewRegistry()

	for i := range 100 {
		wg.Go(func() {
			profileType := fmt.Sprintf("test%d", i)
			r.Register(profileType, func(p *ussfs.Profile, opts Options) (ussfs.Session, error) {
				return &mocks.FakeSession{SessionID: profileType}, nil
			})
			_, err := r.Get(profileType)
			assert.NoError(t, err)
		})
	}
	wg.Wait()
}

func TestSessionFactory_CreateSession(t *testing.T) {
	t.Parallel()

	cfg := config.NewDefaultConfig()
	f := NewSessionFactory(cfg)

	s, err := f.CreateSession(&ussfs.Profile{Name: "p", Type: "zosmf", Host: "mf"})
	require.NoError(t, err)
	assert.IsType(t, &Session{}, s)

	// Untyped profiles use the configured default type
	s, err = f.CreateSession(&ussfs.Profile{Name: "p", Host: "mf"})
	require.NoError(t, err)
	assert.IsType(t, &Session{}, s)

	_, err = f.CreateSession(&ussfs.Profile{Name: "p", Type: "ssh", Host: "mf"})
	assert.Error(t, err)
}
