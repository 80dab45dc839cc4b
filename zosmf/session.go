package zosmf

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/brettbedarf/ussfs"
	"github.com/brettbedarf/ussfs/internal/util"
	"github.com/google/uuid"
)

const (
	DefaultProtocol = "https"
	DefaultPort     = 443
)

// HTTPClient is the subset of *http.Client a Session needs
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options control how sessions talk to the host
type Options struct {
	Timeout time.Duration // Per request; zero means no timeout
	Client  HTTPClient    // Overrides the client built from the profile
}

// Session is an authenticated connection to one z/OSMF host
type Session struct {
	id       string
	profile  string
	user     string
	password string
	baseURL  *url.URL
	client   HTTPClient
}

// NewSession builds a Session from a z/OSMF profile
func NewSession(p *ussfs.Profile, opts Options) (*Session, error) {
	if p == nil {
		return nil, errors.New("cannot create session from nil profile")
	}
	host := strings.TrimSpace(p.Host)
	if host == "" {
		return nil, fmt.Errorf("profile %s has no host", p.Name)
	}

	protocol := DefaultProtocol
	if p.Protocol != "" {
		protocol = strings.ToLower(p.Protocol)
	}
	if protocol != "http" && protocol != "https" {
		return nil, fmt.Errorf("profile %s has unsupported protocol %q", p.Name, p.Protocol)
	}
	port := p.Port
	if port == 0 {
		port = DefaultPort
	}

	base := &url.URL{
		Scheme: protocol,
		Host:   host + ":" + strconv.Itoa(port),
		Path:   "/" + strings.Trim(p.BasePath, "/"),
	}

	client := opts.Client
	if client == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if !util.ValueOrDefault(p.RejectUnauthorized, true) {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opted out by profile
		}
		client = &http.Client{Transport: transport, Timeout: opts.Timeout}
	}

	return &Session{
		id:       uuid.NewString(),
		profile:  p.Name,
		user:     p.User,
		password: p.Password,
		baseURL:  base,
		client:   client,
	}, nil
}

func (s *Session) ID() string {
	return s.id
}

// Profile returns the name of the profile the session was built from
func (s *Session) Profile() string {
	return s.profile
}

// BaseURL returns the scheme, host and base path requests are made against
func (s *Session) BaseURL() string {
	return s.baseURL.String()
}

var _ ussfs.Session = (*Session)(nil)
