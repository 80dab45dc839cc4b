// Package zosmf implements the remote file collaborators on top of the z/OSMF
// REST files API.
package zosmf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/brettbedarf/ussfs"
	"github.com/brettbedarf/ussfs/internal/metrics"
	"github.com/brettbedarf/ussfs/internal/util"
)

const (
	filesPath  = "zosmf/restfiles/fs"
	csrfHeader = "X-CSRF-ZOSMF-HEADER"
	// DefaultMode is used when creating without an explicit permission string
	DefaultMode = "rwxr-xr-x"
)

// Client implements [ussfs.RemoteFiles] for sessions created by this package
type Client struct{}

func NewClient() *Client {
	return &Client{}
}

// errorBody is the JSON body z/OSMF sends with failed requests
type errorBody struct {
	Category int    `json:"category"`
	RC       int    `json:"rc"`
	Reason   int    `json:"reason"`
	Message  string `json:"message"`
}

func (c *Client) List(ctx context.Context, s ussfs.Session, path string) (*ussfs.ListResponse, error) {
	logger := util.GetLogger("zosmf.List")
	start := time.Now()

	sess, err := asSession(s)
	if err != nil {
		return nil, err
	}

	u := sess.baseURL.JoinPath(filesPath)
	q := u.Query()
	q.Set("path", path)
	u.RawQuery = q.Encode()

	req, err := sess.newRequest(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	logger.Trace().Str("url", u.String()).Msg("Listing")
	resp, err := sess.client.Do(req)
	if err != nil {
		metrics.RecordRemote(metrics.OpList, "error", start)
		return nil, err
	}
	defer resp.Body.Close()
	metrics.RecordRemote(metrics.OpList, strconv.Itoa(resp.StatusCode), start)

	if !isSuccess(resp.StatusCode) {
		msg := readErrorMessage(resp)
		logger.Debug().Int("status", resp.StatusCode).Str("path", path).Str("message", msg).Msg("Listing unsuccessful")
		return &ussfs.ListResponse{Success: false, Message: msg}, nil
	}

	var result ussfs.ListResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode listing of %s: %w", path, err)
	}
	return &ussfs.ListResponse{Success: true, APIResponse: &result}, nil
}

func (c *Client) Download(ctx context.Context, s ussfs.Session, path string, w io.Writer) error {
	resp, err := c.do(ctx, s, metrics.OpDownload, http.MethodGet, path, nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}

func (c *Client) Upload(ctx context.Context, s ussfs.Session, path string, r io.Reader) error {
	headers := map[string]string{"Content-Type": "text/plain"}
	resp, err := c.do(ctx, s, metrics.OpUpload, http.MethodPut, path, r, headers)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (c *Client) Create(ctx context.Context, s ussfs.Session, path string, typ ussfs.EntryType, mode string) error {
	if mode == "" {
		mode = DefaultMode
	}
	body, err := json.Marshal(struct {
		Type ussfs.EntryType `json:"type"`
		Mode string          `json:"mode"`
	}{typ, mode})
	if err != nil {
		return err
	}

	headers := map[string]string{"Content-Type": "application/json"}
	resp, err := c.do(ctx, s, metrics.OpCreate, http.MethodPost, path, bytes.NewReader(body), headers)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (c *Client) Delete(ctx context.Context, s ussfs.Session, path string, recursive bool) error {
	var headers map[string]string
	if recursive {
		headers = map[string]string{"X-IBM-Option": "recursive"}
	}
	resp, err := c.do(ctx, s, metrics.OpDelete, http.MethodDelete, path, nil, headers)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// do sends a request for a single file path. Non-2xx responses are returned as
// *StatusError; on success the caller owns the response body.
func (c *Client) do(ctx context.Context, s ussfs.Session, op, method, path string, body io.Reader, headers map[string]string) (*http.Response, error) {
	logger := util.GetLogger("zosmf." + op)
	start := time.Now()

	sess, err := asSession(s)
	if err != nil {
		return nil, err
	}

	u := sess.baseURL.JoinPath(filesPath, path)
	req, err := sess.newRequest(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	logger.Trace().Str("method", method).Str("url", u.String()).Msg("Sending request")
	resp, err := sess.client.Do(req)
	if err != nil {
		metrics.RecordRemote(op, "error", start)
		return nil, err
	}
	metrics.RecordRemote(op, strconv.Itoa(resp.StatusCode), start)

	if !isSuccess(resp.StatusCode) {
		defer resp.Body.Close()
		statusErr := &StatusError{Op: op, Path: path, StatusCode: resp.StatusCode, Message: readErrorMessage(resp)}
		logger.Debug().Err(statusErr).Msg("Request failed")
		return nil, statusErr
	}
	return resp, nil
}

func (s *Session) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set(csrfHeader, "true")
	if s.user != "" {
		req.SetBasicAuth(s.user, s.password)
	}
	return req, nil
}

func asSession(s ussfs.Session) (*Session, error) {
	sess, ok := s.(*Session)
	if !ok || sess == nil {
		return nil, ErrUnsupportedSession
	}
	return sess, nil
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

// readErrorMessage extracts the z/OSMF message from a failed response, falling
// back to the HTTP status text
func readErrorMessage(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && len(data) > 0 {
		var body errorBody
		if json.Unmarshal(data, &body) == nil && body.Message != "" {
			return body.Message
		}
	}
	return http.StatusText(resp.StatusCode)
}

var _ ussfs.RemoteFiles = (*Client)(nil)
