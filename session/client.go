package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/nimbusdrive/nimbus-go/tool"
	"github.com/nimbusdrive/nimbus-go/types"
)

// Handle is the session boundary seen by embedding applications. Tokens live in
// server-managed cookies, so validity is the only observable state on this side.
// An alternate transport (header tokens) can substitute its own Handle without
// touching the refresh protocol.
type Handle interface {
	IsValid() bool
	Invalidate()
}

// Config configures a Client.
type Config struct {
	// ServerURL is the backend base URL, e.g. http://127.0.0.1:8787.
	ServerURL string
	// APIPrefix is prepended to every call path. Defaults to /api/v1.
	APIPrefix string
	// HTTPClient must carry a cookie jar. Defaults to tool.NewHTTPClient().
	HTTPClient *http.Client
	// RateLimitRPS throttles outgoing calls. 0 disables throttling.
	RateLimitRPS float64
	// OnSessionExpired runs exactly once, when the session becomes terminally
	// invalid. The embedding application redirects to its login surface here.
	OnSessionExpired func()
	Logger           *log.Logger
}

// Client is the sole gateway for every authenticated call. It owns the
// single-flight refresh protocol and the retry-once-on-401 policy.
type Client struct {
	base      *url.URL
	prefix    string
	http      *http.Client
	limiter   *rate.Limiter
	logger    *log.Logger
	onExpired func()

	refreshGroup singleflight.Group
	invalid      atomic.Bool
	expireOnce   sync.Once
}

var _ Handle = (*Client)(nil)

// NewClient creates a session client against cfg.ServerURL.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.ServerURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", cfg.ServerURL)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = tool.NewHTTPClient()
	}
	if httpClient.Jar == nil {
		return nil, fmt.Errorf("http client must carry a cookie jar")
	}
	prefix := cfg.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = tool.DefaultLogger
	}
	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1)
	}
	return &Client{
		base:      base,
		prefix:    strings.TrimSuffix(prefix, "/"),
		http:      httpClient,
		limiter:   limiter,
		logger:    logger,
		onExpired: cfg.OnSessionExpired,
	}, nil
}

// IsValid reports whether the session is still believed usable.
func (c *Client) IsValid() bool {
	return !c.invalid.Load()
}

// Invalidate marks the session terminally invalid. Every in-flight and future
// call fails from here on; the expiry callback fires exactly once, no matter
// how many concurrent calls hit the dead session.
func (c *Client) Invalidate() {
	c.invalid.Store(true)
	c.expireOnce.Do(func() {
		c.logger.Warn("Session terminally invalid, signalling sign-in")
		if c.onExpired != nil {
			c.onExpired()
		}
	})
}

func (c *Client) endpoint(path string) string {
	u := *c.base
	u.Path = c.prefix + path
	return u.String()
}

func (c *Client) waitTurn(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return classifyTransport(ctx, err)
	}
	return nil
}

// Call performs a JSON round trip. body is marshalled when non-nil; the
// response is decoded into out when out is non-nil. On 401 the client refreshes
// once (single-flight across concurrent callers) and retries the call exactly
// once; a second 401 is a session-level failure.
func (c *Client) Call(ctx context.Context, method, path string, body, out any) error {
	return c.call(ctx, method, path, body, out, true)
}

func (c *Client) call(ctx context.Context, method, path string, body, out any, allowRetry bool) error {
	if !c.IsValid() {
		return sessionExpiredError(0)
	}
	if err := c.waitTurn(ctx); err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := sonic.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(ctx, err)
	}
	payload, readErr := io.ReadAll(resp.Body)
	if closeErr := resp.Body.Close(); closeErr != nil {
		c.logger.Errorf("Failed to close response body: %v", closeErr)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return c.handleUnauthorized(ctx, allowRetry, func() error {
			return c.call(ctx, method, path, body, out, false)
		})
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return serverError(resp.StatusCode, resp.Status, payload)
	}
	if out == nil {
		return nil
	}
	if readErr != nil {
		return &APIError{Kind: KindTransport, Message: "failed to read response body", Err: readErr}
	}
	if err := sonic.Unmarshal(payload, out); err != nil {
		return &APIError{Kind: KindServer, Status: resp.StatusCode, Message: "malformed response body", Err: err}
	}
	return nil
}

// CallRaw performs an authenticated request and hands back the raw response for
// non-JSON bodies (downloads, previews). The caller owns resp.Body. The 401
// handling mirrors Call.
func (c *Client) CallRaw(ctx context.Context, method, path string) (*http.Response, error) {
	return c.callRaw(ctx, method, path, true)
}

func (c *Client) callRaw(ctx context.Context, method, path string, allowRetry bool) (*http.Response, error) {
	if !c.IsValid() {
		return nil, sessionExpiredError(0)
	}
	if err := c.waitTurn(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		drainClose(resp.Body, c.logger)
		var retried *http.Response
		retryErr := c.handleUnauthorized(ctx, allowRetry, func() error {
			var err error
			retried, err = c.callRaw(ctx, method, path, false)
			return err
		})
		if retryErr != nil {
			return nil, retryErr
		}
		return retried, nil
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		payload, _ := io.ReadAll(resp.Body)
		drainClose(resp.Body, c.logger)
		return nil, serverError(resp.StatusCode, resp.Status, payload)
	}
	return resp, nil
}

// Upload sends one file as a multipart POST, forwarding the probed pixel
// dimensions when known. Cancellation propagates through ctx into the
// transport; a cancelled upload is never retried.
func (c *Client) Upload(ctx context.Context, src types.FileSource, width, height int) (*types.FileRecord, error) {
	return c.upload(ctx, src, width, height, true)
}

func (c *Client) upload(ctx context.Context, src types.FileSource, width, height int, allowRetry bool) (*types.FileRecord, error) {
	if !c.IsValid() {
		return nil, sessionExpiredError(0)
	}
	select {
	case <-ctx.Done():
		return nil, &APIError{Kind: KindCancelled, Message: "upload cancelled", Err: ctx.Err()}
	default:
	}
	if err := c.waitTurn(ctx); err != nil {
		return nil, err
	}

	file, err := src.Open()
	if err != nil {
		return nil, &APIError{Kind: KindTransport, Message: fmt.Sprintf("failed to open %s", src.Name), Err: err}
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		defer func() {
			if err := file.Close(); err != nil {
				c.logger.Errorf("Failed to close %s: %v", src.Name, err)
			}
		}()
		err := writeUploadForm(writer, src, width, height, file)
		if closeErr := writer.Close(); err == nil {
			err = closeErr
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/files/upload"), pr)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	payload, readErr := io.ReadAll(resp.Body)
	if closeErr := resp.Body.Close(); closeErr != nil {
		c.logger.Errorf("Failed to close response body: %v", closeErr)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// Never retry on behalf of a cancelled transfer.
		if ctx.Err() != nil {
			return nil, &APIError{Kind: KindCancelled, Message: "upload cancelled", Err: ctx.Err()}
		}
		var record *types.FileRecord
		retryErr := c.handleUnauthorized(ctx, allowRetry, func() error {
			var err error
			record, err = c.upload(ctx, src, width, height, false)
			return err
		})
		if retryErr != nil {
			return nil, retryErr
		}
		return record, nil
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, serverError(resp.StatusCode, resp.Status, payload)
	}
	if readErr != nil {
		return nil, &APIError{Kind: KindTransport, Message: "failed to read upload response", Err: readErr}
	}
	var uploaded types.UploadResponse
	if err := sonic.Unmarshal(payload, &uploaded); err != nil {
		return nil, &APIError{Kind: KindServer, Status: resp.StatusCode, Message: "malformed upload response", Err: err}
	}
	return &uploaded.File, nil
}

// handleUnauthorized implements the retry-once policy: refresh (single-flight),
// then reissue through retry with retries disallowed. A 401 with retries
// disallowed, or a failed refresh, terminates the session.
func (c *Client) handleUnauthorized(ctx context.Context, allowRetry bool, retry func() error) error {
	if !allowRetry {
		c.Invalidate()
		return sessionExpiredError(http.StatusUnauthorized)
	}
	if !c.EnsureRefreshed() {
		c.Invalidate()
		return sessionExpiredError(http.StatusUnauthorized)
	}
	return retry()
}

// EnsureRefreshed performs the refresh call, guaranteeing at most one refresh
// request is outstanding at any time. Concurrent callers share the pending
// result; the pending state clears when the call settles, so a later 401
// triggers a fresh attempt. Returns true only on a 2xx refresh response and
// never panics on network failure.
func (c *Client) EnsureRefreshed() bool {
	v, _, shared := c.refreshGroup.Do("refresh", func() (any, error) {
		return c.refresh(), nil
	})
	ok, _ := v.(bool)
	if shared {
		c.logger.Debugf("Joined in-flight token refresh, result=%v", ok)
	}
	return ok
}

func (c *Client) refresh() bool {
	// Deliberately not tied to any caller's context: the result is shared by
	// every caller that joined the flight.
	ctx, cancel := context.WithTimeout(context.Background(), tool.DefaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/auth/refresh"), nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warnf("Token refresh failed: %v", err)
		return false
	}
	drainClose(resp.Body, c.logger)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.logger.Warnf("Token refresh rejected: %s", resp.Status)
		return false
	}
	c.logger.Debug("Token refresh succeeded")
	return true
}

func writeUploadForm(writer *multipart.Writer, src types.FileSource, width, height int, file io.Reader) error {
	// CreateFormFile would stamp the part application/octet-stream; the server
	// gates on the part's Content-Type, so carry the real MIME.
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename=%q`, src.Name))
	header.Set("Content-Type", src.MIME)
	part, err := writer.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	if width > 0 && height > 0 {
		if err := writer.WriteField("width", strconv.Itoa(width)); err != nil {
			return err
		}
		if err := writer.WriteField("height", strconv.Itoa(height)); err != nil {
			return err
		}
	}
	return nil
}

// serverError builds the typed failure for a structured non-2xx response,
// surfacing the server's message verbatim when the body carries one.
func serverError(status int, statusText string, body []byte) *APIError {
	message := statusText
	if len(body) > 0 {
		var structured struct {
			Detail  string `json:"detail"`
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if err := sonic.Unmarshal(body, &structured); err == nil {
			switch {
			case structured.Detail != "":
				message = structured.Detail
			case structured.Error != "":
				message = structured.Error
			case structured.Message != "":
				message = structured.Message
			}
		}
	}
	return &APIError{Kind: KindServer, Status: status, Message: message}
}

func drainClose(body io.ReadCloser, logger *log.Logger) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		logger.Debugf("Failed to drain response body: %v", err)
	}
	if err := body.Close(); err != nil {
		logger.Errorf("Failed to close response body: %v", err)
	}
}
