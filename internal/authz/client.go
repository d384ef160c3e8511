package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-access/internal/pseudonym"
)

const (
	// DefaultTimeout bounds a single authorization query.
	DefaultTimeout = 5 * time.Second

	// DefaultPathPrefix is the path segment the token is appended to.
	DefaultPathPrefix = "/api"

	// maxResponseBody caps how much of a response body is read. A valid
	// answer is a few dozen bytes.
	maxResponseBody = 4096

	defaultUserAgent = "graylogic-access"
)

// Connectivity reports whether the network link is usable.
type Connectivity interface {
	IsConnected() bool
}

// alwaysConnected is used when no link monitor is configured.
type alwaysConnected struct{}

func (alwaysConnected) IsConnected() bool { return true }

// Options configures a Client.
type Options struct {
	// BaseURL is the service root, e.g. "http://10.0.0.5:8080".
	BaseURL string

	// PathPrefix is prepended to the token. Default: "/api".
	PathPrefix string

	// Timeout bounds each query. Default: 5s.
	Timeout time.Duration

	// Link reports transport state. Nil means always connected.
	Link Connectivity

	// HTTPClient overrides the default client (tests, custom TLS).
	HTTPClient *http.Client

	// UserAgent is sent with each request.
	UserAgent string
}

// Client queries the authorization service.
//
// Thread Safety:
//   - Authorize is safe for concurrent use, although the access cycle only
//     ever issues one query at a time.
type Client struct {
	base      *url.URL
	prefix    string
	timeout   time.Duration
	link      Connectivity
	http      *http.Client
	userAgent string
}

// New creates a Client.
//
// Parameters:
//   - opts: Service location and limits
//
// Returns:
//   - *Client: Ready to query
//   - error: If BaseURL is missing or not an http(s) URL
func New(opts Options) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if raw == "" {
		return nil, fmt.Errorf("authz: base URL is required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("authz: parsing base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("authz: unsupported scheme %q", base.Scheme)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("authz: base URL has no host")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	prefix := opts.PathPrefix
	if prefix == "" {
		prefix = DefaultPathPrefix
	}

	link := opts.Link
	if link == nil {
		link = alwaysConnected{}
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = newHTTPClient(timeout)
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	return &Client{
		base:      base,
		prefix:    prefix,
		timeout:   timeout,
		link:      link,
		http:      httpClient,
		userAgent: ua,
	}, nil
}

// newHTTPClient returns a client whose dial and header timeouts never
// exceed the overall query timeout.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext,
			MaxIdleConns:          2,
			MaxIdleConnsPerHost:   1,
			IdleConnTimeout:       30 * time.Second,
			TLSHandshakeTimeout:   timeout,
			ResponseHeaderTimeout: timeout,
		},
		// The service answers directly; a redirect is a protocol error.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Timeout returns the per-query bound.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// URLFor returns the query URL for a token.
func (c *Client) URLFor(token pseudonym.Token) string {
	return c.base.JoinPath(c.prefix, token.String()).String()
}

// Authorize resolves a token to an access decision with a single request.
//
// It never returns Permitted unless the service answered 200 with
// {"isValid": true}. The call is bounded by the client timeout even when
// ctx has no deadline.
//
// Parameters:
//   - ctx: Context for cancellation
//   - token: Pseudonymous card token
//
// Returns:
//   - Result: Decision, reason code, status and latency
func (c *Client) Authorize(ctx context.Context, token pseudonym.Token) Result {
	start := time.Now()
	res := c.authorize(ctx, token)
	res.Latency = time.Since(start)
	return res
}

func (c *Client) authorize(ctx context.Context, token pseudonym.Token) Result {
	if !c.link.IsConnected() {
		return indeterminate(ReasonTransportUnavailable, 0, ErrTransportUnavailable)
	}
	if !token.Valid() {
		return indeterminate(ReasonInvalidToken, 0, fmt.Errorf("%w: malformed token", ErrProtocol))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URLFor(token), nil)
	if err != nil {
		return indeterminate(ReasonRequestFailed, 0, fmt.Errorf("%w: building request: %w", ErrProtocol, err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return indeterminate(ReasonTimeout, 0, fmt.Errorf("%w: timeout after %v", ErrProtocol, c.timeout))
		}
		return indeterminate(ReasonRequestFailed, 0, fmt.Errorf("%w: %w", ErrProtocol, stripURL(err)))
	}
	defer resp.Body.Close() //nolint:errcheck // Read-only body

	switch resp.StatusCode {
	case http.StatusOK:
		return decodeValidity(resp)
	case http.StatusNotFound:
		drain(resp.Body)
		return Result{
			Decision:   Denied,
			Reason:     ReasonNotFound,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: token not found", ErrExplicitDenial),
		}
	default:
		drain(resp.Body)
		return indeterminate(ReasonUnexpectedStatus, resp.StatusCode,
			fmt.Errorf("%w: unexpected status %d", ErrProtocol, resp.StatusCode))
	}
}

// validityField is the only key read from a 200 body. Lookup is exact:
// struct tags would also accept "isvalid" or "ISVALID".
const validityField = "isValid"

// decodeValidity turns a 200 body into a decision.
func decodeValidity(resp *http.Response) Result {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		if isTimeout(err) {
			return indeterminate(ReasonTimeout, resp.StatusCode, fmt.Errorf("%w: reading body: %w", ErrProtocol, err))
		}
		return indeterminate(ReasonMalformedBody, resp.StatusCode, fmt.Errorf("%w: reading body: %w", ErrProtocol, err))
	}
	if len(data) > maxResponseBody {
		return indeterminate(ReasonMalformedBody, resp.StatusCode,
			fmt.Errorf("%w: body exceeds %d bytes", ErrProtocol, maxResponseBody))
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(data, &body); err != nil {
		return indeterminate(ReasonMalformedBody, resp.StatusCode, fmt.Errorf("%w: decoding body: %w", ErrProtocol, err))
	}
	raw, ok := body[validityField]
	if !ok {
		return indeterminate(ReasonMissingField, resp.StatusCode, fmt.Errorf("%w: isValid missing", ErrProtocol))
	}
	var valid *bool
	if err := json.Unmarshal(raw, &valid); err != nil {
		return indeterminate(ReasonMalformedBody, resp.StatusCode, fmt.Errorf("%w: decoding isValid: %w", ErrProtocol, err))
	}
	if valid == nil {
		return indeterminate(ReasonMissingField, resp.StatusCode, fmt.Errorf("%w: isValid null", ErrProtocol))
	}

	if *valid {
		return Result{Decision: Permitted, Reason: ReasonPermitted, StatusCode: resp.StatusCode}
	}
	return Result{
		Decision:   Denied,
		Reason:     ReasonNotValid,
		StatusCode: resp.StatusCode,
		Err:        fmt.Errorf("%w: isValid false", ErrExplicitDenial),
	}
}

func indeterminate(reason string, status int, err error) Result {
	return Result{Decision: Indeterminate, Reason: reason, StatusCode: status, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// drain discards a bounded amount of the body so the connection can be reused.
func drain(r io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r, maxResponseBody))
}

// stripURL drops the request URL from transport errors; the URL carries the
// token and these errors end up in logs and the journal.
func stripURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}
