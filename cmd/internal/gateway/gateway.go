package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	apiv1 "vivahvows/shared/contracts/api/v1"

	"vivahvows/cmd/internal/auth/session"
	"vivahvows/cmd/internal/metrics"
	"vivahvows/cmd/security/token"
)

const (
	defaultUserAgent = "vivahvows-go/dev"
	maxResponseBytes = 4 << 20
)

// Options configures a Gateway.
type Options struct {
	// BaseURL is the API root, e.g. http://localhost:8000/api.
	BaseURL    string
	HTTPClient *http.Client
	Store      session.Store
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	UserAgent  string

	// RefreshPath defaults to the backend's token refresh endpoint.
	RefreshPath string

	// RefreshTimeout bounds a refresh once started. Zero means no bound
	// beyond the HTTP client's own timeout.
	RefreshTimeout time.Duration
}

// SessionClearedFunc is called after the gateway clears the stored session.
type SessionClearedFunc func(reason string)

// TokenRotatedFunc is called after a refresh stores new credentials.
type TokenRotatedFunc func(creds session.Credentials)

// Clear reasons passed to SessionClearedFunc.
const (
	ClearedRefreshFailed   = "refresh_failed"
	ClearedNoRefreshToken  = "no_refresh_token"
	ClearedLogout          = "logout"
	ClearedLoginFailed     = "login_failed"
	ClearedBootstrapFailed = "bootstrap_failed"
)

// Gateway sends authenticated requests and owns the refresh protocol.
type Gateway struct {
	base           *url.URL
	hc             *http.Client
	store          session.Store
	log            *slog.Logger
	metrics        *metrics.Metrics
	userAgent      string
	refreshPath    string
	refreshTimeout time.Duration

	ref refresher

	// epoch increments whenever a session starts or ends. A write that
	// started under an older epoch must not land.
	epoch atomic.Uint64
	// sessMu serializes epoch changes with the store writes they guard.
	sessMu sync.Mutex

	hookMu    sync.Mutex
	onCleared []SessionClearedFunc
	onRotated []TokenRotatedFunc
}

// New validates opts and returns a Gateway.
func New(opts Options) (*Gateway, error) {
	if opts.Store == nil {
		return nil, errors.New("gateway: store is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("gateway: invalid base url %q", opts.BaseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	rp := opts.RefreshPath
	if rp == "" {
		rp = apiv1.PathTokenRefresh
	}

	return &Gateway{
		base:           base,
		hc:             hc,
		store:          opts.Store,
		log:            log,
		metrics:        opts.Metrics,
		userAgent:      ua,
		refreshPath:    rp,
		refreshTimeout: opts.RefreshTimeout,
	}, nil
}

// Store returns the session store the gateway reads credentials from.
func (g *Gateway) Store() session.Store { return g.store }

// OnSessionCleared registers fn to run after each session clear.
func (g *Gateway) OnSessionCleared(fn SessionClearedFunc) {
	g.hookMu.Lock()
	g.onCleared = append(g.onCleared, fn)
	g.hookMu.Unlock()
}

// OnTokenRotated registers fn to run after each successful refresh.
func (g *Gateway) OnTokenRotated(fn TokenRotatedFunc) {
	g.hookMu.Lock()
	g.onRotated = append(g.onRotated, fn)
	g.hookMu.Unlock()
}

// Request describes one API call. Body is JSON-encoded unless it is []byte.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Header http.Header

	// NoAuth sends the request without a bearer token and never refreshes.
	NoAuth bool
}

// Response is a fully-read 2xx response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the body into out. An empty body leaves out untouched.
func (r *Response) Decode(out any) error {
	if out == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, out)
}

// Do sends req. A 401 on an authenticated request runs the refresh protocol
// and retries the request once.
func (g *Gateway) Do(ctx context.Context, req *Request) (*Response, error) {
	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	access := ""
	if !req.NoAuth {
		if snap, ok := g.store.Get(ctx); ok {
			access = snap.Access
		}
	}

	resp, err := g.send(ctx, req, body, access)
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusUnauthorized || req.NoAuth {
		return finish(resp)
	}

	original := parseAPIError(resp.Status, resp.Body)

	// A refresh may have completed while this request was on the wire.
	if snap, ok := g.store.Get(ctx); ok && access != "" && snap.Access != access {
		return g.replay(ctx, req, body, snap.Access)
	}

	fresh, rerr := g.refreshShared(ctx)
	if rerr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		g.log.Debug("gateway.replay_skipped",
			"method", req.Method,
			"path", req.Path,
			"err", rerr,
		)
		return nil, original
	}

	return g.replay(ctx, req, body, fresh)
}

// replay resends req once with access. A second 401 is returned as is.
func (g *Gateway) replay(ctx context.Context, req *Request, body []byte, access string) (*Response, error) {
	resp, err := g.send(ctx, req, body, access)
	if err != nil {
		return nil, err
	}
	return finish(resp)
}

// Get issues a GET and decodes the JSON response into out.
func (g *Gateway) Get(ctx context.Context, path string, query url.Values, out any) error {
	return g.call(ctx, &Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

func (g *Gateway) Post(ctx context.Context, path string, in, out any) error {
	return g.call(ctx, &Request{Method: http.MethodPost, Path: path, Body: in}, out)
}

func (g *Gateway) Patch(ctx context.Context, path string, in, out any) error {
	return g.call(ctx, &Request{Method: http.MethodPatch, Path: path, Body: in}, out)
}

func (g *Gateway) Delete(ctx context.Context, path string, out any) error {
	return g.call(ctx, &Request{Method: http.MethodDelete, Path: path}, out)
}

// Unauthenticated calls an endpoint without credentials (login, register,
// password reset). A 401 is returned as is.
func (g *Gateway) Unauthenticated(ctx context.Context, method, path string, in, out any) error {
	return g.call(ctx, &Request{Method: method, Path: path, Body: in, NoAuth: true}, out)
}

func (g *Gateway) call(ctx context.Context, req *Request, out any) error {
	resp, err := g.Do(ctx, req)
	if err != nil {
		return err
	}
	if err := resp.Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.Method, req.Path, err)
	}
	return nil
}

// EndSession clears the stored session and discards the result of any
// refresh already in flight. Queued requests still settle.
func (g *Gateway) EndSession(ctx context.Context) error {
	g.sessMu.Lock()
	err := g.endLocked(ctx)
	g.sessMu.Unlock()
	g.fireCleared(ClearedLogout)
	return err
}

// ClearSessionAt ends the session identified by epoch and reports reason to
// the SessionClearedFunc hooks. It does nothing if that session already
// ended or was replaced.
func (g *Gateway) ClearSessionAt(ctx context.Context, epoch uint64, reason string) error {
	g.sessMu.Lock()
	if g.epoch.Load() != epoch {
		g.sessMu.Unlock()
		return nil
	}
	err := g.endLocked(ctx)
	g.sessMu.Unlock()
	g.cleared(reason, err)
	return err
}

// StartSession stores snap as a new session and returns its epoch. Writes
// still running for an earlier session are discarded.
func (g *Gateway) StartSession(ctx context.Context, snap session.Snapshot) (uint64, error) {
	g.sessMu.Lock()
	defer g.sessMu.Unlock()
	epoch := g.epoch.Add(1)
	if err := g.store.Set(ctx, snap); err != nil {
		return epoch, err
	}
	return epoch, nil
}

// Epoch identifies the current session. Pass it to UpdateSession.
func (g *Gateway) Epoch() uint64 { return g.epoch.Load() }

// UpdateSession applies fn to the stored snapshot if the session is still
// the one identified by epoch. Otherwise it returns ErrSessionEnded and the
// store is untouched.
func (g *Gateway) UpdateSession(ctx context.Context, epoch uint64, fn func(*session.Snapshot)) error {
	g.sessMu.Lock()
	defer g.sessMu.Unlock()
	if g.epoch.Load() != epoch {
		return ErrSessionEnded
	}
	snap, ok := g.store.Get(ctx)
	if !ok {
		return ErrSessionEnded
	}
	fn(&snap)
	return g.store.Set(ctx, snap)
}

// endLocked must be called with sessMu held.
func (g *Gateway) endLocked(ctx context.Context) error {
	g.epoch.Add(1)
	return g.store.Clear(ctx)
}

func (g *Gateway) send(ctx context.Context, req *Request, body []byte, access string) (*Response, error) {
	u := g.resolve(req.Path, req.Query)

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	hreq, err := http.NewRequestWithContext(ctx, req.Method, u, rdr)
	if err != nil {
		return nil, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}
	hreq.Header.Set("Accept", "application/json")
	hreq.Header.Set("User-Agent", g.userAgent)
	if hreq.Header.Get("X-Request-ID") == "" {
		hreq.Header.Set("X-Request-ID", uuid.NewString())
	}
	if body != nil {
		hreq.Header.Set("Content-Type", "application/json")
	}
	if access != "" {
		hreq.Header.Set("Authorization", "Bearer "+access)
	}

	start := time.Now()
	hresp, err := g.hc.Do(hreq)
	if err != nil {
		g.metrics.ObserveRequest(req.Method, 0)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &NetworkError{Op: req.Method + " " + req.Path, Err: err}
	}
	defer func() { _ = hresp.Body.Close() }()

	b, err := io.ReadAll(io.LimitReader(hresp.Body, maxResponseBytes))
	if err != nil {
		g.metrics.ObserveRequest(req.Method, 0)
		return nil, &NetworkError{Op: "read " + req.Method + " " + req.Path, Err: err}
	}
	g.metrics.ObserveRequest(req.Method, hresp.StatusCode)

	g.log.Debug("gateway.request",
		"method", req.Method,
		"path", req.Path,
		"status", hresp.StatusCode,
		"dur_ms", time.Since(start).Milliseconds(),
		"request_id", hreq.Header.Get("X-Request-ID"),
		"token_fp", token.Fingerprint(access),
	)

	return &Response{Status: hresp.StatusCode, Header: hresp.Header, Body: b}, nil
}

func (g *Gateway) resolve(path string, query url.Values) string {
	u := *g.base
	u.Path = strings.TrimRight(g.base.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func finish(resp *Response) (*Response, error) {
	if resp.Status >= 200 && resp.Status < 300 {
		return resp, nil
	}
	return nil, parseAPIError(resp.Status, resp.Body)
}

func encodeBody(v any) ([]byte, error) {
	switch b := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		out, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		return out, nil
	}
}

func (g *Gateway) fireCleared(reason string) {
	g.hookMu.Lock()
	hooks := append([]SessionClearedFunc(nil), g.onCleared...)
	g.hookMu.Unlock()
	for _, fn := range hooks {
		fn(reason)
	}
}

func (g *Gateway) fireRotated(c session.Credentials) {
	g.hookMu.Lock()
	hooks := append([]TokenRotatedFunc(nil), g.onRotated...)
	g.hookMu.Unlock()
	for _, fn := range hooks {
		fn(c)
	}
}
