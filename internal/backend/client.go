// Package backend talks to the Backend API that owns every business entity.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ssc-dashboards/portal/internal/access"
	"github.com/ssc-dashboards/portal/internal/auth"
	"github.com/ssc-dashboards/portal/internal/metrics"
)

const maxResponseBytes = 10 << 20

// Client calls the Backend API on behalf of a session.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	refreshLimiter *rate.Limiter
	logger         *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithRefreshLimit caps how often sessions are re-checked against the
// backend, across all users.
func WithRefreshLimit(r rate.Limit, burst int) Option {
	return func(cl *Client) {
		cl.refreshLimiter = rate.NewLimiter(r, burst)
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = l
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{Timeout: 10 * time.Second},
		refreshLimiter: rate.NewLimiter(5, 5),
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type adminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges user credentials for a session.
func (c *Client) Login(ctx context.Context, email, password string) (access.Session, error) {
	if email == "" || password == "" {
		return access.Session{}, ErrInvalidCredentials
	}

	env, status, err := c.do(ctx, http.MethodPost, "/api/auth/login", "", loginRequest{Email: email, Password: password})
	if err != nil {
		return access.Session{}, fmt.Errorf("login: %w", err)
	}

	user, token := env.User, env.Token
	if user == nil || token == "" {
		var nested struct {
			User  *User  `json:"user"`
			Token string `json:"token"`
		}
		if env.Decode(&nested) == nil && nested.User != nil {
			user, token = nested.User, nested.Token
		}
	}

	if status >= 500 {
		return access.Session{}, fmt.Errorf("login: %w", &APIError{Status: status, Message: env.Message})
	}
	if status >= 300 || user == nil || token == "" {
		return access.Session{}, &APIError{Status: status, Message: env.Message, Err: ErrInvalidCredentials}
	}
	return user.Session(token), nil
}

// AdminLogin exchanges administrator credentials for an ADMIN session.
func (c *Client) AdminLogin(ctx context.Context, username, password string) (access.Session, error) {
	if username == "" || password == "" {
		return access.Session{}, ErrInvalidCredentials
	}

	env, status, err := c.do(ctx, http.MethodPost, "/api/auth/admin/login", "", adminLoginRequest{Username: username, Password: password})
	if err != nil {
		return access.Session{}, fmt.Errorf("admin login: %w", err)
	}
	if status >= 500 {
		return access.Session{}, fmt.Errorf("admin login: %w", &APIError{Status: status, Message: env.Message})
	}

	token := env.Token
	if token == "" {
		var nested struct {
			Token string `json:"token"`
		}
		if env.Decode(&nested) == nil {
			token = nested.Token
		}
	}
	if !env.Success || token == "" {
		return access.Session{}, &APIError{Status: status, Message: env.Message, Err: ErrInvalidCredentials}
	}
	return adminSession(username, token), nil
}

// Profile fetches the account behind token.
func (c *Client) Profile(ctx context.Context, token string) (User, error) {
	env, err := c.Get(ctx, token, "/api/user/profile")
	if err != nil {
		return User{}, fmt.Errorf("profile: %w", err)
	}
	if env.User != nil {
		return *env.User, nil
	}

	var nested struct {
		User *User `json:"user"`
	}
	if err := env.Decode(&nested); err == nil && nested.User != nil {
		return *nested.User, nil
	}
	var u User
	if err := env.Decode(&u); err != nil {
		return User{}, fmt.Errorf("profile: %w", err)
	}
	if u.ID == "" && u.Email == "" {
		return User{}, errors.New("profile: no user in response")
	}
	return u, nil
}

// Refresh re-reads role and status for s and returns a new session. Admin
// login sessions have no profile record and are returned unchanged. Fields
// the profile omits keep their previous values.
func (c *Client) Refresh(ctx context.Context, s access.Session) (access.Session, error) {
	if IsAdminLogin(s) {
		return s, nil
	}
	if err := c.refreshLimiter.Wait(ctx); err != nil {
		return s, fmt.Errorf("refresh: %w", err)
	}

	u, err := c.Profile(ctx, s.AccessToken)
	if err != nil {
		return s, err
	}

	next := u.Session(s.AccessToken)
	if u.ID == "" {
		next.UserID = s.UserID
	}
	if u.Role == "" {
		next.Role = s.Role
	}
	if u.Status == "" {
		next.Status = s.Status
	}
	if next.Name == "" {
		next.Name = s.Name
	}
	if next.Email == "" {
		next.Email = s.Email
	}
	if next.Image == "" {
		next.Image = s.Image
	}
	if next.Organization == "" {
		next.Organization = s.Organization
	}
	return next, nil
}

// Get fetches path with the bearer token and returns the decoded envelope.
// 401 maps to ErrUnauthorized; other non-2xx answers to *APIError.
func (c *Client) Get(ctx context.Context, token, path string) (*Envelope, error) {
	return c.Send(ctx, http.MethodGet, token, path, nil)
}

// Send issues method on path with an optional JSON body.
func (c *Client) Send(ctx context.Context, method, token, path string, body any) (*Envelope, error) {
	env, status, err := c.do(ctx, method, path, token, body)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		return env, &APIError{Status: status, Message: env.Message, Err: ErrUnauthorized}
	}
	if status >= 300 || (!env.Success && env.Message != "") {
		return env, &APIError{Status: status, Message: env.Message}
	}
	return env, nil
}

// Response is a raw backend answer relayed by the JSON proxy.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Forward relays a request to the backend unchanged and returns the raw
// answer. The caller supplies the bearer token.
func (c *Client) Forward(ctx context.Context, method, path, rawQuery, token string, body io.Reader, contentType string) (*Response, error) {
	url := c.baseURL + path
	if rawQuery != "" {
		url += "?" + rawQuery
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType == "" {
		contentType = "application/json"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	c.decorate(ctx, req, token)

	resp, err := c.roundTrip(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(data) > maxResponseBytes {
		return nil, fmt.Errorf("forward %s %s: %w", method, path, ErrResponseTooLarge)
	}
	return &Response{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body any) (*Envelope, int, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	c.decorate(ctx, req, token)

	resp, err := c.roundTrip(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if !isJSON(resp.Header.Get("Content-Type")) {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("non-JSON response from backend",
			"method", method, "path", path, "status", resp.StatusCode, "body", string(snippet))
		return nil, resp.StatusCode, ErrNonJSON
	}

	var env Envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&env); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	if env.Status == 0 {
		env.Status = resp.StatusCode
	}
	return &env, resp.StatusCode, nil
}

func (c *Client) decorate(ctx context.Context, req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if id := auth.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}
}

func (c *Client) roundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveBackend(req.Method, 0, time.Since(start))
		return nil, fmt.Errorf("backend request: %w", err)
	}
	metrics.ObserveBackend(req.Method, resp.StatusCode, time.Since(start))
	return resp, nil
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
