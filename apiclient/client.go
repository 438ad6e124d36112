// Package apiclient talks to the invoicedesk HTTP API on behalf of a session.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/AnTengye/invoicedesk/model"
	"github.com/AnTengye/invoicedesk/session"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

var (
	// ErrUnauthorized means the server rejected the token; the session has
	// been cleared and the user must log in again.
	ErrUnauthorized = errors.New("login required")
	ErrForbidden    = errors.New("insufficient permissions")
	ErrNotFound     = errors.New("not found")
)

// APIError is a non-2xx response other than 401, 403 and 404
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// TokenStore is the part of a session the client needs
type TokenStore interface {
	Token() string
	Clear() error
}

// Options configures a Client
type Options struct {
	BaseURL string
	Timeout time.Duration
	// CacheSize is how many GET responses to keep; 0 disables the cache
	CacheSize int
	CacheTTL  time.Duration
	// Demo serves built-in sample data when a read fails for a reason other
	// than authentication
	Demo bool
}

// Client is an HTTP client for the API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenStore
	cache      *expirable.LRU[string, []byte]
	demo       bool
}

func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		demo: opts.Demo,
	}
	if opts.CacheSize > 0 {
		c.cache = expirable.NewLRU[string, []byte](opts.CacheSize, nil, opts.CacheTTL)
	}
	return c
}

// SetTokenStore attaches the session whose token authenticates requests
func (c *Client) SetTokenStore(ts TokenStore) {
	c.tokens = ts
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	// login requests report a 401 as bad credentials
	login bool
	// noCache skips the GET cache for fast-changing resources
	noCache bool
}

// do sends req and returns the raw response body of a 2xx answer
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	token := ""
	if c.tokens != nil {
		token = c.tokens.Token()
	}

	cacheKey := token + " " + target
	cacheable := r.method == http.MethodGet && c.cache != nil && !r.noCache
	if cacheable {
		if body, ok := c.cache.Get(cacheKey); ok {
			return body, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, r.body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if token != "" && !r.login {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.statusError(r, resp.StatusCode, body)
	}

	if cacheable {
		c.cache.Add(cacheKey, body)
	} else if r.method != http.MethodGet {
		c.purge()
	}
	return body, nil
}

func (c *Client) statusError(r request, status int, body []byte) error {
	var env envelope
	_ = json.Unmarshal(body, &env)
	msg := env.Error
	if msg == "" {
		msg = env.Message
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch status {
	case http.StatusUnauthorized:
		if r.login {
			return session.ErrInvalidCredentials
		}
		c.purge()
		if c.tokens != nil {
			if err := c.tokens.Clear(); err != nil {
				slog.Warn("clear session after 401", "error", err)
			}
		}
		return ErrUnauthorized
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrForbidden, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	}
	return &APIError{Status: status, Message: msg}
}

// call sends req and decodes the envelope's data into out (which may be nil)
func (c *Client) call(ctx context.Context, r request, out any) error {
	body, err := c.do(ctx, r)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		return &APIError{Status: http.StatusOK, Message: msg}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to parse response data: %w", err)
	}
	return nil
}

func (c *Client) purge() {
	if c.cache != nil {
		c.cache.Purge()
	}
}

func jsonBody(v any) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return bytes.NewReader(data), nil
}

// Authenticate logs in and returns the user with a fresh token
func (c *Client) Authenticate(ctx context.Context, email, password string) (*model.User, string, error) {
	body, err := jsonBody(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, "", err
	}

	var out model.LoginResponse
	err = c.call(ctx, request{
		method:      http.MethodPost,
		path:        "/api/auth/login",
		body:        body,
		contentType: "application/json",
		login:       true,
	}, &out)
	if err != nil {
		return nil, "", err
	}
	if out.User == nil || out.Token == "" {
		return nil, "", errors.New("login response without user or token")
	}
	return out.User, out.Token, nil
}

// Verify checks the current token and returns its user
func (c *Client) Verify(ctx context.Context) (*model.User, error) {
	var out struct {
		User *model.User `json:"user"`
	}
	if err := c.call(ctx, request{method: http.MethodGet, path: "/api/auth/verify"}, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

// Refresh exchanges the current token for a new one
func (c *Client) Refresh(ctx context.Context) (*model.LoginResponse, error) {
	var out model.LoginResponse
	if err := c.call(ctx, request{method: http.MethodPost, path: "/api/auth/refresh"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// File is one document to upload
type File struct {
	Name    string
	Content io.Reader
}

// Upload sends files in one multipart request
func (c *Client) Upload(ctx context.Context, files []File) (*model.UploadBatch, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", f.Name, err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	var out model.UploadBatch
	err := c.call(ctx, request{
		method:      http.MethodPost,
		path:        "/api/uploads",
		body:        &buf,
		contentType: mw.FormDataContentType(),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListUploads returns the upload tasks visible to the user. Task state
// changes quickly, so it is never cached.
func (c *Client) ListUploads(ctx context.Context) ([]*model.UploadTask, error) {
	var out []*model.UploadTask
	if err := c.callFresh(ctx, "/api/uploads", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetUpload(ctx context.Context, id string) (*model.UploadTask, error) {
	var out model.UploadTask
	if err := c.callFresh(ctx, "/api/uploads/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RemoveUpload(ctx context.Context, id string) error {
	return c.call(ctx, request{method: http.MethodDelete, path: "/api/uploads/" + url.PathEscape(id)}, nil)
}

// callFresh is a GET that bypasses the cache
func (c *Client) callFresh(ctx context.Context, path string, out any) error {
	return c.call(ctx, request{method: http.MethodGet, path: path, noCache: true}, out)
}

// InvoiceQuery filters the invoice list. Dates are YYYY-MM-DD.
type InvoiceQuery struct {
	Page     int
	Limit    int
	Status   string
	DateFrom string
	DateTo   string
}

func (q InvoiceQuery) values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.DateFrom != "" {
		v.Set("date_from", q.DateFrom)
	}
	if q.DateTo != "" {
		v.Set("date_to", q.DateTo)
	}
	return v
}

func (c *Client) ListInvoices(ctx context.Context, q InvoiceQuery) (*model.InvoicePage, error) {
	var out model.InvoicePage
	err := c.call(ctx, request{method: http.MethodGet, path: "/api/invoices", query: q.values()}, &out)
	if err != nil {
		if c.useDemo("invoices", err) {
			return demoInvoicePage(), nil
		}
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetInvoice(ctx context.Context, id string) (*model.Invoice, error) {
	var out model.Invoice
	err := c.call(ctx, request{method: http.MethodGet, path: "/api/invoices/" + url.PathEscape(id)}, &out)
	if err != nil {
		if c.useDemo("invoice", err) {
			return demoInvoice(id), nil
		}
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteInvoice(ctx context.Context, id string) error {
	return c.call(ctx, request{method: http.MethodDelete, path: "/api/invoices/" + url.PathEscape(id)}, nil)
}

func (c *Client) Dashboard(ctx context.Context) (*model.DashboardSummary, error) {
	var out model.DashboardSummary
	if err := c.call(ctx, request{method: http.MethodGet, path: "/api/dashboard/summary"}, &out); err != nil {
		if c.useDemo("dashboard", err) {
			return demoDashboard(), nil
		}
		return nil, err
	}
	return &out, nil
}

// ReportQuery selects report data. Dates are YYYY-MM-DD.
type ReportQuery struct {
	DateFrom string
	DateTo   string
	Category string
}

func (q ReportQuery) values() url.Values {
	v := url.Values{}
	if q.DateFrom != "" {
		v.Set("date_from", q.DateFrom)
	}
	if q.DateTo != "" {
		v.Set("date_to", q.DateTo)
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	return v
}

func (c *Client) Report(ctx context.Context, q ReportQuery) (*model.ReportData, error) {
	var out model.ReportData
	if err := c.call(ctx, request{method: http.MethodGet, path: "/api/reports/data", query: q.values()}, &out); err != nil {
		if c.useDemo("report", err) {
			return demoReport(), nil
		}
		return nil, err
	}
	return &out, nil
}

// ExportCSV streams the report export into w
func (c *Client) ExportCSV(ctx context.Context, q ReportQuery, w io.Writer) error {
	body, err := c.do(ctx, request{method: http.MethodGet, path: "/api/reports/export/csv", query: q.values()})
	if err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

func (c *Client) Categories(ctx context.Context) ([]model.Category, error) {
	var out []model.Category
	if err := c.call(ctx, request{method: http.MethodGet, path: "/api/settings/categories"}, &out); err != nil {
		if c.useDemo("categories", err) {
			return demoCategories(), nil
		}
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateCategory(ctx context.Context, in model.CategoryInput) (*model.Category, error) {
	body, err := jsonBody(in)
	if err != nil {
		return nil, err
	}
	var out model.Category
	err = c.call(ctx, request{
		method:      http.MethodPost,
		path:        "/api/settings/categories",
		body:        body,
		contentType: "application/json",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateCategory(ctx context.Context, id string, in model.CategoryInput) (*model.Category, error) {
	body, err := jsonBody(in)
	if err != nil {
		return nil, err
	}
	var out model.Category
	err = c.call(ctx, request{
		method:      http.MethodPut,
		path:        "/api/settings/categories/" + url.PathEscape(id),
		body:        body,
		contentType: "application/json",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	return c.call(ctx, request{method: http.MethodDelete, path: "/api/settings/categories/" + url.PathEscape(id)}, nil)
}

// useDemo reports whether a failed read should be answered with sample data
func (c *Client) useDemo(what string, err error) bool {
	if !c.demo || errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	slog.Warn("serving demo data", "view", what, "error", err)
	return true
}
