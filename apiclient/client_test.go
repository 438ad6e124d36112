package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AnTengye/invoicedesk/model"
	"github.com/AnTengye/invoicedesk/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvelope(w http.ResponseWriter, status int, data any, errMsg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{Success: errMsg == "", Data: data, Error: errMsg})
}

func newSignedInClient(t *testing.T, handler http.Handler, opts Options) (*Client, *session.Session) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts.BaseURL = srv.URL
	client := New(opts)
	sess := session.New(session.NewMemoryStore(), client)
	client.SetTokenStore(sess)
	require.NoError(t, sess.Save(&model.User{ID: "2", Email: "accountant@example.com", Role: model.RoleAccountant}, "tok-123"))
	return client, sess
}

func TestClientSendsBearerToken(t *testing.T) {
	var got string
	client, _ := newSignedInClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		writeEnvelope(w, http.StatusOK, model.DashboardSummary{TotalInvoices: 7}, "")
	}), Options{})

	d, err := client.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, d.TotalInvoices)
	assert.Equal(t, "Bearer tok-123", got)
}

func TestClientUnauthorizedClearsSession(t *testing.T) {
	client, sess := newSignedInClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusUnauthorized, nil, "Invalid or expired token")
	}), Options{Demo: true})

	_, err := client.Dashboard(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized, "demo mode must not mask a 401")
	assert.Nil(t, sess.User())
	assert.Empty(t, sess.Token())
}

func TestClientLogin(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/login", r.URL.Path)
		require.Empty(t, r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "acc123" {
			writeEnvelope(w, http.StatusUnauthorized, nil, "Invalid email or password")
			return
		}
		writeEnvelope(w, http.StatusOK, model.LoginResponse{
			Token:     "fresh-token",
			ExpiresAt: time.Now().Add(time.Hour),
			User:      &model.User{ID: "2", Email: body["email"], Role: model.RoleAccountant},
		}, "")
	})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	client := New(Options{BaseURL: srv.URL})
	sess := session.New(session.NewMemoryStore(), client)
	client.SetTokenStore(sess)

	user, err := sess.Login(context.Background(), "accountant@example.com", "acc123")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAccountant, user.Role)
	assert.Equal(t, "fresh-token", sess.Token())

	_, err = sess.Login(context.Background(), "accountant@example.com", "bad")
	assert.ErrorIs(t, err, session.ErrInvalidCredentials)
	assert.Nil(t, sess.User())
}

func TestClientStatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"forbidden", http.StatusForbidden, ErrForbidden},
		{"not found", http.StatusNotFound, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, sess := newSignedInClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, tt.status, nil, "nope")
			}), Options{})

			_, err := client.GetInvoice(context.Background(), "x")
			assert.ErrorIs(t, err, tt.want)
			assert.NotNil(t, sess.User(), "only a 401 ends the session")
		})
	}

	client, _ := newSignedInClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusBadRequest, nil, "category code and name are required")
	}), Options{})
	_, err := client.CreateCategory(context.Background(), model.CategoryInput{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "category code and name are required", apiErr.Message)
}

func TestClientCache(t *testing.T) {
	var hits atomic.Int32
	client, _ := newSignedInClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.Method {
		case http.MethodGet:
			writeEnvelope(w, http.StatusOK, []model.Category{{ID: "1", Code: "5001"}}, "")
		default:
			writeEnvelope(w, http.StatusOK, nil, "")
		}
	}), Options{CacheSize: 8, CacheTTL: time.Minute})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		cats, err := client.Categories(ctx)
		require.NoError(t, err)
		require.Len(t, cats, 1)
	}
	assert.Equal(t, int32(1), hits.Load())

	// A write invalidates cached reads
	require.NoError(t, client.DeleteCategory(ctx, "1"))
	_, err := client.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())

	// Upload state is never cached
	hits.Store(0)
	_, _ = client.ListUploads(ctx)
	_, _ = client.ListUploads(ctx)
	assert.Equal(t, int32(2), hits.Load())
}

func TestClientDemoFallback(t *testing.T) {
	client, sess := newSignedInClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusInternalServerError, nil, "database down")
	}), Options{Demo: true})
	ctx := context.Background()

	d, err := client.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1248, d.TotalInvoices)

	r, err := client.Report(ctx, ReportQuery{})
	require.NoError(t, err)
	assert.Len(t, r.InvoiceList, 5)

	page, err := client.ListInvoices(ctx, InvoiceQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	inv, err := client.GetInvoice(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "42", inv.ID)

	cats, err := client.Categories(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, cats)

	// Writes are never masked
	err = client.DeleteInvoice(ctx, "42")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)

	assert.NotNil(t, sess.User())
}

func TestClientDemoOffByDefault(t *testing.T) {
	client, _ := newSignedInClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusBadGateway, nil, "upstream")
	}), Options{})

	_, err := client.Dashboard(context.Background())
	assert.Error(t, err)
}

func TestClientDemoNotForForbidden(t *testing.T) {
	client, _ := newSignedInClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusForbidden, nil, "Insufficient permissions")
	}), Options{Demo: true})

	_, err := client.Report(context.Background(), ReportQuery{})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestClientUpload(t *testing.T) {
	client, _ := newSignedInClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		batch := model.UploadBatch{Accepted: []*model.UploadTask{}, Rejected: []model.Rejection{}}
		for _, fh := range r.MultipartForm.File["files"] {
			f, _ := fh.Open()
			content, _ := io.ReadAll(f)
			f.Close()
			if strings.HasSuffix(fh.Filename, ".txt") {
				batch.Rejected = append(batch.Rejected, model.Rejection{FileName: fh.Filename, Reason: "unsupported file type"})
				continue
			}
			batch.Accepted = append(batch.Accepted, &model.UploadTask{ID: "t-" + fh.Filename, FileName: fh.Filename, FileSize: int64(len(content)), Status: model.StatusUploading})
		}
		writeEnvelope(w, http.StatusOK, batch, "")
	}), Options{})

	batch, err := client.Upload(context.Background(), []File{
		{Name: "a.pdf", Content: bytes.NewReader([]byte("%PDF-1.4"))},
		{Name: "notes.txt", Content: strings.NewReader("hello")},
	})
	require.NoError(t, err)
	require.Len(t, batch.Accepted, 1)
	assert.Equal(t, int64(8), batch.Accepted[0].FileSize)
	require.Len(t, batch.Rejected, 1)
	assert.Equal(t, "notes.txt", batch.Rejected[0].FileName)
}

func TestClientInvoiceQuery(t *testing.T) {
	var query string
	client, _ := newSignedInClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		writeEnvelope(w, http.StatusOK, model.InvoicePage{Items: []*model.Invoice{}, Page: 2, Limit: 5}, "")
	}), Options{})

	page, err := client.ListInvoices(context.Background(), InvoiceQuery{Page: 2, Limit: 5, Status: "completed", DateFrom: "2024-10-01", DateTo: "2024-10-31"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, "date_from=2024-10-01&date_to=2024-10-31&limit=5&page=2&status=completed", query)
}

func TestClientExportCSV(t *testing.T) {
	client, _ := newSignedInClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/reports/export/csv", r.URL.Path)
		assert.Equal(t, "Travel", r.URL.Query().Get("category"))
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, "Invoice Number,Date\nINV-1,2024-10-01\n")
	}), Options{})

	var buf bytes.Buffer
	require.NoError(t, client.ExportCSV(context.Background(), ReportQuery{Category: "Travel"}, &buf))
	assert.Contains(t, buf.String(), "INV-1")
}

func TestClientRefreshAndVerify(t *testing.T) {
	client, _ := newSignedInClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := &model.User{ID: "2", Role: model.RoleAccountant}
		switch r.URL.Path {
		case "/api/auth/verify":
			writeEnvelope(w, http.StatusOK, map[string]any{"user": user}, "")
		case "/api/auth/refresh":
			writeEnvelope(w, http.StatusOK, model.LoginResponse{Token: "renewed", User: user}, "")
		default:
			http.NotFound(w, r)
		}
	}), Options{})

	user, err := client.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2", user.ID)

	res, err := client.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "renewed", res.Token)
}
