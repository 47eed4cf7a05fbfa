package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/custodia-labs/semdex/internal/core/domain"
	"github.com/custodia-labs/semdex/internal/core/ports/driven"
	"github.com/custodia-labs/semdex/internal/core/ports/driving"
)

// Mock services for testing

type mockAuthService struct {
	validateTokenFn func(ctx context.Context, token string) (*domain.AuthContext, error)
}

func (m *mockAuthService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	if m.validateTokenFn != nil {
		return m.validateTokenFn(ctx, token)
	}
	if token == "good-token" {
		return &domain.AuthContext{UserID: "user-1", Email: "user@example.com"}, nil
	}
	return nil, domain.ErrTokenInvalid
}

type mockContentService struct {
	uploadFn    func(ctx context.Context, ownerID, filename string, data []byte) (*driving.UploadResult, error)
	getFn       func(ctx context.Context, ownerID, id string) (*domain.Content, error)
	listFn      func(ctx context.Context, ownerID string, filter domain.ContentFilter) ([]*domain.Content, error)
	updateTagFn func(ctx context.Context, ownerID, id string, tag bool) (*domain.Content, error)
	deleteFn    func(ctx context.Context, ownerID, id string) error
	downloadFn  func(ctx context.Context, ownerID, id string) (*domain.Content, []byte, error)
	reindexFn   func(ctx context.Context, ownerID, id string) (*driving.UploadResult, error)
	thumbnailFn func(ctx context.Context, ownerID, id string) ([]byte, error)
}

func (m *mockContentService) Thumbnail(ctx context.Context, ownerID, id string) ([]byte, error) {
	if m.thumbnailFn != nil {
		return m.thumbnailFn(ctx, ownerID, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockContentService) Upload(ctx context.Context, ownerID, filename string, data []byte) (*driving.UploadResult, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, ownerID, filename, data)
	}
	return nil, errors.New("not implemented")
}

func (m *mockContentService) Get(ctx context.Context, ownerID, id string) (*domain.Content, error) {
	if m.getFn != nil {
		return m.getFn(ctx, ownerID, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockContentService) List(ctx context.Context, ownerID string, filter domain.ContentFilter) ([]*domain.Content, error) {
	if m.listFn != nil {
		return m.listFn(ctx, ownerID, filter)
	}
	return nil, nil
}

func (m *mockContentService) UpdateTag(ctx context.Context, ownerID, id string, tag bool) (*domain.Content, error) {
	if m.updateTagFn != nil {
		return m.updateTagFn(ctx, ownerID, id, tag)
	}
	return nil, domain.ErrNotFound
}

func (m *mockContentService) Delete(ctx context.Context, ownerID, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, ownerID, id)
	}
	return nil
}

func (m *mockContentService) Download(ctx context.Context, ownerID, id string) (*domain.Content, []byte, error) {
	if m.downloadFn != nil {
		return m.downloadFn(ctx, ownerID, id)
	}
	return nil, nil, domain.ErrNotFound
}

func (m *mockContentService) Reindex(ctx context.Context, ownerID, id string) (*driving.UploadResult, error) {
	if m.reindexFn != nil {
		return m.reindexFn(ctx, ownerID, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockContentService) AllowedExtensions() []string {
	return []string{"txt", "jpg", "jpeg", "wav"}
}

type mockSearchService struct {
	searchFn      func(ctx context.Context, ownerID, text string, opts domain.SearchOptions) (*domain.SearchOutcome, error)
	searchFilesFn func(ctx context.Context, ownerID, text string, files []domain.QueryFile, opts domain.SearchOptions) (*domain.SearchOutcome, error)
}

func (m *mockSearchService) SearchFiles(ctx context.Context, ownerID, text string, files []domain.QueryFile, opts domain.SearchOptions) (*domain.SearchOutcome, error) {
	if m.searchFilesFn != nil {
		return m.searchFilesFn(ctx, ownerID, text, files, opts)
	}
	return nil, errors.New("not implemented")
}

func (m *mockSearchService) Search(ctx context.Context, ownerID, text string, opts domain.SearchOptions) (*domain.SearchOutcome, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, ownerID, text, opts)
	}
	return nil, errors.New("not implemented")
}

type mockHistoryService struct {
	listFn   func(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Query, error)
	getFn    func(ctx context.Context, ownerID, queryID string) (*domain.QueryWithResults, error)
	deleteFn func(ctx context.Context, ownerID, queryID string) error
}

func (m *mockHistoryService) ListQueries(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Query, error) {
	if m.listFn != nil {
		return m.listFn(ctx, ownerID, limit, offset)
	}
	return nil, nil
}

func (m *mockHistoryService) GetQuery(ctx context.Context, ownerID, queryID string) (*domain.QueryWithResults, error) {
	if m.getFn != nil {
		return m.getFn(ctx, ownerID, queryID)
	}
	return nil, domain.ErrNotFound
}

func (m *mockHistoryService) DeleteQuery(ctx context.Context, ownerID, queryID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, ownerID, queryID)
	}
	return nil
}

type mockTaskService struct {
	getFn    func(ctx context.Context, ownerID, taskID string) (*domain.Task, error)
	listFn   func(ctx context.Context, ownerID string, status domain.TaskStatus, limit, offset int) ([]*domain.Task, error)
	cancelFn func(ctx context.Context, ownerID, taskID string) (*domain.Task, error)
}

func (m *mockTaskService) GetTask(ctx context.Context, ownerID, taskID string) (*domain.Task, error) {
	if m.getFn != nil {
		return m.getFn(ctx, ownerID, taskID)
	}
	return nil, domain.ErrNotFound
}

func (m *mockTaskService) ListTasks(ctx context.Context, ownerID string, status domain.TaskStatus, limit, offset int) ([]*domain.Task, error) {
	if m.listFn != nil {
		return m.listFn(ctx, ownerID, status, limit, offset)
	}
	return nil, nil
}

func (m *mockTaskService) CancelTask(ctx context.Context, ownerID, taskID string) (*domain.Task, error) {
	if m.cancelFn != nil {
		return m.cancelFn(ctx, ownerID, taskID)
	}
	return nil, domain.ErrNotFound
}

type mockHealth struct {
	checks   map[string]string
	healthy  bool
	stats    *driven.QueueStats
	statsErr error
}

func (m *mockHealth) Health(ctx context.Context) (map[string]string, bool) {
	return m.checks, m.healthy
}

func (m *mockHealth) QueueStats(ctx context.Context) (*driven.QueueStats, error) {
	return m.stats, m.statsErr
}

// Test helpers

type testServer struct {
	content *mockContentService
	search  *mockSearchService
	history *mockHistoryService
	tasks   *mockTaskService
	health  *mockHealth
	server  *Server
}

func newTestServer(maxUpload int64) *testServer {
	ts := &testServer{
		content: &mockContentService{},
		search:  &mockSearchService{},
		history: &mockHistoryService{},
		tasks:   &mockTaskService{},
		health:  &mockHealth{healthy: true, checks: map[string]string{"database": "ok"}},
	}
	cfg := DefaultConfig()
	cfg.Version = "test"
	if maxUpload > 0 {
		cfg.MaxUploadBytes = maxUpload
	}
	ts.server = NewServer(cfg, Services{
		Auth:    &mockAuthService{},
		Content: ts.content,
		Search:  ts.search,
		History: ts.history,
		Tasks:   ts.tasks,
		Health:  ts.health,
	})
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rr, req)
	return rr
}

func authed(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Authorization", "Bearer good-token")
	return req
}

func multipartUpload(t *testing.T, field, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := authed(http.MethodPost, "/api/v1/contents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp.Error
}

func sampleContent(id string) *domain.Content {
	return &domain.Content{
		ID:               id,
		OwnerID:          "user-1",
		LogicalPath:      "user-1/" + id + "/notes.txt",
		OriginalFilename: "notes.txt",
		Kind:             domain.ContentKindText,
		Tag:              true,
		Status:           domain.ContentStatusPending,
		Size:             5,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
}

// Health endpoints

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(0)
	rr := ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	var resp StatusResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Status != "ok" {
		t.Errorf("expected status ok, got %q", resp.Status)
	}
}

func TestHandleReady(t *testing.T) {
	ts := newTestServer(0)
	rr := ts.do(httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp ReadyResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Checks["database"] != "ok" {
		t.Errorf("expected database check in report, got %v", resp.Checks)
	}
	if resp.Queue != nil {
		t.Errorf("expected no queue stats, got %+v", resp.Queue)
	}
}

func TestHandleReady_ReportsQueueBacklog(t *testing.T) {
	ts := newTestServer(0)
	ts.health.stats = &driven.QueueStats{PendingCount: 3, FailedCount: 1, OldestPendingAge: 42}

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp ReadyResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Queue == nil {
		t.Fatal("expected queue stats in report")
	}
	if resp.Queue.PendingCount != 3 || resp.Queue.FailedCount != 1 || resp.Queue.OldestPendingAge != 42 {
		t.Errorf("unexpected queue stats %+v", resp.Queue)
	}
}

func TestHandleReady_QueueStatsErrorKeepsReport(t *testing.T) {
	ts := newTestServer(0)
	ts.health.statsErr = errors.New("connection refused")

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp ReadyResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Status != "ready" || resp.Queue != nil {
		t.Errorf("unexpected report %+v", resp)
	}
}

func TestHandleReady_DependencyDown(t *testing.T) {
	ts := newTestServer(0)
	ts.health.healthy = false
	ts.health.checks = map[string]string{"database": "ok", "queue": "connection refused"}

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
	var resp ReadyResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Status != "not ready" {
		t.Errorf("expected not ready, got %q", resp.Status)
	}
	if resp.Checks["queue"] != "connection refused" {
		t.Errorf("expected queue error in report, got %v", resp.Checks)
	}
}

func TestHandleVersion(t *testing.T) {
	ts := newTestServer(0)
	rr := ts.do(httptest.NewRequest(http.MethodGet, "/version", nil))

	var resp VersionResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Version != "test" {
		t.Errorf("expected version test, got %q", resp.Version)
	}
}

func TestHandleListExtensions(t *testing.T) {
	ts := newTestServer(0)
	rr := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/extensions", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp ExtensionsResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if len(resp.Extensions) != 4 || resp.Extensions[0] != "txt" {
		t.Errorf("unexpected extensions %v", resp.Extensions)
	}
}

// Auth

func TestProtectedRoutes_RequireToken(t *testing.T) {
	ts := newTestServer(0)
	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/contents"},
		{http.MethodGet, "/api/v1/contents"},
		{http.MethodGet, "/api/v1/contents/c1"},
		{http.MethodPatch, "/api/v1/contents/c1"},
		{http.MethodDelete, "/api/v1/contents/c1"},
		{http.MethodGet, "/api/v1/contents/c1/download"},
		{http.MethodGet, "/api/v1/contents/c1/thumbnail"},
		{http.MethodPost, "/api/v1/contents/c1/reindex"},
		{http.MethodPost, "/api/v1/search"},
		{http.MethodGet, "/api/v1/queries"},
		{http.MethodGet, "/api/v1/queries/q1"},
		{http.MethodDelete, "/api/v1/queries/q1"},
		{http.MethodGet, "/api/v1/tasks"},
		{http.MethodGet, "/api/v1/tasks/t1"},
		{http.MethodPost, "/api/v1/tasks/t1/cancel"},
	}

	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			rr := ts.do(httptest.NewRequest(rt.method, rt.path, nil))
			if rr.Code != http.StatusUnauthorized {
				t.Errorf("expected status 401 without token, got %d", rr.Code)
			}

			req := httptest.NewRequest(rt.method, rt.path, nil)
			req.Header.Set("Authorization", "Bearer forged")
			rr = ts.do(req)
			if rr.Code != http.StatusUnauthorized {
				t.Errorf("expected status 401 with bad token, got %d", rr.Code)
			}
		})
	}
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	ts := newTestServer(0)
	ts.server = NewServer(DefaultConfig(), Services{
		Auth: &mockAuthService{validateTokenFn: func(ctx context.Context, token string) (*domain.AuthContext, error) {
			return nil, fmt.Errorf("parse: %w", domain.ErrTokenExpired)
		}},
		Content: ts.content,
	})

	rr := ts.do(authed(http.MethodGet, "/api/v1/contents", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
	if msg := decodeError(t, rr); msg != "token expired" {
		t.Errorf("expected token expired, got %q", msg)
	}
}

// Content endpoints

func TestHandleUpload(t *testing.T) {
	ts := newTestServer(0)
	var gotOwner, gotName string
	var gotData []byte
	ts.content.uploadFn = func(ctx context.Context, ownerID, filename string, data []byte) (*driving.UploadResult, error) {
		gotOwner, gotName, gotData = ownerID, filename, data
		return &driving.UploadResult{Content: sampleContent("c1"), TaskID: "t1"}, nil
	}

	rr := ts.do(multipartUpload(t, "file", "notes.txt", []byte("hello")))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotOwner != "user-1" || gotName != "notes.txt" || string(gotData) != "hello" {
		t.Errorf("unexpected upload call owner=%q name=%q data=%q", gotOwner, gotName, gotData)
	}
	var resp driving.UploadResult
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.TaskID != "t1" || resp.Content == nil || resp.Content.ID != "c1" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHandleUpload_MissingFile(t *testing.T) {
	ts := newTestServer(0)
	rr := ts.do(multipartUpload(t, "attachment", "notes.txt", []byte("hello")))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleUpload_NotMultipart(t *testing.T) {
	ts := newTestServer(0)
	req := authed(http.MethodPost, "/api/v1/contents", strings.NewReader(`{"file":"x"}`))
	req.Header.Set("Content-Type", "application/json")

	rr := ts.do(req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleUpload_TooLarge(t *testing.T) {
	ts := newTestServer(8)
	called := false
	ts.content.uploadFn = func(ctx context.Context, ownerID, filename string, data []byte) (*driving.UploadResult, error) {
		called = true
		return nil, nil
	}

	rr := ts.do(multipartUpload(t, "file", "notes.txt", []byte("more than eight bytes")))

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected status 413, got %d", rr.Code)
	}
	if called {
		t.Error("expected service not to be called")
	}
}

func TestHandleUpload_ServiceErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unsupported extension", fmt.Errorf("%w: .exe", domain.ErrUnsupportedExtension), http.StatusBadRequest},
		{"empty file", fmt.Errorf("%w: file is empty", domain.ErrInvalidInput), http.StatusBadRequest},
		{"too large", domain.ErrTooLarge, http.StatusRequestEntityTooLarge},
		{"storage down", fmt.Errorf("put: %w", domain.ErrStorageUnavailable), http.StatusServiceUnavailable},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(0)
			ts.content.uploadFn = func(ctx context.Context, ownerID, filename string, data []byte) (*driving.UploadResult, error) {
				return nil, tt.err
			}

			rr := ts.do(multipartUpload(t, "file", "virus.exe", []byte("x")))
			if rr.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestHandleListContents(t *testing.T) {
	ts := newTestServer(0)
	var got domain.ContentFilter
	ts.content.listFn = func(ctx context.Context, ownerID string, filter domain.ContentFilter) ([]*domain.Content, error) {
		got = filter
		return []*domain.Content{sampleContent("c1"), sampleContent("c2")}, nil
	}

	rr := ts.do(authed(http.MethodGet, "/api/v1/contents?status=ready&tag=false&limit=5&offset=10", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if got.Status != domain.ContentStatusReady || got.Limit != 5 || got.Offset != 10 {
		t.Errorf("unexpected filter %+v", got)
	}
	if got.Tag == nil || *got.Tag {
		t.Errorf("expected tag filter false, got %v", got.Tag)
	}
	var resp []*domain.Content
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if len(resp) != 2 {
		t.Errorf("expected 2 contents, got %d", len(resp))
	}
}

func TestHandleListContents_EmptyIsArray(t *testing.T) {
	ts := newTestServer(0)
	rr := ts.do(authed(http.MethodGet, "/api/v1/contents", nil))

	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("expected empty array, got %q", rr.Body.String())
	}
}

func TestHandleListContents_BadParams(t *testing.T) {
	tests := []string{
		"/api/v1/contents?limit=abc",
		"/api/v1/contents?limit=-1",
		"/api/v1/contents?offset=-5",
		"/api/v1/contents?tag=maybe",
	}
	ts := newTestServer(0)

	for _, target := range tests {
		t.Run(target, func(t *testing.T) {
			rr := ts.do(authed(http.MethodGet, target, nil))
			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", rr.Code)
			}
		})
	}
}

func TestHandleGetContent(t *testing.T) {
	ts := newTestServer(0)
	ts.content.getFn = func(ctx context.Context, ownerID, id string) (*domain.Content, error) {
		if ownerID != "user-1" || id != "c1" {
			return nil, domain.ErrNotFound
		}
		return sampleContent(id), nil
	}

	rr := ts.do(authed(http.MethodGet, "/api/v1/contents/c1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	rr = ts.do(authed(http.MethodGet, "/api/v1/contents/other", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestHandleUpdateTag(t *testing.T) {
	ts := newTestServer(0)
	var gotTag *bool
	ts.content.updateTagFn = func(ctx context.Context, ownerID, id string, tag bool) (*domain.Content, error) {
		gotTag = &tag
		c := sampleContent(id)
		c.Tag = tag
		return c, nil
	}

	rr := ts.do(authed(http.MethodPatch, "/api/v1/contents/c1", strings.NewReader(`{"tag": false}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if gotTag == nil || *gotTag {
		t.Errorf("expected tag false to be passed, got %v", gotTag)
	}

	rr = ts.do(authed(http.MethodPatch, "/api/v1/contents/c1", strings.NewReader(`{}`)))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for missing tag, got %d", rr.Code)
	}

	rr = ts.do(authed(http.MethodPatch, "/api/v1/contents/c1", strings.NewReader(`not json`)))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for bad body, got %d", rr.Code)
	}
}

func TestHandleDeleteContent(t *testing.T) {
	ts := newTestServer(0)
	var deleted string
	ts.content.deleteFn = func(ctx context.Context, ownerID, id string) error {
		if id == "missing" {
			return domain.ErrNotFound
		}
		if id == "stuck" {
			return fmt.Errorf("delete bytes: %w", domain.ErrStorageUnavailable)
		}
		deleted = id
		return nil
	}

	rr := ts.do(authed(http.MethodDelete, "/api/v1/contents/c1", nil))
	if rr.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", rr.Code)
	}
	if deleted != "c1" {
		t.Errorf("expected c1 deleted, got %q", deleted)
	}

	rr = ts.do(authed(http.MethodDelete, "/api/v1/contents/missing", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}

	rr = ts.do(authed(http.MethodDelete, "/api/v1/contents/stuck", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rr.Code)
	}
}

func TestHandleDownload(t *testing.T) {
	ts := newTestServer(0)
	ts.content.downloadFn = func(ctx context.Context, ownerID, id string) (*domain.Content, []byte, error) {
		c := sampleContent(id)
		c.OriginalFilename = "photo.jpg"
		return c, []byte{0xff, 0xd8, 0xff}, nil
	}

	rr := ts.do(authed(http.MethodGet, "/api/v1/contents/c1/download", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, `filename=photo.jpg`) {
		t.Errorf("expected attachment filename, got %q", cd)
	}
	if !bytes.Equal(rr.Body.Bytes(), []byte{0xff, 0xd8, 0xff}) {
		t.Errorf("unexpected body %v", rr.Body.Bytes())
	}
}

func TestHandleThumbnail(t *testing.T) {
	ts := newTestServer(0)
	ts.content.thumbnailFn = func(ctx context.Context, ownerID, id string) ([]byte, error) {
		if id != "img-1" {
			return nil, fmt.Errorf("%w: no thumbnail for text content", domain.ErrNotFound)
		}
		return []byte{0xff, 0xd8, 0xff, 0xd9}, nil
	}

	rr := ts.do(authed(http.MethodGet, "/api/v1/contents/img-1/thumbnail", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %q", ct)
	}
	if !bytes.Equal(rr.Body.Bytes(), []byte{0xff, 0xd8, 0xff, 0xd9}) {
		t.Errorf("unexpected body %x", rr.Body.Bytes())
	}

	rr = ts.do(authed(http.MethodGet, "/api/v1/contents/doc-1/thumbnail", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestHandleReindex(t *testing.T) {
	ts := newTestServer(0)
	ts.content.reindexFn = func(ctx context.Context, ownerID, id string) (*driving.UploadResult, error) {
		if id == "ready" {
			return nil, fmt.Errorf("%w: content is ready", domain.ErrInvalidInput)
		}
		return &driving.UploadResult{Content: sampleContent(id), TaskID: "t2"}, nil
	}

	rr := ts.do(authed(http.MethodPost, "/api/v1/contents/c1/reindex", nil))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", rr.Code)
	}
	var resp driving.UploadResult
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.TaskID != "t2" {
		t.Errorf("expected task t2, got %q", resp.TaskID)
	}

	rr = ts.do(authed(http.MethodPost, "/api/v1/contents/ready/reindex", nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

// Search endpoints

func TestHandleSearch(t *testing.T) {
	ts := newTestServer(0)
	var gotText string
	var gotOpts domain.SearchOptions
	ts.search.searchFn = func(ctx context.Context, ownerID, text string, opts domain.SearchOptions) (*domain.SearchOutcome, error) {
		gotText, gotOpts = text, opts
		q := domain.NewQuery(ownerID, text)
		return &domain.SearchOutcome{
			QueryID: q.ID,
			Query:   q,
			Results: domain.NewSearchResults(q, []*domain.ScoredContent{{ContentID: "c1", Similarity: 0.9}}),
		}, nil
	}

	body := `{"query": "a dog on the beach", "limit": 5, "min_similarity": 0.3}`
	rr := ts.do(authed(http.MethodPost, "/api/v1/search", strings.NewReader(body)))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotText != "a dog on the beach" || gotOpts.Limit != 5 || gotOpts.MinSimilarity != 0.3 {
		t.Errorf("unexpected search call text=%q opts=%+v", gotText, gotOpts)
	}
	var resp domain.SearchOutcome
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.QueryID == "" || len(resp.Results) != 1 || resp.Results[0].Rank != 1 {
		t.Errorf("unexpected outcome %+v", resp)
	}
}

// searchForm builds a multipart search request. files maps filename to content.
func searchForm(t *testing.T, fields map[string]string, files map[string][]byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for name, data := range files {
		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		_, _ = part.Write(data)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := authed(http.MethodPost, "/api/v1/search", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHandleSearch_Multipart(t *testing.T) {
	ts := newTestServer(0)
	var gotText string
	var gotFiles []domain.QueryFile
	var gotOpts domain.SearchOptions
	ts.search.searchFilesFn = func(ctx context.Context, ownerID, text string, files []domain.QueryFile, opts domain.SearchOptions) (*domain.SearchOutcome, error) {
		gotText, gotFiles, gotOpts = text, files, opts
		q := domain.NewFileQuery(ownerID, text, []string{files[0].Filename})
		return &domain.SearchOutcome{QueryID: q.ID, Query: q}, nil
	}

	req := searchForm(t,
		map[string]string{"query": "on the beach", "limit": "3", "min_similarity": "0.25"},
		map[string][]byte{"dog.jpg": []byte("jpeg bytes")})
	rr := ts.do(req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotText != "on the beach" || gotOpts.Limit != 3 || gotOpts.MinSimilarity != 0.25 {
		t.Errorf("unexpected search call text=%q opts=%+v", gotText, gotOpts)
	}
	if len(gotFiles) != 1 || gotFiles[0].Filename != "dog.jpg" || string(gotFiles[0].Data) != "jpeg bytes" {
		t.Errorf("unexpected files %+v", gotFiles)
	}
	var resp domain.SearchOutcome
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Query == nil || resp.Query.Type != domain.QueryTypeMultipart {
		t.Errorf("unexpected outcome %+v", resp)
	}
}

func TestHandleSearch_MultipartErrors(t *testing.T) {
	ts := newTestServer(64)
	ts.search.searchFilesFn = func(ctx context.Context, ownerID, text string, files []domain.QueryFile, opts domain.SearchOptions) (*domain.SearchOutcome, error) {
		if len(files) == 0 && text == "" {
			return nil, fmt.Errorf("%w: no valid query parts provided", domain.ErrInvalidInput)
		}
		return nil, fmt.Errorf("%w: .exe", domain.ErrUnsupportedExtension)
	}

	tests := []struct {
		name   string
		fields map[string]string
		files  map[string][]byte
		want   int
	}{
		{"no parts", nil, nil, http.StatusBadRequest},
		{"unsupported file type", nil, map[string][]byte{"run.exe": []byte("x")}, http.StatusBadRequest},
		{"bad limit", map[string]string{"limit": "-1"}, map[string][]byte{"a.txt": []byte("x")}, http.StatusBadRequest},
		{"bad similarity", map[string]string{"min_similarity": "2"}, map[string][]byte{"a.txt": []byte("x")}, http.StatusBadRequest},
		{"file too large", nil, map[string][]byte{"a.txt": bytes.Repeat([]byte("x"), 65)}, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(searchForm(t, tt.fields, tt.files))
			if rr.Code != tt.want {
				t.Errorf("expected status %d, got %d: %s", tt.want, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestHandleSearch_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"query":`},
		{"missing query", `{}`},
		{"blank query", `{"query": "   "}`},
		{"negative limit", `{"query": "x", "limit": -1}`},
		{"similarity above one", `{"query": "x", "min_similarity": 1.5}`},
	}
	ts := newTestServer(0)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(authed(http.MethodPost, "/api/v1/search", strings.NewReader(tt.body)))
			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", rr.Code)
			}
		})
	}
}

func TestHandleSearch_EmbeddingErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unavailable", fmt.Errorf("embed query: %w", domain.ErrServiceUnavailable), http.StatusServiceUnavailable},
		{"failed", fmt.Errorf("embed query: %w", domain.ErrEmbeddingFailed), http.StatusBadGateway},
		{"dimension mismatch", domain.ErrDimensionMismatch, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(0)
			ts.search.searchFn = func(ctx context.Context, ownerID, text string, opts domain.SearchOptions) (*domain.SearchOutcome, error) {
				return nil, tt.err
			}

			rr := ts.do(authed(http.MethodPost, "/api/v1/search", strings.NewReader(`{"query":"x"}`)))
			if rr.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

// History endpoints

func TestHandleListQueries(t *testing.T) {
	ts := newTestServer(0)
	var gotLimit, gotOffset int
	ts.history.listFn = func(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Query, error) {
		gotLimit, gotOffset = limit, offset
		return []*domain.Query{domain.NewQuery(ownerID, "cats")}, nil
	}

	rr := ts.do(authed(http.MethodGet, "/api/v1/queries?limit=20&offset=40", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if gotLimit != 20 || gotOffset != 40 {
		t.Errorf("expected limit 20 offset 40, got %d %d", gotLimit, gotOffset)
	}
	var resp []*domain.Query
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if len(resp) != 1 || resp[0].Text != "cats" {
		t.Errorf("unexpected queries %+v", resp)
	}
}

func TestHandleGetQuery(t *testing.T) {
	ts := newTestServer(0)
	ts.history.getFn = func(ctx context.Context, ownerID, queryID string) (*domain.QueryWithResults, error) {
		if queryID != "q1" {
			return nil, domain.ErrNotFound
		}
		q := domain.NewQuery(ownerID, "cats")
		results := domain.NewSearchResults(q, []*domain.ScoredContent{{ContentID: "gone", Similarity: 0.8}})
		return &domain.QueryWithResults{
			Query:   q,
			Results: []*domain.HistoryResult{{SearchResult: results[0], Available: false}},
		}, nil
	}

	rr := ts.do(authed(http.MethodGet, "/api/v1/queries/q1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp struct {
		Results []struct {
			ContentID string `json:"content_id"`
			Available bool   `json:"available"`
		} `json:"results"`
	}
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if len(resp.Results) != 1 || resp.Results[0].ContentID != "gone" || resp.Results[0].Available {
		t.Errorf("expected unavailable result to be kept, got %+v", resp.Results)
	}

	rr = ts.do(authed(http.MethodGet, "/api/v1/queries/q2", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestHandleDeleteQuery(t *testing.T) {
	ts := newTestServer(0)
	ts.history.deleteFn = func(ctx context.Context, ownerID, queryID string) error {
		if queryID != "q1" {
			return domain.ErrNotFound
		}
		return nil
	}

	rr := ts.do(authed(http.MethodDelete, "/api/v1/queries/q1", nil))
	if rr.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", rr.Code)
	}

	rr = ts.do(authed(http.MethodDelete, "/api/v1/queries/q2", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

// Task endpoints

func TestHandleListTasks(t *testing.T) {
	ts := newTestServer(0)
	var gotStatus domain.TaskStatus
	ts.tasks.listFn = func(ctx context.Context, ownerID string, status domain.TaskStatus, limit, offset int) ([]*domain.Task, error) {
		gotStatus = status
		return []*domain.Task{domain.NewEmbedContentTask(ownerID, "c1")}, nil
	}

	rr := ts.do(authed(http.MethodGet, "/api/v1/tasks?status=pending", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if gotStatus != domain.TaskStatusPending {
		t.Errorf("expected pending filter, got %q", gotStatus)
	}
}

func TestHandleGetTask(t *testing.T) {
	ts := newTestServer(0)
	task := domain.NewEmbedContentTask("user-1", "c1")
	ts.tasks.getFn = func(ctx context.Context, ownerID, taskID string) (*domain.Task, error) {
		if taskID != task.ID {
			return nil, domain.ErrNotFound
		}
		return task, nil
	}

	rr := ts.do(authed(http.MethodGet, "/api/v1/tasks/"+task.ID, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp domain.Task
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.ID != task.ID || resp.Type != domain.TaskTypeEmbedContent {
		t.Errorf("unexpected task %+v", resp)
	}

	rr = ts.do(authed(http.MethodGet, "/api/v1/tasks/unknown", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestHandleCancelTask(t *testing.T) {
	ts := newTestServer(0)
	task := domain.NewEmbedContentTask("user-1", "c1")
	ts.tasks.cancelFn = func(ctx context.Context, ownerID, taskID string) (*domain.Task, error) {
		switch taskID {
		case task.ID:
			task.MarkFailed("cancelled")
			return task, nil
		case "running":
			return nil, fmt.Errorf("%w: task is processing", domain.ErrInvalidInput)
		}
		return nil, domain.ErrNotFound
	}

	rr := ts.do(authed(http.MethodPost, "/api/v1/tasks/"+task.ID+"/cancel", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp domain.Task
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Status != domain.TaskStatusFailed {
		t.Errorf("expected failed task, got %s", resp.Status)
	}

	rr = ts.do(authed(http.MethodPost, "/api/v1/tasks/running/cancel", nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}

	rr = ts.do(authed(http.MethodPost, "/api/v1/tasks/unknown/cancel", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

// Helpers

func TestParseNonNegative(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"25", 25, false},
		{"-1", 0, true},
		{"ten", 0, true},
	}

	for _, tt := range tests {
		got, err := parseNonNegative(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseNonNegative(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("parseNonNegative(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestServerStart_StopsOnCancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	s := NewServer(cfg, Services{Auth: &mockAuthService{}, Content: &mockContentService{}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
