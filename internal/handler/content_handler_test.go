package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/jovenes/internal/content"
	"github.com/hitoshi/jovenes/internal/model"
	"github.com/sebdah/goldie/v2"
)

// --- モック定義 ---

// mockContentService はContentServiceInterfaceのモック実装。
type mockContentService struct {
	getDayFn      func(ctx context.Context, week, day int) (*dayResponse, error)
	getWeekFn     func(ctx context.Context, week int) (*weekResponse, error)
	getEditFormFn func(ctx context.Context, week, day int) (*editFormResponse, error)
	updateDayFn   func(ctx context.Context, in content.UpdateInput) (*dayResponse, error)
}

func (m *mockContentService) GetDay(ctx context.Context, week, day int) (*dayResponse, error) {
	if m.getDayFn != nil {
		return m.getDayFn(ctx, week, day)
	}
	return &dayResponse{Week: week, Day: day}, nil
}

func (m *mockContentService) GetWeek(ctx context.Context, week int) (*weekResponse, error) {
	if m.getWeekFn != nil {
		return m.getWeekFn(ctx, week)
	}
	return &weekResponse{Week: week}, nil
}

func (m *mockContentService) GetEditForm(ctx context.Context, week, day int) (*editFormResponse, error) {
	if m.getEditFormFn != nil {
		return m.getEditFormFn(ctx, week, day)
	}
	return &editFormResponse{Week: week, Day: day}, nil
}

func (m *mockContentService) UpdateDay(ctx context.Context, in content.UpdateInput) (*dayResponse, error) {
	if m.updateDayFn != nil {
		return m.updateDayFn(ctx, in)
	}
	return &dayResponse{Week: in.Week, Day: in.Day, Title: in.Title}, nil
}

// --- テストヘルパー ---

// withChiURLParams はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

type multipartFile struct {
	field    string
	filename string
	data     string
}

// newMultipartRequest はフォーム値とファイルを含むmultipartリクエストを生成する。
func newMultipartRequest(t *testing.T, target string, values url.Values, files []multipartFile) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for key, vs := range values {
		for _, v := range vs {
			if err := mw.WriteField(key, v); err != nil {
				t.Fatalf("failed to write field: %v", err)
			}
		}
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.filename)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		part.Write([]byte(f.data))
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func sampleWeek() *weekResponse {
	updated := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return &weekResponse{
		Week: 3,
		Days: []dayResponse{
			{
				Week: 3, Day: 1, Title: "Día 1",
				Activities: []string{}, Links: []string{},
				Files: []attachmentResponse{}, Evidence: []attachmentResponse{},
			},
			{
				Week: 3, Day: 2, Title: "Taller",
				Description:     "Traer cuaderno",
				DescriptionHTML: "Traer cuaderno",
				Activities:      []string{"Dinámica de presentación", "Trabajo en grupos"},
				Links:           []string{"https://example.org/guia"},
				Files: []attachmentResponse{{
					Original:   "plan.pdf",
					StoredName: "0b9f6c2e-8a41-4d7e-9c1a-2f3b4c5d6e7f_plan.pdf",
					URL:        "/uploads/0b9f6c2e-8a41-4d7e-9c1a-2f3b4c5d6e7f_plan.pdf",
				}},
				Evidence:  []attachmentResponse{},
				UpdatedAt: &updated,
			},
			{
				Week: 3, Day: 3, Title: "Día 3",
				Activities: []string{}, Links: []string{},
				Files: []attachmentResponse{}, Evidence: []attachmentResponse{},
			},
		},
	}
}

// --- ListWeeks ---

func TestContentHandler_ListWeeks(t *testing.T) {
	h := NewContentHandler(&mockContentService{}, 1<<20)

	req := httptest.NewRequest(http.MethodGet, "/api/weeks", nil)
	w := httptest.NewRecorder()
	h.ListWeeks(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp curriculumResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Weeks) != model.WeekCount || resp.Weeks[0] != 1 || resp.Weeks[model.WeekCount-1] != model.WeekCount {
		t.Errorf("weeks = %v", resp.Weeks)
	}
	if resp.DaysPerWeek != model.DaysPerWeek {
		t.Errorf("days_per_week = %d, want %d", resp.DaysPerWeek, model.DaysPerWeek)
	}
}

// --- GetWeek ---

func TestContentHandler_GetWeek_Golden(t *testing.T) {
	svc := &mockContentService{
		getWeekFn: func(ctx context.Context, week int) (*weekResponse, error) {
			if week != 3 {
				t.Errorf("week = %d, want 3", week)
			}
			return sampleWeek(), nil
		},
	}
	h := NewContentHandler(svc, 1<<20)

	req := withChiURLParams(httptest.NewRequest(http.MethodGet, "/api/weeks/3", nil), "week", "3")
	w := httptest.NewRecorder()
	h.GetWeek(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, w.Body.Bytes(), "", "  "); err != nil {
		t.Fatalf("failed to indent response: %v", err)
	}

	g := goldie.New(t, goldie.WithFixtureDir("testdata"))
	g.Assert(t, "week_view", pretty.Bytes())
}

func TestContentHandler_GetWeek_Errors(t *testing.T) {
	tests := []struct {
		name       string
		param      string
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "数値でない週",
			param:      "abc",
			wantStatus: http.StatusBadRequest,
			wantCode:   model.ErrCodeInvalidRequest,
		},
		{
			name:       "範囲外の週",
			param:      "16",
			serviceErr: model.NewInvalidWeekError(16),
			wantStatus: http.StatusBadRequest,
			wantCode:   model.ErrCodeInvalidKey,
		},
		{
			name:       "永続化エラー",
			param:      "2",
			serviceErr: model.NewPersistenceError(errors.New("db down")),
			wantStatus: http.StatusInternalServerError,
			wantCode:   model.ErrCodePersistence,
		},
		{
			name:       "APIError以外のエラー",
			param:      "2",
			serviceErr: errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			svc := &mockContentService{
				getWeekFn: func(ctx context.Context, week int) (*weekResponse, error) {
					called = true
					return nil, tt.serviceErr
				},
			}
			h := NewContentHandler(svc, 1<<20)

			req := withChiURLParams(httptest.NewRequest(http.MethodGet, "/api/weeks/"+tt.param, nil), "week", tt.param)
			w := httptest.NewRecorder()
			h.GetWeek(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			resp := parseAPIErrorResponse(t, w)
			if resp["code"] != tt.wantCode {
				t.Errorf("code = %q, want %q", resp["code"], tt.wantCode)
			}
			if tt.serviceErr == nil && called {
				t.Error("service should not be called for a malformed week")
			}
			if strings.Contains(w.Body.String(), "db down") {
				t.Error("internal error detail leaked into response")
			}
		})
	}
}

// --- GetDay ---

func TestContentHandler_GetDay(t *testing.T) {
	svc := &mockContentService{
		getDayFn: func(ctx context.Context, week, day int) (*dayResponse, error) {
			if week != 4 || day != 2 {
				t.Errorf("key = (%d, %d), want (4, 2)", week, day)
			}
			return &dayResponse{
				Week: 4, Day: 2, Title: "Día 2",
				Activities: []string{}, Links: []string{},
				Files: []attachmentResponse{}, Evidence: []attachmentResponse{},
			}, nil
		},
	}
	h := NewContentHandler(svc, 1<<20)

	req := withChiURLParams(httptest.NewRequest(http.MethodGet, "/api/weeks/4/days/2", nil), "week", "4", "day", "2")
	w := httptest.NewRecorder()
	h.GetDay(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp dayResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Title != "Día 2" {
		t.Errorf("title = %q, want %q", resp.Title, "Día 2")
	}
	if resp.UpdatedAt != nil {
		t.Error("updated_at should be omitted for a default view")
	}
}

func TestContentHandler_GetDay_InvalidDayParam(t *testing.T) {
	h := NewContentHandler(&mockContentService{}, 1<<20)

	req := withChiURLParams(httptest.NewRequest(http.MethodGet, "/api/weeks/4/days/x", nil), "week", "4", "day", "x")
	w := httptest.NewRecorder()
	h.GetDay(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// --- GetEditForm ---

func TestContentHandler_GetEditForm(t *testing.T) {
	svc := &mockContentService{
		getEditFormFn: func(ctx context.Context, week, day int) (*editFormResponse, error) {
			return &editFormResponse{Week: week, Day: day, Title: "Taller", Activities: "a\nb"}, nil
		},
	}
	h := NewContentHandler(svc, 1<<20)

	req := withChiURLParams(httptest.NewRequest(http.MethodGet, "/api/admin/weeks/3/days/2", nil), "week", "3", "day", "2")
	w := httptest.NewRecorder()
	h.GetEditForm(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp editFormResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Activities != "a\nb" {
		t.Errorf("activities = %q, want %q", resp.Activities, "a\nb")
	}
}

// --- UpdateDay ---

func TestContentHandler_UpdateDay_Multipart(t *testing.T) {
	var got content.UpdateInput
	svc := &mockContentService{
		updateDayFn: func(ctx context.Context, in content.UpdateInput) (*dayResponse, error) {
			got = in
			return &dayResponse{Week: in.Week, Day: in.Day, Title: in.Title}, nil
		},
	}
	h := NewContentHandler(svc, 1<<20)

	values := url.Values{
		"title":           {"Taller"},
		"description":     {"Traer cuaderno"},
		"activities":      {"a\nb"},
		"links":           {"https://example.org"},
		"remove_files":    {"x_old.pdf", "y_old.pdf"},
		"remove_evidence": {"evidence_z.jpg"},
	}
	files := []multipartFile{
		{field: "new_files", filename: "plan.pdf", data: "pdf-bytes"},
		{field: "new_files", filename: "anexo.docx", data: "docx-bytes"},
		{field: "new_evidence", filename: "foto.jpg", data: "jpg-bytes"},
	}
	req := newMultipartRequest(t, "/api/admin/weeks/3/days/2", values, files)
	req = withChiURLParams(req, "week", "3", "day", "2")
	w := httptest.NewRecorder()
	h.UpdateDay(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	if got.Week != 3 || got.Day != 2 {
		t.Errorf("key = (%d, %d), want (3, 2)", got.Week, got.Day)
	}
	if got.Title != "Taller" || got.Description != "Traer cuaderno" {
		t.Errorf("title/description = %q/%q", got.Title, got.Description)
	}
	if got.ActivitiesText != "a\nb" || got.LinksText != "https://example.org" {
		t.Errorf("activities/links = %q/%q", got.ActivitiesText, got.LinksText)
	}
	if len(got.RemoveFileKeys) != 2 || got.RemoveFileKeys[0] != "x_old.pdf" || got.RemoveFileKeys[1] != "y_old.pdf" {
		t.Errorf("RemoveFileKeys = %v", got.RemoveFileKeys)
	}
	if len(got.RemoveEvidenceKeys) != 1 || got.RemoveEvidenceKeys[0] != "evidence_z.jpg" {
		t.Errorf("RemoveEvidenceKeys = %v", got.RemoveEvidenceKeys)
	}
	if len(got.NewFiles) != 2 {
		t.Fatalf("NewFiles = %d, want 2", len(got.NewFiles))
	}
	if got.NewFiles[0].Filename != "plan.pdf" || string(got.NewFiles[0].Data) != "pdf-bytes" {
		t.Errorf("NewFiles[0] = %q/%q", got.NewFiles[0].Filename, got.NewFiles[0].Data)
	}
	if got.NewFiles[1].Filename != "anexo.docx" {
		t.Errorf("NewFiles[1].Filename = %q", got.NewFiles[1].Filename)
	}
	if len(got.NewEvidence) != 1 || string(got.NewEvidence[0].Data) != "jpg-bytes" {
		t.Errorf("NewEvidence = %v", got.NewEvidence)
	}

	var resp updateResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Content.Title != "Taller" {
		t.Errorf("content.title = %q", resp.Content.Title)
	}
}

func TestContentHandler_UpdateDay_URLEncodedForm(t *testing.T) {
	var got content.UpdateInput
	svc := &mockContentService{
		updateDayFn: func(ctx context.Context, in content.UpdateInput) (*dayResponse, error) {
			got = in
			return &dayResponse{Week: in.Week, Day: in.Day}, nil
		},
	}
	h := NewContentHandler(svc, 1<<20)

	form := url.Values{"title": {"Solo texto"}, "remove_files": {"a.pdf"}}
	req := httptest.NewRequest(http.MethodPost, "/api/admin/weeks/1/days/1", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req = withChiURLParams(req, "week", "1", "day", "1")
	w := httptest.NewRecorder()
	h.UpdateDay(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got.Title != "Solo texto" || len(got.RemoveFileKeys) != 1 {
		t.Errorf("input = %+v", got)
	}
	if len(got.NewFiles) != 0 || len(got.NewEvidence) != 0 {
		t.Error("no uploads expected for url-encoded form")
	}
}

func TestContentHandler_UpdateDay_InvalidKeyRejectedBeforeService(t *testing.T) {
	called := false
	svc := &mockContentService{
		updateDayFn: func(ctx context.Context, in content.UpdateInput) (*dayResponse, error) {
			called = true
			return nil, nil
		},
	}
	h := NewContentHandler(svc, 1<<20)

	req := newMultipartRequest(t, "/api/admin/weeks/16/days/1", url.Values{"title": {"x"}}, nil)
	req = withChiURLParams(req, "week", "16", "day", "1")
	w := httptest.NewRecorder()
	h.UpdateDay(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if resp := parseAPIErrorResponse(t, w); resp["code"] != model.ErrCodeInvalidKey {
		t.Errorf("code = %q, want %q", resp["code"], model.ErrCodeInvalidKey)
	}
	if called {
		t.Error("service should not be called for an invalid key")
	}
}

func TestContentHandler_UpdateDay_PayloadTooLarge(t *testing.T) {
	called := false
	svc := &mockContentService{
		updateDayFn: func(ctx context.Context, in content.UpdateInput) (*dayResponse, error) {
			called = true
			return nil, nil
		},
	}
	// Content-Lengthでの判定を無効にし、MaxBytesReaderでの検出を確認する
	h := NewContentHandler(svc, 0)

	files := []multipartFile{{field: "new_files", filename: "big.bin", data: strings.Repeat("x", 4096)}}
	req := newMultipartRequest(t, "/api/admin/weeks/1/days/1", nil, files)
	req = withChiURLParams(req, "week", "1", "day", "1")
	w := httptest.NewRecorder()
	req.Body = http.MaxBytesReader(w, req.Body, 64)
	h.UpdateDay(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusRequestEntityTooLarge)
	}
	if resp := parseAPIErrorResponse(t, w); resp["code"] != model.ErrCodePayloadTooLarge {
		t.Errorf("code = %q, want %q", resp["code"], model.ErrCodePayloadTooLarge)
	}
	if called {
		t.Error("service should not be called when the payload is too large")
	}
}

func TestContentHandler_UpdateDay_ContentLengthOverLimit(t *testing.T) {
	h := NewContentHandler(&mockContentService{}, 128)

	files := []multipartFile{{field: "new_files", filename: "big.bin", data: strings.Repeat("x", 1024)}}
	req := newMultipartRequest(t, "/api/admin/weeks/1/days/1", nil, files)
	req = withChiURLParams(req, "week", "1", "day", "1")
	w := httptest.NewRecorder()
	h.UpdateDay(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusRequestEntityTooLarge)
	}
}

func TestContentHandler_UpdateDay_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "ストレージ書き込み失敗",
			err:        model.NewStorageWriteError("plan.pdf", errors.New("disk full")),
			wantStatus: http.StatusInternalServerError,
			wantCode:   model.ErrCodeStorageWrite,
		},
		{
			name:       "永続化失敗",
			err:        model.NewPersistenceError(errors.New("db down")),
			wantStatus: http.StatusInternalServerError,
			wantCode:   model.ErrCodePersistence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockContentService{
				updateDayFn: func(ctx context.Context, in content.UpdateInput) (*dayResponse, error) {
					return nil, tt.err
				},
			}
			h := NewContentHandler(svc, 1<<20)

			req := newMultipartRequest(t, "/api/admin/weeks/1/days/1", url.Values{"title": {"x"}}, nil)
			req = withChiURLParams(req, "week", "1", "day", "1")
			w := httptest.NewRecorder()
			h.UpdateDay(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			resp := parseAPIErrorResponse(t, w)
			if resp["code"] != tt.wantCode {
				t.Errorf("code = %q, want %q", resp["code"], tt.wantCode)
			}
			if strings.Contains(w.Body.String(), "disk full") || strings.Contains(w.Body.String(), "db down") {
				t.Error("internal error detail leaked into response")
			}
		})
	}
}

// --- mapAPIErrorToHTTPStatus ---

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{model.ErrCodeInvalidKey, http.StatusBadRequest},
		{model.ErrCodeInvalidRequest, http.StatusBadRequest},
		{model.ErrCodeInvalidCredentials, http.StatusUnauthorized},
		{model.ErrCodeUnauthorized, http.StatusUnauthorized},
		{model.ErrCodePayloadTooLarge, http.StatusRequestEntityTooLarge},
		{model.ErrCodeStorageWrite, http.StatusInternalServerError},
		{model.ErrCodePersistence, http.StatusInternalServerError},
		{"UNKNOWN", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := mapAPIErrorToHTTPStatus(&model.APIError{Code: tt.code}); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}
