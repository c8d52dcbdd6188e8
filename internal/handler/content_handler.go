package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/jovenes/internal/content"
	"github.com/hitoshi/jovenes/internal/model"
)

// multipartMemory はParseMultipartFormがメモリに保持する上限。超過分は一時ファイルに退避される。
const multipartMemory = 8 << 20

// ContentServiceInterface はコンテンツハンドラーが必要とするサービスインターフェース。
type ContentServiceInterface interface {
	GetDay(ctx context.Context, week, day int) (*dayResponse, error)
	GetWeek(ctx context.Context, week int) (*weekResponse, error)
	GetEditForm(ctx context.Context, week, day int) (*editFormResponse, error)
	UpdateDay(ctx context.Context, in content.UpdateInput) (*dayResponse, error)
}

// ContentHandler はカリキュラムコンテンツ関連のHTTPハンドラー。
type ContentHandler struct {
	service       ContentServiceInterface
	maxUploadSize int64
}

// NewContentHandler はContentHandlerを生成する。
func NewContentHandler(service ContentServiceInterface, maxUploadSize int64) *ContentHandler {
	return &ContentHandler{
		service:       service,
		maxUploadSize: maxUploadSize,
	}
}

// curriculumResponse はカリキュラム全体の構成を表すレスポンス。
type curriculumResponse struct {
	Weeks       []int `json:"weeks"`
	DaysPerWeek int   `json:"days_per_week"`
}

// ListWeeks はカリキュラムの週番号一覧を返す。
// GET /api/weeks
func (h *ContentHandler) ListWeeks(w http.ResponseWriter, r *http.Request) {
	weeks := make([]int, model.WeekCount)
	for i := range weeks {
		weeks[i] = i + 1
	}
	writeJSON(w, http.StatusOK, curriculumResponse{Weeks: weeks, DaysPerWeek: model.DaysPerWeek})
}

// GetWeek は週の全日のコンテンツを返す。
// GET /api/weeks/{week}
func (h *ContentHandler) GetWeek(w http.ResponseWriter, r *http.Request) {
	week, err := intParam(r, "week")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp, err := h.service.GetWeek(r.Context(), week)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetDay は1日分のコンテンツを返す。
// GET /api/weeks/{week}/days/{day}
func (h *ContentHandler) GetDay(w http.ResponseWriter, r *http.Request) {
	week, day, err := keyParams(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp, err := h.service.GetDay(r.Context(), week, day)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetEditForm は編集画面向けのコンテンツを返す。
// GET /api/admin/weeks/{week}/days/{day}
func (h *ContentHandler) GetEditForm(w http.ResponseWriter, r *http.Request) {
	week, day, err := keyParams(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp, err := h.service.GetEditForm(r.Context(), week, day)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// UpdateDay はmultipartフォームを受け取りコンテンツを更新する。
// POST /api/admin/weeks/{week}/days/{day}
func (h *ContentHandler) UpdateDay(w http.ResponseWriter, r *http.Request) {
	week, day, err := keyParams(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// 範囲外のキーはボディを読む前に拒否する
	if !model.ValidKey(week, day) {
		handleServiceError(w, model.NewInvalidKeyError(week, day))
		return
	}

	if err := h.parseForm(r); err != nil {
		handleServiceError(w, err)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	newFiles, err := readUploads(r, "new_files")
	if err != nil {
		handleServiceError(w, err)
		return
	}
	newEvidence, err := readUploads(r, "new_evidence")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	in := content.UpdateInput{
		Week:               week,
		Day:                day,
		Title:              r.FormValue("title"),
		Description:        r.FormValue("description"),
		ActivitiesText:     r.FormValue("activities"),
		LinksText:          r.FormValue("links"),
		NewFiles:           newFiles,
		RemoveFileKeys:     r.Form["remove_files"],
		NewEvidence:        newEvidence,
		RemoveEvidenceKeys: r.Form["remove_evidence"],
	}

	resp, err := h.service.UpdateDay(r.Context(), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updateResponse{
		Message: "Contenido actualizado",
		Content: *resp,
	})
}

// parseForm はmultipartまたはURLエンコードのフォームを解析する。
// ボディサイズ上限の超過はPayloadTooLargeErrorとして返す。
// 上限はContent-Lengthと、BodyLimitミドルウェアのMaxBytesReaderの両方で検出する。
func (h *ContentHandler) parseForm(r *http.Request) error {
	if h.maxUploadSize > 0 && r.ContentLength > h.maxUploadSize {
		return model.NewPayloadTooLargeError(h.maxUploadSize)
	}

	err := r.ParseMultipartForm(multipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err == nil {
		return nil
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return model.NewPayloadTooLargeError(maxErr.Limit)
	}
	return model.NewInvalidRequestError("formulario no válido")
}

// readUploads はフォームフィールドのファイルをすべて読み込む。
func readUploads(r *http.Request, field string) ([]content.Upload, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}

	headers := r.MultipartForm.File[field]
	uploads := make([]content.Upload, 0, len(headers))
	for _, fh := range headers {
		data, err := readFileHeader(fh)
		if err != nil {
			return nil, model.NewInvalidRequestError(fmt.Sprintf("no se pudo leer el archivo %q", fh.Filename))
		}
		uploads = append(uploads, content.Upload{Filename: fh.Filename, Data: data})
	}
	return uploads, nil
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// keyParams はURLパスから週と日を取り出す。
func keyParams(r *http.Request) (int, int, error) {
	week, err := intParam(r, "week")
	if err != nil {
		return 0, 0, err
	}
	day, err := intParam(r, "day")
	if err != nil {
		return 0, 0, err
	}
	return week, day, nil
}

// intParam はURLパスパラメータを整数として取り出す。
func intParam(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, model.NewInvalidRequestError(fmt.Sprintf("%s debe ser un número", name))
	}
	return n, nil
}
