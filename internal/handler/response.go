package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/jovenes/internal/middleware"
	"github.com/hitoshi/jovenes/internal/model"
)

// attachmentResponse は添付ファイルのAPIレスポンス。
type attachmentResponse struct {
	Original   string `json:"original"`
	StoredName string `json:"stored_name"`
	URL        string `json:"url"`
}

// dayResponse は1日分のコンテンツのAPIレスポンス。
type dayResponse struct {
	Week            int                  `json:"week"`
	Day             int                  `json:"day"`
	Title           string               `json:"title"`
	Description     string               `json:"description"`
	// DescriptionHTML はdescriptionをエスケープした表示用HTML。
	DescriptionHTML string               `json:"description_html"`
	Activities      []string             `json:"activities"`
	Links           []string             `json:"links"`
	Files           []attachmentResponse `json:"files"`
	Evidence        []attachmentResponse `json:"evidence"`
	UpdatedAt       *time.Time           `json:"updated_at,omitempty"`
}

// weekResponse は週のAPIレスポンス。daysは日の昇順に並ぶ。
type weekResponse struct {
	Week int           `json:"week"`
	Days []dayResponse `json:"days"`
}

// editFormResponse は編集画面向けのAPIレスポンス。
// activitiesとlinksは改行区切りのテキスト。
type editFormResponse struct {
	Week        int                  `json:"week"`
	Day         int                  `json:"day"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Activities  string               `json:"activities"`
	Links       string               `json:"links"`
	Files       []attachmentResponse `json:"files"`
	Evidence    []attachmentResponse `json:"evidence"`
}

// updateResponse はコンテンツ更新成功時のAPIレスポンス。
type updateResponse struct {
	Message string      `json:"message"`
	Content dayResponse `json:"content"`
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		if statusCode >= http.StatusInternalServerError {
			slog.Error("request failed",
				slog.String("code", apiErr.Code),
				slog.String("error", err.Error()),
			)
		}
		middleware.WriteErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidKey, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeInvalidCredentials, model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case model.ErrCodeStorageWrite, model.ErrCodePersistence:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
