package middleware

import (
	"net/http"

	"github.com/hitoshi/jovenes/internal/model"
)

// NewBodyLimitMiddleware はリクエストボディの最大サイズを制限するミドルウェアを返す。
// Content-Lengthが上限を超える場合は即座に413を返す。
// それ以外はhttp.MaxBytesReaderで包み、読み取り中の超過はハンドラー側で413に変換する。
func NewBodyLimitMiddleware(limit int64) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				WriteErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewPayloadTooLargeError(limit))
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
