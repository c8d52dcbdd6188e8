// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/jovenes/internal/model"
)

// SessionCookieName は管理者セッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// adminContextKey はリクエストコンテキストに管理者名を格納するためのキー。
var adminContextKey = contextKey("admin")

// SessionFinder はセッションの検索に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// NewSessionResolver はCookieからセッションを読み取り、有効な場合は
// 管理者名をリクエストコンテキストに注入するミドルウェアを返す。
// セッションがない、または無効な場合も拒否せずに次へ渡す。
func NewSessionResolver(sessionFinder SessionFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, err := sessionFinder.FindByID(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("failed to find session",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if session == nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithAdmin(r.Context(), session.Subject)))
		})
	}
}

// NewRequireAdminMiddleware は未認証のリクエストを拒否するミドルウェアを返す。
// ブラウザからのGETリクエストはloginURLへリダイレクトし、それ以外は401を返す。
// NewSessionResolverの後に配置する。
func NewRequireAdminMiddleware(loginURL string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsAuthenticated(r.Context()) {
				next.ServeHTTP(w, r)
				return
			}

			if loginURL != "" && r.Method == http.MethodGet && acceptsHTML(r) {
				target := loginURL + "?next=" + url.QueryEscape(r.URL.RequestURI())
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}

			WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		})
	}
}

// IsAuthenticated はリクエストが認証済みの管理者によるものかを返す。
func IsAuthenticated(ctx context.Context) bool {
	_, ok := AdminFromContext(ctx)
	return ok
}

// AdminFromContext はリクエストコンテキストから管理者名を取得する。
func AdminFromContext(ctx context.Context) (string, bool) {
	admin, ok := ctx.Value(adminContextKey).(string)
	if !ok || admin == "" {
		return "", false
	}
	return admin, true
}

// ContextWithAdmin はコンテキストに管理者名を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithAdmin(ctx context.Context, admin string) context.Context {
	return context.WithValue(ctx, adminContextKey, admin)
}

func acceptsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
