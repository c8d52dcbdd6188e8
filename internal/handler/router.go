package handler

import (
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/jovenes/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	StatusRecorder    middleware.StatusRecorder
	MaxUploadSize     int64
	LoginURL          string

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// コンテンツ
	ContentService ContentServiceInterface

	// 添付ファイル配信（ローカルバックエンドのみ。UploadDirが空の場合は配信しない）
	UploadDir       string
	UploadURLPrefix string

	// 運用
	HealthPinger   Pinger
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Recovery → SecurityHeaders → CORS → Metrics → SessionResolver → Logging
//
// 管理ルートはさらに RequireAdmin → RateLimit(General) → CSRF → BodyLimit を通る。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}
	r.Use(middleware.NewSessionResolver(deps.SessionFinder))
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	contentHandler := NewContentHandler(deps.ContentService, deps.MaxUploadSize)
	csrf := middleware.NewCSRFMiddleware(deps.CSRFConfig)

	// --- 運用 ---
	r.Get("/health", NewHealthHandler(deps.HealthPinger))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- 公開ルート ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

		r.Route("/api/weeks", func(r chi.Router) {
			r.Get("/", contentHandler.ListWeeks)
			r.Get("/{week}", contentHandler.GetWeek)
			r.Get("/{week}/days/{day}", contentHandler.GetDay)
		})

		if deps.UploadDir != "" {
			prefix := "/" + strings.Trim(deps.UploadURLPrefix, "/")
			r.Handle(prefix+"/*", http.StripPrefix(prefix, uploadsHandler(deps.UploadDir)))
		}
	})

	// --- 認証ルート ---
	r.Route("/auth", func(r chi.Router) {
		r.Use(csrf)
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- 管理ルート ---
	// ミドルウェアスタック: RequireAdmin → RateLimit(General) → CSRF → BodyLimit
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.NewRequireAdminMiddleware(deps.LoginURL))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(csrf)
		r.Use(middleware.NewBodyLimitMiddleware(deps.MaxUploadSize))

		r.Get("/weeks/{week}/days/{day}", contentHandler.GetEditForm)
		r.Post("/weeks/{week}/days/{day}", contentHandler.UpdateDay)
	})

	return r
}

// inlineUploadExts はブラウザ内で表示してよい添付ファイルの拡張子。
// それ以外（HTML・SVGなど）は同一オリジンで実行されないようダウンロード扱いにする。
var inlineUploadExts = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// uploadsHandler はアップロード済みファイルを配信する。ディレクトリ一覧は返さない。
func uploadsHandler(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Content-Security-Policy", "sandbox")
		if inlineUploadExts[strings.ToLower(path.Ext(r.URL.Path))] {
			h.Set("Content-Disposition", "inline")
		} else {
			h.Set("Content-Disposition", "attachment")
		}
		fs.ServeHTTP(w, r)
	})
}
